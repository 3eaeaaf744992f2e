package format_test

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/Symantec/uhura/format"
	"github.com/Symantec/uhura/messages"
)

func TestParse(t *testing.T) {
	for token, expected := range map[string]format.Format{
		"html": format.HTML, "serialized": format.Serialized,
		"JSON": format.JSON, "xml": format.XML} {
		f, ok := format.Parse(token)
		if !ok || f != expected {
			t.Errorf("Parse(%q) = %v, %v", token, f, ok)
		}
	}
	if _, ok := format.Parse("pdf"); ok {
		t.Error("pdf is not a transport format")
	}
	if format.IsMachineFormat("html") {
		t.Error("html is not a machine format")
	}
	if !format.IsMachineFormat("serialized") {
		t.Error("serialized is a machine format")
	}
	if !format.IsPrintableFormat("pdf") || !format.IsPrintableFormat("PDF") {
		t.Error("pdf is the printable report variant")
	}
	if format.IsPrintableFormat("json") {
		t.Error("json is not the printable report variant")
	}
}

func TestRewriteForHTML(t *testing.T) {
	u, _ := url.Parse(
		"http://host1:8080/monitoring?collector=stop&format=serialized")
	rewritten := format.RewriteForHTML(u)
	if out := rewritten.Query().Get("format"); out != "htmlbody" {
		t.Errorf("Expected 'htmlbody', got '%s'", out)
	}
	if out := rewritten.Query().Get("collector"); out != "stop" {
		t.Errorf("Other parameters must survive, got collector=%s", out)
	}
	// original must be untouched
	if out := u.Query().Get("format"); out != "serialized" {
		t.Errorf("Original URL mutated: format=%s", out)
	}
}

func TestStripFormat(t *testing.T) {
	u, _ := url.Parse("http://host1:8080/monitoring?format=xml")
	stripped := format.StripFormat(u)
	if _, present := stripped.Query()["format"]; present {
		t.Error("Expected format parameter to be removed")
	}
}

func TestWriteCompressedGob(t *testing.T) {
	payload := &messages.ResultEnvelope{
		Application: "webapp",
		Message:     "gc done",
	}
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?format=serialized", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	if err := format.WriteCompressed(
		recorder, req, format.Serialized, payload); err != nil {
		t.Fatal(err)
	}
	if out := recorder.Header().Get("Content-Encoding"); out != "gzip" {
		t.Errorf("Expected gzip encoding, got '%s'", out)
	}
	gz, err := gzip.NewReader(
		bytes.NewReader(recorder.Body.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	var decoded messages.ResultEnvelope
	if err := gob.NewDecoder(gz).Decode(&decoded); err != nil {
		t.Fatal("Got error decoding gob stream", err)
	}
	if decoded.Application != "webapp" || decoded.Message != "gc done" {
		t.Errorf("Got %+v", decoded)
	}
}

func TestWriteCompressedWithoutGzipSupport(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/?format=json", nil)
	err := format.WriteCompressed(
		recorder, req, format.JSON,
		&messages.ResultEnvelope{Application: "webapp"})
	if err != nil {
		t.Fatal(err)
	}
	if out := recorder.Header().Get("Content-Encoding"); out != "" {
		t.Errorf("Expected identity encoding, got '%s'", out)
	}
	if !bytes.Contains(recorder.Body.Bytes(), []byte("webapp")) {
		t.Error("Expected plain JSON body")
	}
}
