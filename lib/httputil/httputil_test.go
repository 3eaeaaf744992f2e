package httputil

import (
	"net/url"
	"testing"
)

func TestNewUrl(t *testing.T) {
	u := NewUrl("/monitoring", "action", "gc", "sessionId", "abc def")
	if out := u.String(); out != "/monitoring?action=gc&sessionId=abc+def" {
		t.Errorf("Got '%s'", out)
	}
}

func TestWithParams(t *testing.T) {
	orig, err := url.Parse("http://host1:8080/monitoring?format=serialized")
	if err != nil {
		t.Fatal(err)
	}
	u := WithParams(orig, "format", "html", "part", "connections")
	values := u.Query()
	if out := values.Get("format"); out != "html" {
		t.Errorf("Expected 'html', got '%s'", out)
	}
	if out := values.Get("part"); out != "connections" {
		t.Errorf("Expected 'connections', got '%s'", out)
	}
	// original untouched
	if out := orig.Query().Get("format"); out != "serialized" {
		t.Errorf("Original URL mutated: format=%s", out)
	}
}

func TestAppendParams(t *testing.T) {
	orig, _ := url.Parse("http://host1:8080/monitoring?format=serialized")
	u := AppendParams(orig, "format", "html")
	if out := len(u.Query()["format"]); out != 2 {
		t.Errorf("Expected 2 format values, got %d", out)
	}
}

func TestStripParams(t *testing.T) {
	orig, _ := url.Parse(
		"http://host1:8080/monitoring?format=serialized&collector=stop")
	u := StripParams(orig, "format", "nosuch")
	values := u.Query()
	if _, ok := values["format"]; ok {
		t.Error("Expected format to be stripped")
	}
	if out := values.Get("collector"); out != "stop" {
		t.Errorf("Expected 'stop', got '%s'", out)
	}
}
