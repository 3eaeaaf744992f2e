package format

import (
	"compress/gzip"
	"encoding/gob"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Symantec/uhura/lib/httputil"
)

func parse(token string) (Format, bool) {
	switch strings.ToLower(token) {
	case "html":
		return HTML, true
	case "serialized":
		return Serialized, true
	case "json":
		return JSON, true
	case "xml":
		return XML, true
	}
	return 0, false
}

func (f Format) token() string {
	switch f {
	case HTML:
		return "html"
	case Serialized:
		return "serialized"
	case JSON:
		return "json"
	case XML:
		return "xml"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

func (f Format) contentType() string {
	switch f {
	case HTML:
		return "text/html; charset=utf-8"
	case Serialized:
		return "application/x-gob"
	case JSON:
		return "application/json; charset=utf-8"
	case XML:
		return "text/xml; charset=utf-8"
	}
	return "application/octet-stream"
}

func rewrite(u *url.URL, token string) *url.URL {
	return httputil.WithParams(u, ParamName, token)
}

func strip(u *url.URL) *url.URL {
	return httputil.StripParams(u, ParamName)
}

func isPrintable(token string) bool {
	return strings.EqualFold(token, PrintableToken)
}

func acceptsGzip(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")
}

func encode(w io.Writer, f Format, payload interface{}) error {
	switch f {
	case Serialized:
		return gob.NewEncoder(w).Encode(payload)
	case JSON:
		return json.NewEncoder(w).Encode(payload)
	case XML:
		return xml.NewEncoder(w).Encode(payload)
	}
	return fmt.Errorf("format %s is not a machine serialization", f.token())
}

func writeCompressed(
	w http.ResponseWriter, r *http.Request, f Format,
	payload interface{}) error {
	w.Header().Set("Content-Type", f.contentType())
	if !acceptsGzip(r) {
		return encode(w, f, payload)
	}
	w.Header().Set("Content-Encoding", "gzip")
	gz := gzip.NewWriter(w)
	if err := encode(gz, f, payload); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}
