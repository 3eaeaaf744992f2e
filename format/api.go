// Package format defines the transport formats a response can take and
// how node URLs are rewritten when the gateway forwards a request.
package format

import (
	"net/http"
	"net/url"
)

// Format identifies how the next hop's response is encoded.
type Format int

const (
	// HTML is the rendered document format.
	HTML Format = iota
	// Serialized is the gob machine serialization.
	Serialized
	// JSON machine serialization.
	JSON
	// XML machine serialization.
	XML
)

const (
	// ParamName is the query parameter carrying the format token.
	ParamName = "format"

	// HTMLBodyToken asks a node for the body only rendering of a part
	// so the gateway can splice it into its own HTML page.
	HTMLBodyToken = "htmlbody"

	// PrintableToken asks for the paged printable variant of the full
	// report. It is a rendering variant, not a machine serialization.
	PrintableToken = "pdf"
)

// Parse returns the Format for a wire token. The second return value is
// false for unrecognized tokens.
func Parse(token string) (Format, bool) {
	return parse(token)
}

// IsMachineFormat returns true if token names a machine serialization
// transport (serialized, json, or xml).
func IsMachineFormat(token string) bool {
	f, ok := parse(token)
	return ok && f != HTML
}

// IsPrintableFormat returns true if token asks for the printable
// report variant. The match is case insensitive.
func IsPrintableFormat(token string) bool {
	return isPrintable(token)
}

// Token returns the wire token for this format.
func (f Format) Token() string {
	return f.token()
}

// ContentType returns the response content type for this format.
func (f Format) ContentType() string {
	return f.contentType()
}

// RewriteForHTML returns u with its format parameter replaced by the
// html body token. The gateway always asks nodes for the rendered
// document form when it intends to splice their output into its own
// HTML, regardless of what the original client asked for.
func RewriteForHTML(u *url.URL) *url.URL {
	return rewrite(u, HTMLBodyToken)
}

// StripFormat returns u with its format parameter removed, used for raw
// value streams where the node must answer with plain text.
func StripFormat(u *url.URL) *url.URL {
	return strip(u)
}

// WriteCompressed encodes payload in format f to w, gzip wrapping the
// stream when the client accepts it. f must be a machine serialization
// format.
func WriteCompressed(
	w http.ResponseWriter, r *http.Request, f Format,
	payload interface{}) error {
	return writeCompressed(w, r, f, payload)
}
