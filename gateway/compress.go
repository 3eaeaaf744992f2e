package gateway

import (
	"bytes"
	"compress/gzip"
	"net/http"
	"strings"
)

const kDefaultCompressionThreshold = 4096

// thresholdWriter buffers an HTML response until it grows past the
// compression threshold, then switches the rest of the response to a
// gzip stream. Small responses go out uncompressed; the switch happens
// before any byte reaches the client so the Content-Encoding header can
// still be set.
type thresholdWriter struct {
	w           http.ResponseWriter
	acceptsGzip bool
	threshold   int
	buffer      bytes.Buffer
	gz          *gzip.Writer
}

func newThresholdWriter(
	w http.ResponseWriter, r *http.Request, threshold int) *thresholdWriter {
	return &thresholdWriter{
		w: w,
		acceptsGzip: strings.Contains(
			r.Header.Get("Accept-Encoding"), "gzip"),
		threshold: threshold,
	}
}

func (t *thresholdWriter) Write(p []byte) (int, error) {
	if !t.acceptsGzip {
		return t.w.Write(p)
	}
	if t.gz != nil {
		return t.gz.Write(p)
	}
	t.buffer.Write(p)
	if t.buffer.Len() >= t.threshold {
		t.w.Header().Set("Content-Encoding", "gzip")
		t.gz = gzip.NewWriter(t.w)
		if _, err := t.gz.Write(t.buffer.Bytes()); err != nil {
			return len(p), err
		}
		t.buffer.Reset()
	}
	return len(p), nil
}

// Close flushes whatever was held back: the gzip trailer for switched
// responses, the plain buffered bytes for small ones.
func (t *thresholdWriter) Close() error {
	if t.gz != nil {
		return t.gz.Close()
	}
	if t.buffer.Len() > 0 {
		_, err := t.w.Write(t.buffer.Bytes())
		return err
	}
	return nil
}
