// Package uhura routes monitoring requests to application nodes.
package uhura

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Endpoint identifies one node of a monitored application by the URL of
// its monitoring page. Endpoint instances are immutable.
type Endpoint struct {
	url *url.URL
}

// NewEndpoint returns a new Endpoint for rawURL. rawURL must be an
// absolute http or https URL.
func NewEndpoint(rawURL string) (*Endpoint, error) {
	return newEndpoint(rawURL)
}

// URL returns a copy of the endpoint's URL. Callers may modify the
// returned URL freely.
func (e *Endpoint) URL() *url.URL {
	u := *e.url
	return &u
}

// HostAndPort returns the "host:port" of this endpoint for use in
// operator facing headings.
func (e *Endpoint) HostAndPort() string {
	return e.url.Host
}

func (e *Endpoint) String() string {
	return e.url.String()
}

// NodeUnreachableError is the error for a node call that could not be
// completed: connection failure, timeout, or a non 2xx response.
type NodeUnreachableError struct {
	URL *url.URL
	Err error
}

func (e *NodeUnreachableError) Error() string {
	return fmt.Sprintf("node %s unreachable: %v", e.URL.Host, e.Err)
}

func (e *NodeUnreachableError) Unwrap() error {
	return e.Err
}

// Retriever performs single node calls with a bounded timeout. Retriever
// instances may be used with multiple goroutines. A node that exceeds the
// timeout counts as unreachable; no call is ever retried.
type Retriever struct {
	client *http.Client
}

// NewRetriever returns a new Retriever. timeout bounds each node call
// end to end. A non positive timeout means no bound beyond the caller's
// context.
func NewRetriever(timeout time.Duration) *Retriever {
	return newRetriever(timeout)
}

// Open performs a GET of u and returns the response body stream along
// with its content type. Caller must close the stream. Open returns a
// *NodeUnreachableError if the node cannot be reached or answers with a
// non 2xx status.
func (r *Retriever) Open(ctx context.Context, u *url.URL) (
	io.ReadCloser, string, error) {
	return r.open(ctx, u)
}

// CopyTo performs a GET of u streaming the response body to w. It
// returns the number of bytes copied.
func (r *Retriever) CopyTo(ctx context.Context, u *url.URL, w io.Writer) (
	int64, error) {
	return r.copyTo(ctx, u, w)
}

// Fetch performs a GET of u and returns the whole response body.
func (r *Retriever) Fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	return r.fetch(ctx, u)
}
