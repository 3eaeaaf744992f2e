package uhura

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

func newEndpoint(rawURL string) (*Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf(
			"node URL must be absolute http or https: %s", rawURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("node URL missing host: %s", rawURL)
	}
	return &Endpoint{url: u}, nil
}

func newRetriever(timeout time.Duration) *Retriever {
	return &Retriever{
		client: &http.Client{Timeout: timeout},
	}
}

func (r *Retriever) open(ctx context.Context, u *url.URL) (
	io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", &NodeUnreachableError{URL: u, Err: err}
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", &NodeUnreachableError{URL: u, Err: err}
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, "", &NodeUnreachableError{
			URL: u,
			Err: errors.New(resp.Status),
		}
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func (r *Retriever) copyTo(ctx context.Context, u *url.URL, w io.Writer) (
	int64, error) {
	body, _, err := r.open(ctx, u)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return io.Copy(w, body)
}

func (r *Retriever) fetch(ctx context.Context, u *url.URL) ([]byte, error) {
	body, _, err := r.open(ctx, u)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	return io.ReadAll(body)
}
