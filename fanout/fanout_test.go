package fanout_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	stdlog "log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Symantec/uhura"
	"github.com/Symantec/uhura/fanout"
	. "github.com/smartystreets/goconvey/convey"
)

func newNode(t *testing.T, content string, fail bool) (
	*uhura.Endpoint, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if fail {
				http.Error(w, "down", http.StatusServiceUnavailable)
				return
			}
			io.WriteString(w, content)
		}))
	t.Cleanup(server.Close)
	endpoint, err := uhura.NewEndpoint(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	return endpoint, server
}

func newProxy() *fanout.Proxy {
	return fanout.New(
		uhura.NewRetriever(5*time.Second),
		stdlog.New(io.Discard, "", 0))
}

func passThroughURL(node *uhura.Endpoint) *url.URL {
	return node.URL()
}

func TestCollectAll(t *testing.T) {
	Convey("Given three nodes of which the second is down", t, func() {
		n1, _ := newNode(t, "content one", false)
		n2, _ := newNode(t, "", true)
		n3, _ := newNode(t, "content three", false)
		proxy := newProxy()
		req := fanout.Request{
			Nodes:    []*uhura.Endpoint{n1, n2, n3},
			BuildURL: passThroughURL,
			Heading: func(w io.Writer, node *uhura.Endpoint) {
				fmt.Fprintf(w, "[%s]", node.HostAndPort())
			},
		}

		Convey("CollectAll splices the answering nodes in order", func() {
			var buf bytes.Buffer
			err := proxy.Run(
				context.Background(), fanout.CollectAll, req, &buf)
			So(err, ShouldBeNil)
			out := buf.String()
			expected := fmt.Sprintf(
				"[%s]content one[%s]content three",
				n1.HostAndPort(), n3.HostAndPort())
			So(out, ShouldEqual, expected)

			Convey("and the failed node leaves no heading", func() {
				So(out, ShouldNotContainSubstring, n2.HostAndPort())
			})
		})
	})
}

func TestScalarSeparators(t *testing.T) {
	Convey("Given three nodes, one of them answering empty", t, func() {
		n1, _ := newNode(t, "42", false)
		n2, _ := newNode(t, "", false)
		n3, _ := newNode(t, "7", false)
		proxy := newProxy()
		req := fanout.Request{
			Nodes:     []*uhura.Endpoint{n1, n2, n3},
			BuildURL:  passThroughURL,
			Separator: []byte("||"),
		}

		Convey("the stream holds 3 segments and exactly 2 separators", func() {
			var buf bytes.Buffer
			err := proxy.Run(
				context.Background(), fanout.CollectAll, req, &buf)
			So(err, ShouldBeNil)
			So(buf.String(), ShouldEqual, "42||||7")
		})
	})

	Convey("A down node still gets its separators", t, func() {
		n1, _ := newNode(t, "42", false)
		n2, _ := newNode(t, "", true)
		n3, _ := newNode(t, "7", false)
		proxy := newProxy()
		req := fanout.Request{
			Nodes:     []*uhura.Endpoint{n1, n2, n3},
			BuildURL:  passThroughURL,
			Separator: []byte("||"),
		}
		var buf bytes.Buffer
		err := proxy.Run(
			context.Background(), fanout.CollectAll, req, &buf)
		So(err, ShouldBeNil)
		So(buf.String(), ShouldEqual, "42||||7")
	})
}

func TestFirstSuccess(t *testing.T) {
	Convey("Given two nodes of which the first is down", t, func() {
		n1, _ := newNode(t, "", true)
		n2, _ := newNode(t, "the artifact", false)
		proxy := newProxy()

		Convey("FirstSuccess returns the second node's content", func() {
			var buf bytes.Buffer
			var contentType string
			err := proxy.Run(
				context.Background(), fanout.FirstSuccess,
				fanout.Request{
					Nodes:    []*uhura.Endpoint{n1, n2},
					BuildURL: passThroughURL,
					OnContent: func(ct string) {
						contentType = ct
					},
				}, &buf)
			So(err, ShouldBeNil)
			So(buf.String(), ShouldEqual, "the artifact")
			So(contentType, ShouldContainSubstring, "text/plain")
		})
	})

	Convey("When every node is down", t, func() {
		n1, _ := newNode(t, "", true)
		n2, _ := newNode(t, "", true)
		proxy := newProxy()

		Convey("FirstSuccess reports ErrAllNodesFailed", func() {
			var buf bytes.Buffer
			err := proxy.Run(
				context.Background(), fanout.FirstSuccess,
				fanout.Request{
					Nodes:    []*uhura.Endpoint{n1, n2},
					BuildURL: passThroughURL,
				}, &buf)
			So(errors.Is(err, fanout.ErrAllNodesFailed), ShouldBeTrue)
			So(buf.Len(), ShouldEqual, 0)
		})
	})
}

func TestFirstSuccessStopsEarly(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			calls++
			io.WriteString(w, "ok")
		}))
	defer server.Close()
	endpoint, err := uhura.NewEndpoint(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	proxy := newProxy()
	var buf bytes.Buffer
	err = proxy.Run(
		context.Background(), fanout.FirstSuccess,
		fanout.Request{
			Nodes:    []*uhura.Endpoint{endpoint, endpoint, endpoint},
			BuildURL: passThroughURL,
		}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("Expected exactly one node call, got %d", calls)
	}
}

func TestCancelledContext(t *testing.T) {
	n1, _ := newNode(t, "content", false)
	proxy := newProxy()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	err := proxy.Run(ctx, fanout.CollectAll, fanout.Request{
		Nodes:    []*uhura.Endpoint{n1},
		BuildURL: passThroughURL,
	}, &buf)
	if err == nil {
		t.Error("Expected error for cancelled context")
	}
}
