// Package fanout iterates the nodes of an application performing one
// remote call per node under a caller chosen failure policy.
package fanout

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"

	"github.com/Symantec/Dominator/lib/log"
	"github.com/Symantec/tricorder/go/tricorder"
	"github.com/Symantec/uhura"
)

// ErrAllNodesFailed means every node failed under the FirstSuccess
// policy. Callers translate it to not found semantics.
var ErrAllNodesFailed = errors.New("no node could answer the request")

// Policy selects how node failures are handled during a fan out.
type Policy int

const (
	// CollectAll visits every node in order splicing each answer into
	// the output. A node that fails to answer is skipped; the response
	// is best effort partial and never aborts on a node failure.
	CollectAll Policy = iota

	// FirstSuccess visits nodes in order and stops at the first node
	// that answers. Used for node invariant content where any node's
	// answer is as good as another's.
	FirstSuccess
)

// Request describes one fan out across the nodes of an application.
// Every present field applies to each node uniformly.
type Request struct {
	// Nodes to visit, in order. The output preserves this order.
	Nodes []*uhura.Endpoint

	// BuildURL builds the outbound URL for one node.
	BuildURL func(node *uhura.Endpoint) *url.URL

	// Heading, when non nil, is written immediately before a node's
	// content under CollectAll. It is not written for skipped nodes.
	Heading func(w io.Writer, node *uhura.Endpoint)

	// Separator, when non nil, is written between every adjacent pair
	// of node segments under CollectAll, including segments left empty
	// by a failed node. Used for scalar value streams.
	Separator []byte

	// OnContent, when non nil, is called with the content type of the
	// first node that answers, before any of its bytes are written.
	OnContent func(contentType string)
}

// Proxy performs fan outs. Proxy instances may be used with multiple
// goroutines.
type Proxy struct {
	retriever *uhura.Retriever
	logger    log.Logger
	callDist  *tricorder.CumulativeDistribution
	lock      sync.Mutex
	stats     proxyStats
}

// New returns a new Proxy calling nodes through retriever.
func New(retriever *uhura.Retriever, logger log.Logger) *Proxy {
	return newProxy(retriever, logger)
}

// RegisterMetrics registers this proxy's metrics under proxy/.
func (p *Proxy) RegisterMetrics() error {
	return p.registerMetrics()
}

// Run performs the fan out described by req under policy, writing node
// content to w. Node iteration is sequential so that output order always
// matches node order. Exactly one call is made per visited node; no call
// is ever retried.
//
// Under CollectAll, Run returns a non nil error only when writing to w
// fails (the client is gone); node failures are logged and skipped.
// Under FirstSuccess, Run returns ErrAllNodesFailed once every node has
// failed.
func (p *Proxy) Run(
	ctx context.Context, policy Policy, req Request, w io.Writer) error {
	return p.run(ctx, policy, req, w)
}
