// Package gateway is the HTTP front end of the aggregation server. It
// resolves the active application for each request, dispatches operator
// actions (locally or fanned out to the application's nodes), and
// negotiates how the answer travels back: a rendered report page, a
// machine serialization, a raw scalar stream, or node content spliced
// into one page.
package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/Symantec/Dominator/lib/log"
	"github.com/Symantec/tricorder/go/tricorder"
	"github.com/Symantec/uhura/action"
	"github.com/Symantec/uhura/affinity"
	"github.com/Symantec/uhura/fanout"
	"github.com/Symantec/uhura/messages"
	"github.com/Symantec/uhura/registry"
)

var (
	// ErrInvalidToken means the request's token parameter does not
	// match the configured one. The action is refused before any node
	// is contacted.
	ErrInvalidToken = errors.New("invalid token parameter")

	// ErrSystemActionsDisabled means the request needs the system
	// actions enablement and the gateway runs with it off.
	ErrSystemActionsDisabled = errors.New("system actions are disabled")
)

// Collector is the slice of the collector the gateway needs. It is
// implemented by collectserver.CollectorServer.
type Collector interface {
	IsApplicationDataAvailable(name string) bool
	CollectDescriptiveState(ctx context.Context, name string) (
		[]*messages.NodeDescriptor, error)
	CollectNodePayloads(
		ctx context.Context, name, part string, params url.Values) (
		[]*messages.NodePayload, error)
	CollectForApplicationForAction(
		ctx context.Context, name string, actionURLs []*url.URL) (
		string, error)
	ExecuteLocalAction(
		name string, act action.Action, params url.Values) (string, error)
	LastCollectErrors() map[string]string
}

// Renderer writes the full report page for one application. The
// gateway owns transport and dispatch; page layout lives behind this
// interface.
type Renderer interface {
	WriteReport(
		w io.Writer,
		application, message string,
		nodes []*messages.NodeDescriptor) error
}

// Config holds the gateway's request handling knobs.
type Config struct {
	// Token that action requests must present. Empty disables the
	// check.
	ActionToken string

	// SystemActionsEnabled allows the actions and parts that expose
	// node internals (heap dumps, session invalidation, process
	// listings).
	SystemActionsEnabled bool

	// Response bodies at least this many bytes are gzip compressed for
	// clients that accept it. Non positive means the default.
	CompressionThreshold int
}

// Handler is the gateway's http.Handler. An instance is expected to be
// global and is safe for use with multiple goroutines.
type Handler struct {
	registry  *registry.Registry
	collector Collector
	proxy     *fanout.Proxy
	affinity  *affinity.Manager
	renderer  Renderer
	logger    log.Logger
	config    Config

	requestDist *tricorder.CumulativeDistribution
}

// New returns a new Handler.
func New(
	reg *registry.Registry,
	collector Collector,
	proxy *fanout.Proxy,
	affinityManager *affinity.Manager,
	renderer Renderer,
	logger log.Logger,
	config Config) *Handler {
	return newHandler(
		reg, collector, proxy, affinityManager, renderer, logger, config)
}

// RegisterMetrics registers this handler's metrics under gateway/.
func (h *Handler) RegisterMetrics() error {
	return h.registerMetrics()
}

// ServeHTTP dispatches one monitoring request. Requests carrying an
// action parameter execute the action; all other requests answer with
// the negotiated form of the application's state. Failures during
// dispatch degrade to an operator readable message with a redirect
// back to the report, never a blank error page.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.serveHTTP(w, r)
}
