// Package collectserver talks to the monitored nodes on behalf of the
// gateway: it collects each node's self reported state, executes remote
// action fan outs with per node bookkeeping, runs local actions against
// the gateway's own aggregated state, and sweeps the fleet periodically
// to know which applications still have data available.
package collectserver

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/Symantec/Dominator/lib/log"
	"github.com/Symantec/tricorder/go/tricorder"
	"github.com/Symantec/uhura"
	"github.com/Symantec/uhura/action"
	"github.com/Symantec/uhura/messages"
	"github.com/Symantec/uhura/registry"
)

// Mailer sends operator mail. The mail_test action needs one; a
// CollectorServer without a Mailer refuses mail_test.
type Mailer interface {
	SendTestReport(application string) error
}

// Options configures a CollectorServer beyond its required
// collaborators. The zero value is usable.
type Options struct {
	// Maximum concurrent node collects per application. 0 means a
	// sensible default.
	Concurrency int

	// Directory holding the gateway's obsolete report files, purged by
	// the purge_obsolete_files action. Empty disables purging.
	StorageDir string

	// Mailer for the mail_test action. nil disables mail_test.
	Mailer Mailer
}

// CollectorServer implements the collector side of the gateway. An
// instance is expected to be global and is safe for use with multiple
// goroutines.
type CollectorServer struct {
	registry    *registry.Registry
	retriever   *uhura.Retriever
	logger      log.Logger
	concurrency int
	storageDir  string
	mailer      Mailer
	collectDist *tricorder.CumulativeDistribution
	sweepDist   *tricorder.CumulativeDistribution

	// lock protects everything below
	lock         sync.Mutex
	availability map[string]bool
	lastErrors   map[string]string
	counters     map[string]map[string]int64
	stats        collectorStats
}

// New returns a new CollectorServer. options may be nil.
func New(
	reg *registry.Registry,
	retriever *uhura.Retriever,
	logger log.Logger,
	options *Options) *CollectorServer {
	return newCollectorServer(reg, retriever, logger, options)
}

// RegisterMetrics registers this server's metrics under collector/.
func (s *CollectorServer) RegisterMetrics() error {
	return s.registerMetrics()
}

// StartSweeping starts the background goroutine that collects every
// leaf application's state each frequency interval, keeping
// availability and last error bookkeeping current.
func (s *CollectorServer) StartSweeping(frequency time.Duration) {
	go s.sweepLoop(frequency)
}

// IsApplicationDataAvailable reports whether name currently has data:
// a leaf is available while at least one of its nodes answers collects;
// a group is available while at least one member is.
func (s *CollectorServer) IsApplicationDataAvailable(name string) bool {
	return s.isAvailable(name)
}

// CollectDescriptiveState collects the current self reported state of
// every node of name, in node order. A node that fails to answer yields
// a descriptor with Available false and its error; node failures never
// fail the whole collect. CollectDescriptiveState fails only when name
// cannot be resolved.
func (s *CollectorServer) CollectDescriptiveState(
	ctx context.Context, name string) ([]*messages.NodeDescriptor, error) {
	return s.collectDescriptiveState(ctx, name)
}

// CollectForApplicationForAction executes a remote action fan out: one
// call per action URL, in order, never retried. Per node failures are
// absorbed into the returned human readable summary.
func (s *CollectorServer) CollectForApplicationForAction(
	ctx context.Context, name string, actionURLs []*url.URL) (
	string, error) {
	return s.collectForAction(ctx, name, actionURLs)
}

// CollectNodePayloads collects the named part from every node of name
// in node order, asking each node for its machine serialized form.
// params carries auxiliary request identifiers forwarded to the nodes,
// such as the session id. A node that fails to answer yields a payload
// with its error set; node failures never fail the whole collect.
func (s *CollectorServer) CollectNodePayloads(
	ctx context.Context, name, part string, params url.Values) (
	[]*messages.NodePayload, error) {
	return s.collectNodePayloads(ctx, name, part, params)
}

// ExecuteLocalAction executes act against the gateway's locally
// aggregated state for name. No node is contacted. params carries the
// auxiliary request identifiers such as the counter name.
func (s *CollectorServer) ExecuteLocalAction(
	name string, act action.Action, params url.Values) (string, error) {
	return s.executeLocalAction(name, act, params)
}

// LastCollectErrors returns the most recent collect error per
// application. Healthy applications are absent from the map.
func (s *CollectorServer) LastCollectErrors() map[string]string {
	return s.lastCollectErrors()
}
