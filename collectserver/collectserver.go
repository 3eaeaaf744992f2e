package collectserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/Symantec/Dominator/lib/log"
	"github.com/Symantec/tricorder/go/tricorder"
	"github.com/Symantec/tricorder/go/tricorder/units"
	"github.com/Symantec/uhura"
	"github.com/Symantec/uhura/lib/httputil"
	"github.com/Symantec/uhura/messages"
	"github.com/Symantec/uhura/registry"
	"golang.org/x/sync/errgroup"
)

const kDefaultConcurrency = 4

// metrics for CollectorServer instances
type collectorStats struct {
	SweepCount     int64
	NodesCollected int64
	NodeFailures   int64
	ActionsRun     int64
}

func newCollectorServer(
	reg *registry.Registry,
	retriever *uhura.Retriever,
	logger log.Logger,
	options *Options) *CollectorServer {
	var optionsCopy Options
	if options != nil {
		optionsCopy = *options
	}
	if optionsCopy.Concurrency <= 0 {
		optionsCopy.Concurrency = kDefaultConcurrency
	}
	bucketer := tricorder.NewGeometricBucketer(1e-4, 1000.0)
	return &CollectorServer{
		registry:     reg,
		retriever:    retriever,
		logger:       logger,
		concurrency:  optionsCopy.Concurrency,
		storageDir:   optionsCopy.StorageDir,
		mailer:       optionsCopy.Mailer,
		collectDist:  bucketer.NewCumulativeDistribution(),
		sweepDist:    bucketer.NewCumulativeDistribution(),
		availability: make(map[string]bool),
		lastErrors:   make(map[string]string),
		counters:     make(map[string]map[string]int64),
	}
}

func (s *CollectorServer) registerMetrics() (err error) {
	if err = tricorder.RegisterMetric(
		"collector/collectTime",
		s.collectDist,
		units.Second,
		"Time spent collecting one application"); err != nil {
		return
	}
	if err = tricorder.RegisterMetric(
		"collector/sweepDuration",
		s.sweepDist,
		units.Second,
		"Sweep duration"); err != nil {
		return
	}
	var data collectorStats
	region := tricorder.NewGroup()
	region.RegisterUpdateFunc(func() time.Time {
		s.collectData(&data)
		return time.Now()
	})
	if err = tricorder.RegisterMetricInGroup(
		"collector/sweepCount",
		&data.SweepCount,
		region,
		units.None,
		"Number of collection sweeps"); err != nil {
		return
	}
	if err = tricorder.RegisterMetricInGroup(
		"collector/nodesCollected",
		&data.NodesCollected,
		region,
		units.None,
		"Number of node collects"); err != nil {
		return
	}
	if err = tricorder.RegisterMetricInGroup(
		"collector/nodeFailures",
		&data.NodeFailures,
		region,
		units.None,
		"Number of node collects that failed"); err != nil {
		return
	}
	if err = tricorder.RegisterMetricInGroup(
		"collector/actionsRun",
		&data.ActionsRun,
		region,
		units.None,
		"Number of action fan outs executed"); err != nil {
		return
	}
	return
}

func (s *CollectorServer) collectData(data *collectorStats) {
	s.lock.Lock()
	defer s.lock.Unlock()
	*data = s.stats
}

func (s *CollectorServer) isAvailable(name string) bool {
	return s.isAvailableGuarded(name, make(map[string]bool))
}

// seen guards the group recursion: an application reached twice in one
// query, through a cycle or through two group paths, contributes
// nothing new.
func (s *CollectorServer) isAvailableGuarded(
	name string, seen map[string]bool) bool {
	if seen[name] {
		return false
	}
	seen[name] = true
	app, err := s.registry.Resolve(name)
	if err != nil {
		return false
	}
	if app.Group() {
		for _, member := range app.Members() {
			if s.isAvailableGuarded(member, seen) {
				return true
			}
		}
		return false
	}
	if len(app.Nodes()) == 0 {
		return false
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	available, swept := s.availability[name]
	if !swept {
		// no sweep has reached this application yet; give it the
		// benefit of the doubt
		return true
	}
	return available
}

func (s *CollectorServer) collectDescriptiveState(
	ctx context.Context, name string) ([]*messages.NodeDescriptor, error) {
	nodes, err := s.registry.ResolveNodes(name)
	if err != nil {
		return nil, err
	}
	startTime := time.Now()
	defer func() { s.collectDist.Add(time.Since(startTime)) }()
	descriptors := make([]*messages.NodeDescriptor, len(nodes))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for i, node := range nodes {
		i, node := i, node
		group.Go(func() error {
			descriptors[i] = s.collectNode(groupCtx, node)
			return nil
		})
	}
	group.Wait()
	s.recordCollect(name, descriptors)
	return descriptors, nil
}

// collectNode fetches one node's self reported state. Failures are
// absorbed into the descriptor.
func (s *CollectorServer) collectNode(
	ctx context.Context, node *uhura.Endpoint) *messages.NodeDescriptor {
	descriptor := &messages.NodeDescriptor{
		HostAndPort: node.HostAndPort(),
	}
	u := httputil.WithParams(node.URL(), "part", "jvm", "format", "json")
	content, err := s.retriever.Fetch(ctx, u)
	if err != nil {
		descriptor.Error = err.Error()
		return descriptor
	}
	if err := json.Unmarshal(content, descriptor); err != nil {
		descriptor.Error = fmt.Sprintf("bad node answer: %v", err)
		return descriptor
	}
	descriptor.HostAndPort = node.HostAndPort()
	descriptor.Available = true
	descriptor.Error = ""
	descriptor.CollectedAt = time.Now()
	return descriptor
}

func (s *CollectorServer) recordCollect(
	name string, descriptors []*messages.NodeDescriptor) {
	available := false
	firstError := ""
	var failures int64
	for _, descriptor := range descriptors {
		if descriptor.Available {
			available = true
		} else {
			failures++
			if firstError == "" {
				firstError = fmt.Sprintf(
					"%s: %s", descriptor.HostAndPort, descriptor.Error)
			}
		}
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.availability[name] = available
	if firstError == "" {
		delete(s.lastErrors, name)
	} else {
		s.lastErrors[name] = firstError
	}
	s.addCounterLocked(name, "collects", 1)
	s.stats.NodesCollected += int64(len(descriptors))
	s.stats.NodeFailures += failures
}

// request identifiers forwarded verbatim to the nodes
var kForwardedParams = []string{
	"sessionId", "threadId", "jobId", "cacheId", "cacheKey", "path"}

func (s *CollectorServer) collectNodePayloads(
	ctx context.Context, name, part string, params url.Values) (
	[]*messages.NodePayload, error) {
	nodes, err := s.registry.ResolveNodes(name)
	if err != nil {
		return nil, err
	}
	startTime := time.Now()
	defer func() { s.collectDist.Add(time.Since(startTime)) }()
	payloads := make([]*messages.NodePayload, len(nodes))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for i, node := range nodes {
		i, node := i, node
		group.Go(func() error {
			payloads[i] = s.collectPayload(groupCtx, node, part, params)
			return nil
		})
	}
	group.Wait()
	var failures int64
	for _, payload := range payloads {
		if payload.Error != "" {
			failures++
		}
	}
	s.lock.Lock()
	s.stats.NodesCollected += int64(len(payloads))
	s.stats.NodeFailures += failures
	s.lock.Unlock()
	return payloads, nil
}

func (s *CollectorServer) collectPayload(
	ctx context.Context, node *uhura.Endpoint, part string,
	params url.Values) *messages.NodePayload {
	payload := &messages.NodePayload{HostAndPort: node.HostAndPort()}
	u := httputil.WithParams(node.URL(), "part", part, "format", "json")
	for _, param := range kForwardedParams {
		if value := params.Get(param); value != "" {
			u = httputil.AppendParams(u, param, value)
		}
	}
	content, contentType, err := s.fetchWithType(ctx, u)
	if err != nil {
		s.logger.Printf("collect of part %s from %s failed: %v",
			part, node.HostAndPort(), err)
		payload.Error = err.Error()
		return payload
	}
	payload.ContentType = contentType
	payload.Body = content
	return payload
}

func (s *CollectorServer) fetchWithType(
	ctx context.Context, u *url.URL) ([]byte, string, error) {
	body, contentType, err := s.retriever.Open(ctx, u)
	if err != nil {
		return nil, "", err
	}
	defer body.Close()
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, "", err
	}
	return content, contentType, nil
}

func (s *CollectorServer) collectForAction(
	ctx context.Context, name string, actionURLs []*url.URL) (
	string, error) {
	succeeded := 0
	for _, u := range actionURLs {
		if _, err := s.retriever.Fetch(ctx, u); err != nil {
			s.logger.Printf(
				"action on %s failed: %v", u.Host, err)
			continue
		}
		succeeded++
	}
	s.lock.Lock()
	s.stats.ActionsRun++
	s.addCounterLocked(name, "actions", 1)
	s.lock.Unlock()
	message := fmt.Sprintf(
		"Action done on %d of %d nodes of %s",
		succeeded, len(actionURLs), name)
	if failed := len(actionURLs) - succeeded; failed > 0 {
		message += fmt.Sprintf(" (%d failed)", failed)
	}
	return message, nil
}

func (s *CollectorServer) lastCollectErrors() map[string]string {
	s.lock.Lock()
	defer s.lock.Unlock()
	result := make(map[string]string, len(s.lastErrors))
	for name, message := range s.lastErrors {
		result[name] = message
	}
	return result
}

func (s *CollectorServer) addCounterLocked(
	name, counter string, delta int64) {
	byCounter := s.counters[name]
	if byCounter == nil {
		byCounter = make(map[string]int64)
		s.counters[name] = byCounter
	}
	byCounter[counter] += delta
}

func (s *CollectorServer) sweepLoop(frequency time.Duration) {
	for {
		sweepTime := time.Now()
		for _, app := range s.registry.All() {
			if app.Group() {
				continue
			}
			ctx, cancel := context.WithTimeout(
				context.Background(), frequency)
			if _, err := s.collectDescriptiveState(
				ctx, app.Name()); err != nil {
				s.logger.Println(err)
			}
			cancel()
		}
		s.lock.Lock()
		s.stats.SweepCount++
		s.lock.Unlock()
		sweepDuration := time.Since(sweepTime)
		s.sweepDist.Add(sweepDuration)
		if sweepDuration < frequency {
			time.Sleep(frequency - sweepDuration)
		}
	}
}
