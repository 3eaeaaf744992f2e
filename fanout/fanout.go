package fanout

import (
	"context"
	"io"
	"time"

	"github.com/Symantec/Dominator/lib/log"
	"github.com/Symantec/tricorder/go/tricorder"
	"github.com/Symantec/tricorder/go/tricorder/units"
	"github.com/Symantec/uhura"
)

// metrics for Proxy instances
type proxyStats struct {
	NodeCalls    int64
	NodeFailures int64
}

func newProxy(retriever *uhura.Retriever, logger log.Logger) *Proxy {
	bucketer := tricorder.NewGeometricBucketer(1e-4, 1000.0)
	return &Proxy{
		retriever: retriever,
		logger:    logger,
		callDist:  bucketer.NewCumulativeDistribution(),
	}
}

func (p *Proxy) registerMetrics() (err error) {
	if err = tricorder.RegisterMetric(
		"proxy/nodeCallTime",
		p.callDist,
		units.Second,
		"Time spent per node call"); err != nil {
		return
	}
	var data proxyStats
	region := tricorder.NewGroup()
	region.RegisterUpdateFunc(func() time.Time {
		p.collectData(&data)
		return time.Now()
	})
	if err = tricorder.RegisterMetricInGroup(
		"proxy/nodeCalls",
		&data.NodeCalls,
		region,
		units.None,
		"Number of node calls made"); err != nil {
		return
	}
	if err = tricorder.RegisterMetricInGroup(
		"proxy/nodeFailures",
		&data.NodeFailures,
		region,
		units.None,
		"Number of node calls that failed"); err != nil {
		return
	}
	return
}

func (p *Proxy) collectData(data *proxyStats) {
	p.lock.Lock()
	defer p.lock.Unlock()
	*data = p.stats
}

func (p *Proxy) logCall(failed bool) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.stats.NodeCalls++
	if failed {
		p.stats.NodeFailures++
	}
}

// open performs the single call for one node recording metrics.
func (p *Proxy) open(ctx context.Context, req Request, node *uhura.Endpoint) (
	io.ReadCloser, string, error) {
	startTime := time.Now()
	body, contentType, err := p.retriever.Open(ctx, req.BuildURL(node))
	p.callDist.Add(time.Since(startTime))
	p.logCall(err != nil)
	return body, contentType, err
}

// clientWriter remembers whether a write to the client itself failed so
// a mid stream node read failure is not mistaken for a gone client.
type clientWriter struct {
	w   io.Writer
	err error
}

func (c *clientWriter) Write(b []byte) (int, error) {
	n, err := c.w.Write(b)
	if err != nil {
		c.err = err
	}
	return n, err
}

func (p *Proxy) run(
	ctx context.Context, policy Policy, req Request, w io.Writer) error {
	if policy == FirstSuccess {
		return p.runFirstSuccess(ctx, req, w)
	}
	return p.runCollectAll(ctx, req, w)
}

func (p *Proxy) runCollectAll(
	ctx context.Context, req Request, w io.Writer) error {
	client := &clientWriter{w: w}
	contentSeen := false
	for i, node := range req.Nodes {
		if req.Separator != nil && i > 0 {
			if _, err := client.Write(req.Separator); err != nil {
				return err
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		body, contentType, err := p.open(ctx, req, node)
		if err != nil {
			p.logger.Printf(
				"skipping node %s: %v", node.HostAndPort(), err)
			continue
		}
		if !contentSeen {
			contentSeen = true
			if req.OnContent != nil {
				req.OnContent(contentType)
			}
		}
		if req.Heading != nil {
			req.Heading(client, node)
		}
		_, err = io.Copy(client, body)
		body.Close()
		if client.err != nil {
			return client.err
		}
		if err != nil {
			// the node died mid answer; its partial content stays in
			// the output and the sweep moves on
			p.logger.Printf(
				"node %s failed mid answer: %v", node.HostAndPort(), err)
		}
	}
	return nil
}

func (p *Proxy) runFirstSuccess(
	ctx context.Context, req Request, w io.Writer) error {
	for _, node := range req.Nodes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		body, contentType, err := p.open(ctx, req, node)
		if err != nil {
			p.logger.Printf(
				"trying next node after %s: %v", node.HostAndPort(), err)
			continue
		}
		if req.OnContent != nil {
			req.OnContent(contentType)
		}
		_, err = io.Copy(w, body)
		body.Close()
		return err
	}
	return ErrAllNodesFailed
}
