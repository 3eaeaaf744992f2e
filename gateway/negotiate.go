package gateway

import (
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"sort"

	"github.com/Symantec/uhura"
	"github.com/Symantec/uhura/fanout"
	"github.com/Symantec/uhura/format"
	"github.com/Symantec/uhura/lib/httputil"
	"github.com/Symantec/uhura/messages"
)

const (
	kPartConnections     = "connections"
	kPartCacheKeys       = "cacheKeys"
	kPartConfig          = "config"
	kPartSource          = "source"
	kPartCrashes         = "crashes"
	kPartThreads         = "threads"
	kPartCurrentRequests = "currentRequests"
	kPartJVM             = "jvm"
	kPartSessions        = "sessions"
	kPartProcesses       = "processes"
	kPartHeapHisto       = "heap_histo"
	kPartApplications    = "applications"
)

// parts exposing node internals, refused unless system actions are on
var kSystemParts = map[string]bool{
	kPartSessions:    true,
	kPartProcesses:   true,
	kPartHeapHisto:   true,
	kPartConnections: true,
}

func (h *Handler) doReport(
	w http.ResponseWriter, r *http.Request, app string) error {
	if metric := r.Form.Get(kParamMetric); metric != "" {
		return h.doMetricValue(w, r, app, metric)
	}
	if token := r.Form.Get(format.ParamName); format.IsMachineFormat(token) {
		f, _ := format.Parse(token)
		return h.doSerializable(w, r, app, f)
	} else if format.IsPrintableFormat(token) {
		// the printable report covers the whole application; a part
		// selection does not narrow it
		return h.doFullReport(w, r, app)
	}
	switch part := r.Form.Get(kParamPart); part {
	case kPartConnections:
		return h.doMultiProxy(w, r, app, "Opened connections", part)
	case kPartCacheKeys:
		cacheId := r.Form.Get(kParamCacheId)
		return h.doMultiProxy(
			w, r, app, fmt.Sprintf("Keys of cache %s", cacheId),
			part, kParamCacheId, cacheId)
	case kPartConfig, kPartSource:
		return h.doSinglePart(w, r, app, part)
	case kPartCrashes:
		if r.Form.Get(kParamPath) == "" {
			break
		}
		return h.doSinglePart(w, r, app, part)
	}
	return h.doFullReport(w, r, app)
}

// doMetricValue streams the raw value of one metric from every node as
// plain text, nodes separated by "||" so a poller can tell the values
// apart positionally even when a node is down.
func (h *Handler) doMetricValue(
	w http.ResponseWriter, r *http.Request, app, metric string) error {
	nodes, err := h.registry.ResolveNodes(app)
	if err != nil {
		return err
	}
	noCache(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	req := fanout.Request{
		Nodes: nodes,
		BuildURL: func(node *uhura.Endpoint) *url.URL {
			return httputil.AppendParams(
				format.StripFormat(node.URL()), kParamMetric, metric)
		},
		Separator: []byte("||"),
	}
	if err := h.proxy.Run(r.Context(), fanout.CollectAll, req, w); err != nil {
		// the client went away mid stream; nothing left to answer
		h.logger.Printf("metric stream for %s aborted: %v", app, err)
	}
	return nil
}

// doSerializable answers a machine client with the envelope for the
// requested part. A failure to assemble the payload degrades to an
// envelope carrying the error, never a broken stream.
func (h *Handler) doSerializable(
	w http.ResponseWriter, r *http.Request, app string,
	f format.Format) error {
	payload := h.buildSerializable(r, app, f)
	return format.WriteCompressed(w, r, f, payload)
}

func (h *Handler) buildSerializable(
	r *http.Request, app string, f format.Format) interface{} {
	part := r.Form.Get(kParamPart)
	if part == kPartApplications {
		listing := h.applicationListing()
		if f == format.XML {
			// a bare slice would encode as one root element per entry
			return &messages.ApplicationListing{Applications: listing}
		}
		return listing
	}
	envelope := &messages.ResultEnvelope{Application: app}
	switch part {
	case "", kPartJVM:
		nodes, err := h.collector.CollectDescriptiveState(r.Context(), app)
		if err != nil {
			envelope.Error = err.Error()
			return envelope
		}
		envelope.Nodes = nodes
	case kPartThreads, kPartCurrentRequests, kPartSessions,
		kPartProcesses, kPartHeapHisto, kPartConnections:
		if kSystemParts[part] && !h.config.SystemActionsEnabled {
			envelope.Error = ErrSystemActionsDisabled.Error()
			return envelope
		}
		payloads, err := h.collector.CollectNodePayloads(
			r.Context(), app, part, r.Form)
		if err != nil {
			envelope.Error = err.Error()
			return envelope
		}
		envelope.Payloads = payloads
	default:
		envelope.Error = fmt.Sprintf("unknown part %q", part)
	}
	return envelope
}

func (h *Handler) applicationListing() messages.ApplicationStatusList {
	lastErrors := h.collector.LastCollectErrors()
	var listing messages.ApplicationStatusList
	for _, app := range h.registry.All() {
		status := &messages.ApplicationStatus{
			Name:      app.Name(),
			Group:     app.Group(),
			Members:   app.Members(),
			Available: h.collector.IsApplicationDataAvailable(app.Name()),
			LastError: lastErrors[app.Name()],
		}
		for _, node := range app.Nodes() {
			status.Nodes = append(status.Nodes, node.String())
		}
		listing = append(listing, status)
	}
	sort.Slice(listing, func(i, j int) bool {
		return listing[i].Name < listing[j].Name
	})
	return listing
}

// doFullReport renders the aggregated report page from the freshly
// collected fleet state.
func (h *Handler) doFullReport(
	w http.ResponseWriter, r *http.Request, app string) error {
	nodes, err := h.collector.CollectDescriptiveState(r.Context(), app)
	if err != nil {
		return err
	}
	noCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	cw := newThresholdWriter(w, r, h.config.CompressionThreshold)
	defer cw.Close()
	return h.renderer.WriteReport(cw, app, "", nodes)
}

// doMultiProxy splices the named part of every node into one page, each
// node's content under a heading naming the node. extraParams are
// name value pairs appended to every node URL.
func (h *Handler) doMultiProxy(
	w http.ResponseWriter, r *http.Request, app, title, part string,
	extraParams ...string) error {
	if kSystemParts[part] && !h.config.SystemActionsEnabled {
		return ErrSystemActionsDisabled
	}
	nodes, err := h.registry.ResolveNodes(app)
	if err != nil {
		return err
	}
	noCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	cw := newThresholdWriter(w, r, h.config.CompressionThreshold)
	defer cw.Close()
	fmt.Fprintf(cw,
		"<!DOCTYPE html><html><head><title>%s (%s)</title></head><body>",
		html.EscapeString(title), html.EscapeString(app))
	req := fanout.Request{
		Nodes: nodes,
		BuildURL: func(node *uhura.Endpoint) *url.URL {
			u := httputil.AppendParams(
				format.RewriteForHTML(node.URL()), kParamPart, part)
			if len(extraParams) > 0 {
				u = httputil.AppendParams(u, extraParams...)
			}
			return u
		},
		Heading: func(w2 io.Writer, node *uhura.Endpoint) {
			fmt.Fprintf(w2, "<h3>%s (%s)</h3>",
				html.EscapeString(title),
				html.EscapeString(node.HostAndPort()))
		},
	}
	if err := h.proxy.Run(
		r.Context(), fanout.CollectAll, req, cw); err != nil {
		h.logger.Printf("part %s for %s aborted: %v", part, app, err)
		return nil
	}
	fmt.Fprint(cw, "</body></html>")
	return nil
}

// doSinglePart answers with node invariant content such as the
// configuration descriptor or a crash dump: the first node that has it
// answers for the whole application.
func (h *Handler) doSinglePart(
	w http.ResponseWriter, r *http.Request, app, part string) error {
	nodes, err := h.registry.ResolveNodes(app)
	if err != nil {
		return err
	}
	noCache(w)
	req := fanout.Request{
		Nodes: nodes,
		BuildURL: func(node *uhura.Endpoint) *url.URL {
			u := httputil.WithParams(node.URL(), kParamPart, part)
			for _, param := range []string{kParamPath, kParamClass} {
				if value := r.Form.Get(param); value != "" {
					u = httputil.AppendParams(u, param, value)
				}
			}
			return u
		},
		OnContent: func(contentType string) {
			if contentType != "" {
				w.Header().Set("Content-Type", contentType)
			}
		},
	}
	err = h.proxy.Run(r.Context(), fanout.FirstSuccess, req, w)
	if errors.Is(err, fanout.ErrAllNodesFailed) {
		http.NotFound(w, r)
		return nil
	}
	return err
}
