package gateway

import (
	"context"
	"crypto/subtle"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"time"

	"github.com/Symantec/Dominator/lib/log"
	"github.com/Symantec/tricorder/go/tricorder"
	"github.com/Symantec/tricorder/go/tricorder/units"
	"github.com/Symantec/uhura/action"
	"github.com/Symantec/uhura/affinity"
	"github.com/Symantec/uhura/fanout"
	"github.com/Symantec/uhura/format"
	"github.com/Symantec/uhura/lib/httputil"
	"github.com/Symantec/uhura/messages"
	"github.com/Symantec/uhura/registry"
)

const (
	kParamApplication = "application"
	kParamAction      = "action"
	kParamPart        = "part"
	kParamToken       = "token"
	kParamMetric      = "metric"
	kParamCacheId     = "cacheId"
	kParamPath        = "path"
	kParamClass       = "class"
)

func newHandler(
	reg *registry.Registry,
	collector Collector,
	proxy *fanout.Proxy,
	affinityManager *affinity.Manager,
	renderer Renderer,
	logger log.Logger,
	config Config) *Handler {
	if config.CompressionThreshold <= 0 {
		config.CompressionThreshold = kDefaultCompressionThreshold
	}
	return &Handler{
		registry:  reg,
		collector: collector,
		proxy:     proxy,
		affinity:  affinityManager,
		renderer:  renderer,
		logger:    logger,
		config:    config,
		requestDist: tricorder.NewGeometricBucketer(
			1e-4, 1000.0).NewCumulativeDistribution(),
	}
}

func (h *Handler) registerMetrics() error {
	return tricorder.RegisterMetric(
		"gateway/requestTime",
		h.requestDist,
		units.Second,
		"Time spent answering one monitoring request")
}

func (h *Handler) serveHTTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	defer func() { h.requestDist.Add(time.Since(startTime)) }()
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	app := h.affinity.ActiveApplication(w, r)
	if app == "" {
		h.writeNoApplications(w)
		return
	}
	defer func() {
		if p := recover(); p != nil {
			h.logger.Printf("request for %s panicked: %v", app, p)
			h.writeMessage(w, r, fmt.Sprintf("internal error: %v", p))
		}
	}()
	if err := h.dispatch(w, r, app); err != nil {
		h.logger.Printf("request for %s failed: %v", app, err)
		h.writeMessage(w, r, err.Error())
	}
}

func (h *Handler) dispatch(
	w http.ResponseWriter, r *http.Request, app string) error {
	if actionToken := r.Form.Get(kParamAction); actionToken != "" {
		return h.doAction(w, r, app, actionToken)
	}
	return h.doReport(w, r, app)
}

func (h *Handler) doAction(
	w http.ResponseWriter, r *http.Request, app, actionToken string) error {
	act, err := action.Parse(actionToken)
	if err != nil {
		return err
	}
	if act == action.RemoveApplication {
		if err := h.registry.Remove(app); err != nil {
			return err
		}
		h.logger.Printf("monitored application removed: %s", app)
		h.showAlertAndRedirectTo(
			w, fmt.Sprintf("application %s removed", app), "?")
		return nil
	}
	if h.config.ActionToken != "" {
		if subtle.ConstantTimeCompare(
			[]byte(r.Form.Get(kParamToken)),
			[]byte(h.config.ActionToken)) != 1 {
			return ErrInvalidToken
		}
	}
	if act.System() && !h.config.SystemActionsEnabled {
		return ErrSystemActionsDisabled
	}
	var message string
	if act.Local() {
		message, err = h.collector.ExecuteLocalAction(app, act, r.Form)
	} else {
		message, err = h.forwardAction(
			r.Context(), app, act, r.Form, make(map[string]bool))
	}
	if err != nil {
		return err
	}
	if token := r.Form.Get(format.ParamName); format.IsMachineFormat(token) {
		f, _ := format.Parse(token)
		return h.writeActionResult(w, r, app, f, message)
	}
	h.writeMessage(w, r, message)
	return nil
}

// forwardAction fans act out to every node of app, recursing through
// aggregation groups. The returned message is the last non empty one a
// member produced. onStack guards against group cycles.
func (h *Handler) forwardAction(
	ctx context.Context, app string, act action.Action, params url.Values,
	onStack map[string]bool) (string, error) {
	if onStack[app] {
		return "", &registry.CycleError{Name: app}
	}
	resolved, err := h.registry.Resolve(app)
	if err != nil {
		return "", err
	}
	if resolved.Group() {
		onStack[app] = true
		defer delete(onStack, app)
		message := ""
		for _, member := range resolved.Members() {
			memberMessage, err := h.forwardAction(
				ctx, member, act, params, onStack)
			if err != nil {
				return "", err
			}
			if memberMessage != "" {
				message = memberMessage
			}
		}
		return message, nil
	}
	nodes := resolved.Nodes()
	actionURLs := make([]*url.URL, 0, len(nodes))
	for _, node := range nodes {
		u := httputil.AppendParams(node.URL(), kParamAction, act.String())
		for _, param := range kForwardedActionParams {
			if value := params.Get(param); value != "" {
				u = httputil.AppendParams(u, param, value)
			}
		}
		actionURLs = append(actionURLs, u)
	}
	return h.collector.CollectForApplicationForAction(ctx, app, actionURLs)
}

// identifiers an action needs at the node it targets
var kForwardedActionParams = []string{
	"sessionId", "threadId", "jobId", "cacheId", "cacheKey"}

// writeActionResult answers a machine format action request with the
// action message and the fleet state as observed after the action ran.
func (h *Handler) writeActionResult(
	w http.ResponseWriter, r *http.Request, app string, f format.Format,
	message string) error {
	envelope := &messages.ResultEnvelope{
		Application: app,
		Message:     message,
	}
	nodes, err := h.collector.CollectDescriptiveState(r.Context(), app)
	if err != nil {
		envelope.Error = err.Error()
	} else {
		envelope.Nodes = nodes
	}
	return format.WriteCompressed(w, r, f, envelope)
}

// writeMessage answers with message and a redirect back to where the
// operator was: the part they were looking at, or the main report.
func (h *Handler) writeMessage(
	w http.ResponseWriter, r *http.Request, message string) {
	redirectTo := "?"
	if part := r.Form.Get(kParamPart); part != "" {
		redirectTo = "?" + url.Values{kParamPart: {part}}.Encode()
		if cacheId := r.Form.Get(kParamCacheId); cacheId != "" {
			redirectTo += "&" + url.Values{kParamCacheId: {cacheId}}.Encode()
		}
	}
	h.showAlertAndRedirectTo(w, message, redirectTo)
}

func (h *Handler) showAlertAndRedirectTo(
	w http.ResponseWriter, message, redirectTo string) {
	noCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w,
		"<!DOCTYPE html><html><body><script>alert(%q);"+
			"window.location.href=%q;</script>"+
			"<noscript>%s <a href=%q>back</a></noscript></body></html>",
		message, redirectTo, html.EscapeString(message), redirectTo)
}

func (h *Handler) writeNoApplications(w http.ResponseWriter) {
	noCache(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w,
		"<!DOCTYPE html><html><body>"+
			"<p>No monitored application is registered yet.</p>"+
			"</body></html>")
}

func noCache(w http.ResponseWriter) {
	header := w.Header()
	header.Set("Cache-Control", "no-cache")
	header.Set("Pragma", "no-cache")
	header.Set("Expires", "-1")
}
