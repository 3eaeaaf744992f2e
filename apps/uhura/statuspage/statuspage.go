// Package statuspage renders uhura's operator facing HTML: the
// aggregated report page for one application and the status page
// listing every registered application.
package statuspage

import (
	"bufio"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/Symantec/Dominator/lib/html"
	"github.com/Symantec/uhura/messages"
	"github.com/Symantec/uhura/registry"
)

const (
	reportTemplateStr = ` \
	<html>
	<head><title>Monitoring of {{.Application}}</title></head>
	<body>
	<h2>Monitoring of {{.Application}}</h2>
	\ {{if .Message}} \
	<p><b>{{.Message}}</b></p>
	\ {{end}} \
	<table border="1" style="width:100%">
	  <tr>
	    <th>Node</th>
	    <th>Status</th>
	    <th>Memory</th>
	    <th>Sessions</th>
	    <th>Active threads</th>
	    <th>Started</th>
	  </tr>
	\ {{range .Nodes}} \
	  <tr>
	    <td>{{.HostAndPort}}</td>
	    <td>{{if .Available}}up{{else}}{{.Error}}{{end}}</td>
	    <td>{{if .Available}}{{.MemoryUsedBytes}} / {{.MemoryMaxBytes}}{{else}}&nbsp;{{end}}</td>
	    <td>{{if .Available}}{{.SessionCount}}{{else}}&nbsp;{{end}}</td>
	    <td>{{if .Available}}{{.ActiveThreads}}{{else}}&nbsp;{{end}}</td>
	    <td>{{if .Available}}{{.StartedAt}}{{else}}&nbsp;{{end}}</td>
	  </tr>
	\ {{end}} \
	</table>
	</body>
	</html>
	  `
	appsTemplateStr = ` \
	<table border="1" style="width:100%">
	  <tr>
	    <th>Application</th>
	    <th>Kind</th>
	    <th>Nodes / Members</th>
	    <th>Status</th>
	  </tr>
	\ {{range .Apps}} \
	  <tr>
	    <td><a href="/monitoring?application={{.Name}}">{{.Name}}</a></td>
	    <td>{{if .Group}}group{{else}}application{{end}}</td>
	    <td>{{.Targets}}</td>
	    <td>{{if .Available}}up{{else}}{{.LastError}}{{end}}</td>
	  </tr>
	\ {{end}} \
	</table>
	  `
)

var (
	leadingWhitespace = regexp.MustCompile(`\n\s*\\ `)
	reportTemplate    = template.Must(
		template.New("report").Parse(unindent(reportTemplateStr)))
	appsTemplate = template.Must(
		template.New("apps").Parse(unindent(appsTemplateStr)))
)

func unindent(s string) string {
	return strings.Replace(
		leadingWhitespace.ReplaceAllString(
			strings.Replace(s, "\n\t", "\n", -1),
			"\n"),
		" \\\n",
		"",
		-1)
}

type reportView struct {
	Application string
	Message     string
	Nodes       []*messages.NodeDescriptor
}

// Renderer renders the aggregated report page.
type Renderer struct {
}

func (re *Renderer) WriteReport(
	w io.Writer, application, message string,
	nodes []*messages.NodeDescriptor) error {
	return reportTemplate.Execute(w, &reportView{
		Application: application,
		Message:     message,
		Nodes:       nodes,
	})
}

// StatusChecker reports per application health for the status page.
type StatusChecker interface {
	IsApplicationDataAvailable(name string) bool
	LastCollectErrors() map[string]string
}

type HtmlWriter interface {
	WriteHtml(writer io.Writer)
}

// Handler serves the status page.
type Handler struct {
	Registry *registry.Registry
	Checker  StatusChecker
	Log      HtmlWriter
}

type appRow struct {
	Name      string
	Group     bool
	Targets   string
	Available bool
	LastError string
}

type appsView struct {
	Apps []*appRow
}

func (h *Handler) ServeHTTP(
	w http.ResponseWriter, r *http.Request) {
	writer := bufio.NewWriter(w)
	defer writer.Flush()
	w.Header().Set("Content-Type", "text/html")
	fmt.Fprintln(writer, "<html>")
	fmt.Fprintln(writer, "<title>Uhura status page</title>")
	fmt.Fprintln(writer, "<body>")
	fmt.Fprintln(writer, "<center>")
	fmt.Fprintln(writer, "<h1><b>Uhura</b> status page</h1>")
	fmt.Fprintln(writer, "</center>")
	html.WriteHeader(writer)
	fmt.Fprintln(writer, "<br>")
	v := h.buildView()
	if err := appsTemplate.Execute(writer, v); err != nil {
		fmt.Fprintf(writer, "Error in template: %v\n", err)
	}
	if h.Log != nil {
		h.Log.WriteHtml(writer)
	}
	fmt.Fprintln(writer, "</body>")
	fmt.Fprintln(writer, "</html>")
}

func (h *Handler) buildView() *appsView {
	lastErrors := h.Checker.LastCollectErrors()
	v := &appsView{}
	for _, app := range h.Registry.All() {
		row := &appRow{
			Name:      app.Name(),
			Group:     app.Group(),
			Available: h.Checker.IsApplicationDataAvailable(app.Name()),
			LastError: lastErrors[app.Name()],
		}
		if app.Group() {
			row.Targets = strings.Join(app.Members(), ", ")
		} else {
			var hosts []string
			for _, node := range app.Nodes() {
				hosts = append(hosts, node.HostAndPort())
			}
			row.Targets = strings.Join(hosts, ", ")
		}
		v.Apps = append(v.Apps, row)
	}
	sort.Slice(v.Apps, func(i, j int) bool {
		return v.Apps[i].Name < v.Apps[j].Name
	})
	return v
}
