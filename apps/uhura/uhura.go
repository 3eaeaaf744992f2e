package main

import (
	"bytes"
	"compress/gzip"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Symantec/Dominator/lib/logbuf"
	"github.com/Symantec/tricorder/go/tricorder"
	"github.com/Symantec/uhura"
	"github.com/Symantec/uhura/affinity"
	"github.com/Symantec/uhura/apps/uhura/statuspage"
	"github.com/Symantec/uhura/collectserver"
	"github.com/Symantec/uhura/fanout"
	"github.com/Symantec/uhura/gateway"
	"github.com/Symantec/uhura/lib/apiutil"
	"github.com/Symantec/uhura/lib/dynconfig"
	"github.com/Symantec/uhura/messages"
	"github.com/Symantec/uhura/registry"
)

var (
	fPort = flag.Int(
		"portNum",
		6910,
		"Port number for uhura.")
	fAppFile = flag.String(
		"app_file",
		"applications.yaml",
		"File containing the monitored applications")
	fNodeTimeout = flag.Duration(
		"node_timeout",
		20*time.Second,
		"Timeout for one node call")
	fCollectionFrequency = flag.Duration(
		"collection_frequency",
		60*time.Second,
		"Amount of time between state collection sweeps")
	fConcurrency = flag.Int(
		"concurrency",
		4,
		"Maximum concurrent node collects per application")
	fActionToken = flag.String(
		"action_token",
		"",
		"Token action requests must present; empty disables the check")
	fSystemActions = flag.Bool(
		"system_actions",
		true,
		"Allow actions and parts exposing node internals")
	fMinGzipBytes = flag.Int(
		"min_gzip_bytes",
		4096,
		"Compress report pages at least this large")
	fStorageDir = flag.String(
		"storage_dir",
		"",
		"Directory holding obsolete report files; empty disables purging")
	fLogBufLines = flag.Uint(
		"logbufLines", 1024, "Number of lines to store in the log buffer")
)

type gzipResponseWriter struct {
	http.ResponseWriter
	W io.Writer
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.W.Write(b)
}

type gzipHandler struct {
	H http.Handler
}

func (h gzipHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		h.H.ServeHTTP(w, r)
		return
	}
	w.Header().Set("Content-Encoding", "gzip")
	gz := gzip.NewWriter(w)
	defer gz.Close()
	gzr := &gzipResponseWriter{ResponseWriter: w, W: gz}
	h.H.ServeHTTP(gzr, r)
}

// applicationsBuilder validates the applications file contents before
// the live registry accepts them.
func applicationsBuilder(reader io.Reader) (interface{}, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	builder := registry.NewBuilder()
	if err := builder.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, err
	}
	builder.Build()
	return content, nil
}

func watchApplicationsFile(
	reg *registry.Registry, logger *log.Logger) {
	config, err := dynconfig.New(
		*fAppFile, applicationsBuilder, "applications", logger)
	if err != nil {
		log.Fatal(err)
	}
	config.OnChange(func(value interface{}) {
		content := value.([]byte)
		if err := reg.ReplaceFromConfig(
			bytes.NewReader(content)); err != nil {
			logger.Printf("applications reload failed: %v", err)
			return
		}
		logger.Println("applications file reloaded")
	})
}

func listApplications(
	reg *registry.Registry,
	collector *collectserver.CollectorServer) messages.ApplicationStatusList {
	lastErrors := collector.LastCollectErrors()
	var listing messages.ApplicationStatusList
	for _, app := range reg.All() {
		status := &messages.ApplicationStatus{
			Name:      app.Name(),
			Group:     app.Group(),
			Members:   app.Members(),
			Available: collector.IsApplicationDataAvailable(app.Name()),
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

func main() {
	tricorder.RegisterFlags()
	flag.Parse()
	circularBuffer := logbuf.NewWithOptions(
		logbuf.Options{MaxBufferLines: *fLogBufLines})
	logger := log.New(circularBuffer, "", log.LstdFlags)
	applicationRegistry, err := registry.Load(*fAppFile)
	if err != nil {
		log.Fatal(err)
	}
	watchApplicationsFile(applicationRegistry, logger)
	retriever := uhura.NewRetriever(*fNodeTimeout)
	proxy := fanout.New(retriever, logger)
	if err := proxy.RegisterMetrics(); err != nil {
		log.Fatal(err)
	}
	collector := collectserver.New(
		applicationRegistry, retriever, logger,
		&collectserver.Options{
			Concurrency: *fConcurrency,
			StorageDir:  *fStorageDir,
		})
	if err := collector.RegisterMetrics(); err != nil {
		log.Fatal(err)
	}
	collector.StartSweeping(*fCollectionFrequency)
	handler := gateway.New(
		applicationRegistry,
		collector,
		proxy,
		affinity.New(applicationRegistry, collector),
		&statuspage.Renderer{},
		logger,
		gateway.Config{
			ActionToken:          *fActionToken,
			SystemActionsEnabled: *fSystemActions,
			CompressionThreshold: *fMinGzipBytes,
		})
	if err := handler.RegisterMetrics(); err != nil {
		log.Fatal(err)
	}

	statusHandler := gzipHandler{&statuspage.Handler{
		Registry: applicationRegistry,
		Checker:  collector,
		Log:      circularBuffer,
	}}
	http.Handle("/", statusHandler)
	http.Handle("/status", statusHandler)
	http.Handle("/monitoring", handler)
	http.Handle(
		"/api/applications",
		apiutil.NewHandler(
			func(params url.Values) (
				messages.ApplicationStatusList, error) {
				return listApplications(
					applicationRegistry, collector), nil
			}))
	if err := http.ListenAndServe(
		fmt.Sprintf(":%d", *fPort), nil); err != nil {
		log.Fatal(err)
	}
}
