package collectserver_test

import (
	"context"
	"encoding/json"
	"io"
	stdlog "log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Symantec/uhura"
	"github.com/Symantec/uhura/action"
	"github.com/Symantec/uhura/collectserver"
	"github.com/Symantec/uhura/messages"
	"github.com/Symantec/uhura/registry"
)

func newNodeServer(t *testing.T, sessions int64, fail bool) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if fail {
				http.Error(w, "down", http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(&messages.NodeDescriptor{
				MemoryUsedBytes: 1 << 20,
				SessionCount:    sessions,
			})
		}))
	t.Cleanup(server.Close)
	return server
}

func newTestServer(
	t *testing.T, options *collectserver.Options,
	urls ...string) (*collectserver.CollectorServer, *registry.Registry) {
	t.Helper()
	builder := registry.NewBuilder()
	if err := builder.AddApplication("webapp", urls); err != nil {
		t.Fatal(err)
	}
	reg := builder.Build()
	server := collectserver.New(
		reg,
		uhura.NewRetriever(5*time.Second),
		stdlog.New(io.Discard, "", 0),
		options)
	return server, reg
}

func TestCollectDescriptiveState(t *testing.T) {
	n1 := newNodeServer(t, 3, false)
	n2 := newNodeServer(t, 0, true)
	n3 := newNodeServer(t, 7, false)
	server, _ := newTestServer(t, nil, n1.URL, n2.URL, n3.URL)

	descriptors, err := server.CollectDescriptiveState(
		context.Background(), "webapp")
	if err != nil {
		t.Fatal(err)
	}
	if len(descriptors) != 3 {
		t.Fatalf("Expected 3 descriptors, got %d", len(descriptors))
	}
	// results stay in node order even though collects run concurrently
	if !descriptors[0].Available || descriptors[0].SessionCount != 3 {
		t.Errorf("Node 1: got %+v", descriptors[0])
	}
	if descriptors[1].Available || descriptors[1].Error == "" {
		t.Errorf("Node 2 must carry its error: %+v", descriptors[1])
	}
	if !descriptors[2].Available || descriptors[2].SessionCount != 7 {
		t.Errorf("Node 3: got %+v", descriptors[2])
	}
	if !server.IsApplicationDataAvailable("webapp") {
		t.Error("One answering node keeps the application available")
	}
	if _, present := server.LastCollectErrors()["webapp"]; !present {
		t.Error("Expected the node failure in the last errors")
	}
}

func TestAvailabilityGoesAwayWhenAllNodesDie(t *testing.T) {
	n1 := newNodeServer(t, 0, true)
	server, _ := newTestServer(t, nil, n1.URL)
	// before the first collect the application gets the benefit of
	// the doubt
	if !server.IsApplicationDataAvailable("webapp") {
		t.Error("Expected availability before first collect")
	}
	if _, err := server.CollectDescriptiveState(
		context.Background(), "webapp"); err != nil {
		t.Fatal(err)
	}
	if server.IsApplicationDataAvailable("webapp") {
		t.Error("Expected application to become unavailable")
	}
	if server.IsApplicationDataAvailable("no such app") {
		t.Error("Unknown applications are never available")
	}
}

func TestCollectForAction(t *testing.T) {
	var actions []string
	good := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			actions = append(actions, r.URL.Query().Get("action"))
		}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
	defer bad.Close()
	server, _ := newTestServer(t, nil, good.URL, bad.URL)

	goodURL, _ := url.Parse(good.URL + "/?action=gc")
	badURL, _ := url.Parse(bad.URL + "/?action=gc")
	message, err := server.CollectForApplicationForAction(
		context.Background(), "webapp",
		[]*url.URL{goodURL, badURL})
	if err != nil {
		t.Fatal(err)
	}
	expected := "Action done on 1 of 2 nodes of webapp (1 failed)"
	if message != expected {
		t.Errorf("Expected '%s', got '%s'", expected, message)
	}
	if len(actions) != 1 || actions[0] != "gc" {
		t.Errorf("Expected one gc call, got %v", actions)
	}
}

func TestClearCounter(t *testing.T) {
	n1 := newNodeServer(t, 0, false)
	server, _ := newTestServer(t, nil, n1.URL)
	if _, err := server.CollectDescriptiveState(
		context.Background(), "webapp"); err != nil {
		t.Fatal(err)
	}
	message, err := server.ExecuteLocalAction(
		"webapp", action.ClearCounter,
		url.Values{"counter": {"collects"}})
	if err != nil {
		t.Fatal(err)
	}
	if message != "Counter collects cleared for webapp" {
		t.Errorf("Got '%s'", message)
	}
	message, err = server.ExecuteLocalAction(
		"webapp", action.ClearCounter, url.Values{})
	if err != nil || message != "All counters cleared for webapp" {
		t.Errorf("Got '%s', %v", message, err)
	}
}

func TestMailTest(t *testing.T) {
	n1 := newNodeServer(t, 0, false)
	server, _ := newTestServer(t, nil, n1.URL)
	if _, err := server.ExecuteLocalAction(
		"webapp", action.MailTest, url.Values{}); err == nil {
		t.Error("Expected error without a mailer")
	}
	mailed := ""
	server, _ = newTestServer(t, &collectserver.Options{
		Mailer: mailerFunc(func(app string) error {
			mailed = app
			return nil
		})}, n1.URL)
	message, err := server.ExecuteLocalAction(
		"webapp", action.MailTest, url.Values{})
	if err != nil {
		t.Fatal(err)
	}
	if mailed != "webapp" || message != "Test mail sent for webapp" {
		t.Errorf("Got '%s', mailed '%s'", message, mailed)
	}
}

type mailerFunc func(string) error

func (f mailerFunc) SendTestReport(application string) error {
	return f(application)
}

func TestPurgeObsoleteFiles(t *testing.T) {
	n1 := newNodeServer(t, 0, false)
	dir := t.TempDir()
	stale := filepath.Join(dir, "stale.report")
	fresh := filepath.Join(dir, "fresh.report")
	for _, path := range []string{stale, fresh} {
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-120 * 24 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	server, _ := newTestServer(
		t, &collectserver.Options{StorageDir: dir}, n1.URL)
	message, err := server.ExecuteLocalAction(
		"webapp", action.PurgeObsoleteFiles, url.Values{})
	if err != nil {
		t.Fatal(err)
	}
	if message != "Obsolete files purged for webapp: 1" {
		t.Errorf("Got '%s'", message)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Expected stale file to be purged")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("Expected fresh file to survive")
	}
}

func TestGroupAvailability(t *testing.T) {
	n1 := newNodeServer(t, 0, true)
	n2 := newNodeServer(t, 1, false)
	builder := registry.NewBuilder()
	builder.AddApplication("deadapp", []string{n1.URL})
	builder.AddApplication("liveapp", []string{n2.URL})
	builder.AddGroup("everything", []string{"deadapp", "liveapp"})
	reg := builder.Build()
	server := collectserver.New(
		reg, uhura.NewRetriever(5*time.Second),
		stdlog.New(io.Discard, "", 0), nil)
	for _, name := range []string{"deadapp", "liveapp"} {
		if _, err := server.CollectDescriptiveState(
			context.Background(), name); err != nil {
			t.Fatal(err)
		}
	}
	if server.IsApplicationDataAvailable("deadapp") {
		t.Error("deadapp must be unavailable")
	}
	if !server.IsApplicationDataAvailable("everything") {
		t.Error("A group with one live member is available")
	}
}

func TestCyclicGroupAvailability(t *testing.T) {
	n1 := newNodeServer(t, 1, false)
	builder := registry.NewBuilder()
	builder.AddApplication("liveapp", []string{n1.URL})
	builder.AddGroup("alpha", []string{"beta"})
	builder.AddGroup("beta", []string{"alpha", "liveapp"})
	reg := builder.Build()
	server := collectserver.New(
		reg, uhura.NewRetriever(5*time.Second),
		stdlog.New(io.Discard, "", 0), nil)
	// must terminate despite alpha and beta reaching each other
	if !server.IsApplicationDataAvailable("alpha") {
		t.Error("A cyclic group with a live member below must be available")
	}
	builder = registry.NewBuilder()
	builder.AddGroup("loop", []string{"loop"})
	server = collectserver.New(
		builder.Build(), uhura.NewRetriever(5*time.Second),
		stdlog.New(io.Discard, "", 0), nil)
	if server.IsApplicationDataAvailable("loop") {
		t.Error("A group with no leaf below it has no data")
	}
}
