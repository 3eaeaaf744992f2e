package registry

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Symantec/uhura"
)

const (
	kConfigFile = `
- name: webapp
  urls:
  - http://host1:8080/monitoring?format=serialized
  - http://host2:8080/monitoring?format=serialized
- name: batch
  urls:
  - http://host3:8080/monitoring?format=serialized
- name: everything
  members:
  - webapp
  - batch
`
	kSomeBadName = "A bad name"
)

func TestConfigFile(t *testing.T) {
	config := bytes.NewBuffer([]byte(kConfigFile))
	builder := NewBuilder()
	if err := builder.ReadConfig(config); err != nil {
		t.Fatal("Got error reading config file", err)
	}
	reg := builder.Build()
	assertLeaf(t, reg, "webapp", 2)
	assertLeaf(t, reg, "batch", 1)

	app, err := reg.Resolve("everything")
	if err != nil {
		t.Fatal(err)
	}
	if !app.Group() {
		t.Error("Expected everything to be a group.")
	}
	if members := app.Members(); len(members) != 2 ||
		members[0] != "webapp" || members[1] != "batch" {
		t.Errorf("Got members %v", members)
	}
	if _, err := reg.Resolve(kSomeBadName); !errors.Is(
		err, ErrUnknownApplication) {
		t.Errorf("Expected ErrUnknownApplication, got %v", err)
	}
	if out := reg.First(); out != "webapp" {
		t.Errorf("Expected 'webapp' first, got '%s'", out)
	}
	if out := len(reg.All()); out != 3 {
		t.Errorf("Expected 3 applications, got %d", out)
	}
}

func TestConfigFileRejectsMixedEntry(t *testing.T) {
	config := bytes.NewBufferString(`
- name: broken
  urls:
  - http://host1:8080/monitoring
  members:
  - webapp
`)
	builder := NewBuilder()
	if err := builder.ReadConfig(config); err == nil {
		t.Error("Expected error for entry with both urls and members")
	}
}

func TestConfigFileRejectsUnknownField(t *testing.T) {
	config := bytes.NewBufferString(`
- name: broken
  nodes:
  - http://host1:8080/monitoring
`)
	builder := NewBuilder()
	if err := builder.ReadConfig(config); err == nil {
		t.Error("Expected error for unrecognized field")
	}
}

func TestResolveNodesFlattensGroups(t *testing.T) {
	reg := buildTestRegistry(t)
	nodes, err := reg.ResolveNodes("everything")
	if err != nil {
		t.Fatal(err)
	}
	assertNodeHosts(t, nodes,
		"host1:8080", "host2:8080", "host3:8080")
	// leaf resolution returns the node list verbatim
	nodes, err = reg.ResolveNodes("webapp")
	if err != nil {
		t.Fatal(err)
	}
	assertNodeHosts(t, nodes, "host1:8080", "host2:8080")
}

func TestResolveNodesNestedGroupsAndDiamonds(t *testing.T) {
	builder := NewBuilder()
	builder.AddApplication("a", []string{"http://a:1/m"})
	builder.AddApplication("b", []string{"http://b:1/m"})
	builder.AddGroup("left", []string{"a"})
	builder.AddGroup("right", []string{"a", "b"})
	builder.AddGroup("top", []string{"left", "right"})
	reg := builder.Build()
	nodes, err := reg.ResolveNodes("top")
	if err != nil {
		t.Fatal(err)
	}
	// "a" is reachable through both paths but contributes once
	assertNodeHosts(t, nodes, "a:1", "b:1")
}

func TestResolveNodesDetectsCycles(t *testing.T) {
	builder := NewBuilder()
	builder.AddApplication("leaf", []string{"http://a:1/m"})
	builder.AddGroup("g1", []string{"g2", "leaf"})
	builder.AddGroup("g2", []string{"g1"})
	reg := builder.Build()
	_, err := reg.ResolveNodes("g1")
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Expected CycleError, got %v", err)
	}

	builder = NewBuilder()
	builder.AddGroup("self", []string{"self"})
	reg = builder.Build()
	if _, err := reg.ResolveNodes("self"); err == nil {
		t.Error("Expected error for self referential group")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	reg := buildTestRegistry(t)
	if err := reg.Remove("batch"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Resolve("batch"); !errors.Is(
		err, ErrUnknownApplication) {
		t.Error("Expected batch to be gone")
	}
	// removing again is not an error
	if err := reg.Remove("batch"); err != nil {
		t.Errorf("Expected idempotent remove, got %v", err)
	}
	if out := reg.First(); out != "webapp" {
		t.Errorf("Expected 'webapp' first, got '%s'", out)
	}
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "applications.yaml")
	if err := os.WriteFile(path, []byte(kConfigFile), 0644); err != nil {
		t.Fatal(err)
	}
	reg, err := Load(path)
	if err != nil {
		t.Fatal("Got error loading config file", err)
	}
	if err := reg.AddApplication(
		"extra", []string{"http://host9:8080/monitoring"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Remove("batch"); err != nil {
		t.Fatal(err)
	}
	reloaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := reloaded.Resolve("extra"); err != nil {
		t.Error("Expected extra to survive the round trip", err)
	}
	if _, err := reloaded.Resolve("batch"); err == nil {
		t.Error("Expected batch to be removed from the file")
	}
}

func TestWriteDenied(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("file permissions do not bind for root")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "applications.yaml")
	if err := os.WriteFile(path, []byte(kConfigFile), 0444); err != nil {
		t.Fatal(err)
	}
	reg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	err = reg.Remove("batch")
	if !errors.Is(err, ErrConfigWriteDenied) {
		t.Fatalf("Expected ErrConfigWriteDenied, got %v", err)
	}
	// the mutation must not have been applied
	if _, err := reg.Resolve("batch"); err != nil {
		t.Error("Registry mutated despite write denial")
	}
}

func buildTestRegistry(t *testing.T) *Registry {
	t.Helper()
	builder := NewBuilder()
	if err := builder.ReadConfig(
		bytes.NewBufferString(kConfigFile)); err != nil {
		t.Fatal(err)
	}
	return builder.Build()
}

func assertLeaf(t *testing.T, reg *Registry, name string, nodeCount int) {
	t.Helper()
	app, err := reg.Resolve(name)
	if err != nil {
		t.Fatal(err)
	}
	if app.Group() {
		t.Errorf("Expected %s to be a leaf application", name)
	}
	if out := len(app.Nodes()); out != nodeCount {
		t.Errorf("Expected %d nodes for %s, got %d", nodeCount, name, out)
	}
}

func assertNodeHosts(
	t *testing.T, nodes []*uhura.Endpoint, hosts ...string) {
	t.Helper()
	if len(nodes) != len(hosts) {
		t.Fatalf("Expected %d nodes, got %d", len(hosts), len(nodes))
	}
	for i, host := range hosts {
		if out := nodes[i].HostAndPort(); out != host {
			t.Errorf("Node %d: expected '%s', got '%s'", i, host, out)
		}
	}
}
