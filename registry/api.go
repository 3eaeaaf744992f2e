// Package registry maintains the live list of monitored applications:
// leaf applications owning node endpoints and aggregation groups owning
// member application names.
package registry

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/Symantec/uhura"
)

var (
	// ErrUnknownApplication means the requested name is not registered.
	ErrUnknownApplication = errors.New("unknown application")

	// ErrConfigWriteDenied means the applications config file exists
	// but cannot be written, so the registry must not be mutated.
	ErrConfigWriteDenied = errors.New(
		"applications config file is not writable")
)

// CycleError means an aggregation group reaches itself through its
// members. It is a configuration error, never survivable by retry.
type CycleError struct {
	// The application at which the cycle was detected
	Name string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("aggregation cycle involving application %q", e.Name)
}

// Application is one registered application: either a leaf owning an
// ordered list of node endpoints or an aggregation group owning an
// ordered list of member application names. Application instances are
// immutable.
type Application struct {
	name    string
	nodes   []*uhura.Endpoint
	members []string
}

// Name returns the unique application name.
func (a *Application) Name() string {
	return a.name
}

// Group returns true if this application is an aggregation group.
func (a *Application) Group() bool {
	return len(a.members) > 0
}

// Nodes returns the configured node endpoints in declared order. Nodes
// returns nil for aggregation groups. The first node is authoritative
// for node invariant content.
func (a *Application) Nodes() []*uhura.Endpoint {
	return a.copyNodes()
}

// Members returns the member application names in declared order.
// Members returns nil for leaf applications.
func (a *Application) Members() []string {
	return a.copyMembers()
}

// Registry is the thread safe live application registry. An instance of
// this type is expected to be global: read by every request handler,
// mutated only by explicit add and remove operations under a single
// writer discipline.
type Registry struct {
	mu         sync.RWMutex
	byName     map[string]*Application
	order      []string
	configPath string
}

// Builder builds a Registry, typically from the applications config
// file at startup.
type Builder struct {
	listPtr *Registry
}

// NewBuilder returns a new Builder.
func NewBuilder() *Builder {
	return newBuilder()
}

// AddApplication registers a leaf application with its node URLs.
// The name must be unique and urls must not be empty.
func (b *Builder) AddApplication(name string, urls []string) error {
	return b.addApplication(name, urls)
}

// AddGroup registers an aggregation group with its member application
// names. The name must be unique and members must not be empty. Members
// need not be registered yet; dangling members fail at resolution time.
func (b *Builder) AddGroup(name string, members []string) error {
	return b.addGroup(name, members)
}

// ReadConfig reads YAML configuration from r adding every entry.
func (b *Builder) ReadConfig(r io.Reader) error {
	return b.readConfig(r)
}

// Build returns the built Registry. The Builder must not be used
// afterwards.
func (b *Builder) Build() *Registry {
	return b.build()
}

// Load builds a Registry from the YAML config file at configPath. The
// returned Registry persists subsequent mutations back to the file.
func Load(configPath string) (*Registry, error) {
	return load(configPath)
}

// Resolve returns the registered Application for name or an error
// wrapping ErrUnknownApplication. Resolve is side effect free.
func (r *Registry) Resolve(name string) (*Application, error) {
	return r.resolve(name)
}

// ResolveNodes resolves name recursively to its flattened node list:
// a leaf's nodes verbatim in declared order, a group's member nodes in
// declared member order. An application reachable through two group
// paths contributes its nodes once. ResolveNodes returns a *CycleError
// if a group reaches itself.
func (r *Registry) ResolveNodes(name string) ([]*uhura.Endpoint, error) {
	return r.resolveNodes(name)
}

// First returns the first registered application name in stable
// registration order, or the empty string if none are registered.
func (r *Registry) First() string {
	return r.first()
}

// All returns every registered application in stable registration order.
func (r *Registry) All() []*Application {
	return r.all()
}

// AddApplication registers a leaf application at runtime and persists
// the registry. Registering an existing name replaces it.
func (r *Registry) AddApplication(name string, urls []string) error {
	return r.addApplication(name, urls)
}

// AddGroup registers an aggregation group at runtime and persists the
// registry. Registering an existing name replaces it.
func (r *Registry) AddGroup(name string, members []string) error {
	return r.addGroup(name, members)
}

// Remove deregisters name and persists the registry. Removing a name
// that is not registered is not an error.
func (r *Registry) Remove(name string) error {
	return r.remove(name)
}

// ReplaceFromConfig atomically replaces the whole registry with the
// YAML configuration read from rd. Used when the config file changes on
// disk.
func (r *Registry) ReplaceFromConfig(rd io.Reader) error {
	return r.replaceFromConfig(rd)
}

// WriteConfig writes the registry as YAML configuration to w.
func (r *Registry) WriteConfig(w io.Writer) error {
	return r.writeConfig(w)
}
