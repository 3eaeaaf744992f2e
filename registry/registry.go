package registry

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Symantec/uhura"
)

func (a *Application) copyNodes() []*uhura.Endpoint {
	if a.nodes == nil {
		return nil
	}
	result := make([]*uhura.Endpoint, len(a.nodes))
	copy(result, a.nodes)
	return result
}

func (a *Application) copyMembers() []string {
	if a.members == nil {
		return nil
	}
	result := make([]string, len(a.members))
	copy(result, a.members)
	return result
}

func newBuilder() *Builder {
	list := &Registry{byName: make(map[string]*Application)}
	return &Builder{listPtr: list}
}

func newLeaf(name string, urls []string) (*Application, error) {
	if name == "" {
		return nil, errors.New("application name required")
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("application %q needs at least one node URL", name)
	}
	nodes := make([]*uhura.Endpoint, 0, len(urls))
	for _, rawURL := range urls {
		endpoint, err := uhura.NewEndpoint(rawURL)
		if err != nil {
			return nil, fmt.Errorf("application %q: %v", name, err)
		}
		nodes = append(nodes, endpoint)
	}
	return &Application{name: name, nodes: nodes}, nil
}

func newGroup(name string, members []string) (*Application, error) {
	if name == "" {
		return nil, errors.New("application name required")
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("group %q needs at least one member", name)
	}
	copied := make([]string, len(members))
	copy(copied, members)
	return &Application{name: name, members: copied}, nil
}

func (r *Registry) putLocked(app *Application) {
	if _, present := r.byName[app.name]; !present {
		r.order = append(r.order, app.name)
	}
	r.byName[app.name] = app
}

func (b *Builder) put(app *Application) error {
	if _, present := b.listPtr.byName[app.name]; present {
		return fmt.Errorf("duplicate application name %q", app.name)
	}
	b.listPtr.putLocked(app)
	return nil
}

func (b *Builder) addApplication(name string, urls []string) error {
	app, err := newLeaf(name, urls)
	if err != nil {
		return err
	}
	return b.put(app)
}

func (b *Builder) addGroup(name string, members []string) error {
	app, err := newGroup(name, members)
	if err != nil {
		return err
	}
	return b.put(app)
}

func (b *Builder) build() *Registry {
	result := b.listPtr
	b.listPtr = nil
	return result
}

func load(configPath string) (*Registry, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	builder := NewBuilder()
	if err := builder.ReadConfig(f); err != nil {
		return nil, fmt.Errorf("%s: %v", configPath, err)
	}
	result := builder.Build()
	result.configPath = configPath
	return result, nil
}

func (r *Registry) resolve(name string) (*Application, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.resolveLocked(name)
}

func (r *Registry) resolveLocked(name string) (*Application, error) {
	app := r.byName[name]
	if app == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownApplication, name)
	}
	return app, nil
}

func (r *Registry) resolveNodes(name string) ([]*uhura.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	walk := &nodeWalk{
		registry: r,
		onStack:  make(map[string]bool),
		seen:     make(map[string]bool),
	}
	if err := walk.visit(name); err != nil {
		return nil, err
	}
	return walk.nodes, nil
}

// nodeWalk flattens a group tree. onStack is the recursion stack for
// cycle detection; seen dedupes applications reachable through more
// than one group path.
type nodeWalk struct {
	registry *Registry
	onStack  map[string]bool
	seen     map[string]bool
	nodes    []*uhura.Endpoint
}

func (w *nodeWalk) visit(name string) error {
	if w.onStack[name] {
		return &CycleError{Name: name}
	}
	if w.seen[name] {
		return nil
	}
	w.seen[name] = true
	app, err := w.registry.resolveLocked(name)
	if err != nil {
		return err
	}
	if !app.Group() {
		w.nodes = append(w.nodes, app.nodes...)
		return nil
	}
	w.onStack[name] = true
	for _, member := range app.members {
		if err := w.visit(member); err != nil {
			return err
		}
	}
	delete(w.onStack, name)
	return nil
}

func (r *Registry) first() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

func (r *Registry) all() []*Application {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Application, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.byName[name])
	}
	return result
}

// checkWritableLocked enforces the config file write permission before
// any registry mutation. An in memory registry has nothing to check.
func (r *Registry) checkWritableLocked() error {
	if r.configPath == "" {
		return nil
	}
	f, err := os.OpenFile(r.configPath, os.O_WRONLY, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrConfigWriteDenied, r.configPath)
	}
	f.Close()
	return nil
}

func (r *Registry) mutate(build func() (*Application, error), remove string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkWritableLocked(); err != nil {
		return err
	}
	if build != nil {
		app, err := build()
		if err != nil {
			return err
		}
		r.putLocked(app)
	} else {
		r.removeLocked(remove)
	}
	return r.storeLocked()
}

func (r *Registry) removeLocked(name string) {
	if _, present := r.byName[name]; !present {
		return
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) addApplication(name string, urls []string) error {
	return r.mutate(func() (*Application, error) {
		return newLeaf(name, urls)
	}, "")
}

func (r *Registry) addGroup(name string, members []string) error {
	return r.mutate(func() (*Application, error) {
		return newGroup(name, members)
	}, "")
}

func (r *Registry) remove(name string) error {
	return r.mutate(nil, name)
}

func (r *Registry) replaceFromConfig(rd io.Reader) error {
	builder := NewBuilder()
	if err := builder.ReadConfig(rd); err != nil {
		return err
	}
	replacement := builder.Build()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName = replacement.byName
	r.order = replacement.order
	return nil
}
