// Package dynconfig provides routines for implementing dynamic
// configuration files.
package dynconfig

import (
	"io"
	"sync"

	"github.com/Symantec/Dominator/lib/log"
)

// Builder builds the end product of a configuration file from its
// contents. Builder is called once at startup and again each time the
// configuration file changes.
type Builder func(io.Reader) (interface{}, error)

// DynConfig represents a dynamic configuration file.
// Caller creates a DynConfig instance at startup and keeps it around for
// the duration of execution, calling Get whenever it needs the end
// product of the configuration file.
type DynConfig struct {
	path     string
	builder  Builder
	logger   log.Logger
	onChange func(interface{})
	mu       sync.Mutex
	value    interface{}
}

// New creates a new DynConfig instance. path is the absolute path to the
// configuration file; builder builds the end product from the file
// contents; name is used as a log prefix; logger is where errors reading
// the configuration get logged.
//
// If the configuration file doesn't exist at startup or its end product
// can't be built, New returns an error. Otherwise Get on the returned
// instance always returns a non nil value.
func New(
	path string,
	builder Builder,
	name string,
	logger log.Logger) (*DynConfig, error) {
	return newDynConfig(path, builder, name, logger)
}

// Get returns the current end product of the configuration file. If the
// file is updated so that it contains an error, Get continues to return
// the previous end product.
func (d *DynConfig) Get() interface{} {
	return d.get()
}

// OnChange registers f to be called with each new end product after a
// successful reload. At most one callback may be registered; OnChange
// must be called before the file changes for the first time.
func (d *DynConfig) OnChange(f func(interface{})) {
	d.onChange = f
}
