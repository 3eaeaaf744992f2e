package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/Symantec/uhura/lib/yamlutil"
	"gopkg.in/yaml.v2"
)

// applicationConfigType is one entry of the applications config file.
// Exactly one of Urls and Members must be set.
type applicationConfigType struct {
	Name    string   `yaml:"name"`
	Urls    []string `yaml:"urls,omitempty"`
	Members []string `yaml:"members,omitempty"`
}

func (c *applicationConfigType) UnmarshalYAML(
	unmarshal func(interface{}) error) error {
	type applicationConfigFieldsType applicationConfigType
	return yamlutil.StrictUnmarshalYAML(
		unmarshal, (*applicationConfigFieldsType)(c))
}

func (b *Builder) readConfig(r io.Reader) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var entries []applicationConfigType
	if err := yaml.Unmarshal(content, &entries); err != nil {
		return err
	}
	for _, entry := range entries {
		switch {
		case len(entry.Urls) > 0 && len(entry.Members) > 0:
			return fmt.Errorf(
				"application %q has both urls and members", entry.Name)
		case len(entry.Members) > 0:
			if err := b.AddGroup(entry.Name, entry.Members); err != nil {
				return err
			}
		default:
			if err := b.AddApplication(entry.Name, entry.Urls); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Registry) writeConfig(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writeConfigLocked(w)
}

func (r *Registry) writeConfigLocked(w io.Writer) error {
	entries := make([]applicationConfigType, 0, len(r.order))
	for _, name := range r.order {
		app := r.byName[name]
		entry := applicationConfigType{Name: name}
		if app.Group() {
			entry.Members = app.Members()
		} else {
			for _, node := range app.nodes {
				entry.Urls = append(entry.Urls, node.String())
			}
		}
		entries = append(entries, entry)
	}
	content, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}

// storeLocked rewrites the config file after a mutation. A registry
// without a config file keeps mutations in memory only.
func (r *Registry) storeLocked() error {
	if r.configPath == "" {
		return nil
	}
	tmpPath := r.configPath + "~"
	f, err := os.OpenFile(
		tmpPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigWriteDenied, err)
	}
	if err := r.writeConfigLocked(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, r.configPath)
}
