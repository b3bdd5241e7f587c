package task

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// DumpMode selects how the dump plugin renders entries.
type DumpMode string

const (
	DumpOff   DumpMode = ""
	DumpPlain DumpMode = "true"
	DumpEval  DumpMode = "eval"
	DumpTrace DumpMode = "trace"
)

// ParseDumpMode accepts the values of the --dump flag.
func ParseDumpMode(s string) (DumpMode, error) {
	switch DumpMode(s) {
	case DumpOff, DumpPlain, DumpEval, DumpTrace:
		return DumpMode(s), nil
	}

	return DumpOff, fmt.Errorf("invalid dump mode %q: choose from eval, trace", s)
}

// Options are the run-wide switches given on the command line.
type Options struct {
	Dump  DumpMode
	Debug bool
	Test  bool
	Learn bool
}

// PluginConfig is the raw configuration a task gives to one plugin.
type PluginConfig struct {
	Name string
	node *yaml.Node
}

func NewPluginConfig(name string, node *yaml.Node) *PluginConfig {
	return &PluginConfig{Name: name, node: node}
}

// Set reports whether the plugin was configured in the task at all.
func (c *PluginConfig) Set() bool {
	return c != nil && c.node != nil
}

// Bool returns the config when it is a bare boolean.
func (c *PluginConfig) Bool() (bool, bool) {
	if !c.Set() || c.node.Kind != yaml.ScalarNode || c.node.Tag != "!!bool" {
		return false, false
	}

	var b bool
	if err := c.node.Decode(&b); err != nil {
		return false, false
	}

	return b, true
}

// Scalar returns the config when it is a bare string, number or boolean.
func (c *PluginConfig) Scalar() (string, bool) {
	if !c.Set() || c.node.Kind != yaml.ScalarNode {
		return "", false
	}

	return c.node.Value, true
}

// DecodeValue unmarshals the config into v whatever its shape.
func (c *PluginConfig) DecodeValue(v any) error {
	if !c.Set() {
		return nil
	}

	if err := c.node.Decode(v); err != nil {
		return fmt.Errorf("invalid %s config: %w", c.Name, err)
	}

	return nil
}

// Decode unmarshals a mapping config into v. Bare scalars leave v untouched.
func (c *PluginConfig) Decode(v any) error {
	if !c.Set() || c.node.Kind != yaml.MappingNode {
		return nil
	}

	if err := c.node.Decode(v); err != nil {
		return fmt.Errorf("invalid %s config: %w", c.Name, err)
	}

	return nil
}

// Task is one configured pipeline run and the entries it produced.
type Task struct {
	Name    string
	Options Options

	plugins []*PluginConfig

	mu      sync.Mutex
	entries []*Entry
}

func New(name string, plugins []*PluginConfig, opts Options) *Task {
	return &Task{Name: name, Options: opts, plugins: plugins}
}

// Plugins returns the plugin configs in the order they were written.
func (t *Task) Plugins() []*PluginConfig {
	return t.plugins
}

// HasPlugin reports whether the task configures the named plugin.
func (t *Task) HasPlugin(name string) bool {
	return t.PluginConfig(name) != nil
}

func (t *Task) PluginConfig(name string) *PluginConfig {
	for _, p := range t.plugins {
		if p.Name == name {
			return p
		}
	}

	return nil
}

func (t *Task) AddEntries(entries ...*Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = append(t.entries, entries...)
}

func (t *Task) AllEntries() []*Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]*Entry(nil), t.entries...)
}

func (t *Task) Undecided() []*Entry { return t.withState(Undecided) }

func (t *Task) Accepted() []*Entry { return t.withState(Accepted) }

func (t *Task) Rejected() []*Entry { return t.withState(Rejected) }

func (t *Task) Failed() []*Entry { return t.withState(Failed) }

func (t *Task) withState(s State) []*Entry {
	var out []*Entry

	for _, e := range t.AllEntries() {
		if e.State() == s {
			out = append(out, e)
		}
	}

	return out
}

// Accept marks an entry accepted. Failed entries stay failed.
func (t *Task) Accept(e *Entry, plugin, reason string) {
	if e.State() == Failed {
		return
	}

	e.setState(Accepted, reason)
	e.AddTrace(plugin, "accepted", reason)
}

func (t *Task) Reject(e *Entry, plugin, reason string) {
	if e.State() == Failed {
		return
	}

	e.setState(Rejected, reason)
	e.AddTrace(plugin, "rejected", reason)
}

// Fail marks an entry failed. Safe to call from concurrent jobs.
func (t *Task) Fail(e *Entry, plugin, reason string) {
	e.setState(Failed, reason)
	e.AddTrace(plugin, "failed", reason)
}
