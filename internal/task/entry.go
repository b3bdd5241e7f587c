package task

import (
	"fmt"
	"sort"
	"sync"
)

// State is the decision taken on an entry during a task run.
type State int

const (
	Undecided State = iota
	Accepted
	Rejected
	Failed
)

func (s State) String() string {
	switch s {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return "undecided"
	}
}

// Trace is one processing step recorded on an entry.
type Trace struct {
	Plugin  string
	Action  string
	Message string
}

// LazyFunc computes the value of a lazy field on first access.
type LazyFunc func(e *Entry) any

// lazyField evaluates its function at most once, however many readers ask.
type lazyField struct {
	fn    LazyFunc
	once  sync.Once
	value any
}

// Entry is a single candidate download flowing through a task.
type Entry struct {
	mu     sync.Mutex
	fields map[string]any
	lazy   map[string]*lazyField
	traces []Trace
	state  State
	reason string
}

// NewEntry creates an undecided entry with the mandatory title and url fields.
func NewEntry(title, url string) *Entry {
	return &Entry{
		fields: map[string]any{"title": title, "url": url},
		lazy:   map[string]*lazyField{},
	}
}

func (e *Entry) Title() string { return e.GetString("title") }

func (e *Entry) URL() string { return e.GetString("url") }

// Get returns the value of a field, evaluating it first when it is lazy.
// Concurrent readers of a lazy field wait for the single evaluation.
func (e *Entry) Get(key string) (any, bool) {
	e.mu.Lock()
	lf, lazy := e.lazy[key]
	if !lazy {
		v, ok := e.fields[key]
		e.mu.Unlock()

		return v, ok
	}
	e.mu.Unlock()

	// The lock is released while evaluating: fn may read other fields.
	lf.once.Do(func() { lf.value = lf.fn(e) })

	e.mu.Lock()
	if e.lazy[key] == lf {
		delete(e.lazy, key)
		e.fields[key] = lf.value
	}
	e.mu.Unlock()

	return lf.value, true
}

// GetString returns a field rendered as a string, or "" when it is unset.
func (e *Entry) GetString(key string) string {
	v, ok := e.Get(key)
	if !ok || v == nil {
		return ""
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}

// GetBool returns a boolean field and whether it was set to a boolean.
func (e *Entry) GetBool(key string) (bool, bool) {
	v, ok := e.Get(key)
	if !ok {
		return false, false
	}

	b, ok := v.(bool)

	return b, ok
}

func (e *Entry) Has(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.lazy[key]; ok {
		return true
	}

	_, ok := e.fields[key]

	return ok
}

func (e *Entry) Set(key string, value any) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.lazy, key)
	e.fields[key] = value
}

// SetLazy registers fn to compute key the first time it is read.
func (e *Entry) SetLazy(key string, fn LazyFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.fields, key)
	e.lazy[key] = &lazyField{fn: fn}
}

func (e *Entry) Delete(key string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.fields, key)
	delete(e.lazy, key)
}

// IsLazy reports whether key is a lazy field that has not been evaluated yet.
func (e *Entry) IsLazy(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	_, ok := e.lazy[key]

	return ok
}

// Keys returns every field name, lazy ones included, in lexical order.
func (e *Entry) Keys() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	keys := make([]string, 0, len(e.fields)+len(e.lazy))
	for k := range e.fields {
		keys = append(keys, k)
	}

	for k := range e.lazy {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Fields returns a snapshot of the evaluated fields. Lazy fields are left out.
func (e *Entry) Fields() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]any, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}

	return out
}

// AddTrace records a processing step. action may be empty.
func (e *Entry) AddTrace(plugin, action, message string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.traces = append(e.traces, Trace{Plugin: plugin, Action: action, Message: message})
}

func (e *Entry) Traces() []Trace {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]Trace(nil), e.traces...)
}

func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// Reason is the message given with the last state change.
func (e *Entry) Reason() string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.reason
}

func (e *Entry) setState(s State, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = s
	e.reason = reason
}
