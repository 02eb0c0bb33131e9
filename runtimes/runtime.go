// Package runtimes manages the sessions that give multi-step interactions
// continuity. A Runtime is created when a top-level command starts a fresh
// conversation and is looked up again for every component or modal whose
// custom id names it, until it is closed or expires.
package runtimes

import (
	"sync"
	"time"
)

// Instantiator constructs one instance of an interaction unit. It is called
// at most once per (Runtime, unit) pair; independent interactions get a fresh
// uncached instance instead.
type Instantiator interface {
	Create(unitName string) (any, error)
}

// InstantiatorFunc adapts a function to the Instantiator interface.
type InstantiatorFunc func(unitName string) (any, error)

// Create calls f.
func (f InstantiatorFunc) Create(unitName string) (any, error) {
	return f(unitName)
}

// NopInstantiator returns nil instances. It is the default for applications
// whose handlers are closures and ignore the instance argument.
var NopInstantiator = InstantiatorFunc(func(string) (any, error) {
	return nil, nil
})

// Runtime holds the state shared by all interactions of one conversation.
// Concurrent events for the same Runtime may interleave; the key-value store
// and instance cache are individually safe for concurrent use, but handler
// logic that needs stricter ordering must provide it itself.
type Runtime struct {
	id           string
	createdAt    time.Time
	instantiator Instantiator

	mu           sync.RWMutex
	lastActivity time.Time
	values       map[string]any
	instances    map[string]any
}

func newRuntime(id string, instantiator Instantiator) *Runtime {
	now := time.Now()
	return &Runtime{
		id:           id,
		createdAt:    now,
		instantiator: instantiator,
		lastActivity: now,
		values:       make(map[string]any),
		instances:    make(map[string]any),
	}
}

// ID returns the session id of this Runtime.
func (r *Runtime) ID() string {
	return r.id
}

// CreatedAt returns the creation time of this Runtime.
func (r *Runtime) CreatedAt() time.Time {
	return r.createdAt
}

// LastActivity returns the time of the last Touch.
func (r *Runtime) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// Touch refreshes the last-activity timestamp.
func (r *Runtime) Touch() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastActivity = time.Now()
}

// Set stores a value in the Runtime's key-value store.
func (r *Runtime) Set(key string, value any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[key] = value
}

// Get reads a value from the Runtime's key-value store.
func (r *Runtime) Get(key string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.values[key]
	return v, ok
}

// Delete removes a value from the Runtime's key-value store.
func (r *Runtime) Delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.values, key)
}

// Keys returns a snapshot of the keys currently stored.
func (r *Runtime) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.values))
	for k := range r.values {
		keys = append(keys, k)
	}
	return keys
}

// Instance returns the cached instance of the given unit within this Runtime,
// constructing it on first use.
func (r *Runtime) Instance(unitName string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst, ok := r.instances[unitName]; ok {
		return inst, nil
	}
	inst, err := r.instantiator.Create(unitName)
	if err != nil {
		return nil, err
	}
	r.instances[unitName] = inst
	return inst, nil
}
