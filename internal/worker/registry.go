// Package worker pulls jobs off queues and executes registered handlers.
package worker

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// HandlerFunc executes one job. A nil return completes the job; an error
// (or a panic, which is recovered) fails the attempt and the job is
// retried per its retry policy.
type HandlerFunc func(ctx context.Context, payload map[string]any) error

// Registry maps job names to the handlers that execute them. It is safe
// for concurrent use; jobs whose name has no registered handler fail
// immediately without consuming extra attempts beyond the acquired one.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry returns an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds a handler to a job name. A later registration for the
// same name replaces the earlier one. Empty names and nil handlers are
// ignored.
func (r *Registry) Register(name string, fn HandlerFunc) {
	name = strings.TrimSpace(name)
	if name == "" || fn == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = fn
}

// Lookup returns the handler registered for the job name.
func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.handlers[name]
	return fn, ok
}

// Names returns the registered job names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
