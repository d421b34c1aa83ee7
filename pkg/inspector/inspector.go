// Package inspector implements the per-service configuration inspector: a
// navigation state machine over a service's configuration files, keyed
// content and analysis caches, and a controller that reconciles background
// loads and analysis calls with whatever the operator is looking at.
package inspector

import (
	"context"
	"sync"

	"github.com/greg-hellings/servicedash/pkg/model"
)

// Inspector owns at most one open Session.
type Inspector struct {
	opts Options

	mu      sync.Mutex
	current *Session
}

// New returns an Inspector whose sessions share opts.
func New(opts Options) *Inspector {
	return &Inspector{opts: opts}
}

// Open closes any open session and starts a new one for svc. The caller's
// service value is copied and never modified.
func (i *Inspector) Open(ctx context.Context, svc model.Service) *Session {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.current != nil {
		i.current.Close()
	}
	i.current = newSession(ctx, svc, i.opts)
	return i.current
}

// Current returns the open session, or nil.
func (i *Inspector) Current() *Session {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

// Close closes the open session, if any.
func (i *Inspector) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.current != nil {
		i.current.Close()
		i.current = nil
	}
}
