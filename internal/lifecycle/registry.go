package lifecycle

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Registry hands out one Controller per receipt so concurrent desk sessions
// stay independent: there is no cross-receipt locking, only the per-receipt
// serialization each controller enforces. The registry also folds every
// controller's refresh signal into a single monotonic token the list surface
// can poll.
type Registry struct {
	client   TransitionClient
	listener func(uint64)

	mu          sync.Mutex
	controllers map[string]*Controller
	refresh     atomic.Uint64
}

// RegistryOption customises registry construction.
type RegistryOption func(*Registry)

// WithRegistryRefreshListener registers a callback invoked with the new
// aggregate token after every applied transition.
func WithRegistryRefreshListener(fn func(token uint64)) RegistryOption {
	return func(r *Registry) {
		r.listener = fn
	}
}

// NewRegistry builds a registry backed by the given ordering backend.
func NewRegistry(client TransitionClient, opts ...RegistryOption) (*Registry, error) {
	if client == nil {
		return nil, fmt.Errorf("lifecycle: transition client is required")
	}
	r := &Registry{
		client:      client,
		controllers: make(map[string]*Controller),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r, nil
}

// Controller returns the controller for receiptID, creating it on first use.
func (r *Registry) Controller(receiptID string) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ctrl, ok := r.controllers[receiptID]; ok {
		return ctrl
	}
	ctrl := newController(r.client, WithRefreshListener(func(uint64) {
		r.bump()
	}))
	r.controllers[receiptID] = ctrl
	return ctrl
}

// Release drops the controller for a settled receipt. Outstanding calls on a
// released controller still run to completion and still bump the aggregate
// token.
func (r *Registry) Release(receiptID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.controllers, receiptID)
}

// RefreshToken returns the aggregate refresh token. It increments once per
// applied transition across all controllers and never decreases.
func (r *Registry) RefreshToken() uint64 {
	return r.refresh.Load()
}

func (r *Registry) bump() {
	token := r.refresh.Add(1)
	if r.listener != nil {
		r.listener(token)
	}
}
