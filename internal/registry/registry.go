// Package registry holds all active pools and runs the old/new
// hot-reload protocol across them (spec §4.4), plus the fold traversal
// (spec §4.5) that the /debug/pools diagnostics view renders.
package registry

import (
	"sync"

	"github.com/mini0405/shardproxy/internal/poolcore"
)

// Registry is the ordered list of pools. Hot-reload replaces the entire
// list; cross-pool state (the list itself, counterpart links) is
// protected by mu and written only during KickReplacement and
// FinishReplacement, which run on the registry's control goroutine.
type Registry struct {
	mu    sync.RWMutex
	pools []*poolcore.Pool
}

// New creates a registry from an already-constructed pool list.
func New(pools []*poolcore.Pool) *Registry {
	return &Registry{pools: pools}
}

// Pools returns a snapshot of the registry's current pool list.
func (r *Registry) Pools() []*poolcore.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*poolcore.Pool, len(r.pools))
	copy(out, r.pools)
	return out
}

// ByName returns the pool with the given name, or nil.
func (r *Registry) ByName(name string) *poolcore.Pool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.pools {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Deinit tears down every pool in the registry. Used for graceful
// shutdown, not for reload (reload frees only the pools that drain out).
func (r *Registry) Deinit() error {
	r.mu.Lock()
	pools := r.pools
	r.pools = nil
	r.mu.Unlock()

	var firstErr error
	for _, p := range pools {
		if err := p.Deinit(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
