package registry

import "github.com/mini0405/shardproxy/internal/poolcore"

// sameEndpoint reports whether two pools would bind the identical
// listening endpoint, the condition under which a counterpart can hand
// its listener straight across instead of requiring a drain-then-rebind.
func sameEndpoint(a, b *poolcore.Pool) bool {
	return a.ListenAddr == b.ListenAddr && a.SockPerm == b.SockPerm
}

// KickReplacement pairs the current pool list against newPools by name,
// links counterparts, and advances both sides' reload states (spec
// §4.4). The registry's pool list becomes the union of the pools still
// draining from the old set and every pool in newPools; FinishReplacement
// is what eventually shrinks it back down.
func (r *Registry) KickReplacement(newPools []*poolcore.Pool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	oldByName := make(map[string]*poolcore.Pool, len(r.pools))
	for _, p := range r.pools {
		oldByName[p.Name] = p
	}

	matched := make(map[string]bool, len(newPools))
	for _, np := range newPools {
		op, ok := oldByName[np.Name]
		if !ok {
			// No counterpart: born directly into NEW_WAIT_FOR_OLD with a
			// nil counterpart. FinishReplacement advances these to NEW
			// immediately since there is nothing to wait on.
			np.ReloadState = poolcore.StateNewWaitForOld
			continue
		}
		matched[np.Name] = true

		op.Counterpart = np
		np.Counterpart = op

		if sameEndpoint(op, np) {
			op.ReloadState = poolcore.StateOldToShutdown
			np.ReloadState = poolcore.StateNewWaitForOld
		} else {
			// Disjoint endpoints: the new pool can bind and start serving
			// right away, independent of the old pool's drain.
			op.ReloadState = poolcore.StateOldToShutdown
			np.ReloadState = poolcore.StateNew
			np.Counterpart = nil
			op.Counterpart = nil
		}
	}

	for _, op := range r.pools {
		if _, ok := matched[op.Name]; !ok && op.Counterpart == nil {
			// No counterpart in the new set: drain and free, nothing to
			// hand traffic off to.
			op.ReloadState = poolcore.StateOldToShutdown
		}
	}

	merged := make([]*poolcore.Pool, 0, len(r.pools)+len(newPools))
	merged = append(merged, r.pools...)
	merged = append(merged, newPools...)
	r.pools = merged
	return nil
}

// FinishReplacement drives one tick of the drain/cutover state machine.
// It returns true exactly when, after this tick, no pool remains in
// OLD_TO_SHUTDOWN, OLD_DRAINING or NEW_WAIT_FOR_OLD, i.e. the reload has
// fully converged. OLD_AND_ACTIVE pools do not hold it back.
func (r *Registry) FinishReplacement() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*poolcore.Pool
	done := true

	for _, p := range r.pools {
		switch p.ReloadState {
		case poolcore.StateOldToShutdown:
			if cp := p.Counterpart; cp != nil && sameEndpoint(p, cp) {
				// The counterpart will inherit this listener once the
				// drain completes; only stop accepting new clients on it
				// for now, via the Quiescing flag the event loop checks.
				p.Quiescing = true
			} else if p.Listener != nil {
				_ = p.Listener.Close()
				p.Listener = nil
			}
			p.ReloadState = poolcore.StateOldDraining
			kept = append(kept, p)
			done = false

		case poolcore.StateOldDraining:
			if p.NClientConns() == 0 {
				if cp := p.Counterpart; cp != nil {
					if sameEndpoint(p, cp) {
						cp.Listener = p.Listener
						p.Listener = nil
					}
					cp.ReloadState = poolcore.StateNew
					cp.Counterpart = nil
				}
				p.Counterpart = nil
				_ = p.Deinit()
				// dropped from kept: freed
				continue
			}
			kept = append(kept, p)
			done = false

		case poolcore.StateNewWaitForOld:
			if p.Counterpart == nil {
				p.ReloadState = poolcore.StateNew
				kept = append(kept, p)
			} else {
				kept = append(kept, p)
				done = false
			}

		default:
			kept = append(kept, p)
		}
	}

	r.pools = kept
	return done
}
