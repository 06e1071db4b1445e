package server

import (
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// ProbeLedger de-duplicates retry probes: once a probe has been
// dispatched for a dead server, further lookups that land on the same
// server while the probe is outstanding see a cache hit and skip
// re-dispatching, resolving the "concurrent rebuild while a probe is in
// flight" open question idempotently (the ledger entry, not the
// continuum rebuild, is what makes repeat probes a no-op).
type ProbeLedger struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewProbeLedger creates an empty ledger. It owns a background eviction
// goroutine; call Close when the owning pool is torn down.
func NewProbeLedger() *ProbeLedger {
	c := ttlcache.New[string, struct{}]()
	go c.Start()
	return &ProbeLedger{cache: c}
}

// TryDispatch reports whether the caller should dispatch a new probe for
// serverIndex. It returns false if a probe was already marked
// outstanding within ttl; otherwise it marks one outstanding and returns
// true.
func (l *ProbeLedger) TryDispatch(serverIndex int, ttl time.Duration) bool {
	key := strconv.Itoa(serverIndex)
	if l.cache.Has(key) {
		return false
	}
	l.cache.Set(key, struct{}{}, ttl)
	return true
}

// Clear removes any outstanding marker for serverIndex, used once a
// probe resolves (success or failure) so the next eligible tick can
// dispatch again.
func (l *ProbeLedger) Clear(serverIndex int) {
	l.cache.Delete(strconv.Itoa(serverIndex))
}

// Close stops the ledger's eviction goroutine.
func (l *ProbeLedger) Close() {
	l.cache.Stop()
}
