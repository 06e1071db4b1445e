// Package poolcore owns the per-pool state: configuration, listener
// handle, client connections, server array, continuum, and reload
// state. It is the "Pool" layer of the core (spec §4.3).
package poolcore

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/mini0405/shardproxy/internal/continuum"
	"github.com/mini0405/shardproxy/internal/server"
)

// Pool is one listening endpoint plus its backend fleet.
type Pool struct {
	mu sync.RWMutex

	Index int
	Name  string

	ListenAddr string
	SockPerm   string
	Listener   ListenerIO

	clientConns []*ClientConn

	Servers      []*server.Server
	continuumPtr atomic.Pointer[continuum.Continuum]
	nextRebuild  int64
	nliveServers int

	Hash HashSpec

	TimeoutMillis      int
	Backlog            int
	MaxClientConns     int
	MaxServerConns     int
	ServerRetryMicros  int64
	ServerFailureLimit int

	AutoEjectHosts bool
	Preconnect     bool
	Redis          bool
	RedisAuth      string
	RedisDB        int

	ReloadState ReloadState
	Counterpart *Pool

	// Quiescing is set once an OLD_TO_SHUTDOWN pool is handing its
	// listener to a same-endpoint counterpart rather than closing it
	// outright. The event loop checks this before accepting a new
	// client on the listener; the pool still owns and will transfer the
	// live handle once the drain completes.
	Quiescing bool

	// OnEjection and OnRecovery notify an observer of the pool's two
	// health transitions (RecordFailure crossing the ejection threshold,
	// ProbeResult succeeding against an ejected server). Both are
	// optional; nil is a no-op. The diagnostics server wires these to
	// its event bus.
	OnEjection func(srv *server.Server)
	OnRecovery func(srv *server.Server)

	probes *server.ProbeLedger
}

// New builds a pool from its already-resolved server array. The
// continuum is built immediately (init-time rebuild trigger).
func New(index int, name string, servers []*server.Server, hash HashSpec) *Pool {
	p := &Pool{
		Index:       index,
		Name:        name,
		Servers:     servers,
		Hash:        hash,
		ReloadState: StateOldAndActive,
		probes:      server.NewProbeLedger(),
	}
	p.Rebuild(nowMicros())
	return p
}

func nowMicros() int64 { return time.Now().UnixMicro() }

// Continuum returns the pool's current continuum. Safe to call
// concurrently with Rebuild: the pointer is swapped atomically and a
// caller that has already loaded it never observes a partial rebuild.
func (p *Pool) Continuum() *continuum.Continuum {
	return p.continuumPtr.Load()
}

// weightedServers reports which of the pool's servers are currently live,
// and returns the weighted view continuum.Build needs.
func (p *Pool) weightedServers(now int64) []continuum.WeightedServer {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]continuum.WeightedServer, len(p.Servers))
	for i, s := range p.Servers {
		out[i] = continuum.WeightedServer{Index: s.Index, Weight: s.Weight, Live: s.Live(now)}
	}
	return out
}

// Rebuild recomputes the continuum from the current server live/dead
// set. Triggered on init, on any server ejection/retry-success
// transition, and when NextRebuild elapses (spec §4.1).
func (p *Pool) Rebuild(now int64) {
	ws := p.weightedServers(now)

	live := 0
	for _, w := range ws {
		if w.Live {
			live++
		}
	}

	c := continuum.Build(p.Hash.Distribution, p.Hash.Algorithm, ws, p.Hash.HasTag, p.Hash.TagLeft, p.Hash.TagRight)
	p.continuumPtr.Store(c)

	p.mu.Lock()
	p.nextRebuild = now + int64(10*time.Second/time.Microsecond)
	p.nliveServers = live
	p.mu.Unlock()
}

// NLiveServers returns the number of servers counted live at the most
// recent Rebuild, satisfying nlive_server <= len(servers) without a
// caller having to re-scan the server array.
func (p *Pool) NLiveServers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.nliveServers
}

// MaybeRebuild rebuilds if NextRebuild has elapsed. Call this from the
// pool's control-phase tick; it is a no-op otherwise.
func (p *Pool) MaybeRebuild(now int64) {
	p.mu.RLock()
	due := p.nextRebuild
	p.mu.RUnlock()
	if now >= due {
		p.Rebuild(now)
	}
}

// Disconnect closes all server connections without freeing the pool
// object itself or its probe ledger (Deinit stops the ledger). It is
// the behavior used while draining during a hot reload.
func (p *Pool) Disconnect() {
	p.mu.RLock()
	servers := p.Servers
	p.mu.RUnlock()

	for _, s := range servers {
		s.CloseAll()
	}
}

// Deinit fully tears the pool down: disconnects servers, closes the
// listener, and stops the probe ledger. Called once a pool is freed,
// either at shutdown or at the end of a successful hot reload drain.
func (p *Pool) Deinit() error {
	p.Disconnect()
	p.probes.Close()
	if p.Listener != nil {
		return p.Listener.Close()
	}
	return nil
}

// NClientConns returns the number of client connections currently
// tracked by this pool, the quantity FinishReplacement polls to
// decide when an OLD_DRAINING pool has finished draining.
func (p *Pool) NClientConns() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.clientConns)
}

// AddClientConn registers a newly accepted client connection.
func (p *Pool) AddClientConn(c *ClientConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientConns = append(p.clientConns, c)
}

// RemoveClientConn drops a client connection from the pool's tracking,
// e.g. once it closes.
func (p *Pool) RemoveClientConn(c *ClientConn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cc := range p.clientConns {
		if cc == c {
			p.clientConns = append(p.clientConns[:i], p.clientConns[i+1:]...)
			return
		}
	}
}

// ClientConns returns a snapshot of the pool's client connections, used
// by Fold traversal.
func (p *Pool) ClientConns() []*ClientConn {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*ClientConn, len(p.clientConns))
	copy(out, p.clientConns)
	return out
}

// Stats is a point-in-time snapshot of a pool and its server fleet, for
// the JSON diagnostics endpoint and Prometheus collectors.
type Stats struct {
	Name         string
	ListenAddr   string
	ReloadState  string
	NClientConns int
	NLiveServers int
	ContinuumLen int
	Servers      []server.Stats
}

func (p *Pool) Stats(now int64) Stats {
	p.mu.RLock()
	servers := p.Servers
	st := Stats{
		Name:         p.Name,
		ListenAddr:   p.ListenAddr,
		ReloadState:  p.ReloadState.String(),
		NClientConns: len(p.clientConns),
		NLiveServers: p.nliveServers,
	}
	p.mu.RUnlock()

	if c := p.Continuum(); c != nil {
		st.ContinuumLen = c.Len()
	}
	st.Servers = make([]server.Stats, len(servers))
	for i, s := range servers {
		st.Servers[i] = s.Stats(now)
	}
	return st
}
