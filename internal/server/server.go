// Package server owns backend server state: identity, health accounting,
// and the fixed-size fan-out of connections opened to it.
package server

import (
	"net"
	"sync"
)

// Server represents one backend endpoint inside a pool's server array.
// It holds a non-owning handle back to its pool rather than a pointer,
// so that a Server can be read, logged, or traversed without pinning a
// *poolcore.Pool alive or creating an import cycle between the two
// packages (poolcore owns Server; Server only ever points up by index).
type Server struct {
	mu sync.Mutex

	Index    int
	PoolIdx  int // tagged non-owning back-reference: index into the owning pool's registry slot
	Name     string
	Addr     net.Addr
	Weight   int

	conns    []*Conn
	nconns   int
	rrCursor int

	FailureCount int
	NextRetry    int64 // absolute microseconds; 0 means not ejected

	ActiveRequests int64 // in-flight request count, touched only via atomic helpers in concurrency.go
}

// New creates a Server from a parsed config record's resolved address.
func New(index, poolIdx int, name string, addr net.Addr, weight int) *Server {
	return &Server{Index: index, PoolIdx: poolIdx, Name: name, Addr: addr, Weight: weight}
}

// Live reports whether the server is currently eligible for traffic:
// never ejected, or ejected but its retry deadline has passed.
func (s *Server) Live(nowMicros int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.liveLocked(nowMicros)
}

func (s *Server) liveLocked(nowMicros int64) bool {
	return s.NextRetry == 0 || nowMicros >= s.NextRetry
}

// Dead is the complement of Live, for readability at call sites.
func (s *Server) Dead(nowMicros int64) bool {
	return !s.Live(nowMicros)
}

// NeedsProbe reports whether the server is ejected and past its retry
// deadline: eligible for exactly one probe attempt, but not yet
// confirmed recovered. It is distinct from Dead, which only covers the
// strict ejection window (now < NextRetry) and is what routing excludes
// on; a server past its deadline is routable again (Live) but still
// owes a probe until Probe() or RecordSuccess() clears NextRetry.
func (s *Server) NeedsProbe(nowMicros int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.NextRetry != 0 && nowMicros >= s.NextRetry
}

// NConns returns the current number of live server connections.
func (s *Server) NConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nconns
}

// Stats is a point-in-time snapshot of a server's health and load, for
// diagnostics and the /debug/pools fold.
type Stats struct {
	Name           string
	Addr           string
	Live           bool
	FailureCount   int
	NextRetry      int64
	NConns         int
	ActiveRequests int64
}

func (s *Server) Stats(now int64) Stats {
	s.mu.Lock()
	addr := ""
	if s.Addr != nil {
		addr = s.Addr.String()
	}
	st := Stats{
		Name:         s.Name,
		Addr:         addr,
		Live:         s.liveLocked(now),
		FailureCount: s.FailureCount,
		NextRetry:    s.NextRetry,
		NConns:       s.nconns,
	}
	s.mu.Unlock()
	st.ActiveRequests = s.activeRequests()
	return st
}

// Conns returns a snapshot of the server's connection queue.
func (s *Server) Conns() []*Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Conn, len(s.conns))
	copy(out, s.conns)
	return out
}
