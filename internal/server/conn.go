package server

import "errors"

// ConnState tracks whether a server connection is available for new work.
type ConnState int

const (
	StateIdle ConnState = iota
	StateActive
	StateError
)

// ConnIO is the narrow handle a Conn holds onto the actual socket. The
// event loop that owns the real connection implements this; the server
// package never dials or reads/writes a socket itself.
type ConnIO interface {
	Close() error
}

// Conn is one connection this server holds open to its backend. It
// carries a non-owning tagged back-reference to the server that owns it
// (by index) rather than a pointer, mirroring Server's own back-link to
// its pool.
type Conn struct {
	ServerIndex int
	IO          ConnIO
	State       ConnState
}

// DialFunc opens a new backend connection. Supplied by the caller (the
// event loop), since raw socket I/O is out of scope for this package.
type DialFunc func() (ConnIO, error)

// ErrAllConnsError is returned when every connection in the server's
// fan-out is in an error state and none can be selected.
var ErrAllConnsError = errors.New("server: all connections are in an error state")

// Conn selects a usable connection per the pool's fixed-size fan-out
// policy: reuse an idle connection if one exists; otherwise open a new
// one while under the per-server cap; otherwise round-robin over the
// existing queue, skipping any connection in an error state.
func (s *Server) Conn(maxConns int, dial DialFunc) (*Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conns {
		if c.State == StateIdle {
			c.State = StateActive
			s.beginRequest()
			return c, nil
		}
	}

	if s.nconns < maxConns {
		io, err := dial()
		if err != nil {
			return nil, err
		}
		c := &Conn{ServerIndex: s.Index, IO: io, State: StateActive}
		s.conns = append(s.conns, c)
		s.nconns++
		s.beginRequest()
		return c, nil
	}

	for i := 0; i < len(s.conns); i++ {
		idx := (s.rrCursor + i) % len(s.conns)
		c := s.conns[idx]
		if c.State != StateError {
			s.rrCursor = idx + 1
			s.beginRequest()
			return c, nil
		}
	}
	return nil, ErrAllConnsError
}

// Release returns a connection to the idle pool after its request
// completes, making it eligible for immediate reuse.
func (s *Server) Release(c *Conn) {
	s.mu.Lock()
	if c.State != StateError {
		c.State = StateIdle
	}
	s.mu.Unlock()
	s.endRequest()
}

// MarkError flags a connection as unusable; round-robin selection and
// idle reuse will both skip it until it is closed and removed.
func (s *Server) MarkError(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.State = StateError
}

// Preconnect eagerly opens connections up to maxConns, the behavior
// requested by a pool's preconnect flag. Errors are returned to the
// caller to log; they do not remove the server.
func (s *Server) Preconnect(maxConns int, dial DialFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for s.nconns < maxConns {
		io, err := dial()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			break
		}
		s.conns = append(s.conns, &Conn{ServerIndex: s.Index, IO: io, State: StateIdle})
		s.nconns++
	}
	return firstErr
}

// CloseAll closes every connection this server holds and empties its
// queue. Used on ejection and on pool disconnect/teardown.
func (s *Server) CloseAll() {
	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.nconns = 0
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.IO.Close()
	}
}
