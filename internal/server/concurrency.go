package server

import "sync/atomic"

// beginRequest increments s's in-flight request counter and returns the
// new count. A nil receiver is a no-op, since Conn's callers sometimes
// hold a srv that failed to resolve.
func (s *Server) beginRequest() int64 {
	if s == nil {
		return 0
	}
	return atomic.AddInt64(&s.ActiveRequests, 1)
}

// endRequest decrements s's in-flight request counter and returns the
// new count.
func (s *Server) endRequest() int64 {
	if s == nil {
		return 0
	}
	return atomic.AddInt64(&s.ActiveRequests, -1)
}

// activeRequests returns s's current in-flight request count.
func (s *Server) activeRequests() int64 {
	if s == nil {
		return 0
	}
	return atomic.LoadInt64(&s.ActiveRequests)
}
