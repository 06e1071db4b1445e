package poolcore

import (
	"time"

	"github.com/mini0405/shardproxy/internal/server"
)

// Idx resolves key to the server index that owns it, without touching
// any connection. Exposed directly for tests (server_pool_idx in spec
// terms) and used internally by Conn.
func (p *Pool) Idx(key []byte, now int64) (int, error) {
	c := p.Continuum()
	if c == nil || c.Len() == 0 {
		return 0, ErrNoServerAvailable
	}

	idx, err := c.Query(key, p.AutoEjectHosts, func(i int) bool {
		return p.serverAt(i).Dead(now)
	})
	if err != nil {
		return 0, ErrNoServerAvailable
	}
	return idx, nil
}

func (p *Pool) serverAt(i int) *server.Server {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.Servers[i]
}

// Conn runs the full key-to-connection pipeline: hash-tag extraction
// (inside the continuum), hashing, continuum lookup, server resolution,
// then per-server connection selection. It never blocks on network I/O;
// dial is the caller's non-blocking connect hook.
//
// probe reports whether this call is the single probe attempt against a
// dead server past its retry deadline. The caller must feed its
// outcome back through ProbeResult.
func (p *Pool) Conn(key []byte, now int64, dial server.DialFunc) (conn *server.Conn, srv *server.Server, probe bool, err error) {
	idx, err := p.Idx(key, now)
	if err != nil {
		return nil, nil, false, err
	}

	srv = p.serverAt(idx)
	if srv.NeedsProbe(now) {
		probe = p.probes.TryDispatch(idx, time.Duration(p.ServerRetryMicros)*time.Microsecond)
	}

	conn, err = srv.Conn(p.MaxServerConns, dial)
	if err != nil {
		return nil, srv, probe, ErrConnectFailed
	}
	return conn, srv, probe, nil
}
