package poolcore

import (
	"github.com/mini0405/shardproxy/internal/server"
)

func (p *Pool) ejectionPolicy() server.EjectionPolicy {
	return server.EjectionPolicy{
		AutoEjectHosts:     p.AutoEjectHosts,
		FailureLimit:       p.ServerFailureLimit,
		RetryTimeoutMicros: p.ServerRetryMicros,
	}
}

// RecordSuccess clears a server's failure accounting after a clean
// request exchange.
func (p *Pool) RecordSuccess(srv *server.Server) {
	srv.RecordSuccess()
}

// RecordFailure accounts for a transport error or timeout on srv. If
// this failure crosses the ejection threshold, the server's connections
// are closed and the continuum is rebuilt without it.
func (p *Pool) RecordFailure(srv *server.Server, now int64) {
	if srv.RecordFailure(p.ejectionPolicy(), now) {
		srv.CloseAll()
		p.Rebuild(now)
		if p.OnEjection != nil {
			p.OnEjection(srv)
		}
	}
}

// ProbeResult reports the outcome of a single retry probe dispatched by
// Conn for a dead server. On success the server returns to LIVE and the
// continuum is rebuilt; on failure next_retry is rescheduled linearly.
// The ledger entry is cleared either way so the next eligible tick can
// dispatch again.
func (p *Pool) ProbeResult(srv *server.Server, now int64, succeeded bool) {
	defer p.probes.Clear(srv.Index)
	if srv.Probe(p.ejectionPolicy(), now, succeeded) {
		p.Rebuild(now)
		if p.OnRecovery != nil {
			p.OnRecovery(srv)
		}
	}
}
