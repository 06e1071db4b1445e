package poolcore

import "github.com/mini0405/shardproxy/internal/server"

// RunPreconnect opens connections eagerly for every server, up to the
// pool's per-server cap, when the Preconnect flag is set. dialFor
// builds the dial hook for a given server (so the caller can close over
// that server's resolved address); errors are reported through onErr
// rather than aborting startup.
func (p *Pool) RunPreconnect(dialFor func(srv *server.Server) server.DialFunc, onErr func(serverName string, err error)) {
	if !p.Preconnect {
		return
	}
	for _, srv := range p.Servers {
		if err := srv.Preconnect(p.MaxServerConns, dialFor(srv)); err != nil && onErr != nil {
			onErr(srv.Name, err)
		}
	}
}
