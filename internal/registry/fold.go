package registry

import "github.com/mini0405/shardproxy/internal/poolcore"

// ElementKind tags what a Visitor is looking at during a Fold, since the
// traversal crosses three different element shapes with one callback.
type ElementKind int

const (
	KindPool ElementKind = iota
	KindServer
	KindServerConn
	KindClientConn
)

// Visitor is invoked once per visited element. acc is threaded through
// unchanged by Fold; the visitor returns the accumulator's next value.
type Visitor func(kind ElementKind, pool *poolcore.Pool, element any, acc any) any

// Fold visits every pool in registry order, then every server in
// pool-array order, then that server's connections, then the pool's own
// client connections, server-connections before client-connections
// within a pool. The order is fixed and deterministic.
func (r *Registry) Fold(visit Visitor, acc any) any {
	for _, p := range r.Pools() {
		acc = visit(KindPool, p, p, acc)

		for _, s := range p.Servers {
			acc = visit(KindServer, p, s, acc)
			for _, c := range s.Conns() {
				acc = visit(KindServerConn, p, c, acc)
			}
		}

		for _, cc := range p.ClientConns() {
			acc = visit(KindClientConn, p, cc, acc)
		}
	}
	return acc
}
