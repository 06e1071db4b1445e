package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini0405/shardproxy/internal/continuum"
	"github.com/mini0405/shardproxy/internal/hashkit"
	"github.com/mini0405/shardproxy/internal/poolcore"
	"github.com/mini0405/shardproxy/internal/server"
)

func testPool(name string, n int, listenAddr string) *poolcore.Pool {
	servers := make([]*server.Server, n)
	for i := range servers {
		servers[i] = server.New(i, 0, "srv", nil, 1)
	}
	p := poolcore.New(0, name, servers, poolcore.HashSpec{
		Algorithm:    hashkit.FNV1a_64,
		Distribution: continuum.Ketama,
	})
	p.ListenAddr = listenAddr
	return p
}

type fakeListener struct{ closed bool }

func (f *fakeListener) Close() error { f.closed = true; return nil }

// TestHotReloadEndpointUnchanged covers S5: an old pool and its
// same-port replacement drain and cut over without ever both being
// terminal at once, and FinishReplacement converges once client
// connections drop to zero.
func TestHotReloadEndpointUnchanged(t *testing.T) {
	old := testPool("P", 2, ":22121")
	listener := &fakeListener{}
	old.Listener = listener
	reg := New([]*poolcore.Pool{old})

	next := testPool("P", 3, ":22121")
	require.NoError(t, reg.KickReplacement([]*poolcore.Pool{next}))

	assert.Equal(t, poolcore.StateOldToShutdown, old.ReloadState)
	assert.Equal(t, poolcore.StateNewWaitForOld, next.ReloadState)

	// Still have an in-flight client connection: must not converge yet.
	cc := &poolcore.ClientConn{PoolIndex: old.Index}
	old.AddClientConn(cc)

	assert.False(t, reg.FinishReplacement(), "should not converge while the old pool still has client connections")
	assert.Equal(t, poolcore.StateOldDraining, old.ReloadState)
	assert.True(t, old.Quiescing, "a same-endpoint counterpart should stop accepts without closing the listener")
	assert.Same(t, listener, old.Listener, "the listener must stay open, pending handoff, during the drain")
	assert.False(t, listener.closed, "the listener must not be closed while its counterpart still needs it")

	old.RemoveClientConn(cc)

	assert.True(t, reg.FinishReplacement(), "expected convergence once the old pool has drained")
	assert.Equal(t, poolcore.StateNew, next.ReloadState)
	assert.Nil(t, next.Counterpart)
	assert.Nil(t, old.Counterpart)
	assert.Same(t, listener, next.Listener, "the new pool must inherit the old pool's live listener handle")
	assert.Nil(t, old.Listener, "the old pool must give up the listener once it hands it off")
	assert.False(t, listener.closed, "a handed-off listener must never be closed")

	found := false
	for _, p := range reg.Pools() {
		if p == next {
			found = true
		}
		assert.NotSame(t, old, p, "the freed old pool must not remain in the registry")
	}
	assert.True(t, found, "the new pool must remain in the registry")
}

// TestHotReloadDisjointNames covers S6: old has {A, B}, new has {B, C};
// after convergence A is freed, B has been replaced via drain, and C
// started fresh with no counterpart wait.
func TestHotReloadDisjointNames(t *testing.T) {
	a := testPool("A", 1, ":1")
	aListener := &fakeListener{}
	a.Listener = aListener
	b := testPool("B", 1, ":2")
	bListener := &fakeListener{}
	b.Listener = bListener
	reg := New([]*poolcore.Pool{a, b})

	bNew := testPool("B", 2, ":2")
	c := testPool("C", 1, ":3")

	require.NoError(t, reg.KickReplacement([]*poolcore.Pool{bNew, c}))

	assert.Equal(t, poolcore.StateNewWaitForOld, c.ReloadState, "C has no counterpart, expected NEW_WAIT_FOR_OLD before convergence")
	assert.Equal(t, poolcore.StateOldToShutdown, a.ReloadState, "A has no counterpart in the new set, expected OLD_TO_SHUTDOWN")

	for !reg.FinishReplacement() {
	}

	names := map[string]bool{}
	for _, p := range reg.Pools() {
		names[p.Name] = true
		assert.NotSame(t, a, p, "A must have been freed")
	}
	assert.True(t, names["B"] && names["C"], "expected B and C in the converged registry, got %v", names)
	assert.Equal(t, poolcore.StateNew, bNew.ReloadState, "expected B's replacement to reach NEW")
	assert.Equal(t, poolcore.StateNew, c.ReloadState, "expected C to reach NEW with no counterpart wait")

	assert.True(t, aListener.closed, "A has no counterpart to hand off to, so its listener must be closed outright")
	assert.Same(t, bListener, bNew.Listener, "B's same-endpoint replacement must inherit its live listener")
	assert.False(t, bListener.closed, "a handed-off listener must never be closed")
}
