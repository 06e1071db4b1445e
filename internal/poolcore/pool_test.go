package poolcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini0405/shardproxy/internal/continuum"
	"github.com/mini0405/shardproxy/internal/hashkit"
	"github.com/mini0405/shardproxy/internal/server"
)

func testServers(n int) []*server.Server {
	out := make([]*server.Server, n)
	for i := range out {
		out[i] = server.New(i, 0, "srv", nil, 1)
	}
	return out
}

func noopDial() (server.ConnIO, error) { return noopIO{}, nil }

type noopIO struct{}

func (noopIO) Close() error { return nil }

func newTestPool(n int) *Pool {
	return New(0, "p", testServers(n), HashSpec{
		Algorithm:    hashkit.FNV1a_64,
		Distribution: continuum.Ketama,
	})
}

func TestPoolIdxDeterministic(t *testing.T) {
	p := newTestPool(3)
	now := nowMicros()

	idx1, err := p.Idx([]byte("user:1"), now)
	require.NoError(t, err)
	idx2, err := p.Idx([]byte("user:1"), now)
	require.NoError(t, err)
	assert.Equal(t, idx1, idx2)
}

func TestPoolConnPipeline(t *testing.T) {
	p := newTestPool(3)
	p.MaxServerConns = 2
	now := nowMicros()

	conn, srv, probe, err := p.Conn([]byte("some-key"), now, noopDial)
	require.NoError(t, err)
	assert.NotNil(t, conn)
	assert.NotNil(t, srv)
	assert.False(t, probe, "a live server's lookup should not be flagged as a probe")
}

func TestEjectionTriggersRebuildAndRemovesServerFromRouting(t *testing.T) {
	p := newTestPool(3)
	p.AutoEjectHosts = true
	p.ServerFailureLimit = 2
	p.ServerRetryMicros = 30_000_000
	now := nowMicros()

	// Find a key that currently routes to server 0.
	var key []byte
	for i := 0; i < 1000; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		idx, _ := p.Idx(k, now)
		if idx == 0 {
			key = k
			break
		}
	}
	require.NotNil(t, key, "could not find a key routed to server 0")

	srv := p.serverAt(0)
	p.RecordFailure(srv, now)
	p.RecordFailure(srv, now)

	assert.False(t, srv.Live(now), "server should be ejected after crossing the failure limit")

	idx, err := p.Idx(key, now)
	require.NoError(t, err, "auto_eject_hosts routes around dead servers, not to NoServerAvailable here")
	assert.NotEqual(t, 0, idx, "continuum should have been rebuilt without the ejected server")
}

// TestConnDispatchesExactlyOneProbePastRetryDeadline covers S3's "at
// t+30s, one probe is sent to X": once a server's retry deadline has
// passed, Conn routes back to it (it is Live again) and flags exactly
// one probe, deduplicating repeat lookups until ProbeResult clears the
// ledger.
func TestConnDispatchesExactlyOneProbePastRetryDeadline(t *testing.T) {
	p := newTestPool(2)
	p.MaxServerConns = 1
	p.AutoEjectHosts = true
	p.ServerFailureLimit = 1
	p.ServerRetryMicros = 1_000
	now := nowMicros()

	var key []byte
	for i := 0; i < 1000; i++ {
		k := []byte{byte(i), byte(i >> 8)}
		idx, _ := p.Idx(k, now)
		if idx == 0 {
			key = k
			break
		}
	}
	require.NotNil(t, key, "could not find a key routed to server 0")

	srv0 := p.serverAt(0)
	p.RecordFailure(srv0, now)
	require.False(t, srv0.Live(now), "server should be ejected")

	_, routedDuringEjection, probe, err := p.Conn(key, now, noopDial)
	require.NoError(t, err)
	assert.NotEqual(t, 0, routedDuringEjection.Index, "lookup during the ejection window should route around the dead server")
	assert.False(t, probe, "no probe is owed while still inside the ejection window")

	past := srv0.NextRetry
	_, routedPastDeadline, probe, err := p.Conn(key, past, noopDial)
	require.NoError(t, err)
	assert.Equal(t, 0, routedPastDeadline.Index, "past its deadline the server is live again and routable")
	assert.True(t, probe, "first lookup past the deadline should dispatch the single owed probe")

	_, _, probe, err = p.Conn(key, past, noopDial)
	require.NoError(t, err)
	assert.False(t, probe, "a probe already outstanding must not be dispatched twice")

	p.ProbeResult(srv0, past, true)
	assert.True(t, srv0.Live(past), "a successful probe recovers the server")

	_, _, probe, err = p.Conn(key, past+1, noopDial)
	require.NoError(t, err)
	assert.False(t, probe, "a recovered server owes no further probe")
}

func TestRebuildTracksLiveServerCount(t *testing.T) {
	p := newTestPool(3)
	p.AutoEjectHosts = true
	p.ServerFailureLimit = 1
	p.ServerRetryMicros = 30_000_000
	now := nowMicros()

	assert.Equal(t, 3, p.NLiveServers(), "all servers start live")

	p.RecordFailure(p.serverAt(0), now)
	assert.Equal(t, 2, p.NLiveServers(), "ejecting a server should drop the live count")
}

func TestMaybeRebuildRespectsDeadline(t *testing.T) {
	p := newTestPool(2)
	now := nowMicros()
	c1 := p.Continuum()

	p.MaybeRebuild(now)
	assert.Same(t, c1, p.Continuum(), "a call before the deadline must not rebuild")

	p.MaybeRebuild(now + int64(11*time.Second/time.Microsecond))
	assert.NotSame(t, c1, p.Continuum(), "a call past the deadline must rebuild")
}

// TestEjectionAndRecoveryNotifyHooks covers the OnEjection/OnRecovery
// observer hooks an event bus wires up: they fire exactly on the
// failure-threshold and successful-probe transitions, not on every
// RecordFailure/ProbeResult call.
func TestEjectionAndRecoveryNotifyHooks(t *testing.T) {
	p := newTestPool(2)
	p.AutoEjectHosts = true
	p.ServerFailureLimit = 2
	p.ServerRetryMicros = 1_000
	now := nowMicros()

	var ejected, recovered []string
	p.OnEjection = func(srv *server.Server) { ejected = append(ejected, srv.Name) }
	p.OnRecovery = func(srv *server.Server) { recovered = append(recovered, srv.Name) }

	srv := p.serverAt(0)
	p.RecordFailure(srv, now)
	assert.Empty(t, ejected, "one failure below the limit should not notify")

	p.RecordFailure(srv, now)
	assert.Equal(t, []string{srv.Name}, ejected, "crossing the failure limit should notify exactly once")

	past := srv.NextRetry
	p.ProbeResult(srv, past, false)
	assert.Empty(t, recovered, "a failed probe must not notify recovery")

	p.ProbeResult(srv, srv.NextRetry, true)
	assert.Equal(t, []string{srv.Name}, recovered, "a successful probe should notify recovery exactly once")
}

func TestAllServersEjectedYieldsNoServerAvailable(t *testing.T) {
	p := newTestPool(2)
	p.AutoEjectHosts = true
	p.ServerFailureLimit = 1
	p.ServerRetryMicros = 30_000_000
	now := nowMicros()

	for _, srv := range p.Servers {
		p.RecordFailure(srv, now)
	}

	_, err := p.Idx([]byte("anything"), now)
	assert.Error(t, err, "expected NoServerAvailable once every server is ejected")
}
