package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialNoop() (ConnIO, error) { return noopIO{}, nil }

type noopIO struct{}

func (noopIO) Close() error { return nil }

// S3: ejection and retry. Two consecutive failures eject the server;
// a probe before the retry deadline is not yet due, and exactly one
// probe after it recovers the server.
func TestEjectionAndRetry(t *testing.T) {
	s := New(0, 0, "a:1:1", nil, 1)
	policy := EjectionPolicy{AutoEjectHosts: true, FailureLimit: 2, RetryTimeoutMicros: 30_000_000}

	now := int64(1_000_000)
	assert.False(t, s.RecordFailure(policy, now), "should not eject after a single failure")
	assert.True(t, s.Live(now), "server should still be live after one failure")

	now += 10
	assert.True(t, s.RecordFailure(policy, now), "expected ejection on second consecutive failure")
	assert.False(t, s.Live(now), "server should be dead immediately after ejection")

	beforeDeadline := now + 1
	assert.False(t, s.Probe(policy, beforeDeadline, true), "probe before next_retry should be a no-op, not a recovery")

	atDeadline := s.NextRetry
	assert.True(t, s.Probe(policy, atDeadline, true), "probe at next_retry with a successful attempt should recover the server")
	assert.True(t, s.Live(atDeadline), "server should be live again after a successful probe")
	assert.Equal(t, 0, s.FailureCount, "failure count should reset on recovery")
}

func TestFailedProbeRescheduleLinear(t *testing.T) {
	s := New(0, 0, "a:1:1", nil, 1)
	policy := EjectionPolicy{AutoEjectHosts: true, FailureLimit: 1, RetryTimeoutMicros: 5_000_000}

	now := int64(0)
	s.RecordFailure(policy, now)
	firstDeadline := s.NextRetry

	assert.False(t, s.Probe(policy, firstDeadline, false), "failed probe must not report recovery")
	secondDeadline := s.NextRetry
	assert.Equal(t, firstDeadline+policy.RetryTimeoutMicros, secondDeadline, "failed probe should push next_retry out linearly")
}

func TestConnSelectionReusesIdleBeforeCreating(t *testing.T) {
	s := New(0, 0, "a:1:1", nil, 1)
	dials := 0
	dial := func() (ConnIO, error) {
		dials++
		return noopIO{}, nil
	}

	c1, err := s.Conn(2, dial)
	require.NoError(t, err)
	s.Release(c1)

	c2, err := s.Conn(2, dial)
	require.NoError(t, err)
	assert.Same(t, c1, c2, "expected idle connection to be reused")
	assert.Equal(t, 1, dials, "expected exactly one dial")
}

func TestConnSelectionRoundRobinsAtCap(t *testing.T) {
	s := New(0, 0, "a:1:1", nil, 1)
	dial := func() (ConnIO, error) { return noopIO{}, nil }

	c1, _ := s.Conn(2, dial)
	c2, _ := s.Conn(2, dial)
	assert.NotSame(t, c1, c2, "expected two distinct connections while under cap")

	// Both active (not idle): next call must round-robin, not dial a third.
	c3, err := s.Conn(2, dial)
	require.NoError(t, err)
	assert.True(t, c3 == c1 || c3 == c2, "expected round robin to return an existing connection")
}
