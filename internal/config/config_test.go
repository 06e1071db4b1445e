package config

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mini0405/shardproxy/internal/poolcore"
)

func fakeResolve(hostport string) (net.Addr, error) {
	return &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 1}, nil
}

func TestValidateRejectsMissingListenAddr(t *testing.T) {
	r := Record{Name: "p"}
	assert.ErrorIs(t, r.Validate(), poolcore.ErrConfigInvalid)
}

func TestValidateAllowsZeroWeightUnderKetama(t *testing.T) {
	r := Record{
		Name:       "p",
		ListenAddr: ":1",
		Servers:    []ServerRecord{{Host: "a", Port: 1, Weight: 0}},
	}
	assert.NoError(t, r.Validate(), "ketama should tolerate weight 0")
}

func TestValidateRejectsZeroWeightUnderModula(t *testing.T) {
	r := Record{
		Name:         "p",
		ListenAddr:   ":1",
		Distribution: "modula",
		Servers:      []ServerRecord{{Host: "a", Port: 1, Weight: 0}},
	}
	assert.ErrorIs(t, r.Validate(), poolcore.ErrConfigInvalid, "zero weight under modula")
}

func TestBuildPoolAppliesDefaults(t *testing.T) {
	r := Record{
		Name:       "p",
		ListenAddr: ":1",
		Servers:    []ServerRecord{{Host: "a", Port: 1}},
	}
	p, err := BuildPool(0, r, fakeResolve)
	require.NoError(t, err)
	assert.Equal(t, 1, p.MaxServerConns, "expected default server_connections=1")
	require.Len(t, p.Servers, 1)
	assert.Equal(t, 1, p.Servers[0].Weight, "expected a default weight of 1")
}

func TestBuildPoolsRejectsDuplicateNames(t *testing.T) {
	records := []Record{
		{Name: "p", ListenAddr: ":1", Servers: []ServerRecord{{Host: "a", Port: 1, Weight: 1}}},
		{Name: "p", ListenAddr: ":2", Servers: []ServerRecord{{Host: "b", Port: 2, Weight: 1}}},
	}
	_, err := BuildPools(records, fakeResolve)
	assert.ErrorIs(t, err, poolcore.ErrConfigInvalid, "duplicate pool name")
}
