// Package resolve caches host:port -> net.Addr lookups across reloads,
// so that a record whose host:port didn't change doesn't pay a fresh
// DNS resolution on every config reload.
package resolve

import (
	"net"

	lru "github.com/hashicorp/golang-lru/v2"
)

// defaultSize bounds the cache independent of how many pools a config
// declares; a proxy with thousands of distinct backends is unusual, and
// an unbounded cache would let stale entries from renamed backends
// accumulate forever.
const defaultSize = 4096

// Cache resolves host:port strings to net.Addr, memoizing successful
// resolutions.
type Cache struct {
	lru *lru.Cache[string, net.Addr]
}

// New creates a resolution cache sized for a typical deployment's
// backend fleet.
func New() *Cache {
	c, _ := lru.New[string, net.Addr](defaultSize)
	return &Cache{lru: c}
}

// Resolve returns the cached address for hostport, resolving and
// caching it on a miss. Resolution failures are never cached, since a
// transient DNS outage shouldn't poison the entry past it clearing.
func (c *Cache) Resolve(hostport string) (net.Addr, error) {
	if addr, ok := c.lru.Get(hostport); ok {
		return addr, nil
	}

	addr, err := net.ResolveTCPAddr("tcp", hostport)
	if err != nil {
		return nil, err
	}
	c.lru.Add(hostport, addr)
	return addr, nil
}

// Forget evicts hostport's cached resolution. The reload path does not
// call it; apart from this call, entries leave the cache only through
// LRU eviction.
func (c *Cache) Forget(hostport string) {
	c.lru.Remove(hostport)
}
