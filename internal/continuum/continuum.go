// Package continuum builds and queries the key-hash to server-index
// mapping for one pool. A Continuum is an immutable value: rebuilding
// produces a new one, and readers never observe a partially-built state.
package continuum

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/mini0405/shardproxy/internal/hashkit"
)

// Distribution selects the continuum-building and lookup strategy.
type Distribution int

const (
	Ketama Distribution = iota
	Modula
	Random
)

func ParseDistribution(name string) (Distribution, error) {
	switch name {
	case "ketama":
		return Ketama, nil
	case "modula":
		return Modula, nil
	case "random":
		return Random, nil
	default:
		return 0, errors.New("continuum: unknown distribution " + name)
	}
}

// Point is one continuum entry: the server it maps to and the hash value
// it is keyed by. For Modula, Hash is the slot index; for Random it is
// unused at lookup time.
type Point struct {
	ServerIndex int
	Hash        uint32
}

// WeightedServer is the minimal view of a server the builder needs: its
// stable index, its configured weight, and whether it is currently live.
type WeightedServer struct {
	Index  int
	Weight int
	Live   bool
}

// Continuum is the sorted, immutable lookup structure for one pool.
type Continuum struct {
	dist    Distribution
	hashFn  hashkit.Algorithm
	points  []Point // sorted ascending by Hash, meaningless order for Random
	nslots  int     // total server slots considered at build time (live+dead)
	tagL    byte
	tagR    byte
	hasTag  bool
	nlive   int
}

// Len returns the number of continuum points (ncontinuum in spec terms).
func (c *Continuum) Len() int {
	if c == nil {
		return 0
	}
	return len(c.points)
}

// NServerContinuum returns nserver_continuum: the slot count modula uses,
// which counts live and dead servers alike. It is distinct from Len for
// ketama, where many points are generated per live server.
func (c *Continuum) NServerContinuum() int {
	if c == nil {
		return 0
	}
	return c.nslots
}

// Build constructs a new Continuum from the given servers under dist.
// hashFn hashes keys at lookup time; ketama's points are always derived
// from MD5, whatever hashFn is. tagLeft/tagRight configure
// the hash-tag delimiter pair; pass 0,0 (hasTag=false) to disable it.
func Build(dist Distribution, hashFn hashkit.Algorithm, servers []WeightedServer, hasTag bool, tagLeft, tagRight byte) *Continuum {
	c := &Continuum{dist: dist, hashFn: hashFn, nslots: len(servers), hasTag: hasTag, tagL: tagLeft, tagR: tagRight}

	for _, s := range servers {
		if s.Live {
			c.nlive++
		}
	}

	switch dist {
	case Ketama:
		c.points = buildKetama(hashFn, servers)
	case Modula:
		c.points = buildModula(servers)
	case Random:
		c.points = buildRandom(servers)
	}

	sort.Slice(c.points, func(i, j int) bool { return c.points[i].Hash < c.points[j].Hash })
	return c
}

// ErrNoServerAvailable is returned by Query when the chosen server is
// dead and the pool is configured to auto-eject.
var ErrNoServerAvailable = errors.New("continuum: no server available")

// Query resolves key to a server index. deadIndex reports, for a given
// server index, whether that server is currently ejected; when it
// returns true and autoEject is set, Query returns ErrNoServerAvailable.
func (c *Continuum) Query(key []byte, autoEject bool, deadIndex func(idx int) bool) (int, error) {
	tagged := key
	if c.hasTag {
		if t, ok := extractTag(key, c.tagL, c.tagR); ok {
			tagged = t
		}
	}

	idx, err := c.lookup(tagged)
	if err != nil {
		return 0, err
	}

	if autoEject && deadIndex != nil && deadIndex(idx) {
		return 0, ErrNoServerAvailable
	}
	return idx, nil
}

func (c *Continuum) lookup(key []byte) (int, error) {
	if len(c.points) == 0 {
		return 0, ErrNoServerAvailable
	}

	switch c.dist {
	case Random:
		return c.points[rand.Intn(len(c.points))].ServerIndex, nil
	case Modula:
		h := hashkit.Hash(c.hashFn, key)
		return c.points[int(h)%len(c.points)].ServerIndex, nil
	default: // Ketama
		h := hashkit.Hash(c.hashFn, key)
		i := sort.Search(len(c.points), func(i int) bool { return c.points[i].Hash >= h })
		if i >= len(c.points) {
			i = 0
		}
		return c.points[i].ServerIndex, nil
	}
}

// extractTag restricts hashing to the substring between the first
// occurrence of left and the first occurrence of right after it. Both
// delimiters must occur, in order, for the tag to apply.
func extractTag(key []byte, left, right byte) ([]byte, bool) {
	li := indexByte(key, left)
	if li < 0 {
		return nil, false
	}
	ri := indexByte(key[li+1:], right)
	if ri < 0 {
		return nil, false
	}
	start := li + 1
	end := start + ri
	if start >= end {
		return nil, false
	}
	return key[start:end], true
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
