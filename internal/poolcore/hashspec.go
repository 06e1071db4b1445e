package poolcore

import (
	"github.com/mini0405/shardproxy/internal/continuum"
	"github.com/mini0405/shardproxy/internal/hashkit"
)

// HashSpec bundles a pool's hashing policy: which hash function feeds
// the continuum, which distribution the continuum uses, and the
// optional hash-tag delimiter pair.
type HashSpec struct {
	Algorithm    hashkit.Algorithm
	Distribution continuum.Distribution
	HasTag       bool
	TagLeft      byte
	TagRight     byte
}
