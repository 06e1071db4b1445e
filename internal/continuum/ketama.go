package continuum

import (
	"crypto/md5"
	"fmt"

	"github.com/mini0405/shardproxy/internal/hashkit"
)

// pointsPerHashStep and hashStepsPerWeightUnit make up ketama's
// 160-points-per-weight-unit budget: 40 MD5 digests, each yielding 4
// uint32s, for every weight-share unit.
const pointsPerHashStep = 4
const hashStepsPerWeightUnit = 40

// buildKetama generates 4*floor(40*weight*nlive/totalWeight) points per
// live server (160 per server when weights are equal), skipping dead
// servers entirely (libmemcached-compatible).
func buildKetama(hashFn hashkit.Algorithm, servers []WeightedServer) []Point {
	var totalWeight, nlive int
	for _, s := range servers {
		if s.Live {
			totalWeight += s.Weight
			nlive++
		}
	}
	if totalWeight == 0 || nlive == 0 {
		return nil
	}

	var points []Point
	for _, s := range servers {
		if !s.Live {
			continue
		}
		pct := float64(s.Weight) / float64(totalWeight)
		steps := int(pct * hashStepsPerWeightUnit * float64(nlive))
		for step := 0; step < steps; step++ {
			digest := md5.Sum([]byte(fmt.Sprintf("server-%d-%d", s.Index, step)))
			for k := 0; k < pointsPerHashStep; k++ {
				h := uint32(digest[k*4+3])<<24 | uint32(digest[k*4+2])<<16 |
					uint32(digest[k*4+1])<<8 | uint32(digest[k*4])
				points = append(points, Point{ServerIndex: s.Index, Hash: h})
			}
		}
	}
	return points
}
