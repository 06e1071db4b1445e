package continuum

// buildModula emits exactly one entry per server slot, including dead
// ones, with Hash set to the slot index. Lookup then computes
// H(key) mod nserver_continuum over this full slot set.
func buildModula(servers []WeightedServer) []Point {
	points := make([]Point, 0, len(servers))
	for i, s := range servers {
		points = append(points, Point{ServerIndex: s.Index, Hash: uint32(i)})
	}
	return points
}

// buildRandom has the same shape as modula but only over live servers;
// lookup picks uniformly at random and ignores Hash entirely.
func buildRandom(servers []WeightedServer) []Point {
	var points []Point
	for _, s := range servers {
		if s.Live {
			points = append(points, Point{ServerIndex: s.Index, Hash: uint32(len(points))})
		}
	}
	return points
}
