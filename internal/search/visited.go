package search

// visited is a dense, preallocated-per-call seen-set sized to the node
// count visible at the start of a search (spec §4.6 "zero allocation in
// hot path": "a dense visited filter (bit array or byte array of size
// N_g)").
type visited []bool

func newVisited(n uint64) visited { return make(visited, n) }

func (v visited) seen(id uint64) bool { return v[id] }
func (v visited) mark(id uint64)      { v[id] = true }
