package simplify

import (
	"math"

	"github.com/veltanox/vtengine/llist"
	"github.com/veltanox/vtengine/quadric"
	"github.com/veltanox/vtengine/xhash"
	"github.com/veltanox/vtengine/xheap"
)

// Simplifier owns a mesh's SoA vertex/triangle/edge arrays and drives
// greedy edge-collapse simplification over them.
type Simplifier struct {
	numAttributes int
	attrWeights   []float64

	sVerts []simpVert
	sTris  []simpTri
	edges  []simpEdge

	edgeHash *xhash.Table // key: hashEdge(v0,v1) -> edge index
	edgeHeap *xheap.Heap[float64]

	numLiveVerts int
	numLiveTris  int

	vertQuadricValid []bool
	vertQuadric      []quadric.AttrQuadric

	edgeQuadricValid []bool
	edgeQuadric      []quadric.Quadric
}

// New builds a Simplifier over verts/indexes (indexes is a flat list of
// vertex-index triangles, len(indexes) % 3 == 0), with numAttributes
// interpolated attribute channels per vertex.
func New(verts []Vertex, indexes []uint32, numAttributes int) *Simplifier {
	s := &Simplifier{
		numAttributes: numAttributes,
		attrWeights:   make([]float64, numAttributes),
	}
	for i := range s.attrWeights {
		s.attrWeights[i] = 1.0
	}

	s.sVerts = make([]simpVert, len(verts))
	for i, v := range verts {
		s.sVerts[i] = simpVert{pos: v.Position, attr: append([]float64(nil), v.Attributes...), next: uint32(i), prev: uint32(i)}
		s.sVerts[i].adj = llist.New[uint32]()
	}
	s.numLiveVerts = len(verts)

	numTris := len(indexes) / 3
	s.sTris = make([]simpTri, numTris)
	for i := 0; i < numTris; i++ {
		s.sTris[i].verts = [3]uint32{indexes[3*i], indexes[3*i+1], indexes[3*i+2]}
		for _, v := range s.sTris[i].verts {
			s.sVerts[v].adj.Add(uint32(i))
		}
	}
	s.numLiveTris = numTris

	s.vertQuadricValid = make([]bool, len(s.sVerts))
	s.vertQuadric = make([]quadric.AttrQuadric, len(s.sVerts))
	s.edgeQuadricValid = make([]bool, len(s.sVerts))
	s.edgeQuadric = make([]quadric.Quadric, len(s.sVerts))

	s.groupVerts()
	s.groupEdges()

	s.edgeHeap = xheap.New[float64](uint32(len(s.edges)))

	return s
}

// SetAttributeWeights overrides the per-channel weight used when summing
// attribute error into the edge-collapse cost. Defaults to 1.0 per channel.
func (s *Simplifier) SetAttributeWeights(weights []float64) {
	copy(s.attrWeights, weights)
}

// GetNumVerts returns the number of verts still live (not removed).
func (s *Simplifier) GetNumVerts() int { return s.numLiveVerts }

// GetNumTris returns the number of triangles still live (not removed).
func (s *Simplifier) GetNumTris() int { return s.numLiveTris }

// hashPoint quantizes a position to a bucket suitable for coincidence
// grouping; positions within float64 exact-equality are the only ones
// grouped (no epsilon fuzzing), matching typical shared-vertex-buffer
// dedup semantics rather than spatial welding.
func hashPoint(p quadric.Vec3) uint32 {
	h := uint32(2166136261)
	for _, f := range [3]float64{p.X, p.Y, p.Z} {
		bits := math.Float64bits(f)
		h ^= uint32(bits) ^ uint32(bits>>32)
		h *= 16777619
	}
	return h
}

func hashEdge(a, b uint32) uint32 {
	if a > b {
		a, b = b, a
	}
	h := uint32(2166136261)
	h = (h ^ a) * 16777619
	h = (h ^ b) * 16777619
	return h
}

// groupVerts links together verts that share an exact position into a
// sibling ring, so a collapse that moves one moves every UV/normal-seam
// copy of the same surface point with it.
func (s *Simplifier) groupVerts() {
	posHash := xhash.New(1024, uint32(len(s.sVerts)))
	for i := range s.sVerts {
		key := hashPoint(s.sVerts[i].pos)
		var head uint32 = invalidIndex
		for j := posHash.First(key); posHash.IsValid(j); j = posHash.Next(j) {
			if s.sVerts[j].pos == s.sVerts[i].pos {
				head = j
				break
			}
		}
		posHash.Add(key, uint32(i))
		if head == invalidIndex {
			continue
		}
		// splice i into head's ring
		tail := s.sVerts[head].prev
		s.sVerts[head].prev = uint32(i)
		s.sVerts[i].next = head
		s.sVerts[i].prev = tail
		s.sVerts[tail].next = uint32(i)
	}
}

// groupRep returns the lowest-index member of v's sibling ring, used as
// the canonical identity for edge keys and cost sharing.
func (s *Simplifier) groupRep(v uint32) uint32 {
	rep := v
	for i := s.sVerts[v].next; i != v; i = s.sVerts[i].next {
		if i < rep {
			rep = i
		}
	}
	return rep
}

// ringEach calls fn for every vertex sharing v's position (including v).
func (s *Simplifier) ringEach(v uint32, fn func(uint32)) {
	fn(v)
	for i := s.sVerts[v].next; i != v; i = s.sVerts[i].next {
		fn(i)
	}
}

// groupEdges walks every live triangle's three edges and builds the
// deduplicated edge list, keyed by the group representatives of its two
// endpoints so a UV seam's two edge copies collapse into one entry.
func (s *Simplifier) groupEdges() {
	s.edgeHash = xhash.New(1024, 0)
	find := func(a, b uint32) int {
		ra, rb := s.groupRep(a), s.groupRep(b)
		key := hashEdge(ra, rb)
		for i := s.edgeHash.First(key); s.edgeHash.IsValid(i); i = s.edgeHash.Next(i) {
			e := &s.edges[i]
			er0, er1 := s.groupRep(e.v0), s.groupRep(e.v1)
			if (er0 == ra && er1 == rb) || (er0 == rb && er1 == ra) {
				return int(i)
			}
		}
		return -1
	}
	add := func(a, b uint32) {
		if find(a, b) >= 0 {
			return
		}
		idx := uint32(len(s.edges))
		s.edges = append(s.edges, simpEdge{v0: a, v1: b})
		key := hashEdge(s.groupRep(a), s.groupRep(b))
		s.edgeHash.Add(key, idx)
	}
	for _, tri := range s.sTris {
		add(tri.verts[0], tri.verts[1])
		add(tri.verts[1], tri.verts[2])
		add(tri.verts[2], tri.verts[0])
	}
}

// countEdgeTris returns how many live triangles reference both endpoints
// of edge (a, b) — 2 for an interior edge, 1 for a boundary edge.
func (s *Simplifier) countEdgeTris(a, b uint32) int {
	count := 0
	seen := map[uint32]bool{}
	s.ringEach(a, func(av uint32) {
		s.sVerts[av].adj.Each(func(ti uint32) {
			if seen[ti] {
				return
			}
			t := &s.sTris[ti]
			if t.removed() {
				return
			}
			hasB := false
			s.ringEach(b, func(bv uint32) {
				if t.hasVertex(bv) {
					hasB = true
				}
			})
			if hasB {
				seen[ti] = true
				count++
			}
		})
	})
	return count
}

// SetBoundaryLocked locks every edge (and its endpoint groups) that is
// used by exactly one live triangle, so the mesh's open boundary never
// erodes under simplification.
func (s *Simplifier) SetBoundaryLocked() {
	for i := range s.edges {
		e := &s.edges[i]
		if s.countEdgeTris(e.v0, e.v1) == 1 {
			e.flags |= flagLocked
			s.ringEach(e.v0, func(v uint32) { s.sVerts[v].flags |= flagLocked })
			s.ringEach(e.v1, func(v uint32) { s.sVerts[v].flags |= flagLocked })
		}
	}
}
