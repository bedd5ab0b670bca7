package simplify

// InitCosts computes every edge's initial collapse cost and seeds the
// priority heap. Must be called once before the first SimplifyMesh call
// (New does not do this itself, so callers can adjust attribute weights or
// call SetBoundaryLocked first).
func (s *Simplifier) InitCosts() {
	s.edgeHeap.Clear()
	for i := range s.edges {
		if s.edges[i].removed() {
			continue
		}
		cost := s.ComputeEdgeCollapseCost(uint32(i))
		s.edgeHeap.Add(cost, uint32(i))
	}
}

// SimplifyMesh greedily collapses the cheapest live edge until the live
// triangle count reaches minTris or the cheapest remaining edge costs more
// than maxErrorLimit, whichever happens first. Returns the cost of the
// last collapse performed, or 0 if none were.
func (s *Simplifier) SimplifyMesh(maxErrorLimit float64, minTris int) float64 {
	var lastCost float64
	for s.numLiveTris > minTris && s.edgeHeap.Num() > 0 {
		top := s.edgeHeap.Top()
		cost := s.edgeHeap.GetKey(top)
		if cost >= LockCost || cost > maxErrorLimit {
			break
		}
		s.edgeHeap.Pop()
		if s.edges[top].removed() {
			continue
		}
		s.Collapse(top)
		lastCost = cost
	}
	return lastCost
}

// OutputMesh compacts the live verts and triangles into dense output
// arrays, remapping indices accordingly. Removed verts/triangles are
// dropped entirely; sibling-ring copies that survive (distinct UV/normal
// wedges sharing a collapsed position) remain as separate output verts.
func (s *Simplifier) OutputMesh() ([]Vertex, []uint32) {
	remap := make([]uint32, len(s.sVerts))
	verts := make([]Vertex, 0, s.numLiveVerts)
	for i := range s.sVerts {
		if s.sVerts[i].removed() {
			remap[i] = invalidIndex
			continue
		}
		remap[i] = uint32(len(verts))
		verts = append(verts, Vertex{
			Position:   s.sVerts[i].pos,
			Attributes: append([]float64(nil), s.sVerts[i].attr...),
		})
	}

	indexes := make([]uint32, 0, s.numLiveTris*3)
	for i := range s.sTris {
		t := &s.sTris[i]
		if t.removed() {
			continue
		}
		indexes = append(indexes, remap[t.verts[0]], remap[t.verts[1]], remap[t.verts[2]])
	}

	return verts, indexes
}
