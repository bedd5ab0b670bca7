package simplify

import "github.com/veltanox/vtengine/quadric"

// candidateCost is the result of evaluating one candidate collapse point.
type candidateCost struct {
	pos   quadric.Vec3
	attrs []float64
	cost  float64
}

// computeCollapse finds the best replacement point for edge ei (via the
// Schur-complement optimizer, falling back to the cheaper of the edge's two
// endpoints and their midpoint when the optimizer's system is singular),
// and rejects the collapse if moving either endpoint's ring to that point
// would flip one of its surviving adjacent triangles past FlipCosThreshold.
func (s *Simplifier) computeCollapse(ei uint32) (candidateCost, bool) {
	e := &s.edges[ei]
	if e.locked() {
		return candidateCost{}, false
	}
	endpointLocked := false
	s.ringEach(e.v0, func(v uint32) {
		if s.sVerts[v].locked() {
			endpointLocked = true
		}
	})
	s.ringEach(e.v1, func(v uint32) {
		if s.sVerts[v].locked() {
			endpointLocked = true
		}
	})
	if endpointLocked {
		return candidateCost{}, false
	}

	qv := s.GetQuadric(e.v0)
	qv.Add(s.GetQuadric(e.v1))
	qe := s.GetEdgeQuadric(e.v0)
	qe.Add(s.GetEdgeQuadric(e.v1))

	opt := quadric.NewOptimizer()
	opt.AddAttrQuadric(qv)
	opt.AddQuadric(qe)

	evaluate := func(p quadric.Vec3) candidateCost {
		attrs := qv.CalcAttributes(p, s.attrWeights)
		cost := qv.Evaluate(p, attrs, s.attrWeights) + qe.Evaluate(p)
		return candidateCost{pos: p, attrs: attrs, cost: cost}
	}

	var best candidateCost
	if p, ok := opt.Optimize(); ok {
		best = evaluate(p)
	} else {
		p0 := s.sVerts[e.v0].pos
		p1 := s.sVerts[e.v1].pos
		mid := p0.Add(p1).Scale(0.5)
		best = evaluate(p0)
		for _, c := range []candidateCost{evaluate(p1), evaluate(mid)} {
			if c.cost < best.cost {
				best = c
			}
		}
	}

	if s.collapseFlips(e.v0, e.v1, best.pos) || s.collapseFlips(e.v1, e.v0, best.pos) {
		return candidateCost{}, false
	}
	return best, true
}

// collapseFlips reports whether moving v's sibling ring to newPos (while
// discarding every triangle shared with other's ring, which degenerates in
// the collapse) would flip a surviving adjacent triangle past
// FlipCosThreshold.
func (s *Simplifier) collapseFlips(v, other uint32, newPos quadric.Vec3) bool {
	flips := false
	s.ringEach(v, func(rv uint32) {
		s.sVerts[rv].adj.Each(func(ti uint32) {
			t := &s.sTris[ti]
			if t.removed() {
				return
			}
			sharesOther := false
			s.ringEach(other, func(ov uint32) {
				if t.hasVertex(ov) {
					sharesOther = true
				}
			})
			if sharesOther {
				return
			}
			oldNormal := triNormal(s.sVerts[t.verts[0]].pos, s.sVerts[t.verts[1]].pos, s.sVerts[t.verts[2]].pos)
			var np [3]quadric.Vec3
			for i, vi := range t.verts {
				if vi == rv {
					np[i] = newPos
				} else {
					np[i] = s.sVerts[vi].pos
				}
			}
			newNormal := triNormal(np[0], np[1], np[2])
			if oldNormal.Dot(newNormal) < FlipCosThreshold {
				flips = true
			}
		})
	})
	return flips
}

// ComputeEdgeCollapseCost returns the cost of collapsing edge ei, or
// LockCost if the edge is locked or the collapse would flip a triangle.
func (s *Simplifier) ComputeEdgeCollapseCost(ei uint32) float64 {
	result, valid := s.computeCollapse(ei)
	if !valid {
		return LockCost
	}
	return result.cost
}

// edgesTouching returns the indices of every live edge referencing v or
// any member of v's sibling ring.
func (s *Simplifier) edgesTouching(v uint32) []uint32 {
	var out []uint32
	seen := map[uint32]bool{}
	s.ringEach(v, func(rv uint32) {
		for i := range s.edges {
			e := &s.edges[i]
			if e.removed() {
				continue
			}
			if (e.v0 == rv || e.v1 == rv) && !seen[uint32(i)] {
				seen[uint32(i)] = true
				out = append(out, uint32(i))
			}
		}
	})
	return out
}

// isRingMember reports whether x is in v's sibling ring.
func (s *Simplifier) isRingMember(v, x uint32) bool {
	found := false
	s.ringEach(v, func(rv uint32) {
		if rv == x {
			found = true
		}
	})
	return found
}

// Collapse merges edge ei's v1 endpoint (and its sibling ring) into v0
// (and its sibling ring) at the optimal replacement position (or at v0's
// own position and attributes when computeCollapse finds none), removing
// every triangle that degenerates in the process, and refreshes the
// collapse cost of every edge touching either endpoint.
func (s *Simplifier) Collapse(ei uint32) {
	e := s.edges[ei]
	v0, v1 := e.v0, e.v1

	result, valid := s.computeCollapse(ei)
	if !valid {
		result.pos = s.sVerts[v0].pos
		result.attrs = s.sVerts[v0].attr
	}

	dirty := map[uint32]bool{}
	for _, x := range s.edgesTouching(v0) {
		dirty[x] = true
	}
	for _, x := range s.edgesTouching(v1) {
		dirty[x] = true
	}

	// Move v0's ring to the optimal position/attributes.
	first := true
	s.ringEach(v0, func(rv uint32) {
		s.sVerts[rv].pos = result.pos
		if first {
			s.sVerts[rv].attr = result.attrs
			first = false
		}
	})

	// Retarget every triangle touching v1's ring onto v0, dropping any
	// that degenerate (now repeat a vertex).
	s.ringEach(v1, func(rv uint32) {
		s.sVerts[rv].adj.Each(func(ti uint32) {
			t := &s.sTris[ti]
			if t.removed() {
				return
			}
			t.replaceVertex(rv, v0)
			if t.verts[0] == t.verts[1] || t.verts[1] == t.verts[2] || t.verts[0] == t.verts[2] {
				t.flags |= flagRemoved
				s.numLiveTris--
				return
			}
			s.sVerts[v0].adj.Add(ti)
		})
		s.sVerts[rv].flags |= flagRemoved
		s.numLiveVerts--
	})

	// Retarget edges that referenced v1's ring onto v0; an edge that
	// becomes a v0-v0 self-loop is dropped outright.
	for i := range s.edges {
		edge := &s.edges[i]
		if edge.removed() {
			continue
		}
		if s.isRingMember(v1, edge.v0) {
			edge.v0 = v0
		}
		if s.isRingMember(v1, edge.v1) {
			edge.v1 = v0
		}
		if edge.v0 == edge.v1 {
			edge.flags |= flagRemoved
			if s.edgeHeap.Contains(uint32(i)) {
				s.edgeHeap.Remove(uint32(i))
			}
		}
	}

	s.invalidateVertexCache(v0)
	s.invalidateVertexCache(v1)

	s.edges[ei].flags |= flagRemoved
	if s.edgeHeap.Contains(ei) {
		s.edgeHeap.Remove(ei)
	}

	for x := range dirty {
		if s.edges[x].removed() {
			if s.edgeHeap.Contains(x) {
				s.edgeHeap.Remove(x)
			}
			continue
		}
		cost := s.ComputeEdgeCollapseCost(x)
		if s.edgeHeap.Contains(x) {
			s.edgeHeap.Update(cost, x)
		} else {
			s.edgeHeap.Add(cost, x)
		}
	}
}
