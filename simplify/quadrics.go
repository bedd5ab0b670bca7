package simplify

import "github.com/veltanox/vtengine/quadric"

// triAttrQuadric builds the attributed quadric for triangle ti, attribute
// weights applied.
func (s *Simplifier) triAttrQuadric(ti uint32) quadric.AttrQuadric {
	t := &s.sTris[ti]
	v0, v1, v2 := &s.sVerts[t.verts[0]], &s.sVerts[t.verts[1]], &s.sVerts[t.verts[2]]
	return quadric.NewAttr(v0.pos, v1.pos, v2.pos, v0.attr, v1.attr, v2.attr, s.attrWeights)
}

// GetQuadric returns the summed attributed quadric of every triangle
// adjacent to v's sibling ring (so UV/normal-seam copies of one surface
// point share a single quadric), cached until invalidated.
func (s *Simplifier) GetQuadric(v uint32) quadric.AttrQuadric {
	rep := s.groupRep(v)
	if s.vertQuadricValid[rep] {
		return s.vertQuadric[rep]
	}

	var q quadric.AttrQuadric
	q.G = make([][3]float64, s.numAttributes)
	q.D = make([]float64, s.numAttributes)

	seen := map[uint32]bool{}
	s.ringEach(v, func(rv uint32) {
		s.sVerts[rv].adj.Each(func(ti uint32) {
			if seen[ti] || s.sTris[ti].removed() {
				return
			}
			seen[ti] = true
			q.Add(s.triAttrQuadric(ti))
		})
	})

	s.vertQuadric[rep] = q
	s.vertQuadricValid[rep] = true
	return q
}

// GetEdgeQuadric returns the summed boundary-edge quadric contribution
// for every boundary edge touching v's sibling ring, cached until
// invalidated. Interior verts (no boundary edges) get the zero quadric.
func (s *Simplifier) GetEdgeQuadric(v uint32) quadric.Quadric {
	rep := s.groupRep(v)
	if s.edgeQuadricValid[rep] {
		return s.edgeQuadric[rep]
	}

	var q quadric.Quadric
	seen := map[uint32]bool{}
	s.ringEach(v, func(rv uint32) {
		s.sVerts[rv].adj.Each(func(ti uint32) {
			t := &s.sTris[ti]
			if t.removed() {
				return
			}
			for k := 0; k < 3; k++ {
				a, b := t.verts[k], t.verts[(k+1)%3]
				if !(a == rv || b == rv) {
					continue
				}
				if seen[hashEdge(a, b)] {
					continue
				}
				if s.countEdgeTris(a, b) != 1 {
					continue
				}
				seen[hashEdge(a, b)] = true
				other := thirdVertex(t, a, b)
				faceNormal := triNormal(s.sVerts[a].pos, s.sVerts[b].pos, s.sVerts[other].pos)
				q.Add(quadric.NewBoundary(s.sVerts[a].pos, s.sVerts[b].pos, faceNormal, 1.0))
			}
		})
	})

	s.edgeQuadric[rep] = q
	s.edgeQuadricValid[rep] = true
	return q
}

func thirdVertex(t *simpTri, a, b uint32) uint32 {
	for _, v := range t.verts {
		if v != a && v != b {
			return v
		}
	}
	return t.verts[0]
}

func triNormal(p0, p1, p2 quadric.Vec3) quadric.Vec3 {
	n := p2.Sub(p0).Cross(p1.Sub(p0))
	length := n.Length()
	if length == 0 {
		return quadric.Vec3{}
	}
	return n.Scale(1.0 / length)
}

// invalidateVertexCache drops cached quadrics for v's sibling ring.
func (s *Simplifier) invalidateVertexCache(v uint32) {
	rep := s.groupRep(v)
	s.vertQuadricValid[rep] = false
	s.edgeQuadricValid[rep] = false
}
