// Package simplify implements greedy edge-collapse mesh simplification
// driven by the quadric error metric: repeatedly collapse the
// cheapest-to-remove edge (by quadric.AttrQuadric cost) until a triangle
// budget or error limit is reached.
//
// Unlike the original's pointer-linked TSimpVert/TSimpTri/TSimpEdge, every
// reference here is a dense index into the Simplifier's own slices — the
// original's class comment flags the pointer indirection as a known wart
// ("TODO move away from pointers and remove these functions"); this port
// takes that TODO.
package simplify

import (
	"github.com/veltanox/vtengine/llist"
	"github.com/veltanox/vtengine/quadric"
)

// Flag bits on simpVert/simpTri/simpEdge, mirroring ESimpElementFlags.
const (
	flagRemoved uint8 = 1 << 0
	flagMark1   uint8 = 1 << 1
	flagMark2   uint8 = 1 << 2
	flagLocked  uint8 = 1 << 3
)

// FlipCosThreshold is the minimum allowed cosine between a triangle's
// normal before and after a prospective collapse; collapses that would
// flip a triangle past this threshold are rejected.
const FlipCosThreshold = 0.0

// LockCost is the collapse cost assigned to edges that must never be
// collapsed (locked boundary edges, or edges whose collapse would flip a
// triangle) — large enough that such edges never reach the top of the heap
// while any cheaper, valid edge remains.
const LockCost = 1e10

// Vertex is the caller-facing vertex representation: a position plus a
// fixed-length vector of interpolated attributes (UVs, normals, vertex
// color channels — whatever the caller's attribute weights vector covers).
type Vertex struct {
	Position   quadric.Vec3
	Attributes []float64
}

const invalidIndex = ^uint32(0)

type simpVert struct {
	pos   quadric.Vec3
	attr  []float64
	next  uint32 // sibling ring: coincident-position verts (UV/normal seams)
	prev  uint32
	flags uint8
	adj   *llist.List[uint32] // adjacent live triangle indices
}

type simpTri struct {
	verts [3]uint32
	flags uint8
}

type simpEdge struct {
	v0, v1 uint32
	flags  uint8
}

func (v *simpVert) removed() bool { return v.flags&flagRemoved != 0 }
func (v *simpVert) locked() bool  { return v.flags&flagLocked != 0 }
func (t *simpTri) removed() bool  { return t.flags&flagRemoved != 0 }
func (e *simpEdge) removed() bool { return e.flags&flagRemoved != 0 }
func (e *simpEdge) locked() bool  { return e.flags&flagLocked != 0 }

func (t *simpTri) hasVertex(v uint32) bool {
	return t.verts[0] == v || t.verts[1] == v || t.verts[2] == v
}

func (t *simpTri) replaceVertex(oldV, newV uint32) {
	for i, v := range t.verts {
		if v == oldV {
			t.verts[i] = newV
		}
	}
}

