package simplify

import (
	"testing"

	"github.com/veltanox/vtengine/quadric"
)

func cubeMesh() ([]Vertex, []uint32) {
	p := func(x, y, z float64) Vertex { return Vertex{Position: quadric.Vec3{X: x, Y: y, Z: z}} }
	verts := []Vertex{
		p(0, 0, 0), // 0
		p(1, 0, 0), // 1
		p(1, 1, 0), // 2
		p(0, 1, 0), // 3
		p(0, 0, 1), // 4
		p(1, 0, 1), // 5
		p(1, 1, 1), // 6
		p(0, 1, 1), // 7
	}
	indexes := []uint32{
		0, 3, 2, 0, 2, 1, // bottom
		4, 5, 6, 4, 6, 7, // top
		0, 1, 5, 0, 5, 4, // front
		3, 6, 2, 3, 7, 6, // back
		0, 7, 3, 0, 4, 7, // left
		1, 2, 6, 1, 6, 5, // right
	}
	return verts, indexes
}

func TestCubeHasExpectedTopology(t *testing.T) {
	verts, indexes := cubeMesh()
	s := New(verts, indexes, 0)
	if s.GetNumVerts() != 8 {
		t.Fatalf("GetNumVerts() = %d, want 8", s.GetNumVerts())
	}
	if s.GetNumTris() != 12 {
		t.Fatalf("GetNumTris() = %d, want 12", s.GetNumTris())
	}
	if len(s.edges) != 18 {
		t.Fatalf("len(edges) = %d, want 18", len(s.edges))
	}
}

// Scenario D: collapsing an interior edge of a closed cube removes exactly
// the two triangles sharing it, leaving 10 tris and 7 verts.
func TestCollapseInteriorEdgeOnCube(t *testing.T) {
	verts, indexes := cubeMesh()
	s := New(verts, indexes, 0)

	var diag uint32 = invalidIndex
	for i, e := range s.edges {
		if (e.v0 == 0 && e.v1 == 2) || (e.v0 == 2 && e.v1 == 0) {
			diag = uint32(i)
		}
	}
	if diag == invalidIndex {
		t.Fatal("expected to find the bottom-face diagonal edge 0-2")
	}
	if s.countEdgeTris(s.edges[diag].v0, s.edges[diag].v1) != 2 {
		t.Fatal("edge 0-2 should be an interior edge shared by two triangles")
	}

	s.Collapse(diag)

	if s.GetNumTris() != 10 {
		t.Fatalf("GetNumTris() after collapse = %d, want 10", s.GetNumTris())
	}
	if s.GetNumVerts() != 7 {
		t.Fatalf("GetNumVerts() after collapse = %d, want 7", s.GetNumVerts())
	}
}

func TestSimplifyMeshRespectsMinTris(t *testing.T) {
	verts, indexes := cubeMesh()
	s := New(verts, indexes, 0)
	s.InitCosts()
	s.SimplifyMesh(LockCost, 6)
	if s.GetNumTris() < 6 {
		t.Fatalf("GetNumTris() = %d, want >= 6 (minTris bound)", s.GetNumTris())
	}
}

// a 3x3 grid of verts (8 boundary, 1 interior) split into 8 triangles.
func gridMesh() ([]Vertex, []uint32) {
	p := func(x, y float64) Vertex { return Vertex{Position: quadric.Vec3{X: x, Y: y, Z: 0}} }
	verts := []Vertex{
		p(0, 0), p(1, 0), p(2, 0), // 0,1,2
		p(0, 1), p(1, 1), p(2, 1), // 3,4,5
		p(0, 2), p(1, 2), p(2, 2), // 6,7,8
	}
	quad := func(a, b, c, d uint32) []uint32 { return []uint32{a, b, c, a, c, d} }
	var indexes []uint32
	indexes = append(indexes, quad(0, 1, 4, 3)...)
	indexes = append(indexes, quad(1, 2, 5, 4)...)
	indexes = append(indexes, quad(3, 4, 7, 6)...)
	indexes = append(indexes, quad(4, 5, 8, 7)...)
	return verts, indexes
}

// Scenario E: locking every boundary vertex must prevent any collapse that
// touches the boundary; here every vertex but the center one is on the
// boundary, so no collapse should occur at all.
func TestLockedBoundaryNeverCollapses(t *testing.T) {
	verts, indexes := gridMesh()
	s := New(verts, indexes, 0)
	s.SetBoundaryLocked()

	startPositions := make([]quadric.Vec3, len(s.sVerts))
	for i := range s.sVerts {
		startPositions[i] = s.sVerts[i].pos
	}

	s.InitCosts()
	s.SimplifyMesh(LockCost, 0)

	if s.GetNumTris() != 8 {
		t.Fatalf("GetNumTris() = %d, want 8 (no collapse should succeed)", s.GetNumTris())
	}
	if s.GetNumVerts() != 9 {
		t.Fatalf("GetNumVerts() = %d, want 9 (no collapse should succeed)", s.GetNumVerts())
	}
	for i := range s.sVerts {
		if s.sVerts[i].removed() {
			t.Fatalf("vertex %d was removed despite full boundary lock", i)
		}
		if s.sVerts[i].pos != startPositions[i] {
			t.Fatalf("vertex %d moved from %v to %v despite full boundary lock", i, startPositions[i], s.sVerts[i].pos)
		}
	}
}

func TestOutputMeshCompactsIndices(t *testing.T) {
	verts, indexes := cubeMesh()
	s := New(verts, indexes, 0)
	s.InitCosts()
	s.SimplifyMesh(LockCost, 10)

	outVerts, outIndexes := s.OutputMesh()
	if len(outVerts) != s.GetNumVerts() {
		t.Fatalf("len(outVerts) = %d, want %d", len(outVerts), s.GetNumVerts())
	}
	if len(outIndexes) != s.GetNumTris()*3 {
		t.Fatalf("len(outIndexes) = %d, want %d", len(outIndexes), s.GetNumTris()*3)
	}
	for _, idx := range outIndexes {
		if int(idx) >= len(outVerts) {
			t.Fatalf("output index %d out of range (len(outVerts)=%d)", idx, len(outVerts))
		}
	}
}

func TestBoundaryLockedEdgesReportLockCost(t *testing.T) {
	verts, indexes := gridMesh()
	s := New(verts, indexes, 0)
	s.SetBoundaryLocked()
	for i := range s.edges {
		if got := s.ComputeEdgeCollapseCost(uint32(i)); got != LockCost {
			t.Errorf("edge %d (%d-%d) cost = %v, want LockCost (every vertex but the center is boundary-locked)", i, s.edges[i].v0, s.edges[i].v1, got)
		}
	}
}
