package quadric

import (
	"math"
	"testing"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestDegenerateTriangleIsZeroQuadric(t *testing.T) {
	q := New(Vec3{0, 0, 0}, Vec3{0, 0, 0}, Vec3{0, 0, 0})
	if q != (Quadric{}) {
		t.Fatalf("expected zero quadric for degenerate triangle, got %+v", q)
	}
	if got := q.Evaluate(Vec3{5, 5, 5}); got != 0 {
		t.Fatalf("zero quadric should evaluate to 0 everywhere, got %v", got)
	}
}

func TestTriangleQuadricExactAtVertices(t *testing.T) {
	p0 := Vec3{0, 0, 0}
	p1 := Vec3{1, 0, 0}
	p2 := Vec3{0, 1, 0}
	q := New(p0, p1, p2)

	for _, p := range []Vec3{p0, p1, p2, {0.5, 0.5, 0}} {
		if got := q.Evaluate(p); !almostEqual(got, 0, 1e-9) {
			t.Errorf("Evaluate(%v) = %v, want ~0 (point lies in the triangle's plane)", p, got)
		}
	}

	// A point off the plane must have strictly positive error.
	if got := q.Evaluate(Vec3{0, 0, 1}); got <= 0 {
		t.Errorf("Evaluate off-plane point = %v, want > 0", got)
	}
}

func TestQuadricAddIsIdempotentWithZero(t *testing.T) {
	q := New(Vec3{0, 0, 0}, Vec3{2, 0, 0}, Vec3{0, 3, 0})
	before := q
	var zero Quadric
	q.Add(zero)
	if q != before {
		t.Fatalf("adding the zero quadric changed the value: %+v vs %+v", q, before)
	}
}

func TestBoundaryQuadricRejectsUnnormalizedFaceNormal(t *testing.T) {
	q := NewBoundary(Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 0, 5}, 1.0)
	if q != (Quadric{}) {
		t.Fatalf("expected zero quadric for unnormalized face normal, got %+v", q)
	}
}

func TestBoundaryQuadricHasNoAreaContribution(t *testing.T) {
	q := NewBoundary(Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 1, 0}, 1.0)
	if q.A != 0 {
		t.Fatalf("boundary quadric A = %v, want 0 (no attribute contribution)", q.A)
	}
}

func TestAttrQuadricZeroWeightChannelStaysZero(t *testing.T) {
	p0, p1, p2 := Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 1, 0}
	attr0 := []float64{1, 10}
	attr1 := []float64{2, 20}
	attr2 := []float64{3, 30}
	weights := []float64{1, 0}
	q := NewAttr(p0, p1, p2, attr0, attr1, attr2, weights)
	if q.G[1] != ([3]float64{}) || q.D[1] != 0 {
		t.Fatalf("zero-weight channel should stay zero, got G=%v D=%v", q.G[1], q.D[1])
	}
}

func TestAttrQuadricRecoversLinearAttribute(t *testing.T) {
	p0, p1, p2 := Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 1, 0}
	// attribute channel 0 equals the point's X coordinate everywhere in the
	// plane z=0.
	attr0 := []float64{0}
	attr1 := []float64{1}
	attr2 := []float64{0}
	weights := []float64{1}
	q := NewAttr(p0, p1, p2, attr0, attr1, attr2, weights)

	mid := Vec3{0.5, 0.25, 0}
	got := q.CalcAttributes(mid, weights)
	if !almostEqual(got[0], mid.X, 1e-6) {
		t.Fatalf("CalcAttributes at %v = %v, want ~%v", mid, got[0], mid.X)
	}
}

func TestOptimizerSinglePlaneQuadricIsSingular(t *testing.T) {
	// A lone planar quadric constrains only the distance to its plane, so
	// the 3x3 position system (no volume term contributed by a plain
	// Quadric) is rank-deficient and Optimize must report failure rather
	// than fabricate an answer.
	q := New(Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 1, 0})
	opt := NewOptimizer()
	opt.AddQuadric(q)
	if _, ok := opt.Optimize(); ok {
		t.Fatal("expected Optimize to fail for a single plane constraint with no volume term")
	}
}

func TestOptimizerCornerOfThreePlanesFindsOrigin(t *testing.T) {
	// Three mutually perpendicular planes through the origin (x=0, y=0,
	// z=0): the unique point with zero error on all three is the origin.
	// Each triangle also contributes its own volume-preservation term,
	// so the solve goes through the volume-augmented 4x4 system.
	triX := NewAttr(Vec3{0, 0, 0}, Vec3{0, 1, 0}, Vec3{0, 0, 1}, nil, nil, nil, nil)
	triY := NewAttr(Vec3{0, 0, 0}, Vec3{0, 0, 1}, Vec3{1, 0, 0}, nil, nil, nil, nil)
	triZ := NewAttr(Vec3{0, 0, 0}, Vec3{1, 0, 0}, Vec3{0, 1, 0}, nil, nil, nil, nil)

	opt := NewOptimizer()
	opt.AddAttrQuadric(triX)
	opt.AddAttrQuadric(triY)
	opt.AddAttrQuadric(triZ)

	p, ok := opt.Optimize()
	if !ok {
		t.Fatal("expected a well-conditioned solve for a three-plane corner")
	}
	if !almostEqual(p.X, 0, 1e-6) || !almostEqual(p.Y, 0, 1e-6) || !almostEqual(p.Z, 0, 1e-6) {
		t.Fatalf("Optimize() = %v, want ~origin", p)
	}
}

func TestEvaluateIsAlwaysFinite(t *testing.T) {
	q := New(Vec3{0, 0, 0}, Vec3{3, 0, 0}, Vec3{0, 4, 0})
	for _, p := range []Vec3{{1e6, -1e6, 1e6}, {0, 0, 0}, {-1, -1, -1}} {
		if v := q.Evaluate(p); math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("Evaluate(%v) = %v, want finite", p, v)
		}
	}
}
