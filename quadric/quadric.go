// Package quadric implements the Hoppe error quadric used to drive
// edge-collapse decisions in mesh simplification: a symmetric quadratic
// form over position (and, in AttrQuadric, per-vertex attributes) whose
// minimum is the position that best preserves the original surface.
//
// [ Hoppe 1999, "New Quadric Metric for Simplifying Meshes with Appearance Attributes" ]
// [ Hoppe 2000, "Efficient minimization of new quadric metric for simplifying meshes with appearance attributes" ]
package quadric

// WeightByArea controls whether a triangle's quadric contribution is scaled
// by its area. Left true (matching the original's #define WEIGHT_BY_AREA 1)
// so a sliver triangle doesn't dominate the cost the same as a large one.
const WeightByArea = true

// Quadric is the position-only error quadric: a symmetric 3x3 matrix C, a
// vector b and a scalar c such that Evaluate(p) = p'Cp + 2b'p + c. Fields
// are exported because AttrQuadric embeds the identical terms and
// AttrOptimizer accumulates across both.
type Quadric struct {
	Nxx, Nyy, Nzz float64
	Nxy, Nxz, Nyz float64
	Dnx, Dny, Dnz float64
	D2            float64
	A             float64 // area (WeightByArea) or total weight
}

// New builds the quadric for the plane through triangle (p0, p1, p2),
// weighted by the triangle's area. Degenerate (zero-area) triangles produce
// the zero quadric.
func New(p0, p1, p2 Vec3) Quadric {
	n := p2.Sub(p0).Cross(p1.Sub(p0))
	length := normalizeSelf(&n)
	if length < smallNumber {
		return Quadric{}
	}

	area := 0.5 * length
	dist := -(n.X*p0.X + n.Y*p0.Y + n.Z*p0.Z)

	q := Quadric{
		Nxx: n.X * n.X, Nyy: n.Y * n.Y, Nzz: n.Z * n.Z,
		Nxy: n.X * n.Y, Nxz: n.X * n.Z, Nyz: n.Y * n.Z,
		Dnx: dist * n.X, Dny: dist * n.Y, Dnz: dist * n.Z,
		D2: dist * dist,
	}
	if WeightByArea {
		q.scale(area)
		q.A = area
	} else {
		q.A = 1.0
	}
	return q
}

// NewBoundary builds the quadric for an open mesh boundary edge (p0, p1),
// whose face normal is faceNormal and whose contribution is scaled by
// edgeWeight times the edge length. Boundary quadrics never carry an
// attribute contribution (A stays 0), matching the original: they exist to
// keep boundary silhouettes from eroding under simplification, not to
// preserve attribute continuity.
func NewBoundary(p0, p1, faceNormal Vec3, edgeWeight float64) Quadric {
	// THRESH_VECTOR_NORMALIZED in the original is 0.01.
	if l2 := faceNormal.LengthSquared(); l2 < 1.0-0.01 || l2 > 1.0+0.01 {
		return Quadric{}
	}

	edge := p1.Sub(p0)
	n := edge.Cross(faceNormal)
	length := normalizeSelf(&n)
	if length < smallNumber {
		return Quadric{}
	}

	dist := -(n.X*p0.X + n.Y*p0.Y + n.Z*p0.Z)
	weight := edgeWeight * edge.Length()

	q := Quadric{
		Nxx: weight * n.X * n.X, Nyy: weight * n.Y * n.Y, Nzz: weight * n.Z * n.Z,
		Nxy: weight * n.X * n.Y, Nxz: weight * n.X * n.Z, Nyz: weight * n.Y * n.Z,
		Dnx: weight * dist * n.X, Dny: weight * dist * n.Y, Dnz: weight * dist * n.Z,
		D2: weight * dist * dist,
		A:  0.0,
	}
	return q
}

func (q *Quadric) scale(s float64) {
	q.Nxx *= s
	q.Nyy *= s
	q.Nzz *= s
	q.Nxy *= s
	q.Nxz *= s
	q.Nyz *= s
	q.Dnx *= s
	q.Dny *= s
	q.Dnz *= s
	q.D2 *= s
}

// Zero resets q to the additive identity.
func (q *Quadric) Zero() {
	*q = Quadric{}
}

// Add accumulates other into q (the original's operator+=).
func (q *Quadric) Add(other Quadric) {
	q.Nxx += other.Nxx
	q.Nyy += other.Nyy
	q.Nzz += other.Nzz
	q.Nxy += other.Nxy
	q.Nxz += other.Nxz
	q.Nyz += other.Nyz
	q.Dnx += other.Dnx
	q.Dny += other.Dny
	q.Dnz += other.Dnz
	q.D2 += other.D2
	q.A += other.A
}

// Evaluate computes the quadric's error at point p: p'Cp + 2b'p + c.
func (q Quadric) Evaluate(p Vec3) float64 {
	x := p.X*q.Nxx + p.Y*q.Nxy + p.Z*q.Nxz
	y := p.X*q.Nxy + p.Y*q.Nyy + p.Z*q.Nyz
	z := p.X*q.Nxz + p.Y*q.Nyz + p.Z*q.Nzz

	vAv := p.X*x + p.Y*y + p.Z*z
	btv := p.X*q.Dnx + p.Y*q.Dny + p.Z*q.Dnz

	return vAv + 2.0*btv + q.D2
}
