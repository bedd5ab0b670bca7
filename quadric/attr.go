package quadric

// AttrQuadric extends Quadric with a per-attribute linear gradient (G, D)
// and, optionally, a volume-preservation linear constraint (Nv, Dv). The
// attribute count is a runtime dimension (the slice length of G/D) rather
// than a compile-time template parameter: attribute counts vary per mesh
// (UVs, vertex color, custom channels), and Go generics have no way to
// parametrize by an integer constant the way the original's
// TQuadricAttr<NumAttributes> does.
type AttrQuadric struct {
	Quadric

	G [][3]float64
	D []float64

	// Volume-preservation constraint: keeps simplification from changing
	// the mesh's enclosed volume. Nv is zero-valued (and VolumeHint false)
	// for quadrics built without it, e.g. accumulated boundary contributions.
	Nv         Vec3
	Dv         float64
	VolumeHint bool
}

// NewAttr builds the attributed quadric for triangle (p0, p1, p2), with per
// corner attribute vectors attr0/attr1/attr2 (length numAttributes) and a
// per-channel weight. A zero weight for channel i disables that channel's
// contribution (G[i], D[i] stay zero) rather than dividing by it.
func NewAttr(p0, p1, p2 Vec3, attr0, attr1, attr2, weights []float64) AttrQuadric {
	numAttributes := len(weights)
	q := AttrQuadric{G: make([][3]float64, numAttributes), D: make([]float64, numAttributes)}

	n := p2.Sub(p0).Cross(p1.Sub(p0))
	length := normalizeSelf(&n)
	if length < smallNumber {
		return q
	}

	area := 0.5 * length
	dist := -(n.X*p0.X + n.Y*p0.Y + n.Z*p0.Z)

	q.Nxx, q.Nyy, q.Nzz = n.X*n.X, n.Y*n.Y, n.Z*n.Z
	q.Nxy, q.Nxz, q.Nyz = n.X*n.Y, n.X*n.Z, n.Y*n.Z
	q.Dnx, q.Dny, q.Dnz = dist*n.X, dist*n.Y, dist*n.Z
	q.D2 = dist * dist

	q.Nv = n.Scale(area / 3.0)
	q.Dv = dist * (area / 3.0)
	q.VolumeHint = true

	gradMatrix, invertible := gradientMatrix(p0, p1, p2, n)

	for i := 0; i < numAttributes; i++ {
		if weights[i] == 0 {
			continue
		}

		a0 := weights[i] * attr0[i]
		a1 := weights[i] * attr1[i]
		a2 := weights[i] * attr2[i]

		var grad [4]float64
		if !invertible {
			grad = [4]float64{0, 0, 0, (a0 + a1 + a2) / 3.0}
		} else {
			grad = calcGradient(gradMatrix, a0, a1, a2)
		}

		q.G[i] = [3]float64{grad[0], grad[1], grad[2]}
		q.D[i] = grad[3]

		q.Nxx += q.G[i][0] * q.G[i][0]
		q.Nyy += q.G[i][1] * q.G[i][1]
		q.Nzz += q.G[i][2] * q.G[i][2]
		q.Nxy += q.G[i][0] * q.G[i][1]
		q.Nxz += q.G[i][0] * q.G[i][2]
		q.Nyz += q.G[i][1] * q.G[i][2]

		q.Dnx += q.D[i] * q.G[i][0]
		q.Dny += q.D[i] * q.G[i][1]
		q.Dnz += q.D[i] * q.G[i][2]

		q.D2 += q.D[i] * q.D[i]
	}

	if WeightByArea {
		q.scale(area)
		for i := range q.G {
			q.G[i][0] *= area
			q.G[i][1] *= area
			q.G[i][2] *= area
			q.D[i] *= area
		}
		q.A = area
	} else {
		q.A = 1.0
	}

	return q
}

// Zero resets q to the additive identity, preserving NumAttributes.
func (q *AttrQuadric) Zero() {
	n := len(q.G)
	*q = AttrQuadric{G: make([][3]float64, n), D: make([]float64, n)}
}

// AddBase accumulates a position-only Quadric (e.g. a boundary-edge
// contribution, which never carries attributes) into q.
func (q *AttrQuadric) AddBase(other Quadric) {
	q.Quadric.Add(other)
}

// Add accumulates another AttrQuadric of the same attribute count into q.
func (q *AttrQuadric) Add(other AttrQuadric) {
	q.Quadric.Add(other.Quadric)
	for i := range q.G {
		q.G[i][0] += other.G[i][0]
		q.G[i][1] += other.G[i][1]
		q.G[i][2] += other.G[i][2]
		q.D[i] += other.D[i]
	}
	if other.VolumeHint {
		q.Nv = q.Nv.Add(other.Nv)
		q.Dv += other.Dv
		q.VolumeHint = true
	}
}

// Evaluate computes the quadric's error at (point, attributes), where
// attributes and weights both have length len(q.G).
func (q AttrQuadric) Evaluate(p Vec3, attributes, weights []float64) float64 {
	s := make([]float64, len(q.G))
	for i := range s {
		s[i] = weights[i] * attributes[i]
	}

	x := p.X*q.Nxx + p.Y*q.Nxy + p.Z*q.Nxz
	y := p.X*q.Nxy + p.Y*q.Nyy + p.Z*q.Nyz
	z := p.X*q.Nxz + p.Y*q.Nyz + p.Z*q.Nzz
	for i := range s {
		x -= q.G[i][0] * s[i]
		y -= q.G[i][1] * s[i]
		z -= q.G[i][2] * s[i]
	}

	vAv := p.X*x + p.Y*y + p.Z*z
	for i := range s {
		vAv += s[i] * (q.A*s[i] - q.G[i][0]*p.X - q.G[i][1]*p.Y - q.G[i][2]*p.Z)
	}

	btv := p.X*q.Dnx + p.Y*q.Dny + p.Z*q.Dnz
	for i := range s {
		btv -= q.D[i] * s[i]
	}

	return vAv + 2.0*btv + q.D2
}

// CalcAttributes back-solves the optimal attribute values at p from q,
// writing 0 for any channel whose weight is 0.
func (q AttrQuadric) CalcAttributes(p Vec3, weights []float64) []float64 {
	out := make([]float64, len(q.G))
	for i := range out {
		if weights[i] == 0 {
			continue
		}
		s := q.G[i][0]*p.X + q.G[i][1]*p.Y + q.G[i][2]*p.Z + q.D[i]
		out[i] = s / (q.A * weights[i])
	}
	return out
}
