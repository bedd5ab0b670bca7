package quadric

// gradientMatrix precomputes the 4x4 cofactor expansion needed to solve
//
//	[ p0, 1 ][ g0 ]   [ a0 ]
//	[ p1, 1 ][ g1 ] = [ a1 ]
//	[ p2, 1 ][ g2 ]   [ a2 ]
//	[ n,  0 ][ d  ]   [ 0  ]
//
// for an attribute's gradient g (3 components) and offset d, given the
// three corner values a0, a1, a2. Because the left-hand matrix depends only
// on triangle geometry, this cofactor expansion is computed once per
// triangle and every attribute channel's gradient is then 4 dot products
// against it (see calcGradient below) instead of a fresh 4x4 solve each.
//
// Returns ok=false if the matrix is singular (degenerate triangle or a
// normal not matching the triangle's plane).
func gradientMatrix(p0, p1, p2, n Vec3) (m [12]float64, ok bool) {
	det201_01 := p0.X*p1.Y - p0.Y*p1.X
	det201_02 := p0.X*p1.Z - p0.Z*p1.X
	det201_03 := p0.X - p1.X
	det201_12 := p0.Y*p1.Z - p0.Z*p1.Y
	det201_13 := p0.Y - p1.Y
	det201_23 := p0.Z - p1.Z

	det3_201_013 := p2.X*det201_13 - p2.Y*det201_03 + det201_01
	det3_201_023 := p2.X*det201_23 - p2.Z*det201_03 + det201_02
	det3_201_123 := p2.Y*det201_23 - p2.Z*det201_13 + det201_12

	det := -det3_201_123*n.X + det3_201_023*n.Y - det3_201_013*n.Z
	if det < 0 {
		det = -det
	}
	if det < smallNumber {
		return m, false
	}

	signedDet := -det3_201_123*n.X + det3_201_023*n.Y - det3_201_013*n.Z
	invDet := 1.0 / signedDet

	det203_01 := p0.X*n.Y - p0.Y*n.X
	det203_02 := p0.X*n.Z - p0.Z*n.X
	det203_12 := p0.Y*n.Z - p0.Z*n.Y
	det203_03 := -n.X
	det203_13 := -n.Y
	det203_23 := -n.Z

	det213_01 := p1.X*n.Y - p1.Y*n.X
	det213_02 := p1.X*n.Z - p1.Z*n.X
	det213_12 := p1.Y*n.Z - p1.Z*n.Y
	det213_03 := -n.X
	det213_13 := -n.Y
	det213_23 := -n.Z

	det3_203_012 := p2.X*det203_12 - p2.Y*det203_02 + p2.Z*det203_01
	det3_203_013 := p2.X*det203_13 - p2.Y*det203_03 + det203_01
	det3_203_023 := p2.X*det203_23 - p2.Z*det203_03 + det203_02
	det3_203_123 := p2.Y*det203_23 - p2.Z*det203_13 + det203_12

	det3_213_012 := p2.X*det213_12 - p2.Y*det213_02 + p2.Z*det213_01
	det3_213_013 := p2.X*det213_13 - p2.Y*det213_03 + det213_01
	det3_213_023 := p2.X*det213_23 - p2.Z*det213_03 + det213_02
	det3_213_123 := p2.Y*det213_23 - p2.Z*det213_13 + det213_12

	det3_301_012 := n.X*det201_12 - n.Y*det201_02 + n.Z*det201_01
	det3_301_013 := n.X*det201_13 - n.Y*det201_03
	det3_301_023 := n.X*det201_23 - n.Z*det201_03
	det3_301_123 := n.Y*det201_23 - n.Z*det201_13

	m[0] = det3_213_123 * invDet
	m[1] = det3_213_023 * invDet
	m[2] = det3_213_013 * invDet
	m[3] = det3_213_012 * invDet

	m[4] = det3_203_123 * invDet
	m[5] = det3_203_023 * invDet
	m[6] = det3_203_013 * invDet
	m[7] = det3_203_012 * invDet

	m[8] = det3_301_123 * invDet
	m[9] = det3_301_023 * invDet
	m[10] = det3_301_013 * invDet
	m[11] = det3_301_012 * invDet

	return m, true
}

// calcGradient evaluates one attribute channel's gradient (grad[0..2]) and
// offset (grad[3]) from the precomputed gradientMatrix and the channel's
// three corner values.
func calcGradient(m [12]float64, a0, a1, a2 float64) (grad [4]float64) {
	grad[0] = -m[0]*a0 + m[4]*a1 + m[8]*a2
	grad[1] = +m[1]*a0 - m[5]*a1 - m[9]*a2
	grad[2] = -m[2]*a0 + m[6]*a1 + m[10]*a2
	grad[3] = +m[3]*a0 - m[7]*a1 - m[11]*a2
	return grad
}
