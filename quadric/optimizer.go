package quadric

import "math"

// AttrOptimizer accumulates one or more AttrQuadric terms and solves for
// the position that minimizes their summed error: the Schur complement of
// the attribute block reduces the problem from (3+NumAttributes) unknowns
// to 3, then (optionally, if the accumulated volume constraint is well
// conditioned) a 4x4 system with the volume constraint as a fourth
// equation, otherwise a plain 3x3 system. Both are solved by explicit
// cofactor-expansion inverse rather than a general linear-algebra routine,
// matching the original — these are small, fixed-size, closed-form solves.
type AttrOptimizer struct {
	Quadric

	nv Vec3
	dv float64

	bbtxx, bbtyy, bbtzz float64
	bbtxy, bbtxz, bbtyz float64
	bdx, bdy, bdz       float64
}

// NewOptimizer returns an empty optimizer ready for AddQuadric calls.
func NewOptimizer() AttrOptimizer {
	return AttrOptimizer{}
}

// AddQuadric accumulates a position-only Quadric (no B/Bd contribution).
func (o *AttrOptimizer) AddQuadric(q Quadric) {
	o.Quadric.Add(q)
}

// AddAttrQuadric accumulates an AttrQuadric, including its attribute
// gradient terms (B*B' and B*d) and volume constraint.
func (o *AttrOptimizer) AddAttrQuadric(q AttrQuadric) {
	o.Quadric.Add(q.Quadric)

	if q.VolumeHint {
		o.nv = o.nv.Add(q.Nv)
		o.dv += q.Dv
	}

	for i := range q.G {
		g := q.G[i]
		o.bbtxx += g[0] * g[0]
		o.bbtyy += g[1] * g[1]
		o.bbtzz += g[2] * g[2]
		o.bbtxy += g[0] * g[1]
		o.bbtxz += g[0] * g[2]
		o.bbtyz += g[1] * g[2]

		o.bdx += g[0] * q.D[i]
		o.bdy += g[1] * q.D[i]
		o.bdz += g[2] * q.D[i]
	}
}

// Optimize solves for the position minimizing the accumulated error.
// Returns ok=false if the (possibly volume-augmented) system is singular,
// in which case the caller should fall back to a different candidate point
// (e.g. the midpoint of the collapsed edge).
func (o AttrOptimizer) Optimize() (p Vec3, ok bool) {
	if o.A == 0 {
		return Vec3{}, false
	}

	ia := 1.0 / o.A
	mxx := o.Nxx - ia*o.bbtxx
	myy := o.Nyy - ia*o.bbtyy
	mzz := o.Nzz - ia*o.bbtzz
	mxy := o.Nxy - ia*o.bbtxy
	mxz := o.Nxz - ia*o.bbtxz
	myz := o.Nyz - ia*o.bbtyz

	bx := ia*o.bdx - o.Dnx
	by := ia*o.bdy - o.Dny
	bz := ia*o.bdz - o.Dnz

	if o.nv.X*o.nv.X+o.nv.Y*o.nv.Y+o.nv.Z*o.nv.Z > 1e-8 {
		if p, ok := solve4x4(mxx, myy, mzz, mxy, mxz, myz, o.nv, o.dv, bx, by, bz); ok {
			return p, true
		}
		return Vec3{}, false
	}

	return solve3x3(mxx, myy, mzz, mxy, mxz, myz, bx, by, bz)
}

func solve3x3(mxx, myy, mzz, mxy, mxz, myz, bx, by, bz float64) (Vec3, bool) {
	imxx := myy*mzz - myz*myz
	imxy := mxz*myz - mzz*mxy
	imxz := mxy*myz - myy*mxz

	det := mxx*imxx + mxy*imxy + mxz*imxz
	if math.Abs(det) < 1e-8 {
		return Vec3{}, false
	}
	invDet := 1.0 / det

	imyy := mxx*mzz - mxz*mxz
	imyz := mxy*mxz - mxx*myz
	imzz := mxx*myy - mxy*mxy

	return Vec3{
		X: invDet * (bx*imxx + by*imxy + bz*imxz),
		Y: invDet * (bx*imxy + by*imyy + bz*imyz),
		Z: invDet * (bx*imxz + by*imyz + bz*imzz),
	}, true
}

// solve4x4 solves the volume-constrained augmented system
//
//	[ Mxx Mxy Mxz nvx ] [x]   [bx]
//	[ Mxy Myy Myz nvy ] [y] = [by]
//	[ Mxz Myz Mzz nvz ] [z]   [bz]
//	[ nvx nvy nvz  0  ] [s]   [-dv]
func solve4x4(mxx, myy, mzz, mxy, mxz, myz float64, nv Vec3, dv, bx, by, bz float64) (Vec3, bool) {
	det2_01_01 := mxx*myy - mxy*mxy
	det2_01_02 := mxx*myz - mxz*mxy
	det2_01_12 := mxy*myz - mxz*myy
	det2_01_03 := mxx*nv.Y - nv.X*mxy
	det2_01_13 := mxy*nv.Y - nv.X*myy
	det2_01_23 := mxz*nv.Y - nv.X*myz

	iNvx := mzz*det2_01_13 - myz*det2_01_23 - nv.Z*det2_01_12
	iNvy := mxz*det2_01_23 - mzz*det2_01_03 + nv.Z*det2_01_02
	iNvz := myz*det2_01_03 - mxz*det2_01_13 - nv.Z*det2_01_01

	det := iNvx*nv.X + iNvy*nv.Y + iNvz*nv.Z
	if math.Abs(det) < 1e-8 {
		return Vec3{}, false
	}
	invDet := 1.0 / det

	det2_03_02 := mxx*nv.Z - mxz*nv.X
	det2_03_12 := mxy*nv.Z - mxz*nv.Y
	det2_13_12 := myy*nv.Z - myz*nv.Y

	det2_03_03 := -nv.X * nv.X
	det2_03_13 := -nv.X * nv.Y
	det2_03_23 := -nv.X * nv.Z

	det2_13_13 := -nv.Y * nv.Y
	det2_13_23 := -nv.Y * nv.Z

	iMxx := mzz*det2_13_13 - myz*det2_13_23 - nv.Z*det2_13_12
	iMxy := myz*det2_03_23 - mzz*det2_03_13 + nv.Z*det2_03_12
	iMyy := mzz*det2_03_03 - mxz*det2_03_23 - nv.Z*det2_03_02

	iMxz := nv.Y*det2_01_23 - nv.Z*det2_01_13
	iMyz := nv.Z*det2_01_03 - nv.X*det2_01_23
	iMzz := nv.X*det2_01_13 - nv.Y*det2_01_03

	return Vec3{
		X: invDet * (bx*iMxx + by*iMxy + bz*iMxz - iNvx*dv),
		Y: invDet * (bx*iMxy + by*iMyy + bz*iMyz - iNvy*dv),
		Z: invDet * (bx*iMxz + by*iMyz + bz*iMzz - iNvz*dv),
	}, true
}
