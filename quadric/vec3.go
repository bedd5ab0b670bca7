package quadric

import "math"

// Vec3 is a 3-component point or direction. Quadric accumulation itself
// always happens in float64 (Quadric's fields are float64); Vec3 is float64
// throughout rather than mirroring the original's float32 FVector, since
// nothing here needs to match a GPU vertex buffer's storage width.
type Vec3 struct {
	X, Y, Z float64
}

func (a Vec3) Sub(b Vec3) Vec3 {
	return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
}

func (a Vec3) Add(b Vec3) Vec3 {
	return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z}
}

func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{a.X * s, a.Y * s, a.Z * s}
}

func (a Vec3) Dot(b Vec3) float64 {
	return a.X*b.X + a.Y*b.Y + a.Z*b.Z
}

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) LengthSquared() float64 {
	return a.Dot(a)
}

func (a Vec3) Length() float64 {
	return math.Sqrt(a.LengthSquared())
}

// smallNumber mirrors SMALL_NUMBER from the original's math library: below
// this a "normal" is considered degenerate (zero-area triangle, zero-length
// edge) rather than worth dividing by.
const smallNumber = 1e-8

// normalizeSelf normalizes v in place and returns its pre-normalization
// length. Callers check the returned length against smallNumber and discard
// v (returning a zero-valued quadric) rather than trust it when the length
// was degenerate, exactly as the original does.
func normalizeSelf(v *Vec3) float64 {
	length := v.Length()
	inv := 1.0 / length
	v.X *= inv
	v.Y *= inv
	v.Z *= inv
	return length
}
