package ai

import "math"

// Vec3 is a position or direction in world space. Movement happens on the
// X/Z plane; Y is carried through untouched.
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v-o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v*f.
func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }

// Length returns the euclidean length.
func (v Vec3) Length() float64 { return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z) }

// Distance returns the euclidean distance between v and o.
func (v Vec3) Distance(o Vec3) float64 { return v.Sub(o).Length() }

// Normalize returns the unit vector of v, or the zero vector.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// IsInfinite reports whether any component is infinite. Used as the "no
// position" marker for unknown groups.
func (v Vec3) IsInfinite() bool {
	return math.IsInf(v.X, 0) || math.IsInf(v.Y, 0) || math.IsInf(v.Z, 0)
}

// InfiniteVec3 is returned by lookups that have no position.
var InfiniteVec3 = Vec3{math.Inf(1), math.Inf(1), math.Inf(1)}

// Orientation returns the rotation in radians of v on the X/Z plane.
func (v Vec3) Orientation() float64 {
	return math.Atan2(v.Z, v.X)
}

// FromRadians returns the unit direction on the X/Z plane for an orientation.
func FromRadians(radians float64) Vec3 {
	return Vec3{X: math.Cos(radians), Z: math.Sin(radians)}
}

// NormalizeAngle maps radians into [-pi, pi).
func NormalizeAngle(radians float64) float64 {
	r := math.Mod(radians+math.Pi, 2*math.Pi)
	if r < 0 {
		r += 2 * math.Pi
	}
	return r - math.Pi
}
