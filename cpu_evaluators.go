package voxfield

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxfield/voxeval"
)

const (
	boxFactor = 0.8

	torusMajor = 0.8
	torusMinor = 0.32

	gyroidScale     = 3.5
	gyroidThickness = 0.35
	gyroidBound     = 1.3

	schwarzScale     = 3.0
	schwarzThickness = 0.3
	schwarzBound     = 1.2

	fractalBound    = 1.2
	mandelbulbPower = 8
	mandelbulbIters = 6

	juliaScale = 1.5
	juliaIters = 7

	heartScale = 1.3

	starExponent = 0.6
	starLimit    = 1.2

	twistRate       = 2.5
	twistHalfWidth  = 0.4
	twistHalfHeight = 0.85

	atomRingMajor = 0.7
	atomRingMinor = 0.12
	atomCore      = 0.25
)

// juliaC is the quaternion constant of the Julia set. First component is the real part.
var juliaC = [4]float32{-0.2, 0.6, 0, 0}

func insideSphere(p ms3.Vec, r float32) bool {
	return ms3.Norm(p) <= r
}

func insideBox(p ms3.Vec, r float32) bool {
	a := ms3.AbsElem(p)
	return max(a.X, a.Y, a.Z) <= r*boxFactor
}

// insideTorus tests a tube about the Y axis.
func insideTorus(p ms3.Vec) bool {
	q := math32.Hypot(p.X, p.Z) - torusMajor
	return q*q+p.Y*p.Y <= torusMinor*torusMinor
}

func insideGyroid(p ms3.Vec, r float32) bool {
	if ms3.Norm(p) >= r*gyroidBound {
		return false
	}
	sx, cx := math32.Sincos(gyroidScale * p.X)
	sy, cy := math32.Sincos(gyroidScale * p.Y)
	sz, cz := math32.Sincos(gyroidScale * p.Z)
	g := sx*cy + sy*cz + sz*cx
	return absf(g) < gyroidThickness
}

func insideSchwarzP(p ms3.Vec, r float32) bool {
	if ms3.Norm(p) >= r*schwarzBound {
		return false
	}
	s := math32.Cos(schwarzScale*p.X) + math32.Cos(schwarzScale*p.Y) + math32.Cos(schwarzScale*p.Z)
	return absf(s) < schwarzThickness
}

// insideMandelbulb runs the power 8 spherical map z = z^8 + p and reports
// whether the orbit stays bounded.
func insideMandelbulb(p ms3.Vec) bool {
	if ms3.Norm(p) > fractalBound {
		return false
	}
	z := p
	for i := 0; i < mandelbulbIters; i++ {
		r := ms3.Norm(z)
		if r < epstol {
			// 0^8 is 0, the next orbit point is the constant itself.
			z = p
			continue
		}
		theta := math32.Acos(clampf(z.Z/r, -1, 1)) * mandelbulbPower
		phi := math32.Atan2(z.Y, z.X) * mandelbulbPower
		r2 := r * r
		r4 := r2 * r2
		zr := r4 * r4
		st, ct := math32.Sincos(theta)
		sp, cp := math32.Sincos(phi)
		z = ms3.Vec{
			X: zr*st*cp + p.X,
			Y: zr*st*sp + p.Y,
			Z: zr*ct + p.Z,
		}
		if !(ms3.Norm2(z) <= escapeNorm2) {
			return false // Also catches NaN.
		}
	}
	return true
}

// insideJulia iterates q = q² + c on quaternions starting at p scaled with a zero last component.
func insideJulia(p ms3.Vec) bool {
	if ms3.Norm(p) > fractalBound {
		return false
	}
	q := [4]float32{p.X * juliaScale, p.Y * juliaScale, p.Z * juliaScale, 0}
	if !(quatNorm2(q) <= escapeNorm2) {
		return false
	}
	for i := 0; i < juliaIters; i++ {
		a, b, c, d := q[0], q[1], q[2], q[3]
		q = [4]float32{
			a*a - b*b - c*c - d*d + juliaC[0],
			2*a*b + juliaC[1],
			2*a*c + juliaC[2],
			2*a*d + juliaC[3],
		}
		if !(quatNorm2(q) <= escapeNorm2) {
			return false
		}
	}
	return true
}

func quatNorm2(q [4]float32) float32 {
	return q[0]*q[0] + q[1]*q[1] + q[2]*q[2] + q[3]*q[3]
}

// insideHeart evaluates the implicit sextic heart surface on scaled coordinates.
func insideHeart(p ms3.Vec) bool {
	x := p.X * heartScale
	y := p.Y*heartScale + 0.1*heartScale
	z := p.Z * heartScale
	a := x*x + 2.25*z*z + y*y - 1
	y3 := y * y * y
	return a*a*a-x*x*y3-0.1125*z*z*y3 <= 0
}

// insideStar is a superellipsoid with exponent below one, which gives concave faces.
func insideStar(p ms3.Vec) bool {
	a := ms3.AbsElem(p)
	s := math32.Pow(a.X, starExponent) + math32.Pow(a.Y, starExponent) + math32.Pow(a.Z, starExponent)
	return s <= starLimit
}

// insideTwist is a square bar along Y whose cross section rotates with height.
func insideTwist(p ms3.Vec) bool {
	if absf(p.Y) >= twistHalfHeight {
		return false
	}
	s, c := math32.Sincos(p.Y * twistRate)
	x := c*p.X - s*p.Z
	z := s*p.X + c*p.Z
	return absf(x) < twistHalfWidth && absf(z) < twistHalfWidth
}

// insideAtom is a core sphere plus three perpendicular rings.
func insideAtom(p ms3.Vec) bool {
	if ms3.Norm(p) <= atomCore {
		return true
	}
	return inRing(p.X, p.Y, p.Z) || // XY plane.
		inRing(p.Y, p.Z, p.X) || // YZ plane.
		inRing(p.X, p.Z, p.Y) // XZ plane.
}

// inRing tests a tube whose ring lies in the (u,v) plane and w is the axial coordinate.
func inRing(u, v, w float32) bool {
	q := math32.Hypot(u, v) - atomRingMajor
	return q*q+w*w <= atomRingMinor*atomRingMinor
}

// shape is a single implicit shape in its local frame.
type shape struct {
	kind   ShapeKind
	radius float32
}

// Evaluate implements [voxeval.Field].
func (s *shape) Evaluate(pos []ms3.Vec, inside []bool, userData any) error {
	if err := voxeval.CheckBuffers(pos, inside); err != nil {
		return err
	}
	// Dispatch once per batch instead of once per position.
	switch s.kind {
	case Sphere:
		r := s.radius
		for i, p := range pos {
			inside[i] = insideSphere(p, r)
		}
	case Box:
		r := s.radius
		for i, p := range pos {
			inside[i] = insideBox(p, r)
		}
	default:
		for i, p := range pos {
			inside[i] = Inside(s.kind, p, s.radius)
		}
	}
	return nil
}

// Bounds implements [voxeval.Field].
func (s *shape) Bounds() ms3.Box {
	return LocalBounds(s.kind, s.radius)
}
