package voxfield

import (
	"errors"
	"fmt"
	"strings"

	"github.com/soypat/geometry/ms3"
)

// ShapeKind enumerates the implicit shapes that can be voxelized.
type ShapeKind uint8

const (
	Sphere ShapeKind = iota
	Box
	Torus
	Gyroid
	SchwarzP
	Mandelbulb
	Julia
	Heart
	Star
	Twist
	Atom
	shapeKindCount
)

// ErrUnknownShape is returned when a shape name or value is not a valid [ShapeKind].
var ErrUnknownShape = errors.New("unknown shape kind")

var shapeNames = [shapeKindCount]string{
	Sphere:     "sphere",
	Box:        "box",
	Torus:      "torus",
	Gyroid:     "gyroid",
	SchwarzP:   "schwarzp",
	Mandelbulb: "mandelbulb",
	Julia:      "julia",
	Heart:      "heart",
	Star:       "star",
	Twist:      "twist",
	Atom:       "atom",
}

// ShapeKinds returns all valid shape kinds in declaration order.
func ShapeKinds() []ShapeKind {
	kinds := make([]ShapeKind, shapeKindCount)
	for i := range kinds {
		kinds[i] = ShapeKind(i)
	}
	return kinds
}

// IsValid reports whether k is one of the declared shape kinds.
func (k ShapeKind) IsValid() bool { return k < shapeKindCount }

func (k ShapeKind) String() string {
	if !k.IsValid() {
		return fmt.Sprintf("ShapeKind(%d)", uint8(k))
	}
	return shapeNames[k]
}

// ParseShapeKind returns the shape kind named s. Matching is case insensitive.
func ParseShapeKind(s string) (ShapeKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range shapeNames {
		if name == s {
			return ShapeKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownShape, s)
}

// MarshalText implements [encoding.TextMarshaler].
func (k ShapeKind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, ErrUnknownShape
	}
	return []byte(shapeNames[k]), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (k *ShapeKind) UnmarshalText(b []byte) error {
	got, err := ParseShapeKind(string(b))
	if err != nil {
		return err
	}
	*k = got
	return nil
}

// Inside reports whether the point p, given in the shape's local frame, lies inside
// the shape of the given kind. radius is only used by kinds with a nominal radius
// (sphere, box, gyroid and Schwarz P); pass [DefaultRadius] otherwise.
// Inside is pure and total: it never panics and never produces NaN driven decisions.
// Invalid kinds contain no points.
func Inside(kind ShapeKind, p ms3.Vec, radius float32) bool {
	switch kind {
	case Sphere:
		return insideSphere(p, radius)
	case Box:
		return insideBox(p, radius)
	case Torus:
		return insideTorus(p)
	case Gyroid:
		return insideGyroid(p, radius)
	case SchwarzP:
		return insideSchwarzP(p, radius)
	case Mandelbulb:
		return insideMandelbulb(p)
	case Julia:
		return insideJulia(p)
	case Heart:
		return insideHeart(p)
	case Star:
		return insideStar(p)
	case Twist:
		return insideTwist(p)
	case Atom:
		return insideAtom(p)
	}
	return false
}

// LocalBounds returns a box centered at the origin which contains every point
// for which Inside(kind, p, radius) is true.
func LocalBounds(kind ShapeKind, radius float32) ms3.Box {
	switch kind {
	case Sphere:
		return cubeBox(radius)
	case Box:
		return cubeBox(radius * boxFactor)
	case Torus:
		r := float32(torusMajor + torusMinor)
		return ms3.Box{
			Min: ms3.Vec{X: -r, Y: -torusMinor, Z: -r},
			Max: ms3.Vec{X: r, Y: torusMinor, Z: r},
		}
	case Gyroid:
		return cubeBox(radius * gyroidBound)
	case SchwarzP:
		return cubeBox(radius * schwarzBound)
	case Mandelbulb, Julia:
		return cubeBox(fractalBound)
	case Heart:
		return cubeBox(1.5)
	case Star:
		return cubeBox(1.4)
	case Twist:
		r := float32(twistHalfWidth * 1.4143)
		return ms3.Box{
			Min: ms3.Vec{X: -r, Y: -twistHalfHeight, Z: -r},
			Max: ms3.Vec{X: r, Y: twistHalfHeight, Z: r},
		}
	case Atom:
		return cubeBox(atomRingMajor + atomRingMinor)
	}
	return ms3.Box{}
}
