package voxfield

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxfield/voxeval"
)

// Mode selects how a composition produces its shape.
type Mode uint8

const (
	// Single voxelizes one shape centered at the origin.
	Single Mode = iota
	// Designer voxelizes the union of placed design elements.
	Designer
)

func (m Mode) String() string {
	switch m {
	case Single:
		return "single"
	case Designer:
		return "designer"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// MarshalText implements [encoding.TextMarshaler].
func (m Mode) MarshalText() ([]byte, error) {
	if m > Designer {
		return nil, errBadMode
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "single":
		*m = Single
	case "designer":
		*m = Designer
	default:
		return fmt.Errorf("%w: %q", errBadMode, b)
	}
	return nil
}

// Parameter ranges accepted by [CompositionParams.Validate].
const (
	MaxExplode = 1.5
	MaxNoise   = 1.0
	MaxSpeed   = 2.0
	// SoftMaxResolution is the largest resolution considered practical.
	// Sampling cost grows with the cube of the resolution, callers should warn above it.
	SoftMaxResolution = 40
)

var (
	ErrBadResolution = errors.New("resolution must be positive")
	ErrBadScale      = errors.New("element scale must be positive and finite")
	errBadMode       = errors.New("invalid composition mode")
)

// DesignElement is one placed shape in Designer mode.
type DesignElement struct {
	// ID correlates the element with external editors. It carries no meaning during sampling.
	ID    string    `json:"id"`
	Shape ShapeKind `json:"shape"`
	// Position of the element's local origin in world space.
	Position ms3.Vec `json:"position"`
	// Rotation holds Euler angles in radians applied in X, Y, Z order.
	Rotation ms3.Vec `json:"rotation"`
	Scale    float32 `json:"scale"`
	Enabled  bool    `json:"enabled"`
}

// Transform returns the placement matrix of the element: translation·rotation·uniform scale.
func (e DesignElement) Transform() mgl32.Mat4 {
	s := e.Scale
	return mgl32.Translate3D(e.Position.X, e.Position.Y, e.Position.Z).
		Mul4(mgl32.HomogRotate3DX(e.Rotation.X)).
		Mul4(mgl32.HomogRotate3DY(e.Rotation.Y)).
		Mul4(mgl32.HomogRotate3DZ(e.Rotation.Z)).
		Mul4(mgl32.Scale3D(s, s, s))
}

func (e DesignElement) singular() bool {
	det := e.Transform().Det()
	return !(math32.Abs(det) >= epstol)
}

// CompositionParams is the full parameter set read by the kernel. Shape, Resolution,
// Mode and Elements are structural: changing them requires a rebuild. The remaining
// fields only steer animation.
type CompositionParams struct {
	Mode       Mode            `json:"mode"`
	Shape      ShapeKind       `json:"shape"`
	Elements   []DesignElement `json:"elements,omitempty"`
	Resolution int             `json:"resolution"`

	Explode      float32 `json:"explode"`
	Noise        float32 `json:"noise"`
	Speed        float32 `json:"speed"`
	AutoRotate   bool    `json:"autoRotate"`
	AudioEnabled bool    `json:"audioEnabled"`
	IsScrambled  bool    `json:"isScrambled"`
}

// DefaultParams returns a single sphere at resolution 24 with gentle animation.
func DefaultParams() CompositionParams {
	return CompositionParams{
		Mode:       Single,
		Shape:      Sphere,
		Resolution: 24,
		Speed:      1,
		AutoRotate: true,
	}
}

// Validate checks the parameters are in range. All problems found are joined in the returned error.
func (p *CompositionParams) Validate() error {
	var errs []error
	addErr := func(err error) { errs = append(errs, err) }
	if p.Resolution <= 0 {
		addErr(fmt.Errorf("%w: got %d", ErrBadResolution, p.Resolution))
	}
	switch p.Mode {
	case Single:
		if !p.Shape.IsValid() {
			addErr(fmt.Errorf("single mode: %w %d", ErrUnknownShape, p.Shape))
		}
	case Designer:
		for i, e := range p.Elements {
			if !e.Shape.IsValid() {
				addErr(fmt.Errorf("element %d %q: %w %d", i, e.ID, ErrUnknownShape, e.Shape))
			}
			if !(e.Scale > 0) || math32.IsInf(e.Scale, 1) {
				addErr(fmt.Errorf("element %d %q: %w: got %v", i, e.ID, ErrBadScale, e.Scale))
			} else if e.singular() {
				addErr(fmt.Errorf("element %d %q: %w: scale %v gives singular placement", i, e.ID, ErrBadScale, e.Scale))
			}
			if !finiteVec(e.Position) || !finiteVec(e.Rotation) {
				addErr(fmt.Errorf("element %d %q: non-finite placement", i, e.ID))
			}
		}
	default:
		addErr(fmt.Errorf("%w: %d", errBadMode, p.Mode))
	}
	checkRange := func(name string, v, max float32) {
		if !(v >= 0 && v <= max) {
			addErr(fmt.Errorf("%s out of range [0,%v]: got %v", name, max, v))
		}
	}
	checkRange("explode", p.Explode, MaxExplode)
	checkRange("noise", p.Noise, MaxNoise)
	checkRange("speed", p.Speed, MaxSpeed)
	return errors.Join(errs...)
}

// StructuralEqual reports whether p and q voxelize to the same cells, meaning a rebuild
// from one to the other can be skipped.
func (p *CompositionParams) StructuralEqual(q *CompositionParams) bool {
	if p.Mode != q.Mode || p.Resolution != q.Resolution {
		return false
	}
	if p.Mode == Single {
		return p.Shape == q.Shape
	}
	if len(p.Elements) != len(q.Elements) {
		return false
	}
	for i := range p.Elements {
		a, b := p.Elements[i], q.Elements[i]
		a.ID, b.ID = "", ""
		if a != b {
			return false
		}
	}
	return true
}

// EnabledElements returns the amount of elements which take part in Designer mode sampling.
func (p *CompositionParams) EnabledElements() (n int) {
	for _, e := range p.Elements {
		if e.Enabled {
			n++
		}
	}
	return n
}

// NewField returns the membership field described by the structural parameters.
// In Single mode the field is the bare shape. In Designer mode it is an [*OpUnion]
// of the enabled elements in sequence order, each placement inverted once here.
// Parameters are not validated, call [CompositionParams.Validate] at the boundary.
func NewField(p CompositionParams) (voxeval.Field, error) {
	switch p.Mode {
	case Single:
		if !p.Shape.IsValid() {
			return nil, ErrUnknownShape
		}
		return &shape{kind: p.Shape, radius: DefaultRadius}, nil
	case Designer:
		fields := make([]voxeval.Field, 0, len(p.Elements))
		for _, e := range p.Elements {
			if !e.Enabled {
				continue
			}
			if !e.Shape.IsValid() {
				return nil, ErrUnknownShape
			}
			if e.singular() {
				return nil, ErrBadScale
			}
			s := &shape{kind: e.Shape, radius: DefaultRadius}
			fields = append(fields, newPlacement(s, e.Transform()))
		}
		return newUnion(fields...), nil
	}
	return nil, errBadMode
}

func finiteVec(v ms3.Vec) bool {
	for _, f := range [3]float32{v.X, v.Y, v.Z} {
		if math32.IsNaN(f) || math32.IsInf(f, 0) {
			return false
		}
	}
	return true
}
