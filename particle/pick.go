package particle

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms3"
)

// CubeFill is the ratio of a piece's cube edge to the voxel cell size.
const CubeFill = 0.92

// Ray is a half line in the field's frame. Dir need not be normalized.
type Ray struct {
	Origin ms3.Vec
	Dir    ms3.Vec
}

// Toggle flips the picked flag of piece i and returns its new value.
// ok is false if i does not index a piece, in which case nothing changes.
func (s *Store) Toggle(i int) (picked, ok bool) {
	if i < 0 || i >= s.Len() {
		return false, false
	}
	s.Pieces[i].Picked = !s.Pieces[i].Picked
	return s.Pieces[i].Picked, true
}

// Pick returns the index of the nearest piece whose current cube is hit by ray.
// Cubes are tested in their own frame using the transforms written by the last tick.
func (s *Store) Pick(ray Ray) (index int, ok bool) {
	if s.Len() == 0 || ray.Dir == (ms3.Vec{}) {
		return -1, false
	}
	half := s.CellSize * CubeFill / 2
	o := mgl32.Vec4{ray.Origin.X, ray.Origin.Y, ray.Origin.Z, 1}
	d := mgl32.Vec4{ray.Dir.X, ray.Dir.Y, ray.Dir.Z, 0}
	// Cheap bounding sphere rejection before inverting matrices.
	dirUnit := ms3.Unit(ray.Dir)
	index = -1
	best := math32.Inf(1)
	for i, tr := range s.Transforms {
		bound := half * tr.Scale * 1.7321
		toCenter := ms3.Sub(tr.Translation, ray.Origin)
		along := ms3.Dot(toCenter, dirUnit)
		perp2 := ms3.Dot(toCenter, toCenter) - along*along
		if perp2 > bound*bound || along < -bound {
			continue
		}
		if tr.Scale < 1e-6 {
			continue
		}
		inv := tr.Matrix().Inv()
		lo := inv.Mul4x1(o).Vec3()
		ld := inv.Mul4x1(d).Vec3()
		t, hit := slabIntersect(lo, ld, half)
		if hit && t < best {
			best = t
			index = i
		}
	}
	return index, index >= 0
}

// slabIntersect returns the smallest non negative ray parameter at which the ray
// o+t·d enters the cube of half side h centered at the origin.
func slabIntersect(o, d mgl32.Vec3, h float32) (t float32, hit bool) {
	tmin := float32(0)
	tmax := math32.Inf(1)
	for axis := 0; axis < 3; axis++ {
		if math32.Abs(d[axis]) < 1e-12 {
			if o[axis] < -h || o[axis] > h {
				return 0, false
			}
			continue
		}
		inv := 1 / d[axis]
		t0 := (-h - o[axis]) * inv
		t1 := (h - o[axis]) * inv
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		tmin = max(tmin, t0)
		tmax = min(tmax, t1)
		if tmin > tmax {
			return 0, false
		}
	}
	return tmin, true
}

// Matrix returns the instance matrix T·Rx·Ry·S of the transform.
func (tr Transform) Matrix() mgl32.Mat4 {
	s := tr.Scale
	return mgl32.Translate3D(tr.Translation.X, tr.Translation.Y, tr.Translation.Z).
		Mul4(mgl32.HomogRotate3DX(tr.RotationX)).
		Mul4(mgl32.HomogRotate3DY(tr.RotationY)).
		Mul4(mgl32.Scale3D(s, s, s))
}

// Matrices appends the instance matrices of all current transforms to dst,
// in the layout expected by instanced draw calls.
func (s *Store) Matrices(dst []mgl32.Mat4) []mgl32.Mat4 {
	if s == nil {
		return dst
	}
	for _, tr := range s.Transforms {
		dst = append(dst, tr.Matrix())
	}
	return dst
}
