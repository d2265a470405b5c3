package voxfield

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxfield/voxeval"
)

// OpUnion is the set union of its fields: a position is inside if any field contains it.
//
// The result of [NewField] in Designer mode is an OpUnion. It is exported so that
// users can inspect how many elements take part in a composition and weigh the
// sampling cost, which grows linearly with the element count.
type OpUnion struct {
	joined []voxeval.Field
	bb     ms3.Box
}

func newUnion(fields ...voxeval.Field) *OpUnion {
	u := &OpUnion{joined: fields}
	for i, f := range fields {
		fbb := f.Bounds()
		if i == 0 {
			u.bb = fbb
			continue
		}
		u.bb = ms3.Box{
			Min: ms3.MinElem(u.bb.Min, fbb.Min),
			Max: ms3.MaxElem(u.bb.Max, fbb.Max),
		}
	}
	return u
}

// Len returns the amount of fields joined by the union.
func (u *OpUnion) Len() int { return len(u.joined) }

// Bounds implements [voxeval.Field].
func (u *OpUnion) Bounds() ms3.Box { return u.bb }

// Evaluate implements [voxeval.Field]. Fields are tested in order and a position
// already found inside is not handed to later fields. Positions outside a field's
// bounding box are not handed to it either.
// userData must provide a [voxeval.VecPool].
func (u *OpUnion) Evaluate(pos []ms3.Vec, inside []bool, userData any) error {
	if err := voxeval.CheckBuffers(pos, inside); err != nil {
		return err
	}
	clear(inside)
	if len(u.joined) == 0 {
		return nil
	}
	vp, err := voxeval.GetVecPool(userData)
	if err != nil {
		return err
	}
	seekPos := vp.V3.Acquire(len(pos))
	seekIdx := vp.Int.Acquire(len(pos))
	seekIn := vp.Bool.Acquire(len(pos))
	defer vp.V3.Release(seekPos)
	defer vp.Int.Release(seekIdx)
	defer vp.Bool.Release(seekIn)
	for _, f := range u.joined {
		fbb := f.Bounds()
		n := 0
		for i, p := range pos {
			if !inside[i] && fbb.Contains(p) {
				seekPos[n] = p
				seekIdx[n] = i
				n++
			}
		}
		if n == 0 {
			continue
		}
		err = f.Evaluate(seekPos[:n], seekIn[:n], userData)
		if err != nil {
			return err
		}
		for j, in := range seekIn[:n] {
			if in {
				inside[seekIdx[j]] = true
			}
		}
	}
	return nil
}

// placement is a shape moved into world space by a rigid transform with uniform scale.
type placement struct {
	s *shape
	// Transformation matrix, used to transform the bounding box.
	t ms3.Mat4
	// The field receives world points which we must evaluate in the
	// shape's local frame, so we work backwards with the inverse.
	tInv ms3.Mat4
	bb   ms3.Box
}

// newPlacement places s with the column major matrix m. m must not be singular.
func newPlacement(s *shape, m mgl32.Mat4) *placement {
	// mgl32 stores columns first, ms3 rows first.
	t := ms3.NewMat4(m[:]).Transpose()
	pl := &placement{s: s, t: t, tInv: t.Inverse()}
	pl.bb = t.MulBox(s.Bounds())
	// Pad so that round-off in the inverse transform never rejects a position the shape accepts.
	const pad = 1e-4
	pl.bb.Min = ms3.AddScalar(-pad, pl.bb.Min)
	pl.bb.Max = ms3.AddScalar(pad, pl.bb.Max)
	return pl
}

// Bounds implements [voxeval.Field].
func (pl *placement) Bounds() ms3.Box { return pl.bb }

// Evaluate implements [voxeval.Field].
func (pl *placement) Evaluate(pos []ms3.Vec, inside []bool, userData any) error {
	vp, err := voxeval.GetVecPool(userData)
	if err != nil {
		return err
	}
	transformed := vp.V3.Acquire(len(pos))
	defer vp.V3.Release(transformed)
	tInv := pl.tInv
	for i, p := range pos {
		transformed[i] = tInv.MulPosition(p)
	}
	return pl.s.Evaluate(transformed, inside, userData)
}
