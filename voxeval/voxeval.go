package voxeval

import (
	"errors"
	"fmt"

	"github.com/soypat/geometry/ms3"
)

// Field implements a 3D membership test in vectorized form.
// It is the voxelization counterpart of a signed distance field: instead of
// a distance each position is classified as inside or outside.
type Field interface {
	// Evaluate classifies pos positions. inside and pos must be of same length.
	// Results are stored in inside.
	//
	// userData facilitates getting data to the evaluators for use in processing, such as [VecPool].
	Evaluate(pos []ms3.Vec, inside []bool, userData any) error
	// Bounds returns the field's bounding box such that all of the shape is contained within.
	Bounds() ms3.Box
}

var (
	ErrEmptyBuffers         = errors.New("empty buffers")
	ErrMismatchBufferLength = errors.New("position and result buffer length mismatch")
	ErrBadResolution        = errors.New("resolution must be positive")
)

// CheckBuffers returns an error if pos and inside cannot be evaluated together.
func CheckBuffers(pos []ms3.Vec, inside []bool) error {
	if len(pos) != len(inside) {
		return ErrMismatchBufferLength
	} else if len(pos) == 0 {
		return ErrEmptyBuffers
	}
	return nil
}

// GetVecPool extracts a [VecPool] from userData. userData may be a *VecPool
// or implement a VecPool() method.
func GetVecPool(userData any) (*VecPool, error) {
	switch v := userData.(type) {
	case *VecPool:
		if v == nil {
			return nil, errors.New("nil *VecPool userData")
		}
		return v, nil
	case interface{ VecPool() *VecPool }:
		vp := v.VecPool()
		if vp == nil {
			return nil, errors.New("VecPool() returned nil")
		}
		return vp, nil
	case nil:
		return nil, errors.New("nil userData, expected *VecPool")
	}
	return nil, fmt.Errorf("want *VecPool userData, got %T", userData)
}

// CountingField wraps a Field and counts evaluations performed through it.
type CountingField struct {
	Field Field
	evals uint64
}

// Evaluate implements [Field].
func (c *CountingField) Evaluate(pos []ms3.Vec, inside []bool, userData any) error {
	err := c.Field.Evaluate(pos, inside, userData)
	if err == nil {
		c.evals += uint64(len(pos))
	}
	return err
}

// Bounds implements [Field].
func (c *CountingField) Bounds() ms3.Box { return c.Field.Bounds() }

// Evaluations returns total positions evaluated succesfully during the field's lifetime.
func (c *CountingField) Evaluations() uint64 { return c.evals }
