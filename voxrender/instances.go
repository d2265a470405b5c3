package voxrender

import (
	"io"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxfield/particle"
)

// InstanceRenderer streams the cubes of a set of piece transforms as triangles
// without building the merged mesh in memory.
type InstanceRenderer struct {
	base       Mesh
	transforms []particle.Transform
	next       int
}

// NewInstanceRenderer returns a renderer over the transforms. The transforms
// are read as ReadTriangles progresses, so callers wanting a snapshot should pass a copy.
func NewInstanceRenderer(transforms []particle.Transform, cellSize float32) (*InstanceRenderer, error) {
	ir := new(InstanceRenderer)
	err := ir.Reset(transforms, cellSize)
	if err != nil {
		return nil, err
	}
	return ir, nil
}

// Reset rewinds the renderer to the start of a new set of transforms.
func (ir *InstanceRenderer) Reset(transforms []particle.Transform, cellSize float32) error {
	base, err := BaseCube(particle.CubeFill * cellSize)
	if err != nil {
		return err
	}
	ir.base = base
	ir.transforms = transforms
	ir.next = 0
	return nil
}

// Remaining returns the amount of cubes not yet read.
func (ir *InstanceRenderer) Remaining() int { return len(ir.transforms) - ir.next }

// ReadTriangles implements [Renderer]. dst must fit at least one whole cube.
func (ir *InstanceRenderer) ReadTriangles(dst []ms3.Triangle, userData any) (n int, err error) {
	if len(dst) < CubeTriangles {
		return 0, io.ErrShortBuffer
	}
	var verts [8]ms3.Vec
	for len(dst)-n >= CubeTriangles {
		if ir.next >= len(ir.transforms) {
			return n, io.EOF
		}
		mat := ir.transforms[ir.next].Matrix()
		for i, v := range ir.base.Vertices {
			verts[i] = transformPoint(mat, v)
		}
		idx := ir.base.Indices
		for i := 0; i < len(idx); i += 3 {
			dst[n] = ms3.Triangle{verts[idx[i]], verts[idx[i+1]], verts[idx[i+2]]}
			n++
		}
		ir.next++
	}
	if ir.next >= len(ir.transforms) {
		return n, io.EOF
	}
	return n, nil
}
