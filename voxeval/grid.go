package voxeval

import (
	"context"

	"github.com/soypat/geometry/ms3"
)

// DefaultSide is the side length of the sampling cube centered at the origin.
const DefaultSide = 2.0

// Grid is a cubical grid of Resolution³ cells centered at the origin.
type Grid struct {
	Resolution int
	Side       float32
}

// NewGrid returns a grid of resolution cells per axis over the default sampling cube.
func NewGrid(resolution int) (Grid, error) {
	if resolution <= 0 {
		return Grid{}, ErrBadResolution
	}
	return Grid{Resolution: resolution, Side: DefaultSide}, nil
}

// CellSize returns the edge length of a single cell.
func (g Grid) CellSize() float32 {
	return g.Side / float32(g.Resolution)
}

// Cells returns the total amount of cells in the grid.
func (g Grid) Cells() int {
	return g.Resolution * g.Resolution * g.Resolution
}

// Bounds returns the box spanned by the grid.
func (g Grid) Bounds() ms3.Box {
	return ms3.NewCenteredBox(ms3.Vec{}, ms3.Vec{X: g.Side, Y: g.Side, Z: g.Side})
}

// coord returns the center coordinate of the i'th cell along an axis.
func (g Grid) coord(i int) float32 {
	cs := g.CellSize()
	return -g.Side/2 + (float32(i)+0.5)*cs
}

// Center returns the center of cell (i,j,k).
func (g Grid) Center(i, j, k int) ms3.Vec {
	return ms3.Vec{X: g.coord(i), Y: g.coord(j), Z: g.coord(k)}
}

// AppendSlab appends the cell centers of the k'th Z slab to dst in X-fastest order.
func (g Grid) AppendSlab(dst []ms3.Vec, k int) []ms3.Vec {
	z := g.coord(k)
	for j := 0; j < g.Resolution; j++ {
		y := g.coord(j)
		for i := 0; i < g.Resolution; i++ {
			dst = append(dst, ms3.Vec{X: g.coord(i), Y: y, Z: z})
		}
	}
	return dst
}

// Voxelize samples field at every cell center of grid and appends the centers
// classified as inside to dst. Output order is deterministic: Z slabs outermost, X fastest.
// ctx is checked once per slab so that a superseded build can be abandoned early.
// A field with no cells inside yields no error and dst unchanged.
func Voxelize(ctx context.Context, dst []ms3.Vec, field Field, grid Grid, userData any) ([]ms3.Vec, error) {
	if grid.Resolution <= 0 {
		return dst, ErrBadResolution
	}
	n := grid.Resolution * grid.Resolution
	posbuf := make([]ms3.Vec, 0, n)
	inside := make([]bool, n)
	for k := 0; k < grid.Resolution; k++ {
		if err := ctx.Err(); err != nil {
			return dst, err
		}
		posbuf = grid.AppendSlab(posbuf[:0], k)
		err := field.Evaluate(posbuf, inside, userData)
		if err != nil {
			return dst, err
		}
		for i, in := range inside {
			if in {
				dst = append(dst, posbuf[i])
			}
		}
	}
	return dst, nil
}
