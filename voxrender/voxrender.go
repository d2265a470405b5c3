// Package voxrender turns particle transforms into triangle meshes and
// serializes them to 3D printable formats.
package voxrender

import (
	"errors"
	"io"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxfield/particle"
)

// CubeTriangles is the amount of triangles in the base cube of every piece.
const CubeTriangles = 12

var errNegativeEdge = errors.New("negative cube edge")

// Renderer streams triangles into dst. ReadTriangles returns io.EOF once
// every triangle has been read, possibly alongside a non-zero n.
type Renderer interface {
	ReadTriangles(dst []ms3.Triangle, userData any) (n int, err error)
}

// RenderAll reads the full contents of a Renderer and returns the slice read.
// It does not return error on io.EOF, like the io.ReadAll implementation.
func RenderAll(r Renderer, userData any) ([]ms3.Triangle, error) {
	const startSize = 1024
	var err error
	var nt int
	result := make([]ms3.Triangle, 0, startSize)
	buf := make([]ms3.Triangle, startSize)
	for {
		nt, err = r.ReadTriangles(buf, userData)
		if err == nil || err == io.EOF {
			result = append(result, buf[:nt]...)
		}
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

// cubeCorners are the corners of the unit cube centered at the origin, indexed by bits ZYX.
var cubeCorners = [8]ms3.Vec{
	{X: -.5, Y: -.5, Z: -.5}, {X: .5, Y: -.5, Z: -.5}, {X: -.5, Y: .5, Z: -.5}, {X: .5, Y: .5, Z: -.5},
	{X: -.5, Y: -.5, Z: .5}, {X: .5, Y: -.5, Z: .5}, {X: -.5, Y: .5, Z: .5}, {X: .5, Y: .5, Z: .5},
}

// cubeIndices wind every face counter clockwise seen from outside.
var cubeIndices = [CubeTriangles * 3]uint32{
	0, 2, 1, 1, 2, 3, // -Z
	4, 5, 6, 5, 7, 6, // +Z
	0, 1, 4, 1, 5, 4, // -Y
	2, 6, 3, 3, 6, 7, // +Y
	0, 4, 2, 2, 4, 6, // -X
	1, 3, 5, 3, 7, 5, // +X
}

// Mesh is an indexed triangle mesh. Every three consecutive indices form a triangle.
type Mesh struct {
	Vertices []ms3.Vec
	Indices  []uint32
}

// BaseCube returns the cube of the given edge length centered at the origin.
func BaseCube(edge float32) (Mesh, error) {
	if edge < 0 {
		return Mesh{}, errNegativeEdge
	}
	m := Mesh{
		Vertices: make([]ms3.Vec, len(cubeCorners)),
		Indices:  append([]uint32(nil), cubeIndices[:]...),
	}
	for i, c := range cubeCorners {
		m.Vertices[i] = ms3.Scale(edge, c)
	}
	return m, nil
}

// TriangleCount returns the amount of triangles in the mesh.
func (m *Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// AppendTriangles appends the triangles of the mesh to dst.
func (m *Mesh) AppendTriangles(dst []ms3.Triangle) []ms3.Triangle {
	for i := 0; i+2 < len(m.Indices); i += 3 {
		dst = append(dst, ms3.Triangle{
			m.Vertices[m.Indices[i]],
			m.Vertices[m.Indices[i+1]],
			m.Vertices[m.Indices[i+2]],
		})
	}
	return dst
}

// Bake instantiates a cube of edge [particle.CubeFill]·cellSize for every transform
// and merges them into a single mesh. Vertices are not welded.
// No transforms result in an empty mesh.
func Bake(transforms []particle.Transform, cellSize float32) (Mesh, error) {
	base, err := BaseCube(particle.CubeFill * cellSize)
	if err != nil {
		return Mesh{}, err
	}
	nv := len(base.Vertices)
	m := Mesh{
		Vertices: make([]ms3.Vec, 0, nv*len(transforms)),
		Indices:  make([]uint32, 0, len(base.Indices)*len(transforms)),
	}
	for i, tr := range transforms {
		mat := tr.Matrix()
		for _, v := range base.Vertices {
			m.Vertices = append(m.Vertices, transformPoint(mat, v))
		}
		off := uint32(i * nv)
		for _, idx := range base.Indices {
			m.Indices = append(m.Indices, idx+off)
		}
	}
	return m, nil
}

func transformPoint(m mgl32.Mat4, p ms3.Vec) ms3.Vec {
	v := m.Mul4x1(mgl32.Vec4{p.X, p.Y, p.Z, 1})
	return ms3.Vec{X: v[0], Y: v[1], Z: v[2]}
}
