package voxrender

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/soypat/geometry/ms3"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

var errTooManyTriangles = errors.New("too many triangles for binary STL")

// BinarySTLSize returns the size in bytes of a binary STL file holding numTriangles.
func BinarySTLSize(numTriangles int) int {
	return stlHeaderSize + 4 + stlTriangleSize*numTriangles
}

// WriteBinarySTL writes the triangles as a binary STL file to w and returns the amount of bytes written.
// Facet normals are computed from the vertex winding.
func WriteBinarySTL(w io.Writer, model []ms3.Triangle) (int, error) {
	if uint64(len(model)) > math.MaxUint32 {
		return 0, errTooManyTriangles
	}
	var header [stlHeaderSize + 4]byte
	copy(header[:], "voxfield binary STL")
	binary.LittleEndian.PutUint32(header[stlHeaderSize:], uint32(len(model)))
	n, err := w.Write(header[:])
	if err != nil {
		return n, err
	}
	var buf [stlTriangleSize]byte
	for _, tri := range model {
		normal := triangleNormal(tri)
		putVec(buf[0:], normal)
		putVec(buf[12:], tri[0])
		putVec(buf[24:], tri[1])
		putVec(buf[36:], tri[2])
		// Attribute byte count stays zero.
		ngot, err := w.Write(buf[:])
		n += ngot
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

// WriteASCIISTL writes the triangles as an ASCII STL solid named name and returns the amount of bytes written.
func WriteASCIISTL(w io.Writer, name string, model []ms3.Triangle) (int, error) {
	if name == "" {
		name = "voxfield"
	}
	bw := bufio.NewWriter(w)
	cw := &countWriter{w: bw}
	fmt.Fprintf(cw, "solid %s\n", name)
	for _, tri := range model {
		nrm := triangleNormal(tri)
		fmt.Fprintf(cw, "facet normal %g %g %g\n outer loop\n", nrm.X, nrm.Y, nrm.Z)
		for _, v := range tri {
			fmt.Fprintf(cw, "  vertex %g %g %g\n", v.X, v.Y, v.Z)
		}
		fmt.Fprint(cw, " endloop\nendfacet\n")
	}
	fmt.Fprintf(cw, "endsolid %s\n", name)
	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, bw.Flush()
}

type countWriter struct {
	w   io.Writer
	n   int
	err error
}

func (cw *countWriter) Write(b []byte) (int, error) {
	if cw.err != nil {
		return 0, cw.err
	}
	n, err := cw.w.Write(b)
	cw.n += n
	cw.err = err
	return n, err
}

// triangleNormal returns the unit normal of tri, or the zero vector for degenerate triangles.
func triangleNormal(tri ms3.Triangle) ms3.Vec {
	n := ms3.Cross(ms3.Sub(tri[1], tri[0]), ms3.Sub(tri[2], tri[0]))
	l := ms3.Norm(n)
	if l < 1e-20 {
		return ms3.Vec{}
	}
	return ms3.Scale(1/l, n)
}

func putVec(b []byte, v ms3.Vec) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(v.X))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(v.Y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(v.Z))
}
