package voxaux

import (
	"bytes"
	"fmt"
	"io"

	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxfield/particle"
	"github.com/soypat/voxfield/voxrender"
)

// Format selects the serialization of exported meshes.
type Format uint8

const (
	BinarySTL Format = iota
	ASCIISTL
)

// ExportSnapshot bakes the current animated transforms into one mesh and returns it
// as a binary STL file. A scene with no pieces returns nil bytes and no error.
func (s *Scene) ExportSnapshot() ([]byte, error) {
	var buf bytes.Buffer
	n, err := s.Export(&buf, BinarySTL)
	if err != nil || n == 0 {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Export writes the current animated state of every piece to w as a merged mesh.
// What is exported is what is seen at the time of the call, not the rest layout.
// Nothing is written when the scene has no pieces.
func (s *Scene) Export(w io.Writer, format Format) (int, error) {
	snap := s.Snapshot()
	npieces := len(snap.Transforms)
	if npieces == 0 {
		return 0, nil
	}
	log := Logger()
	if s.cfg.MaxExportPieces > 0 && npieces > s.cfg.MaxExportPieces {
		return 0, fmt.Errorf("%w: %d pieces, limit %d", ErrExportTooLarge, npieces, s.cfg.MaxExportPieces)
	}
	if npieces > s.cfg.ExportWarnPieces {
		log.Warn("exporting large piece count", "pieces", npieces, "triangles", npieces*voxrender.CubeTriangles)
	}
	watch := stopwatch()
	triangles, err := exportTriangles(snap.Transforms, snap.CellSize, npieces > s.cfg.ExportWarnPieces)
	if err != nil {
		return 0, fmt.Errorf("rendering triangles: %w", err)
	}
	var n int
	switch format {
	case BinarySTL:
		n, err = voxrender.WriteBinarySTL(w, triangles)
	case ASCIISTL:
		n, err = voxrender.WriteASCIISTL(w, snap.Params.Shape.String(), triangles)
	default:
		return 0, fmt.Errorf("unknown export format %d", format)
	}
	if err != nil {
		return n, fmt.Errorf("writing STL: %w", err)
	}
	log.Info("exported mesh", "pieces", npieces, "triangles", len(triangles), "bytes", n, "took", watch())
	return n, nil
}

// exportTriangles merges the cubes of every transform into one mesh.
// Large exports skip the indexed mesh and stream cube triangles instead.
func exportTriangles(transforms []particle.Transform, cellSize float32, stream bool) ([]ms3.Triangle, error) {
	if stream {
		renderer, err := voxrender.NewInstanceRenderer(transforms, cellSize)
		if err != nil {
			return nil, err
		}
		return voxrender.RenderAll(renderer, nil)
	}
	mesh, err := voxrender.Bake(transforms, cellSize)
	if err != nil {
		return nil, err
	}
	return mesh.AppendTriangles(make([]ms3.Triangle, 0, mesh.TriangleCount())), nil
}
