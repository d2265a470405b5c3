package voxrender_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxfield/particle"
	"github.com/soypat/voxfield/voxrender"
)

func randomTransforms(rng *rand.Rand, n int) []particle.Transform {
	trs := make([]particle.Transform, n)
	for i := range trs {
		trs[i] = particle.Transform{
			Translation: ms3.Vec{X: rng.Float32()*2 - 1, Y: rng.Float32()*2 - 1, Z: rng.Float32()*2 - 1},
			RotationX:   rng.Float32() * math32.Pi,
			RotationY:   rng.Float32() * math32.Pi,
			Scale:       1 + rng.Float32()*0.4,
		}
	}
	return trs
}

func TestBaseCubeOutward(t *testing.T) {
	const edge = 0.5
	cube, err := voxrender.BaseCube(edge)
	if err != nil {
		t.Fatal(err)
	}
	if cube.TriangleCount() != voxrender.CubeTriangles {
		t.Fatalf("got %d triangles", cube.TriangleCount())
	}
	for i, tri := range cube.AppendTriangles(nil) {
		centroid := ms3.Scale(1./3, ms3.Add(tri[0], ms3.Add(tri[1], tri[2])))
		n := ms3.Cross(ms3.Sub(tri[1], tri[0]), ms3.Sub(tri[2], tri[0]))
		if ms3.Dot(n, centroid) <= 0 {
			t.Errorf("triangle %d faces inward", i)
		}
		for _, v := range tri {
			if math32.Abs(v.X) != edge/2 || math32.Abs(v.Y) != edge/2 || math32.Abs(v.Z) != edge/2 {
				t.Errorf("vertex %v not a cube corner", v)
			}
		}
	}
	if _, err = voxrender.BaseCube(-1); err == nil {
		t.Error("expected error for negative edge")
	}
}

func TestBakeCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	mesh, err := voxrender.Bake(nil, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if mesh.TriangleCount() != 0 || len(mesh.Vertices) != 0 {
		t.Errorf("expected empty mesh for no pieces, got %d triangles", mesh.TriangleCount())
	}
	for _, n := range []int{1, 7, 300} {
		trs := randomTransforms(rng, n)
		mesh, err = voxrender.Bake(trs, 0.1)
		if err != nil {
			t.Fatal(err)
		}
		if mesh.TriangleCount() != n*voxrender.CubeTriangles {
			t.Errorf("n=%d: got %d triangles", n, mesh.TriangleCount())
		}
		for _, idx := range mesh.Indices {
			if int(idx) >= len(mesh.Vertices) {
				t.Fatalf("index %d out of range", idx)
			}
		}
	}
}

func TestBakeTranslation(t *testing.T) {
	trs := []particle.Transform{{Translation: ms3.Vec{X: 1}, Scale: 1}}
	mesh, err := voxrender.Bake(trs, 1)
	if err != nil {
		t.Fatal(err)
	}
	const half = particle.CubeFill / 2
	for _, v := range mesh.Vertices {
		if math32.Abs(math32.Abs(v.X-1)-half) > 1e-6 || math32.Abs(math32.Abs(v.Y)-half) > 1e-6 {
			t.Errorf("unexpected vertex %v", v)
		}
	}
}

func TestInstanceRendererMatchesBake(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	trs := randomTransforms(rng, 200)
	mesh, err := voxrender.Bake(trs, 0.08)
	if err != nil {
		t.Fatal(err)
	}
	want := mesh.AppendTriangles(nil)
	ir, err := voxrender.NewInstanceRenderer(trs, 0.08)
	if err != nil {
		t.Fatal(err)
	}
	got, err := voxrender.RenderAll(ir, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d triangles, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("triangle %d mismatch: %v != %v", i, got[i], want[i])
		}
	}
	if ir.Remaining() != 0 {
		t.Errorf("expected renderer exhausted, %d remaining", ir.Remaining())
	}
	_, err = ir.ReadTriangles(make([]ms3.Triangle, voxrender.CubeTriangles-1), nil)
	if err != io.ErrShortBuffer {
		t.Errorf("expected short buffer error, got %v", err)
	}
}

func TestWriteBinarySTL(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 25} {
		mesh, err := voxrender.Bake(randomTransforms(rng, n), 0.1)
		if err != nil {
			t.Fatal(err)
		}
		tris := mesh.AppendTriangles(nil)
		var buf bytes.Buffer
		written, err := voxrender.WriteBinarySTL(&buf, tris)
		if err != nil {
			t.Fatal(err)
		}
		want := voxrender.BinarySTLSize(len(tris))
		if written != want || buf.Len() != want || want != 84+50*12*n {
			t.Errorf("n=%d: wrote %d bytes, buffer %d, want %d", n, written, buf.Len(), want)
		}
		if got := binary.LittleEndian.Uint32(buf.Bytes()[80:]); int(got) != len(tris) {
			t.Errorf("n=%d: header triangle count %d", n, got)
		}
	}
}

func TestBinarySTLNormals(t *testing.T) {
	tris := []ms3.Triangle{
		{{}, {X: 2}, {Y: 3}},       // +Z
		{{}, {Z: 1}, {X: 1}},       // +Y
		{{}, {X: 1}, {X: 2}},       // degenerate
		{{Z: 1}, {Z: 1, Y: 4}, {}}, // -X
	}
	want := []ms3.Vec{{Z: 1}, {Y: 1}, {}, {X: -1}}
	var buf bytes.Buffer
	if _, err := voxrender.WriteBinarySTL(&buf, tris); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()[84:]
	for i := range tris {
		rec := b[i*50:]
		got := ms3.Vec{
			X: math32.Float32frombits(binary.LittleEndian.Uint32(rec[0:])),
			Y: math32.Float32frombits(binary.LittleEndian.Uint32(rec[4:])),
			Z: math32.Float32frombits(binary.LittleEndian.Uint32(rec[8:])),
		}
		if ms3.Norm(ms3.Sub(got, want[i])) > 1e-6 {
			t.Errorf("triangle %d: normal %v, want %v", i, got, want[i])
		}
	}
}

func TestWriteASCIISTL(t *testing.T) {
	mesh, err := voxrender.Bake([]particle.Transform{{Scale: 1}, {Translation: ms3.Vec{Y: 1}, Scale: 1}}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	n, err := voxrender.WriteASCIISTL(&buf, "", mesh.AppendTriangles(nil))
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if n != len(out) {
		t.Errorf("reported %d bytes, wrote %d", n, len(out))
	}
	if !strings.HasPrefix(out, "solid voxfield\n") || !strings.HasSuffix(out, "endsolid voxfield\n") {
		t.Errorf("bad solid delimiters:\n%s", out[:min(len(out), 64)])
	}
	if got := strings.Count(out, "facet normal"); got != 2*voxrender.CubeTriangles {
		t.Errorf("got %d facets", got)
	}
}
