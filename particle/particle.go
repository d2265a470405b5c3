// Package particle turns voxelized compositions into an animatable field of pieces.
//
// A [Store] holds one [Piece] per surviving voxel cell and a parallel array of
// [Transform] which is rewritten every tick by an [Animator]. Stores are built
// whole by [Build] and never resized: a structural parameter change means a new Store.
package particle

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/chewxy/math32"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/voxfield"
	"github.com/soypat/voxfield/voxeval"
)

// centerTol is the distance to the grid center under which a cell has no defined outward direction.
const centerTol = 1e-6

// Piece is one surviving voxel cell. All fields except Picked are fixed for the lifetime of a build.
type Piece struct {
	// Rest is the cell center.
	Rest ms3.Vec
	// Outward is the unit vector from the origin to Rest, or +Y for the center cell.
	Outward ms3.Vec
	// Jitter is a random unit vector along which noise displaces the piece.
	Jitter ms3.Vec
	// Phase in [0, 2π) desynchronizes the piece's oscillations.
	Phase float32
	// Amplitude in [0.5, 1.2) scales the noise displacement.
	Amplitude float32
	// Picked pieces pop outward and pulse. Toggled by picking only.
	Picked bool
	// Color is a function of the distance of Rest to the origin.
	Color colorful.Color
}

// Transform is the rigid placement of a piece's cube for one frame.
// Rotations are Euler angles in radians applied in X, Y order.
type Transform struct {
	Translation ms3.Vec
	RotationX   float32
	RotationY   float32
	Scale       float32
}

// Store holds the pieces of one build and their current transforms, index aligned.
type Store struct {
	Pieces     []Piece
	Transforms []Transform
	// CellSize is the edge length of the voxel cells the pieces come from.
	CellSize float32
	// MaxDistance is the largest rest distance to the origin among pieces.
	MaxDistance float32
	// Evaluations is the amount of membership tests performed by [Build].
	Evaluations uint64
}

// Len returns the amount of pieces in the store. A nil Store has no pieces.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Pieces)
}

// Build voxelizes the structural parameters of p and returns a new Store with rest transforms.
// Random per-piece attributes are drawn from rng; a nil rng uses the global source.
// A composition with no surviving cells yields an empty store and no error.
// Parameters should be validated beforehand with [voxfield.CompositionParams.Validate].
func Build(ctx context.Context, p voxfield.CompositionParams, rng *rand.Rand) (*Store, error) {
	field, err := voxfield.NewField(p)
	if err != nil {
		return nil, fmt.Errorf("creating field: %w", err)
	}
	grid, err := voxeval.NewGrid(p.Resolution)
	if err != nil {
		return nil, err
	}
	var vp voxeval.VecPool
	counter := &voxeval.CountingField{Field: field}
	cells, err := voxeval.Voxelize(ctx, nil, counter, grid, &vp)
	if err != nil {
		return nil, fmt.Errorf("voxelizing: %w", err)
	}
	s := NewStore(cells, grid.CellSize(), rng)
	s.Evaluations = counter.Evaluations()
	return s, nil
}

// NewStore creates the pieces for the given cell centers. Transforms start at rest.
func NewStore(cells []ms3.Vec, cellSize float32, rng *rand.Rand) *Store {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	var maxDist float32
	for _, c := range cells {
		maxDist = max(maxDist, ms3.Norm(c))
	}
	s := &Store{
		Pieces:      make([]Piece, len(cells)),
		Transforms:  make([]Transform, len(cells)),
		CellSize:    cellSize,
		MaxDistance: maxDist,
	}
	for i, c := range cells {
		dist := ms3.Norm(c)
		var t float32
		if maxDist > centerTol {
			t = dist / maxDist
		}
		s.Pieces[i] = Piece{
			Rest:      c,
			Outward:   outward(c, dist),
			Jitter:    randomUnit(rng),
			Phase:     randomPhase(rng),
			Amplitude: 0.5 + 0.7*rng.Float32(),
			Color:     BaseColor(t),
		}
		s.Transforms[i] = Transform{Translation: c, Scale: 1}
	}
	return s
}

func outward(c ms3.Vec, dist float32) ms3.Vec {
	if dist < centerTol {
		return ms3.Vec{Y: 1}
	}
	return ms3.Scale(1/dist, c)
}

// randomUnit returns a unit vector uniformly distributed on the sphere.
func randomUnit(rng *rand.Rand) ms3.Vec {
	z := 2*rng.Float32() - 1
	phi := 2 * math32.Pi * rng.Float32()
	r := math32.Sqrt(max(0, 1-z*z))
	s, c := math32.Sincos(phi)
	return ms3.Vec{X: r * c, Y: r * s, Z: z}
}

func randomPhase(rng *rand.Rand) float32 {
	ph := 2 * math32.Pi * rng.Float32()
	if ph >= 2*math32.Pi {
		return 0 // Float32 round-off.
	}
	return ph
}

// BaseColor returns the color ramp used for pieces at normalized distance t in [0,1].
func BaseColor(t float32) colorful.Color {
	t = max(0, min(1, t))
	hue := 0.58 + 0.12*t
	light := 0.5 + 0.12*t
	return colorful.Hsl(float64(hue)*360, 0.7, float64(light))
}
