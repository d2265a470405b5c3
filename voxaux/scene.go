// Package voxaux drives the voxel particle kernel frame by frame and exposes
// the operations a rendering loop needs: rebuild, tick, pick, stats and export.
package voxaux

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/chewxy/math32"
	"github.com/soypat/voxfield"
	"github.com/soypat/voxfield/particle"
)

// Config holds scene knobs that are not part of the composition parameters.
type Config struct {
	// StatsEvery is the amount of ticks between statistics refreshes.
	StatsEvery int
	// SoftMaxResolution is the resolution above which rebuilds log a warning.
	SoftMaxResolution int
	// ExportWarnPieces is the piece count above which exports log a warning.
	ExportWarnPieces int
	// MaxExportPieces, if positive, makes exports of more pieces fail with [ErrExportTooLarge].
	MaxExportPieces int
	// Rand is the source per-piece random attributes are drawn from.
	// If nil a randomly seeded source is used.
	Rand *rand.Rand
}

// DefaultConfig returns the configuration used when a zero Config is passed to [NewScene].
func DefaultConfig() Config {
	return Config{
		StatsEvery:        15,
		SoftMaxResolution: voxfield.SoftMaxResolution,
		ExportWarnPieces:  20000,
	}
}

var (
	// ErrExportTooLarge is returned by exports above [Config.MaxExportPieces].
	ErrExportTooLarge = errors.New("too many pieces to export")
	errSuperseded     = errors.New("rebuild superseded")
)

// Stats is the throttled statistics snapshot of a scene.
type Stats struct {
	PieceCount int
	AudioLevel float32
	// Frame is the tick count at which the snapshot was taken.
	Frame uint64
	// Ready is false while a requested rebuild has not been swapped in yet.
	// It is not throttled.
	Ready bool
}

// Scene owns the mutable state of one particle session: the composition
// parameters, the current store and the smoothed animation state.
// Methods are safe for concurrent use; ticks are serialized.
type Scene struct {
	mu     sync.Mutex
	cfg    Config
	rng    *rand.Rand
	params voxfield.CompositionParams
	store  *particle.Store
	anim   particle.Animator

	// queued is applied synchronously at the top of the next tick.
	queued *voxfield.CompositionParams
	// built is a store finished in the background waiting to be swapped in.
	built       *particle.Store
	builtParams voxfield.CompositionParams
	builtGen    uint64
	// target holds the structure of the latest rebuild requested.
	target   voxfield.CompositionParams
	inflight int
	cancel   context.CancelFunc
	gen      uint64

	frame      uint64
	audioLevel float32
	stats      Stats
}

// NewScene validates p and builds its first store synchronously.
func NewScene(ctx context.Context, p voxfield.CompositionParams, cfg Config) (*Scene, error) {
	def := DefaultConfig()
	if cfg.StatsEvery <= 0 {
		cfg.StatsEvery = def.StatsEvery
	}
	if cfg.SoftMaxResolution <= 0 {
		cfg.SoftMaxResolution = def.SoftMaxResolution
	}
	if cfg.ExportWarnPieces <= 0 {
		cfg.ExportWarnPieces = def.ExportWarnPieces
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	s := &Scene{cfg: cfg, rng: rng}
	err := s.Rebuild(ctx, p)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Params returns a copy of the current composition parameters.
func (s *Scene) Params() voxfield.CompositionParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// SetParams validates and applies p. Animation parameters take effect on the next tick.
// A structural change queues a rebuild like [Scene.RequestRebuild]. Going back to the
// structure of the current store drops any rebuild still pending.
func (s *Scene) SetParams(p voxfield.CompositionParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	animated := p
	adoptStructure(&animated, &s.params)
	switch {
	case p.StructuralEqual(&s.target):
	case p.StructuralEqual(&s.params):
		s.supersede()
		s.target = s.params
	default:
		s.supersede()
		s.queued = &p
		s.target = p
	}
	s.params = animated
	return nil
}

// RequestRebuild queues a rebuild with p to run at the top of the next tick.
// Requesting again before that tick replaces the queued parameters.
// Rebuilds started earlier and not yet swapped in are cancelled.
func (s *Scene) RequestRebuild(p voxfield.CompositionParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supersede()
	s.queued = &p
	s.target = p
	animated := p
	adoptStructure(&animated, &s.params)
	s.params = animated
	return nil
}

// Rebuild validates p and replaces the store synchronously. The new store
// is constructed before the swap so no tick sees a partial store.
// Rebuilds started earlier are cancelled. If another rebuild is requested
// while this one runs Rebuild returns an error and the store is left as is.
func (s *Scene) Rebuild(ctx context.Context, p voxfield.CompositionParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.supersede()
	s.target = p
	gen := s.gen
	rng := s.childRand()
	s.mu.Unlock()
	store, err := s.build(ctx, p, rng)
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return errSuperseded
	} else if err != nil {
		s.target = s.params
		return err
	}
	s.swap(store, p)
	return nil
}

// StartRebuild builds p in a new goroutine, cancelling any rebuild previously
// requested. The finished store is swapped in at the top of the next tick.
// The returned channel receives the build result once and is then closed.
func (s *Scene) StartRebuild(ctx context.Context, p voxfield.CompositionParams) <-chan error {
	done := make(chan error, 1)
	if err := p.Validate(); err != nil {
		done <- err
		close(done)
		return done
	}
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.supersede()
	s.cancel = cancel
	s.target = p
	gen := s.gen
	s.inflight++
	rng := s.childRand()
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer cancel()
		store, err := s.build(ctx, p, rng)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.inflight--
		if gen != s.gen {
			done <- errors.Join(errSuperseded, err)
			return
		}
		s.cancel = nil
		if err != nil {
			s.target = s.params
			done <- err
			return
		}
		s.built = store
		s.builtParams = p
		s.builtGen = gen
		done <- nil
	}()
	return done
}

// supersede invalidates every rebuild requested so far: the queued parameters,
// a finished background store and a background build still running.
// Must be called with mu held.
func (s *Scene) supersede() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.queued = nil
	s.built, s.builtParams = nil, voxfield.CompositionParams{}
}

// adoptStructure copies the structural parameters of src into dst.
func adoptStructure(dst, src *voxfield.CompositionParams) {
	dst.Mode = src.Mode
	dst.Shape = src.Shape
	dst.Elements = src.Elements
	dst.Resolution = src.Resolution
}

func (s *Scene) build(ctx context.Context, p voxfield.CompositionParams, rng *rand.Rand) (*particle.Store, error) {
	log := Logger()
	if p.Resolution > s.cfg.SoftMaxResolution {
		log.Warn("resolution above soft limit, rebuild may be slow",
			"resolution", p.Resolution, "limit", s.cfg.SoftMaxResolution, "cells", p.Resolution*p.Resolution*p.Resolution)
	}
	watch := stopwatch()
	store, err := particle.Build(ctx, p, rng)
	if err != nil {
		return nil, fmt.Errorf("rebuild: %w", err)
	}
	log.Info("rebuilt particle field", "mode", p.Mode, "resolution", p.Resolution, "pieces", store.Len(), "evaluations", store.Evaluations, "took", watch())
	return store, nil
}

// childRand returns a generator seeded from the scene's source. Must be called with mu held.
func (s *Scene) childRand() *rand.Rand {
	return rand.New(rand.NewSource(s.rng.Int63()))
}

// swap replaces the current store. Must be called with mu held.
func (s *Scene) swap(store *particle.Store, p voxfield.CompositionParams) {
	s.store = store
	s.params = p
	s.refreshStats()
}

// Tick applies any pending rebuild and then advances the animation by one frame.
func (s *Scene) Tick(in particle.Input) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.built != nil && s.builtGen == s.gen {
		// Animation parameters set while building are kept.
		p := s.params
		adoptStructure(&p, &s.builtParams)
		s.swap(s.built, p)
	}
	s.built, s.builtParams = nil, voxfield.CompositionParams{}
	if s.queued != nil {
		p := s.params
		adoptStructure(&p, s.queued)
		s.queued = nil
		store, err := s.build(context.Background(), p, s.childRand())
		if err != nil {
			s.target = s.params
			return err
		}
		s.swap(store, p)
	}
	in.AudioLevel = clampUnit(in.AudioLevel)
	s.audioLevel = in.AudioLevel
	s.anim.Tick(s.store, &s.params, in)
	s.frame++
	if (s.frame-1)%uint64(s.cfg.StatsEvery) == 0 {
		s.refreshStats()
		Logger().Debug("tick", "frame", s.frame, "pieces", s.stats.PieceCount, "explode", s.anim.CurrentExplode, "noise", s.anim.CurrentNoise)
	}
	return nil
}

func (s *Scene) refreshStats() {
	s.stats = Stats{
		PieceCount: s.store.Len(),
		AudioLevel: s.audioLevel,
		Frame:      s.frame,
	}
}

// Stats returns the statistics snapshot taken at the last refresh.
// Ready is always current.
func (s *Scene) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Ready = s.queued == nil && s.built == nil && s.inflight == 0
	return st
}

// Frame returns the amount of ticks run.
func (s *Scene) Frame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// Toggle flips the picked state of piece i.
func (s *Scene) Toggle(i int) (picked, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Toggle(i)
}

// Pick toggles the piece hit first by ray, given in the scene's model frame.
func (s *Scene) Pick(ray particle.Ray) (index int, picked, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	index, ok = s.store.Pick(ray)
	if !ok {
		return -1, false, false
	}
	picked, _ = s.store.Toggle(index)
	return index, picked, true
}

// Snapshot is a copy of the drawable state of a scene.
type Snapshot struct {
	Params        voxfield.CompositionParams
	Transforms    []particle.Transform
	Pieces        []particle.Piece
	CellSize      float32
	GroupRotation float32
	Frame         uint64
}

// Snapshot copies the current transforms and pieces.
func (s *Scene) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Params:        s.params,
		GroupRotation: s.anim.GroupRotation(),
		Frame:         s.frame,
	}
	if s.store != nil {
		snap.Transforms = append([]particle.Transform(nil), s.store.Transforms...)
		snap.Pieces = append([]particle.Piece(nil), s.store.Pieces...)
		snap.CellSize = s.store.CellSize
	}
	return snap
}

func clampUnit(v float32) float32 {
	if math32.IsNaN(v) {
		return 0
	}
	return max(0, min(1, v))
}
