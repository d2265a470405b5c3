package particle

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/glgl/math/ms1"
	"github.com/soypat/voxfield"
)

const (
	// Smoothing is the fraction of the remaining distance to target covered each tick.
	Smoothing = 0.08
	// AutoRotateRate is the whole field's rotation speed in radians per second.
	AutoRotateRate = 0.25

	audioExplodeGain = 0.9
	audioNoiseGain   = 0.8
	explodeReach     = 1.5
	noiseReach       = 0.12
	pickedLift       = 0.5
)

// Input holds the externally driven values read at the top of a tick.
type Input struct {
	// Elapsed is the time in seconds since the animation started.
	Elapsed float32
	// Delta is the time in seconds since the previous tick.
	Delta float32
	// AudioLevel in [0,1]. Only read when the parameters enable audio.
	AudioLevel float32
}

// Animator smooths explode and noise toward their targets and displaces pieces.
// The zero value is ready to use and starts from rest. An Animator is not safe for concurrent use.
type Animator struct {
	CurrentExplode float32
	CurrentNoise   float32
	rotation       float32
}

// Targets returns the explode and noise values the animator chases for the given parameters.
func Targets(p *voxfield.CompositionParams, audioLevel float32) (explode, noise float32) {
	explode, noise = p.Explode, p.Noise
	if p.IsScrambled {
		explode, noise = voxfield.MaxExplode, voxfield.MaxNoise
	}
	if p.AudioEnabled {
		lvl := ms1.Clamp(audioLevel, 0, 1)
		explode += lvl * audioExplodeGain
		noise += lvl * audioNoiseGain
	}
	return min(explode, voxfield.MaxExplode), min(noise, voxfield.MaxNoise)
}

// Step advances the smoothed state by one tick without touching any store.
func (a *Animator) Step(p *voxfield.CompositionParams, in Input) {
	te, tn := Targets(p, in.AudioLevel)
	a.CurrentExplode = ms1.Interp(a.CurrentExplode, te, Smoothing)
	a.CurrentNoise = ms1.Interp(a.CurrentNoise, tn, Smoothing)
	if p.AutoRotate {
		a.rotation += in.Delta * AutoRotateRate
		if a.rotation > 2*math32.Pi {
			a.rotation -= 2 * math32.Pi
		}
	}
}

// GroupRotation returns the accumulated auto rotation about Y in radians, applied to the whole field.
func (a *Animator) GroupRotation() float32 { return a.rotation }

// Tick steps the smoothed state and rewrites every transform of s. s may be nil.
func (a *Animator) Tick(s *Store, p *voxfield.CompositionParams, in Input) {
	a.Step(p, in)
	if s == nil {
		return
	}
	animTime := in.Elapsed * (0.2 + p.Speed*1.3)
	ce, cn := a.CurrentExplode, a.CurrentNoise
	for i := range s.Pieces {
		s.Transforms[i] = pieceTransform(&s.Pieces[i], animTime, ce, cn)
	}
}

func pieceTransform(pc *Piece, animTime, explode, noise float32) Transform {
	rest, ph := pc.Rest, pc.Phase
	pos := ms3.Add(rest, ms3.Scale(explode*explodeReach, pc.Outward))
	n := math32.Sin(animTime*1.1+3.1*rest.X+ph) +
		math32.Cos(animTime*0.8+4.3*rest.Y-ph) +
		math32.Sin(animTime*1.7+5.3*rest.Z+ph*0.5)
	pos = ms3.Add(pos, ms3.Scale(n*noiseReach*noise*pc.Amplitude, pc.Jitter))
	scale := float32(1)
	if pc.Picked {
		wobble := 0.15 * math32.Sin(animTime*2.1+ph)
		pos = ms3.Add(pos, ms3.Scale(pickedLift+wobble, pc.Outward))
		scale = 1.25 + 0.15*math32.Sin(animTime*4.0+ph)
	}
	return Transform{
		Translation: pos,
		RotationY:   (animTime*0.15 + ph) * noise,
		RotationX:   0.2 * noise * math32.Sin(animTime*0.5+ph),
		Scale:       scale,
	}
}
