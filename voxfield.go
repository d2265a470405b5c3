package voxfield

import (
	"github.com/chewxy/math32"
	"github.com/soypat/geometry/ms3"
)

const (
	// DefaultRadius is the nominal extent of shapes which take a radius argument.
	DefaultRadius = 0.9
	// epstol is used to check for badly conditioned denominators
	// such as the orbit radius in the spherical power map.
	epstol = 6e-7
	// escapeNorm2 is the squared orbit norm past which fractal iteration is considered escaped.
	escapeNorm2 = 4
)

func absf(a float32) float32 {
	return math32.Abs(a)
}

func clampf(v, Min, Max float32) float32 {
	if v < Min {
		return Min
	} else if v > Max {
		return Max
	}
	return v
}

func cubeBox(halfSide float32) ms3.Box {
	return ms3.Box{
		Min: ms3.Vec{X: -halfSide, Y: -halfSide, Z: -halfSide},
		Max: ms3.Vec{X: halfSide, Y: halfSide, Z: halfSide},
	}
}
