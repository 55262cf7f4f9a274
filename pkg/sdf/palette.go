package sdf

import (
	"math"

	"github.com/df07/go-raymarcher/pkg/core"
)

// PaletteSize is the number of color stops in a palette
const PaletteSize = 8

// Palette is an eight stop gradient sampled by a coordinate in [0,1]
type Palette [PaletteSize]core.Vec3

// DefaultPalette returns a warm-to-cool gradient
func DefaultPalette() Palette {
	return Palette{
		core.NewVec3(0.95, 0.26, 0.21),
		core.NewVec3(0.96, 0.49, 0.20),
		core.NewVec3(0.98, 0.76, 0.18),
		core.NewVec3(0.55, 0.80, 0.29),
		core.NewVec3(0.18, 0.72, 0.56),
		core.NewVec3(0.16, 0.55, 0.82),
		core.NewVec3(0.35, 0.36, 0.80),
		core.NewVec3(0.62, 0.30, 0.74),
	}
}

// Sample returns the gradient color at t. t is clamped to [0,1].
func (p Palette) Sample(t float64) core.Vec3 {
	if math.IsNaN(t) {
		t = 0
	}
	x := clamp01(t) * (PaletteSize - 1)
	i := int(math.Floor(x))
	if i >= PaletteSize-1 {
		return p[PaletteSize-1]
	}
	return p[i].Lerp(p[i+1], x-float64(i))
}
