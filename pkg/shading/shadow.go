package shading

import (
	"math"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/march"
)

const (
	// minSurfaceBias is the smallest offset applied to secondary ray origins
	minSurfaceBias = 1e-4

	// shadowHardness is the penumbra sharpness at a softness of 1. The
	// effective sharpness is shadowHardness/sqrt(softness), never below 1.
	shadowHardness = 8.0
)

// Limits bounds every march issued while shading a pixel
type Limits struct {
	MaxDistance   float64
	Accuracy      float64
	MaxIterations int
}

// surfaceBias returns how far secondary rays start off the surface so they
// do not immediately re-hit it
func (l Limits) surfaceBias() float64 {
	return max(2*l.Accuracy, minSurfaceBias)
}

// ShadowEvaluator estimates soft shadows toward a directional light
type ShadowEvaluator struct {
	marcher *march.Marcher
	limits  Limits
}

// NewShadowEvaluator creates a shadow evaluator that reuses the scene marcher
func NewShadowEvaluator(marcher *march.Marcher, limits Limits) *ShadowEvaluator {
	return &ShadowEvaluator{marcher: marcher, limits: limits}
}

// Shadow returns the light attenuation at point in [0,1], 1 meaning fully lit.
//
// lightDirection is the direction the light travels, so the shadow ray is cast
// toward its negation. The penumbra ratio is k·d/t with k = max(1, 8/sqrt(softness)),
// so the penumbra widens with softness while a surface facing an unobstructed
// light stays lit. A softness of 0 gives hard shadows. intensity scales how
// strongly shadows darken.
func (e *ShadowEvaluator) Shadow(point, normal, lightDirection core.Vec3, softness, intensity float64) float64 {
	intensity = max(0, min(1, intensity))
	if intensity == 0 {
		return 1
	}

	toLight := lightDirection.Negate().Normalize()
	if toLight == (core.Vec3{}) {
		return 1
	}
	origin := point.Add(normal.Multiply(e.limits.surfaceBias()))

	var k float64
	if s := math.Sqrt(max(softness, 0)); s > 0 {
		k = max(1, shadowHardness/s)
	}
	attenuation := 1.0
	result := e.marcher.Trace(core.NewRay(origin, toLight), e.limits.MaxDistance, e.limits.Accuracy, e.limits.MaxIterations,
		func(step march.Step) {
			if k == 0 || step.T <= 0 || step.T > e.limits.MaxDistance {
				return
			}
			if ratio := k * step.Distance / step.T; ratio < attenuation {
				attenuation = ratio
			}
		})

	if result.Hit {
		attenuation = 0
	}
	attenuation = max(0, min(1, attenuation))

	return 1 - intensity*(1-attenuation)
}
