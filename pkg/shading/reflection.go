package shading

import (
	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/march"
)

// MaxReflections caps the number of specular bounces
const MaxReflections = 2

// LocalShader shades a surface hit without reflections
type LocalShader func(hit march.Result, normal core.Vec3) core.Vec3

// ReflectionEvaluator follows specular bounces with an explicit bounded loop
type ReflectionEvaluator struct {
	marcher *march.Marcher
	field   SurfaceField
	env     Environment
	limits  Limits
	local   LocalShader
}

// NewReflectionEvaluator creates a reflection evaluator. local shades every
// surface a reflected ray lands on.
func NewReflectionEvaluator(marcher *march.Marcher, field SurfaceField, env Environment, limits Limits, local LocalShader) *ReflectionEvaluator {
	return &ReflectionEvaluator{
		marcher: marcher,
		field:   field,
		env:     env,
		limits:  limits,
		local:   local,
	}
}

// Reflect returns the reflected color contribution at point.
//
// With zero bounces only the environment in the mirror direction is returned,
// scaled by envIntensity. Otherwise each bounce re-marches from the offset
// surface point: a hit adds the locally shaded color scaled by the product of
// reflection intensities so far, a miss adds the environment and stops.
func (e *ReflectionEvaluator) Reflect(point, normal, incoming core.Vec3, bounces int, reflectionIntensity, envIntensity float64) core.Vec3 {
	bounces = max(0, min(MaxReflections, bounces))
	dir := incoming.Reflect(normal).Normalize()
	if bounces == 0 {
		return e.env.Sample(dir).Multiply(envIntensity)
	}

	bias := e.limits.surfaceBias()
	total := core.Vec3{}
	weight := 1.0
	for range bounces {
		ray := core.NewRay(point.Add(normal.Multiply(bias)), dir)
		hit := e.marcher.March(ray, e.limits.MaxDistance, e.limits.Accuracy, e.limits.MaxIterations)
		if !hit.Hit {
			return total.Add(e.env.Sample(dir).Multiply(weight * envIntensity))
		}

		point = hit.Point
		normal = e.field.Normal(point)
		weight *= reflectionIntensity
		total = total.Add(e.local(hit, normal).Multiply(weight))
		dir = dir.Reflect(normal).Normalize()
	}

	return total
}
