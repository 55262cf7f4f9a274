package shading

import (
	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/march"
)

// SurfaceField is a distance field that can also estimate normals
type SurfaceField interface {
	march.Field
	Normal(p core.Vec3) core.Vec3
}

// Light is a directional light. Direction is the way the light travels.
type Light struct {
	Direction core.Vec3
	Color     core.Vec3
	Intensity float64
}

// Config holds the shading settings for one frame
type Config struct {
	Limits Limits
	Light  Light

	ShadowSoftness  float64 // Penumbra width factor, 0 for hard shadows
	ShadowIntensity float64 // [0,1]

	AOStepSize  float64
	AOIntensity float64
	AOSteps     int

	Reflections          int // Bounce cap, clamped to [0,2]
	ReflectionIntensity  float64
	EnvironmentIntensity float64

	ColorIntensity float64
}

// Shader combines surface color, lighting, shadow, occlusion and reflection
// into the final color of a camera ray
type Shader struct {
	field      SurfaceField
	env        Environment
	config     Config
	marcher    *march.Marcher
	shadow     *ShadowEvaluator
	ao         *AOEvaluator
	reflection *ReflectionEvaluator
}

// NewShader builds the shading stack for one frame. A nil environment is black.
func NewShader(field SurfaceField, env Environment, config Config) *Shader {
	if env == nil {
		env = NewSolidEnvironment(core.Vec3{})
	}

	s := &Shader{
		field:   field,
		env:     env,
		config:  config,
		marcher: march.NewMarcher(field),
		ao:      NewAOEvaluator(field),
	}
	s.shadow = NewShadowEvaluator(s.marcher, config.Limits)
	s.reflection = NewReflectionEvaluator(s.marcher, field, env, config.Limits, s.shadeLocal)
	return s
}

// Marcher returns the marcher shared by primary and secondary rays
func (s *Shader) Marcher() *march.Marcher {
	return s.marcher
}

// Environment returns the background used on a miss
func (s *Shader) Environment() Environment {
	return s.env
}

// Shade returns the color seen along ray
func (s *Shader) Shade(ray core.Ray) core.Vec3 {
	color, _ := s.ShadeRay(ray)
	return color
}

// ShadeRay marches ray and shades the result, also returning the march
// result for statistics. A miss returns the environment sample unmodified.
func (s *Shader) ShadeRay(ray core.Ray) (core.Vec3, march.Result) {
	limits := s.config.Limits
	result := s.marcher.March(ray, limits.MaxDistance, limits.Accuracy, limits.MaxIterations)
	if !result.Hit {
		return s.env.Sample(ray.Direction), result
	}
	return s.ShadeHit(ray, result), result
}

// ShadeHit shades a surface hit reached along ray, including reflections
func (s *Shader) ShadeHit(ray core.Ray, hit march.Result) core.Vec3 {
	normal := s.field.Normal(hit.Point)
	color := s.shadeLocal(hit, normal)

	reflected := s.reflection.Reflect(hit.Point, normal, ray.Direction,
		s.config.Reflections, s.config.ReflectionIntensity, s.config.EnvironmentIntensity)

	return color.Add(reflected)
}

// shadeLocal applies color, direct light, shadow and occlusion at a hit
func (s *Shader) shadeLocal(hit march.Result, normal core.Vec3) core.Vec3 {
	cfg := s.config
	light := cfg.Light

	base := hit.Sample.Color.Multiply(cfg.ColorIntensity)
	toLight := light.Direction.Negate().Normalize()
	lambert := 0.5*normal.Dot(toLight) + 0.5 // Half-Lambert

	shadow := s.shadow.Shadow(hit.Point, normal, light.Direction, cfg.ShadowSoftness, cfg.ShadowIntensity)
	ao := s.ao.Occlusion(hit.Point, normal, cfg.AOStepSize, cfg.AOIntensity, cfg.AOSteps)

	return base.MultiplyVec(light.Color).Multiply(light.Intensity * lambert * shadow * ao)
}
