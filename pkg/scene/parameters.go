package scene

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/march"
	"github.com/df07/go-raymarcher/pkg/sdf"
	"github.com/df07/go-raymarcher/pkg/shading"
)

// Primitive types accepted in PrimitiveConfig.Type
const (
	PrimitiveSphere = "sphere"
	PrimitiveBox    = "box"
)

// Environment types accepted in EnvironmentConfig.Type
const (
	EnvironmentSolid    = "solid"
	EnvironmentGradient = "gradient"
	EnvironmentImage    = "image"
)

// PrimitiveConfig describes one shape instance of the scene
type PrimitiveConfig struct {
	Type     string    `json:"type"` // "sphere" or "box"
	Center   core.Vec3 `json:"center"`
	Radius   float64   `json:"radius,omitempty"`   // Sphere radius
	Size     core.Vec3 `json:"size,omitempty"`     // Box half extents
	Rounding float64   `json:"rounding,omitempty"` // Box edge radius
	Repeat   bool      `json:"repeat,omitempty"`   // Fold by the scene repetition interval
	Spin     float64   `json:"spin,omitempty"`     // Multiplier of the rotation angle
	Color    float64   `json:"color"`              // Palette coordinate in [0,1]
}

// LightConfig is the directional light. Direction is the way light travels.
type LightConfig struct {
	Direction core.Vec3 `json:"direction"`
	Color     core.Vec3 `json:"color"`
	Intensity float64   `json:"intensity"`
}

// GroundConfig is the optional horizontal ground plane
type GroundConfig struct {
	Enabled bool      `json:"enabled"`
	Height  float64   `json:"height"`
	Color   core.Vec3 `json:"color"`
}

// EnvironmentConfig selects the background seen on a miss
type EnvironmentConfig struct {
	Type   string    `json:"type"`            // "solid", "gradient" or "image"
	Color  core.Vec3 `json:"color,omitempty"` // Solid color
	Top    core.Vec3 `json:"top,omitempty"`   // Gradient zenith
	Bottom core.Vec3 `json:"bottom,omitempty"`
	Image  string    `json:"image,omitempty"` // Equirectangular image path
}

// Parameters is the complete per-frame scene configuration. A frame renders
// from its own snapshot taken with Clone and never sees later changes.
type Parameters struct {
	Primitives         []PrimitiveConfig `json:"primitives"`
	Smoothing          float64           `json:"smoothing"`
	SeparateColorBlend bool              `json:"separateColorBlend,omitempty"`
	ColorSmoothing     float64           `json:"colorSmoothing,omitempty"`
	RotationAngle      float64           `json:"rotationAngle"`  // Radians
	RepeatInterval     core.Vec3         `json:"repeatInterval"` // 0 disables an axis

	Accuracy      float64 `json:"accuracy"`
	MaxIterations int     `json:"maxIterations"`
	MaxDistance   float64 `json:"maxDistance"`

	Light            LightConfig `json:"light"`
	SoftShadowFactor float64     `json:"softShadowFactor"`
	ShadowIntensity  float64     `json:"shadowIntensity"`

	AOStepSize  float64 `json:"aoStepSize"`
	AOIntensity float64 `json:"aoIntensity"`
	AOSteps     int     `json:"aoSteps"`

	ReflectionCount      int     `json:"reflectionCount"`
	ReflectionIntensity  float64 `json:"reflectionIntensity"`
	EnvironmentIntensity float64 `json:"environmentIntensity"`

	Ground         GroundConfig      `json:"ground"`
	Palette        sdf.Palette       `json:"palette"`
	ColorIntensity float64           `json:"colorIntensity"`
	Environment    EnvironmentConfig `json:"environment"`
	Camera         CameraConfig      `json:"camera"`
}

// DefaultParameters returns the settings used when a scene or file leaves a
// value unset
func DefaultParameters() Parameters {
	return Parameters{
		Smoothing:     0.5,
		Accuracy:      0.01,
		MaxIterations: 128,
		MaxDistance:   100,
		Light: LightConfig{
			Direction: core.NewVec3(-0.4, -1, -0.3),
			Color:     core.NewVec3(1, 1, 1),
			Intensity: 1.2,
		},
		SoftShadowFactor:     4,
		ShadowIntensity:      0.8,
		AOStepSize:           0.1,
		AOIntensity:          2,
		AOSteps:              5,
		ReflectionCount:      1,
		ReflectionIntensity:  0.3,
		EnvironmentIntensity: 0.2,
		Ground: GroundConfig{
			Enabled: true,
			Height:  -1,
			Color:   core.NewVec3(0.35, 0.35, 0.38),
		},
		Palette:        sdf.DefaultPalette(),
		ColorIntensity: 1,
		Environment: EnvironmentConfig{
			Type:   EnvironmentGradient,
			Top:    core.NewVec3(0.5, 0.7, 1.0),
			Bottom: core.NewVec3(1.0, 1.0, 1.0),
		},
		Camera: DefaultCameraConfig(),
	}
}

// Clone returns an independent copy that shares no mutable state with p
func (p Parameters) Clone() Parameters {
	clone := p
	if p.Primitives != nil {
		clone.Primitives = make([]PrimitiveConfig, len(p.Primitives))
		copy(clone.Primitives, p.Primitives)
	}
	return clone
}

// Sanitize returns a copy with every value forced into its documented range.
// The renderer never fails mid-frame, so out-of-range input is clamped here.
func (p Parameters) Sanitize() Parameters {
	s := p.Clone()

	s.Smoothing = nonNegative(s.Smoothing)
	s.ColorSmoothing = nonNegative(s.ColorSmoothing)
	s.RepeatInterval = s.RepeatInterval.Abs()

	if !(s.Accuracy >= march.MinAccuracy) {
		s.Accuracy = march.MinAccuracy
	}
	s.MaxIterations = max(s.MaxIterations, 0)
	s.MaxDistance = nonNegative(s.MaxDistance)

	s.Light.Intensity = nonNegative(s.Light.Intensity)
	s.SoftShadowFactor = nonNegative(s.SoftShadowFactor)
	s.ShadowIntensity = unit(s.ShadowIntensity)

	s.AOStepSize = nonNegative(s.AOStepSize)
	s.AOIntensity = nonNegative(s.AOIntensity)
	s.AOSteps = max(s.AOSteps, 0)

	s.ReflectionCount = max(0, min(shading.MaxReflections, s.ReflectionCount))
	s.ReflectionIntensity = unit(s.ReflectionIntensity)
	s.EnvironmentIntensity = nonNegative(s.EnvironmentIntensity)
	s.ColorIntensity = nonNegative(s.ColorIntensity)

	for i := range s.Primitives {
		prim := &s.Primitives[i]
		prim.Radius = nonNegative(prim.Radius)
		prim.Size = prim.Size.Max(core.Vec3{})
		prim.Rounding = nonNegative(prim.Rounding)
		prim.Color = unit(prim.Color)
	}

	s.Camera = s.Camera.Sanitize()
	return s
}

// Validate reports every problem that Sanitize would silently fix, plus
// references it cannot fix such as unknown primitive types. It is meant for
// configuration files, not per-frame use.
func (p Parameters) Validate() error {
	var problems []string

	if !(p.Accuracy > 0) {
		problems = append(problems, fmt.Sprintf("accuracy must be positive, got %g", p.Accuracy))
	}
	if p.MaxIterations <= 0 {
		problems = append(problems, fmt.Sprintf("maxIterations must be positive, got %d", p.MaxIterations))
	}
	if !(p.MaxDistance > 0) {
		problems = append(problems, fmt.Sprintf("maxDistance must be positive, got %g", p.MaxDistance))
	}
	if p.Smoothing < 0 {
		problems = append(problems, fmt.Sprintf("smoothing must be non-negative, got %g", p.Smoothing))
	}
	if p.SoftShadowFactor < 0 {
		problems = append(problems, fmt.Sprintf("softShadowFactor must be non-negative, got %g", p.SoftShadowFactor))
	}
	if p.ShadowIntensity < 0 || p.ShadowIntensity > 1 {
		problems = append(problems, fmt.Sprintf("shadowIntensity must be within [0,1], got %g", p.ShadowIntensity))
	}
	if p.AOSteps < 0 {
		problems = append(problems, fmt.Sprintf("aoSteps must be non-negative, got %d", p.AOSteps))
	}
	if p.ReflectionCount < 0 || p.ReflectionCount > shading.MaxReflections {
		problems = append(problems, fmt.Sprintf("reflectionCount must be within [0,%d], got %d", shading.MaxReflections, p.ReflectionCount))
	}
	if p.Light.Direction.LengthSquared() == 0 {
		problems = append(problems, "light.direction must be non-zero")
	}

	for i, prim := range p.Primitives {
		switch prim.Type {
		case PrimitiveSphere:
			if prim.Radius < 0 {
				problems = append(problems, fmt.Sprintf("primitives[%d]: radius must be non-negative, got %g", i, prim.Radius))
			}
		case PrimitiveBox:
			if prim.Size.X < 0 || prim.Size.Y < 0 || prim.Size.Z < 0 {
				problems = append(problems, fmt.Sprintf("primitives[%d]: size must be non-negative, got %v", i, prim.Size))
			}
		default:
			problems = append(problems, fmt.Sprintf("primitives[%d]: unknown type %q", i, prim.Type))
		}
	}

	switch p.Environment.Type {
	case EnvironmentSolid, EnvironmentGradient, "":
	case EnvironmentImage:
		if p.Environment.Image == "" {
			problems = append(problems, "environment.image is required for image environments")
		}
	default:
		problems = append(problems, fmt.Sprintf("environment.type: unknown type %q", p.Environment.Type))
	}

	if p.Camera.VFov <= 0 || p.Camera.VFov >= 180 {
		problems = append(problems, fmt.Sprintf("camera.vfov must be within (0,180), got %g", p.Camera.VFov))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// FieldConfig converts the primitive list into the distance field description.
// Unknown primitive types are skipped.
func (p Parameters) FieldConfig() sdf.FieldConfig {
	instances := make([]sdf.Instance, 0, len(p.Primitives))
	for _, prim := range p.Primitives {
		var shape sdf.Shape
		switch prim.Type {
		case PrimitiveSphere:
			shape = sdf.NewSphere(prim.Center, prim.Radius)
		case PrimitiveBox:
			shape = sdf.NewBox(prim.Center, prim.Size, prim.Rounding)
		default:
			continue
		}
		instances = append(instances, sdf.Instance{
			Shape:  shape,
			Repeat: prim.Repeat,
			Spin:   prim.Spin,
			Color:  prim.Color,
		})
	}

	config := sdf.FieldConfig{
		Instances:          instances,
		Smoothing:          p.Smoothing,
		SeparateColorBlend: p.SeparateColorBlend,
		ColorSmoothing:     p.ColorSmoothing,
		RotationAngle:      p.RotationAngle,
		RepeatInterval:     p.RepeatInterval,
		GroundColor:        p.Ground.Color,
		Palette:            p.Palette,
	}
	if p.Ground.Enabled {
		ground := sdf.NewGroundPlane(p.Ground.Height)
		config.Ground = &ground
	}
	return config
}

// ShadingConfig converts the lighting settings for the shader
func (p Parameters) ShadingConfig() shading.Config {
	return shading.Config{
		Limits: shading.Limits{
			MaxDistance:   p.MaxDistance,
			Accuracy:      p.Accuracy,
			MaxIterations: p.MaxIterations,
		},
		Light: shading.Light{
			Direction: p.Light.Direction,
			Color:     p.Light.Color,
			Intensity: p.Light.Intensity,
		},
		ShadowSoftness:       p.SoftShadowFactor,
		ShadowIntensity:      p.ShadowIntensity,
		AOStepSize:           p.AOStepSize,
		AOIntensity:          p.AOIntensity,
		AOSteps:              p.AOSteps,
		Reflections:          p.ReflectionCount,
		ReflectionIntensity:  p.ReflectionIntensity,
		EnvironmentIntensity: p.EnvironmentIntensity,
		ColorIntensity:       p.ColorIntensity,
	}
}

// NewEnvironment builds the background described by the environment settings
func (p Parameters) NewEnvironment() (shading.Environment, error) {
	env := p.Environment
	switch env.Type {
	case EnvironmentSolid:
		return shading.NewSolidEnvironment(env.Color), nil
	case EnvironmentGradient, "":
		return shading.NewGradientEnvironment(env.Top, env.Bottom), nil
	case EnvironmentImage:
		img, err := shading.LoadImageEnvironment(env.Image)
		if err != nil {
			return nil, err
		}
		return img, nil
	default:
		return nil, fmt.Errorf("unknown environment type %q", env.Type)
	}
}

func nonNegative(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	return x
}

func unit(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return max(0, min(1, x))
}
