package scene

import (
	"math"
	"strings"
	"testing"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/march"
	"github.com/df07/go-raymarcher/pkg/sdf"
)

func TestClone_Independent(t *testing.T) {
	original := NewDefaultScene()
	clone := original.Clone()

	clone.Primitives[0].Radius = 42
	clone.Palette[0] = core.NewVec3(9, 9, 9)
	clone.RotationAngle = 3

	if original.Primitives[0].Radius == 42 {
		t.Error("Mutating the clone's primitives changed the original")
	}
	if original.Palette[0] == core.NewVec3(9, 9, 9) {
		t.Error("Mutating the clone's palette changed the original")
	}
	if original.RotationAngle == 3 {
		t.Error("Mutating the clone's angle changed the original")
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Parameters)
		check  func(t *testing.T, p Parameters)
	}{
		{
			name:   "zero accuracy",
			modify: func(p *Parameters) { p.Accuracy = 0 },
			check: func(t *testing.T, p Parameters) {
				if p.Accuracy != march.MinAccuracy {
					t.Errorf("Expected accuracy %g, got %g", march.MinAccuracy, p.Accuracy)
				}
			},
		},
		{
			name:   "NaN accuracy",
			modify: func(p *Parameters) { p.Accuracy = math.NaN() },
			check: func(t *testing.T, p Parameters) {
				if p.Accuracy != march.MinAccuracy {
					t.Errorf("Expected accuracy %g, got %g", march.MinAccuracy, p.Accuracy)
				}
			},
		},
		{
			name:   "negative iterations",
			modify: func(p *Parameters) { p.MaxIterations = -4; p.AOSteps = -1 },
			check: func(t *testing.T, p Parameters) {
				if p.MaxIterations != 0 || p.AOSteps != 0 {
					t.Errorf("Expected counts clamped to 0, got %d and %d", p.MaxIterations, p.AOSteps)
				}
			},
		},
		{
			name:   "reflection count above cap",
			modify: func(p *Parameters) { p.ReflectionCount = 9 },
			check: func(t *testing.T, p Parameters) {
				if p.ReflectionCount != 2 {
					t.Errorf("Expected 2 bounces, got %d", p.ReflectionCount)
				}
			},
		},
		{
			name:   "negative reflection count",
			modify: func(p *Parameters) { p.ReflectionCount = -1 },
			check: func(t *testing.T, p Parameters) {
				if p.ReflectionCount != 0 {
					t.Errorf("Expected 0 bounces, got %d", p.ReflectionCount)
				}
			},
		},
		{
			name: "intensities",
			modify: func(p *Parameters) {
				p.ShadowIntensity = 3
				p.ReflectionIntensity = -1
				p.SoftShadowFactor = -2
				p.Smoothing = -0.5
			},
			check: func(t *testing.T, p Parameters) {
				if p.ShadowIntensity != 1 || p.ReflectionIntensity != 0 {
					t.Errorf("Expected intensities clamped to [0,1], got %g and %g", p.ShadowIntensity, p.ReflectionIntensity)
				}
				if p.SoftShadowFactor != 0 || p.Smoothing != 0 {
					t.Errorf("Expected non-negative factors, got %g and %g", p.SoftShadowFactor, p.Smoothing)
				}
			},
		},
		{
			name: "negative sizes",
			modify: func(p *Parameters) {
				p.Primitives = []PrimitiveConfig{
					{Type: PrimitiveSphere, Radius: -1, Color: 2},
					{Type: PrimitiveBox, Size: core.NewVec3(-1, 2, -3), Rounding: -0.1},
				}
			},
			check: func(t *testing.T, p Parameters) {
				if p.Primitives[0].Radius != 0 || p.Primitives[0].Color != 1 {
					t.Errorf("Unexpected sphere %+v", p.Primitives[0])
				}
				if p.Primitives[1].Size != core.NewVec3(0, 2, 0) || p.Primitives[1].Rounding != 0 {
					t.Errorf("Unexpected box %+v", p.Primitives[1])
				}
			},
		},
		{
			name:   "negative repeat interval",
			modify: func(p *Parameters) { p.RepeatInterval = core.NewVec3(-2, 0, 3) },
			check: func(t *testing.T, p Parameters) {
				if p.RepeatInterval != core.NewVec3(2, 0, 3) {
					t.Errorf("Expected absolute interval, got %v", p.RepeatInterval)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewDefaultScene()
			tt.modify(&p)
			before := p.Clone()
			sanitized := p.Sanitize()
			tt.check(t, sanitized)

			// Sanitize must not touch its receiver
			if len(p.Primitives) > 0 && p.Primitives[0] != before.Primitives[0] {
				t.Error("Sanitize modified the original parameters")
			}
		})
	}
}

func TestSanitize_DefaultsUnchanged(t *testing.T) {
	p := NewDefaultScene()
	s := p.Sanitize()
	if s.Accuracy != p.Accuracy || s.MaxIterations != p.MaxIterations || s.ReflectionCount != p.ReflectionCount {
		t.Errorf("Sanitize changed valid defaults: %+v", s)
	}
}

func TestValidate(t *testing.T) {
	if err := NewDefaultScene().Validate(); err != nil {
		t.Fatalf("Default scene should validate: %v", err)
	}

	p := NewDefaultScene()
	p.Accuracy = 0
	p.MaxIterations = 0
	p.ReflectionCount = 3
	p.Primitives = append(p.Primitives, PrimitiveConfig{Type: "torus"})
	p.Environment = EnvironmentConfig{Type: EnvironmentImage}

	err := p.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}

	// Every problem is reported at once
	for _, want := range []string{"accuracy", "maxIterations", "reflectionCount", `unknown type "torus"`, "environment.image"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %q, got %v", want, err)
		}
	}
}

func TestFieldConfig(t *testing.T) {
	p := NewSingleSphereScene()
	p.Primitives = append(p.Primitives,
		PrimitiveConfig{Type: PrimitiveBox, Center: core.NewVec3(1, 0, 0), Size: core.NewVec3(1, 1, 1), Repeat: true, Spin: 2, Color: 0.3},
		PrimitiveConfig{Type: "unknown"},
	)
	p.RotationAngle = 0.5

	config := p.FieldConfig()
	if len(config.Instances) != 2 {
		t.Fatalf("Expected unknown primitives to be skipped, got %d instances", len(config.Instances))
	}
	if _, ok := config.Instances[0].Shape.(sdf.Sphere); !ok {
		t.Errorf("Expected sphere, got %T", config.Instances[0].Shape)
	}
	box, ok := config.Instances[1].Shape.(sdf.Box)
	if !ok {
		t.Fatalf("Expected box, got %T", config.Instances[1].Shape)
	}
	if box.HalfExtents != core.NewVec3(1, 1, 1) {
		t.Errorf("Unexpected half extents %v", box.HalfExtents)
	}
	if !config.Instances[1].Repeat || config.Instances[1].Spin != 2 || config.Instances[1].Color != 0.3 {
		t.Errorf("Instance settings not carried over: %+v", config.Instances[1])
	}
	if config.Ground != nil {
		t.Error("Single sphere scene has no ground")
	}
	if config.RotationAngle != 0.5 {
		t.Errorf("Expected rotation 0.5, got %f", config.RotationAngle)
	}

	withGround := NewDefaultScene().FieldConfig()
	if withGround.Ground == nil || withGround.Ground.Offset != -1 {
		t.Errorf("Expected ground plane at -1, got %+v", withGround.Ground)
	}
}

func TestShadingConfig(t *testing.T) {
	p := NewDefaultScene()
	config := p.ShadingConfig()
	if config.Limits.Accuracy != p.Accuracy || config.Limits.MaxIterations != p.MaxIterations || config.Limits.MaxDistance != p.MaxDistance {
		t.Errorf("Limits not carried over: %+v", config.Limits)
	}
	if config.Reflections != p.ReflectionCount || config.ShadowSoftness != p.SoftShadowFactor {
		t.Errorf("Shading settings not carried over: %+v", config)
	}
}

func TestNewEnvironment(t *testing.T) {
	p := DefaultParameters()

	p.Environment = EnvironmentConfig{Type: EnvironmentSolid, Color: core.NewVec3(0.1, 0.2, 0.3)}
	env, err := p.NewEnvironment()
	if err != nil {
		t.Fatalf("Solid environment failed: %v", err)
	}
	if got := env.Sample(core.NewVec3(0, 1, 0)); got != core.NewVec3(0.1, 0.2, 0.3) {
		t.Errorf("Unexpected solid color %v", got)
	}

	p.Environment = EnvironmentConfig{Type: EnvironmentImage, Image: "missing.png"}
	if _, err := p.NewEnvironment(); err == nil {
		t.Error("Expected error for missing environment image")
	}

	p.Environment = EnvironmentConfig{Type: "nebula"}
	if _, err := p.NewEnvironment(); err == nil {
		t.Error("Expected error for unknown environment type")
	}
}
