package shading

import (
	"math"
	"testing"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/march"
	"github.com/df07/go-raymarcher/pkg/sdf"
)

var testLimits = Limits{MaxDistance: 100, Accuracy: 0.01, MaxIterations: 128}

func spheres(spheres ...sdf.Sphere) *sdf.Field {
	instances := make([]sdf.Instance, len(spheres))
	for i, s := range spheres {
		instances[i] = sdf.Instance{Shape: s}
	}
	return sdf.NewField(sdf.FieldConfig{Instances: instances, Palette: sdf.DefaultPalette()})
}

func TestShadow_OccluderBlocksLight(t *testing.T) {
	// Light travels straight down, occluder hangs above the point
	field := spheres(sdf.NewSphere(core.NewVec3(0, 3, 0), 1))
	shadow := NewShadowEvaluator(march.NewMarcher(field), testLimits)

	down := core.NewVec3(0, -1, 0)
	up := core.NewVec3(0, 1, 0)

	if got := shadow.Shadow(core.Vec3{}, up, down, 4, 1); got != 0 {
		t.Errorf("Full intensity shadow under an occluder should be 0, got %f", got)
	}
	if got := shadow.Shadow(core.Vec3{}, up, down, 4, 0.5); math.Abs(got-0.5) > tolerance {
		t.Errorf("Half intensity shadow should be 0.5, got %f", got)
	}
	if got := shadow.Shadow(core.Vec3{}, up, down, 4, 0); got != 1 {
		t.Errorf("Zero intensity should leave the point lit, got %f", got)
	}
}

func TestShadow_UnoccludedIsLit(t *testing.T) {
	field := spheres(sdf.NewSphere(core.NewVec3(10, 0, 0), 1))
	shadow := NewShadowEvaluator(march.NewMarcher(field), testLimits)

	got := shadow.Shadow(core.Vec3{}, core.NewVec3(0, 1, 0), core.NewVec3(0, -1, 0), 0, 1)
	if got != 1 {
		t.Errorf("Hard shadow with a clear path should be 1, got %f", got)
	}
}

func TestShadow_ClearPathStaysLitWhenSoft(t *testing.T) {
	ground := sdf.NewGroundPlane(0)
	groundOnly := sdf.NewField(sdf.FieldConfig{Ground: &ground, Palette: sdf.DefaultPalette()})
	lone := spheres(sdf.NewSphere(core.NewVec3(0, 0, -5), 1))

	up := core.NewVec3(0, 1, 0)
	down := core.NewVec3(0, -1, 0)
	slanted := core.NewVec3(-0.4, -1, -0.3)

	tests := []struct {
		name  string
		field *sdf.Field
		point core.Vec3
		light core.Vec3
	}{
		{"ground overhead light", groundOnly, core.Vec3{}, down},
		{"ground slanted light", groundOnly, core.NewVec3(2, 0, -3), slanted},
		{"sphere top overhead light", lone, core.NewVec3(0, 1, -5), down},
		{"sphere top slanted light", lone, core.NewVec3(0, 1, -5), slanted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shadow := NewShadowEvaluator(march.NewMarcher(tt.field), testLimits)
			for _, softness := range []float64{1, 4, 16} {
				for _, intensity := range []float64{0.8, 1} {
					if got := shadow.Shadow(tt.point, up, tt.light, softness, intensity); got != 1 {
						t.Errorf("softness=%g intensity=%g: expected an unobstructed surface to be lit, got %f", softness, intensity, got)
					}
				}
			}
		})
	}
}

func TestShadow_PenumbraDarkensWithSoftness(t *testing.T) {
	// Shadow ray grazes past a sphere without touching it
	field := spheres(sdf.NewSphere(core.NewVec3(1.5, 3, 0), 1))
	shadow := NewShadowEvaluator(march.NewMarcher(field), testLimits)

	point := core.Vec3{}
	up := core.NewVec3(0, 1, 0)
	down := core.NewVec3(0, -1, 0)

	hard := shadow.Shadow(point, up, down, 0, 1)
	soft := shadow.Shadow(point, up, down, 4, 1)
	softer := shadow.Shadow(point, up, down, 16, 1)

	if hard != 1 {
		t.Errorf("Near miss with hard shadows should be fully lit, got %f", hard)
	}
	if !(soft < hard) || !(softer <= soft) {
		t.Errorf("Expected shadow to darken as softness grows: hard=%f soft=%f softer=%f", hard, soft, softer)
	}
	if soft <= 0 {
		t.Errorf("Near miss should not be fully shadowed, got %f", soft)
	}
}

func TestShadow_Bounds(t *testing.T) {
	field := spheres(
		sdf.NewSphere(core.NewVec3(0, 0, -5), 1),
		sdf.NewSphere(core.NewVec3(1, 2, -4), 0.5),
	)
	shadow := NewShadowEvaluator(march.NewMarcher(field), testLimits)
	light := core.NewVec3(-0.3, -1, 0.2)

	for _, softness := range []float64{-1, 0, 0.5, 4, 100} {
		for _, intensity := range []float64{-2, 0, 0.3, 1, 7} {
			for _, point := range []core.Vec3{{X: 0, Y: 0, Z: -4}, {X: 0.7, Y: 1, Z: -4.2}, {X: 5, Y: -3, Z: 0}} {
				normal := field.Normal(point)
				got := shadow.Shadow(point, normal, light, softness, intensity)
				if got < 0 || got > 1 || math.IsNaN(got) {
					t.Errorf("softness=%f intensity=%f point=%v: shadow %f outside [0,1]", softness, intensity, point, got)
				}
			}
		}
	}
}

func TestShadow_EmptyFieldIsLit(t *testing.T) {
	shadow := NewShadowEvaluator(march.NewMarcher(spheres()), testLimits)
	got := shadow.Shadow(core.Vec3{}, core.NewVec3(0, 1, 0), core.NewVec3(0, -1, 0), 4, 1)
	if got != 1 {
		t.Errorf("Empty field should cast no shadow, got %f", got)
	}
}
