package sdf

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-raymarcher/pkg/core"
)

// NormalEpsilon is the central-difference step used for normals. It is fixed
// and independent of the march accuracy.
const NormalEpsilon = 1e-4

// Instance places a shape in the field
type Instance struct {
	Shape  Shape
	Repeat bool    // Fold the query point by the field's repetition interval
	Spin   float64 // Multiplier of the field rotation angle, 0 disables rotation
	Color  float64 // Palette coordinate in [0,1]
}

// Sample is the result of evaluating the field at a point
type Sample struct {
	Distance float64
	Color    core.Vec3 // Blended RGB color
	Index    float64   // Blended palette coordinate
	Ground   bool      // True when the ground plane is the nearest surface
}

// FieldConfig describes everything the field needs to evaluate distances
type FieldConfig struct {
	Instances          []Instance
	Smoothing          float64   // Smooth-min blend radius, 0 for a hard union
	SeparateColorBlend bool      // Use ColorSmoothing for color weights instead of Smoothing
	ColorSmoothing     float64   // Blend radius for color when SeparateColorBlend is set
	RotationAngle      float64   // Radians about +Y, scaled per instance by Spin
	RepeatInterval     core.Vec3 // Per-axis period; 0 disables repetition on that axis
	Ground             *Plane    // Optional ground plane combined with a hard minimum
	GroundColor        core.Vec3
	Palette            Palette
}

// Field is the composed scene distance field. It is immutable after
// construction and safe for concurrent use.
type Field struct {
	config    FieldConfig
	rotations []mgl64.Mat3
	colors    []core.Vec3
}

// NewField builds a field, precomputing per-instance rotations and colors
func NewField(config FieldConfig) *Field {
	f := &Field{
		config:    config,
		rotations: make([]mgl64.Mat3, len(config.Instances)),
		colors:    make([]core.Vec3, len(config.Instances)),
	}
	for i, inst := range config.Instances {
		f.rotations[i] = mgl64.Rotate3DY(config.RotationAngle * inst.Spin)
		f.colors[i] = config.Palette.Sample(inst.Color)
	}
	return f
}

// Config returns the configuration the field was built from
func (f *Field) Config() FieldConfig {
	return f.config
}

// Evaluate returns the signed distance and blended color at p
func (f *Field) Evaluate(p core.Vec3) Sample {
	sample := Sample{Distance: math.Inf(1)}

	for i, inst := range f.config.Instances {
		d := inst.Shape.Distance(f.localPoint(i, p))
		if i == 0 {
			sample = Sample{Distance: d, Color: f.colors[i], Index: inst.Color}
			continue
		}

		blended, h := SmoothMin(sample.Distance, d, f.config.Smoothing)
		if f.config.SeparateColorBlend {
			h = BlendWeight(sample.Distance, d, f.config.ColorSmoothing)
		}
		sample.Color = f.colors[i].Lerp(sample.Color, h)
		sample.Index = inst.Color*(1-h) + sample.Index*h
		sample.Distance = blended
	}

	if f.config.Ground != nil {
		if gd := f.config.Ground.Distance(p); gd < sample.Distance {
			sample = Sample{Distance: gd, Color: f.config.GroundColor, Ground: true}
		}
	}

	return sample
}

// Distance returns only the signed distance at p
func (f *Field) Distance(p core.Vec3) float64 {
	return f.Evaluate(p).Distance
}

// Normal estimates the surface normal at p from the central-difference
// gradient. A vanishing gradient falls back to +Y.
func (f *Field) Normal(p core.Vec3) core.Vec3 {
	ex := core.NewVec3(NormalEpsilon, 0, 0)
	ey := core.NewVec3(0, NormalEpsilon, 0)
	ez := core.NewVec3(0, 0, NormalEpsilon)

	gradient := core.NewVec3(
		f.Distance(p.Add(ex))-f.Distance(p.Subtract(ex)),
		f.Distance(p.Add(ey))-f.Distance(p.Subtract(ey)),
		f.Distance(p.Add(ez))-f.Distance(p.Subtract(ez)),
	)

	n := gradient.Normalize()
	if n == (core.Vec3{}) || !n.IsFinite() {
		return core.NewVec3(0, 1, 0)
	}
	return n
}

// localPoint applies the instance's rotation and repetition to p
func (f *Field) localPoint(i int, p core.Vec3) core.Vec3 {
	inst := f.config.Instances[i]
	if inst.Spin != 0 {
		p = core.FromMgl(f.rotations[i].Mul3x1(p.Mgl()))
	}
	if inst.Repeat {
		p = Repeat(p, f.config.RepeatInterval)
	}
	return p
}
