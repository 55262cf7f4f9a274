// Package sdf evaluates signed distance fields for the primitives a scene is
// composed of and combines them into a single field with color information.
package sdf

import (
	"math"

	"github.com/df07/go-raymarcher/pkg/core"
)

// Shape is a primitive with a local signed distance function.
// Distances are negative inside the shape and positive outside.
type Shape interface {
	Distance(p core.Vec3) float64
}

// Sphere is a sphere primitive
type Sphere struct {
	Center core.Vec3
	Radius float64
}

// NewSphere creates a sphere. Negative radii are treated as zero.
func NewSphere(center core.Vec3, radius float64) Sphere {
	return Sphere{Center: center, Radius: max(radius, 0)}
}

// Distance returns |p - center| - radius
func (s Sphere) Distance(p core.Vec3) float64 {
	return p.Subtract(s.Center).Length() - max(s.Radius, 0)
}

// Box is an axis-aligned box primitive with optional edge rounding
type Box struct {
	Center      core.Vec3
	HalfExtents core.Vec3
	Rounding    float64 // Edge radius, clamped to the smallest half extent
}

// NewBox creates a box from its center and half extents.
// Negative extents and rounding are treated as zero.
func NewBox(center, halfExtents core.Vec3, rounding float64) Box {
	return Box{
		Center:      center,
		HalfExtents: halfExtents.Max(core.Vec3{}),
		Rounding:    max(rounding, 0),
	}
}

// Distance evaluates the rounded box SDF. Zero rounding gives sharp edges.
func (b Box) Distance(p core.Vec3) float64 {
	he := b.HalfExtents.Max(core.Vec3{})
	r := max(0, min(b.Rounding, he.X, he.Y, he.Z))
	q := p.Subtract(b.Center).Abs().Subtract(he).Add(core.NewVec3(r, r, r))
	outside := q.Max(core.Vec3{}).Length()
	inside := min(q.MaxComponent(), 0)
	return outside + inside - r
}

// Plane is an infinite plane used for the ground
type Plane struct {
	Normal core.Vec3 // Unit normal
	Offset float64   // Signed distance of the plane from the origin along Normal
}

// NewPlane creates a plane, normalizing the normal.
// A zero normal falls back to +Y.
func NewPlane(normal core.Vec3, offset float64) Plane {
	n := normal.Normalize()
	if n == (core.Vec3{}) {
		n = core.NewVec3(0, 1, 0)
	}
	return Plane{Normal: n, Offset: offset}
}

// NewGroundPlane creates a horizontal plane at the given height
func NewGroundPlane(height float64) Plane {
	return NewPlane(core.NewVec3(0, 1, 0), height)
}

// Distance returns the signed distance above the plane
func (pl Plane) Distance(p core.Vec3) float64 {
	return p.Dot(pl.Normal) - pl.Offset
}

// Repeat folds p into a single period cell on every axis whose interval is
// nonzero. Axes with a zero interval are left unchanged.
func Repeat(p, interval core.Vec3) core.Vec3 {
	return core.Vec3{
		X: fold(p.X, interval.X),
		Y: fold(p.Y, interval.Y),
		Z: fold(p.Z, interval.Z),
	}
}

// fold computes mod(x + 0.5i, i) - 0.5i with floored modulo
func fold(x, interval float64) float64 {
	if interval == 0 {
		return x
	}
	shifted := x + 0.5*interval
	return shifted - interval*math.Floor(shifted/interval) - 0.5*interval
}
