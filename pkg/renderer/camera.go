package renderer

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/scene"
)

// FrustumCorners holds the camera-space directions through the four image
// corners. The camera looks down -Z with +Y up.
type FrustumCorners struct {
	TL, TR, BR, BL core.Vec3
}

// NewFrustumCorners computes the corner directions for a vertical field of
// view in degrees and a width/height aspect ratio
func NewFrustumCorners(vfov, aspect float64) FrustumCorners {
	t := math.Tan(vfov * 0.5 * math.Pi / 180)

	up := core.NewVec3(0, t, 0)
	right := core.NewVec3(t*aspect, 0, 0)
	forward := core.NewVec3(0, 0, -1)

	return FrustumCorners{
		TL: forward.Subtract(right).Add(up),
		TR: forward.Add(right).Add(up),
		BR: forward.Add(right).Subtract(up),
		BL: forward.Subtract(right).Subtract(up),
	}
}

// Interpolate blends the corners bilinearly. u runs left to right and v
// bottom to top, both in [0,1].
func (c FrustumCorners) Interpolate(u, v float64) core.Vec3 {
	bottom := c.BL.Lerp(c.BR, u)
	top := c.TL.Lerp(c.TR, u)
	return bottom.Lerp(top, v)
}

// FrameContext is the read-only camera state of one frame, shared by every
// pixel of that frame
type FrameContext struct {
	Origin     core.Vec3
	Corners    FrustumCorners
	CamToWorld mgl64.Mat4
}

// NewFrameContext builds the context of a look-at camera
func NewFrameContext(camera scene.CameraConfig, aspect float64) FrameContext {
	camera = camera.Sanitize()
	view := mgl64.LookAtV(camera.Center.Mgl(), camera.LookAt.Mgl(), camera.Up.Mgl())
	return NewFrameContextFromMatrix(view.Inv(), camera.VFov, aspect)
}

// NewFrameContextFromMatrix builds the context from a caller-supplied
// camera-to-world matrix. The origin is the matrix translation.
func NewFrameContextFromMatrix(camToWorld mgl64.Mat4, vfov, aspect float64) FrameContext {
	return FrameContext{
		Origin:     core.FromMgl(camToWorld.Col(3).Vec3()),
		Corners:    NewFrustumCorners(vfov, aspect),
		CamToWorld: camToWorld,
	}
}

// Direction returns the unit world-space direction through screen point (u, v).
// Normalization happens after the transform so march distances are in world units.
func (f FrameContext) Direction(u, v float64) core.Vec3 {
	d := f.Corners.Interpolate(u, v)
	world := f.CamToWorld.Mul4x1(mgl64.Vec4{d.X, d.Y, d.Z, 0})
	return core.FromMgl(world.Vec3()).Normalize()
}

// Ray returns the camera ray through screen point (u, v)
func (f FrameContext) Ray(u, v float64) core.Ray {
	return core.NewRay(f.Origin, f.Direction(u, v))
}

// PixelCoordinates maps the center of pixel (x, y) in a width×height image,
// with y growing downward, to screen coordinates
func PixelCoordinates(x, y, width, height int) (u, v float64) {
	u = (float64(x) + 0.5) / float64(width)
	v = 1 - (float64(y)+0.5)/float64(height)
	return u, v
}
