package renderer

import (
	"image"
	"image/color"
	"math"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/march"
	"github.com/df07/go-raymarcher/pkg/scene"
	"github.com/df07/go-raymarcher/pkg/sdf"
	"github.com/df07/go-raymarcher/pkg/shading"
)

// DisplayGamma is the gamma applied when converting colors to pixels
const DisplayGamma = 2.0

// Raymarcher renders pixels of one frame. It is built from a parameter
// snapshot and holds only read-only state, so tiles of the same frame may
// share it across goroutines.
type Raymarcher struct {
	params scene.Parameters
	field  *sdf.Field
	shader *shading.Shader
}

// NewRaymarcher builds the field and shading stack for a parameter snapshot.
// The parameters are sanitized so out-of-range values never reach the core.
func NewRaymarcher(params scene.Parameters, env shading.Environment) *Raymarcher {
	params = params.Sanitize()
	field := sdf.NewField(params.FieldConfig())
	return &Raymarcher{
		params: params,
		field:  field,
		shader: shading.NewShader(field, env, params.ShadingConfig()),
	}
}

// Parameters returns the sanitized snapshot the raymarcher renders
func (rm *Raymarcher) Parameters() scene.Parameters {
	return rm.params
}

// Field returns the scene distance field
func (rm *Raymarcher) Field() *sdf.Field {
	return rm.field
}

// RenderPixel shades the camera ray through screen point (u, v) of frame
func (rm *Raymarcher) RenderPixel(frame FrameContext, u, v float64) (core.Vec3, march.Result) {
	return rm.shader.ShadeRay(frame.Ray(u, v))
}

// RenderBounds renders the pixels of bounds into img. Tiles have
// non-overlapping bounds, so concurrent calls on one image are safe.
func (rm *Raymarcher) RenderBounds(frame FrameContext, bounds image.Rectangle, img *image.RGBA) RenderStats {
	size := img.Bounds()
	var stats RenderStats

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			u, v := PixelCoordinates(x, y, size.Dx(), size.Dy())
			c, result := rm.RenderPixel(frame, u, v)
			img.SetRGBA(x, y, Vec3ToColor(c))
			stats.Record(result)
		}
	}

	stats.finalize()
	return stats
}

// Vec3ToColor converts a Vec3 color to RGBA with clamping and gamma correction
func Vec3ToColor(colorVec core.Vec3) color.RGBA {
	return color.RGBA{
		R: channelToByte(colorVec.X),
		G: channelToByte(colorVec.Y),
		B: channelToByte(colorVec.Z),
		A: 255,
	}
}

// channelToByte clamps to [0,1] before gamma so NaN and negative values map to 0
func channelToByte(c float64) uint8 {
	if !(c > 0) {
		return 0
	}
	if c >= 1 {
		return 255
	}
	return uint8(255*math.Pow(c, 1/DisplayGamma) + 0.5)
}
