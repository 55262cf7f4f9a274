// Package shading turns march results into colors: soft shadows, ambient
// occlusion, reflections and the background environment.
package shading

import (
	"fmt"
	"math"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/loaders"
)

// Environment supplies the background color seen along a direction. It is
// used on a miss and as the reflection fallback.
type Environment interface {
	Sample(direction core.Vec3) core.Vec3
}

// SolidEnvironment returns the same color in every direction
type SolidEnvironment struct {
	Color core.Vec3
}

// NewSolidEnvironment creates a constant background
func NewSolidEnvironment(color core.Vec3) *SolidEnvironment {
	return &SolidEnvironment{Color: color}
}

// Sample implements Environment
func (e *SolidEnvironment) Sample(direction core.Vec3) core.Vec3 {
	return e.Color
}

// GradientEnvironment blends vertically from Bottom to Top
type GradientEnvironment struct {
	Top    core.Vec3
	Bottom core.Vec3
}

// NewGradientEnvironment creates a vertical sky gradient
func NewGradientEnvironment(top, bottom core.Vec3) *GradientEnvironment {
	return &GradientEnvironment{Top: top, Bottom: bottom}
}

// Sample implements Environment
func (e *GradientEnvironment) Sample(direction core.Vec3) core.Vec3 {
	d := direction.Normalize()
	t := 0.5 * (d.Y + 1.0) // Map Y from [-1,1] to [0,1]
	return e.Bottom.Lerp(e.Top, t)
}

// ImageEnvironment looks up an equirectangular image. The image center
// faces -Z and the top row is straight up.
type ImageEnvironment struct {
	width  int
	height int
	pixels []core.Vec3 // Row-major: pixels[y*width + x]
}

// NewImageEnvironment wraps loaded image data
func NewImageEnvironment(img *loaders.ImageData) *ImageEnvironment {
	return &ImageEnvironment{width: img.Width, height: img.Height, pixels: img.Pixels}
}

// environmentGamma matches the display gamma applied to rendered frames, so
// an unlit background reproduces the source image
const environmentGamma = 2.0

// LoadImageEnvironment loads an equirectangular image from disk
func LoadImageEnvironment(filename string) (*ImageEnvironment, error) {
	img, err := loaders.LoadImage(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	img.Linearize(environmentGamma)
	return NewImageEnvironment(img), nil
}

// Sample implements Environment using nearest-neighbor lookup
func (e *ImageEnvironment) Sample(direction core.Vec3) core.Vec3 {
	if e.width == 0 || e.height == 0 {
		return core.Vec3{}
	}

	d := direction.Normalize()
	u := 0.5 + math.Atan2(d.X, -d.Z)/(2*math.Pi)
	v := 0.5 - math.Asin(max(-1, min(1, d.Y)))/math.Pi

	x := int(u * float64(e.width))
	y := int(v * float64(e.height))

	// Wrap horizontally, clamp vertically
	x = ((x % e.width) + e.width) % e.width
	y = max(0, min(e.height-1, y))

	return e.pixels[y*e.width+x]
}
