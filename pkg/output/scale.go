package output

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Scale resamples img to width×height. Upscaling uses nearest-neighbor so
// low render scales stay crisp; downscaling uses Catmull-Rom.
func Scale(img image.Image, width, height int) *image.RGBA {
	src := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	if width <= 0 || height <= 0 || src.Empty() {
		return dst
	}

	var scaler xdraw.Scaler = xdraw.CatmullRom
	if width >= src.Dx() && height >= src.Dy() {
		scaler = xdraw.NearestNeighbor
	}
	scaler.Scale(dst, dst.Bounds(), img, src, xdraw.Src, nil)
	return dst
}

// ScaledSize returns the render resolution for an output size and render
// scale, never smaller than one pixel
func ScaledSize(width, height int, scale float64) (int, int) {
	if scale <= 0 {
		scale = 1
	}
	return max(1, int(float64(width)*scale+0.5)), max(1, int(float64(height)*scale+0.5))
}
