package output

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/df07/go-raymarcher/pkg/renderer"
)

const hudPadding = 4

// DrawHUD overlays lines of text in the top-left corner of img on a
// translucent backing box
func DrawHUD(img draw.Image, lines []string) {
	if len(lines) == 0 {
		return
	}

	face := basicfont.Face7x13
	metrics := face.Metrics()
	lineHeight := metrics.Height.Ceil()

	width := 0
	for _, line := range lines {
		width = max(width, font.MeasureString(face, line).Ceil())
	}

	origin := img.Bounds().Min
	box := image.Rect(0, 0, width+2*hudPadding, len(lines)*lineHeight+2*hudPadding).
		Add(origin).Intersect(img.Bounds())
	draw.Draw(img, box, image.NewUniform(color.RGBA{A: 160}), image.Point{}, draw.Over)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.White,
		Face: face,
	}
	for i, line := range lines {
		// Dot is the baseline origin
		drawer.Dot = fixed.P(origin.X+hudPadding, origin.Y+hudPadding+i*lineHeight+metrics.Ascent.Ceil())
		drawer.DrawString(line)
	}
}

// HUDLines formats the stats of a rendered frame for DrawHUD
func HUDLines(frame renderer.FrameResult) []string {
	stats := frame.Stats
	return []string{
		fmt.Sprintf("frame %d  %v", frame.FrameNumber, frame.Duration.Round(time.Millisecond)),
		fmt.Sprintf("hits %.1f%%  steps avg %.1f max %d", 100*stats.HitRate(), stats.AverageSteps, stats.MaxSteps),
		fmt.Sprintf("angle %.3f", frame.Parameters.RotationAngle),
	}
}
