package server

import (
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/march"
	"github.com/df07/go-raymarcher/pkg/renderer"
	"github.com/df07/go-raymarcher/pkg/scene"
)

// InspectResponse represents the JSON response for pixel inspection
type InspectResponse struct {
	Hit          bool        `json:"hit"`
	Point        [3]float64  `json:"point"`
	Normal       [3]float64  `json:"normal"`
	Distance     float64     `json:"distance"` // Ray parameter of the hit
	Steps        int         `json:"steps"`
	SurfaceColor [3]float64  `json:"surfaceColor"` // Blended base color before lighting
	PaletteIndex float64     `json:"paletteIndex"`
	Ground       bool        `json:"ground"`
	PixelColor   string      `json:"pixelColor"` // Final shaded color as #rrggbb
	Trace        []TraceStep `json:"trace,omitempty"`
}

// TraceStep is one evaluation of the primary march
type TraceStep struct {
	T        float64 `json:"t"`
	Distance float64 `json:"distance"`
}

// handleInspect marches the primary ray of one pixel and reports what it hit
func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	// Create request object for parameter parsing
	inspectReq := &RenderRequest{}

	// Parse common scene parameters using shared function
	if err := s.parseCommonSceneParams(r, inspectReq); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid scene parameters: "+err.Error())
		return
	}

	// Parse pixel coordinates
	pixelX, err := strconv.Atoi(r.URL.Query().Get("x"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid x coordinate")
		return
	}
	pixelY, err := strconv.Atoi(r.URL.Query().Get("y"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid y coordinate")
		return
	}

	// Validate pixel coordinates
	if pixelX < 0 || pixelX >= inspectReq.Width || pixelY < 0 || pixelY >= inspectReq.Height {
		writeJSONError(w, http.StatusBadRequest, "Pixel coordinates out of bounds")
		return
	}

	includeTrace := r.URL.Query().Get("trace") == "true"
	response, err := inspectPixel(inspectReq.Parameters, inspectReq.Width, inspectReq.Height, pixelX, pixelY, includeTrace)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// inspectPixel renders a single pixel and collects its hit information
func inspectPixel(params scene.Parameters, width, height, x, y int, includeTrace bool) (InspectResponse, error) {
	env, err := params.NewEnvironment()
	if err != nil {
		return InspectResponse{}, fmt.Errorf("failed to create environment: %w", err)
	}

	raymarcher := renderer.NewRaymarcher(params, env)
	sanitized := raymarcher.Parameters()
	frame := renderer.NewFrameContext(sanitized.Camera, float64(width)/float64(height))
	u, v := renderer.PixelCoordinates(x, y, width, height)

	shaded, hit := raymarcher.RenderPixel(frame, u, v)
	c := renderer.Vec3ToColor(shaded)
	response := InspectResponse{
		Hit:        hit.Hit,
		Steps:      hit.Steps,
		PixelColor: fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B),
	}

	if includeTrace {
		marcher := march.NewMarcher(raymarcher.Field())
		marcher.Trace(frame.Ray(u, v), sanitized.MaxDistance, sanitized.Accuracy, sanitized.MaxIterations, func(step march.Step) {
			// An empty field reports infinite distances, which JSON cannot carry
			if math.IsInf(step.Distance, 0) || math.IsNaN(step.Distance) {
				return
			}
			response.Trace = append(response.Trace, TraceStep{T: step.T, Distance: step.Distance})
		})
	}

	if !hit.Hit {
		return response, nil
	}

	normal := raymarcher.Field().Normal(hit.Point)
	response.Point = toArray(hit.Point)
	response.Normal = toArray(normal)
	response.Distance = hit.Distance
	response.SurfaceColor = toArray(hit.Sample.Color)
	response.PaletteIndex = hit.Sample.Index
	response.Ground = hit.Sample.Ground
	return response, nil
}

func toArray(v core.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}
