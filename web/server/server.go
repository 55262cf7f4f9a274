// Package server exposes the raymarcher over HTTP: scene discovery, a
// Server-Sent Events render endpoint, pixel inspection and a websocket
// frame stream.
package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/df07/go-raymarcher/pkg/core"
	"github.com/df07/go-raymarcher/pkg/scene"
)

// Request limits
const (
	DefaultTileSize = 32
	minImageSize    = 16
	maxImageSize    = 2000
	maxFrames       = 1000
	maxSpin         = 1.0
)

//go:embed static
var staticFiles embed.FS

// Server handles web requests for the raymarcher
type Server struct {
	port      int
	scenesDir string
	logger    *slog.Logger
	mux       *http.ServeMux
}

// NewServer creates a new web server. A nil logger uses the process logger.
func NewServer(port int, scenesDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = core.Logger()
	}
	s := &Server{port: port, scenesDir: scenesDir, logger: logger, mux: http.NewServeMux()}

	// Serve static files
	static, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.mux.Handle("/", http.FileServer(http.FS(static)))

	// API endpoints
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/scenes", s.handleScenes)
	s.mux.HandleFunc("/api/scene-config", s.handleSceneConfig)
	s.mux.HandleFunc("/api/render", s.handleRender)
	s.mux.HandleFunc("/api/inspect", s.handleInspect)
	s.mux.HandleFunc("/api/stream", s.handleStream)
	return s
}

// Handler returns the request router
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start starts the web server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("starting web server", "addr", "http://localhost"+addr)
	return http.ListenAndServe(addr, s.mux)
}

// RenderRequest represents a render request from the client
type RenderRequest struct {
	Scene  string  `json:"scene"`  // Scene ID, built-in or file:<name>
	Width  int     `json:"width"`  // Image width
	Height int     `json:"height"` // Image height
	Frames int     `json:"frames"` // Number of frames, 0 streams until stopped
	Spin   float64 `json:"spin"`   // Rotation angle advance per frame

	Parameters scene.Parameters `json:"-"` // Scene parameters with query overrides applied
}

// parseCommonSceneParams parses the scene and image size shared by every
// endpoint, then applies per-parameter query overrides to the scene defaults
func (s *Server) parseCommonSceneParams(r *http.Request, req *RenderRequest) error {
	query := r.URL.Query()

	req.Scene = query.Get("scene")
	if req.Scene == "" {
		req.Scene = "default"
	}

	var err error
	if req.Width, err = parseIntParam(query, "width", 640, minImageSize, maxImageSize); err != nil {
		return err
	}
	if req.Height, err = parseIntParam(query, "height", 360, minImageSize, maxImageSize); err != nil {
		return err
	}

	params, err := scene.Resolve(req.Scene, s.scenesDir)
	if err != nil {
		return err
	}
	if err := applyParameterOverrides(query, &params); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	req.Parameters = params
	return nil
}

// applyParameterOverrides replaces scene defaults with any query values
func applyParameterOverrides(query url.Values, p *scene.Parameters) error {
	var err error
	if p.RotationAngle, err = parseFloatParam(query, "rotationAngle", p.RotationAngle, -1000, 1000); err != nil {
		return err
	}
	if p.Smoothing, err = parseFloatParam(query, "smoothing", p.Smoothing, 0, 10); err != nil {
		return err
	}
	if p.Accuracy, err = parseFloatParam(query, "accuracy", p.Accuracy, 1e-6, 1); err != nil {
		return err
	}
	if p.MaxIterations, err = parseIntParam(query, "maxIterations", p.MaxIterations, 1, 4096); err != nil {
		return err
	}
	if p.MaxDistance, err = parseFloatParam(query, "maxDistance", p.MaxDistance, 1, 10000); err != nil {
		return err
	}
	if p.SoftShadowFactor, err = parseFloatParam(query, "softShadowFactor", p.SoftShadowFactor, 0, 128); err != nil {
		return err
	}
	if p.ShadowIntensity, err = parseFloatParam(query, "shadowIntensity", p.ShadowIntensity, 0, 1); err != nil {
		return err
	}
	if p.AOIntensity, err = parseFloatParam(query, "aoIntensity", p.AOIntensity, 0, 1); err != nil {
		return err
	}
	if p.AOSteps, err = parseIntParam(query, "aoSteps", p.AOSteps, 0, 32); err != nil {
		return err
	}
	if p.ReflectionCount, err = parseIntParam(query, "reflectionCount", p.ReflectionCount, 0, 2); err != nil {
		return err
	}
	if p.ReflectionIntensity, err = parseFloatParam(query, "reflectionIntensity", p.ReflectionIntensity, 0, 1); err != nil {
		return err
	}
	return nil
}

// parseIntParam parses an integer parameter from URL query with validation
func parseIntParam(values url.Values, key string, defaultValue, min, max int) (int, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		if parsed < min || parsed > max {
			return 0, fmt.Errorf("%s must be between %d and %d, got: %d", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// parseFloatParam parses a float parameter from URL query with validation
func parseFloatParam(values url.Values, key string, defaultValue, min, max float64) (float64, error) {
	if value := values.Get(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %s", key, value)
		}
		// Negated comparison rejects NaN
		if !(parsed >= min && parsed <= max) {
			return 0, fmt.Errorf("%s must be between %g and %g, got: %g", key, min, max, parsed)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

// handleHealth provides a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleScenes lists built-in scenes and parameter files
func (s *Server) handleScenes(w http.ResponseWriter, r *http.Request) {
	response, err := scene.ListAllScenes(s.scenesDir)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// handleSceneConfig returns the default parameters of a scene with the
// limits enforced on query overrides
func (s *Server) handleSceneConfig(w http.ResponseWriter, r *http.Request) {
	sceneName := r.URL.Query().Get("scene")
	if sceneName == "" {
		sceneName = "default"
	}

	params, err := scene.Resolve(sceneName, s.scenesDir)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "Unknown scene: "+sceneName)
		return
	}

	response := map[string]interface{}{
		"scene":    sceneName,
		"defaults": params,
		"limits": map[string]interface{}{
			"width":               map[string]int{"min": minImageSize, "max": maxImageSize},
			"height":              map[string]int{"min": minImageSize, "max": maxImageSize},
			"frames":              map[string]int{"min": 0, "max": maxFrames},
			"spin":                map[string]float64{"min": -maxSpin, "max": maxSpin},
			"accuracy":            map[string]float64{"min": 1e-6, "max": 1},
			"maxIterations":       map[string]int{"min": 1, "max": 4096},
			"maxDistance":         map[string]float64{"min": 1, "max": 10000},
			"smoothing":           map[string]float64{"min": 0, "max": 10},
			"softShadowFactor":    map[string]float64{"min": 0, "max": 128},
			"shadowIntensity":     map[string]float64{"min": 0, "max": 1},
			"aoIntensity":         map[string]float64{"min": 0, "max": 1},
			"aoSteps":             map[string]int{"min": 0, "max": 32},
			"reflectionCount":     map[string]int{"min": 0, "max": 2},
			"reflectionIntensity": map[string]float64{"min": 0, "max": 1},
		},
	}
	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
