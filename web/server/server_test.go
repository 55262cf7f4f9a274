package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-raymarcher/pkg/scene"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	custom := scene.NewSingleSphereScene()
	custom.MaxIterations = 64
	if err := scene.SaveParameters(filepath.Join(dir, "custom.json"), custom); err != nil {
		t.Fatalf("SaveParameters failed: %v", err)
	}
	return NewServer(0, dir, nil)
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestStaticIndex(t *testing.T) {
	rec := get(t, newTestServer(t), "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Expected HTML content type, got %q", ct)
	}
	if body := rec.Body.String(); !strings.Contains(body, "/api/render") {
		t.Error("Expected the index page to drive the render endpoint")
	}

	if rec := get(t, newTestServer(t), "/missing.js"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing asset, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body)
	}
}

func TestHandleScenes(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/scenes")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var response scene.ScenesResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if len(response.Groups) != 2 {
		t.Fatalf("Expected built-in and file groups, got %d", len(response.Groups))
	}
	if got := response.Groups[1].Scenes[0].ID; got != "file:custom" {
		t.Errorf("Expected file:custom, got %s", got)
	}
}

func TestHandleSceneConfig(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"default scene", "/api/scene-config", http.StatusOK},
		{"built-in scene", "/api/scene-config?scene=boxes", http.StatusOK},
		{"file scene", "/api/scene-config?scene=file:custom", http.StatusOK},
		{"unknown scene", "/api/scene-config?scene=nope", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, s, tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				Scene    string                     `json:"scene"`
				Defaults scene.Parameters           `json:"defaults"`
				Limits   map[string]json.RawMessage `json:"limits"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if len(body.Defaults.Primitives) == 0 {
				t.Error("Expected scene primitives in defaults")
			}
			if _, ok := body.Limits["maxIterations"]; !ok {
				t.Error("Expected maxIterations limits")
			}
		})
	}

	var body struct {
		Defaults scene.Parameters `json:"defaults"`
	}
	json.NewDecoder(get(t, s, "/api/scene-config?scene=file:custom").Body).Decode(&body)
	if body.Defaults.MaxIterations != 64 {
		t.Errorf("Expected file scene parameters, got maxIterations %d", body.Defaults.MaxIterations)
	}
}

func TestParseIntParam(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
		wantErr  bool
	}{
		{"missing uses default", "", 10, false},
		{"valid", "42", 42, false},
		{"lower bound", "1", 1, false},
		{"upper bound", "100", 100, false},
		{"below range", "0", 0, true},
		{"above range", "101", 0, true},
		{"not a number", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{}
			if tt.value != "" {
				values.Set("n", tt.value)
			}
			got, err := parseIntParam(values, "n", 10, 1, 100)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestParseFloatParam(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected float64
		wantErr  bool
	}{
		{"missing uses default", "", 0.5, false},
		{"valid", "0.25", 0.25, false},
		{"below range", "-0.1", 0, true},
		{"above range", "1.5", 0, true},
		{"NaN", "NaN", 0, true},
		{"not a number", "x", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := url.Values{}
			if tt.value != "" {
				values.Set("f", tt.value)
			}
			got, err := parseFloatParam(values, "f", 0.5, 0, 1)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.expected {
				t.Errorf("Expected %f, got %f", tt.expected, got)
			}
		})
	}
}

func TestParseCommonSceneParams_Overrides(t *testing.T) {
	s := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/api/render?scene=single-sphere&width=32&height=24&maxIterations=12&reflectionCount=2&rotationAngle=0.7", nil)

	req := &RenderRequest{}
	if err := s.parseCommonSceneParams(r, req); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if req.Width != 32 || req.Height != 24 {
		t.Errorf("Expected 32x24, got %dx%d", req.Width, req.Height)
	}
	p := req.Parameters
	if p.MaxIterations != 12 || p.ReflectionCount != 2 || p.RotationAngle != 0.7 {
		t.Errorf("Overrides not applied: iterations %d reflections %d angle %f", p.MaxIterations, p.ReflectionCount, p.RotationAngle)
	}

	bad := httptest.NewRequest(http.MethodGet, "/api/render?reflectionCount=3", nil)
	if err := s.parseCommonSceneParams(bad, &RenderRequest{}); err == nil {
		t.Error("Expected error for reflectionCount above the cap")
	}
}

func TestHandleRender(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/render?scene=single-sphere&width=32&height=16&frames=2&spin=0.1")

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Expected SSE content type, got %s", ct)
	}

	body := rec.Body.String()
	// 32x16 with 32 pixel tiles is one tile per frame
	if n := strings.Count(body, "event: frameComplete"); n != 2 {
		t.Errorf("Expected 2 frameComplete events, got %d", n)
	}
	if !strings.Contains(body, "event: tile") {
		t.Error("Expected tile events")
	}
	complete := strings.Index(body, "event: complete\ndata: Rendering completed")
	if complete < 0 {
		t.Fatalf("Expected completion event, got tail %q", tail(body))
	}
	if strings.LastIndex(body, "event: frameComplete") > complete {
		t.Error("Frames must be reported before completion")
	}
	if strings.Contains(body, "event: error") {
		t.Errorf("Unexpected error event: %s", body)
	}
}

func TestHandleRender_InvalidRequest(t *testing.T) {
	rec := get(t, newTestServer(t), "/api/render?scene=nope")
	body := rec.Body.String()
	if !strings.Contains(body, "event: error") || !strings.Contains(body, "Invalid request") {
		t.Errorf("Expected an error event, got %q", body)
	}
	if strings.Contains(body, "event: complete") {
		t.Error("Failed render should not complete")
	}
}

func TestHandleInspect(t *testing.T) {
	s := newTestServer(t)

	// The single sphere fills the center of the view
	rec := get(t, s, "/api/inspect?scene=single-sphere&width=32&height=32&x=16&y=16&trace=true")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var hit InspectResponse
	if err := json.NewDecoder(rec.Body).Decode(&hit); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if !hit.Hit {
		t.Fatal("Expected center pixel to hit the sphere")
	}
	if hit.Distance < 3.9 || hit.Distance > 4.1 {
		t.Errorf("Expected hit distance near 4, got %f", hit.Distance)
	}
	if hit.Normal[2] < 0.9 {
		t.Errorf("Expected normal facing the camera, got %v", hit.Normal)
	}
	if len(hit.Trace) != hit.Steps {
		t.Errorf("Expected %d trace steps, got %d", hit.Steps, len(hit.Trace))
	}

	rec = get(t, s, "/api/inspect?scene=single-sphere&width=32&height=32&x=0&y=0")
	var miss InspectResponse
	json.NewDecoder(rec.Body).Decode(&miss)
	if miss.Hit {
		t.Error("Expected corner pixel to miss")
	}

	for _, target := range []string{
		"/api/inspect?scene=single-sphere&width=32&height=32&x=40&y=0",
		"/api/inspect?scene=single-sphere&width=32&height=32&x=a&y=0",
		"/api/inspect?scene=nope&x=0&y=0",
	} {
		if rec := get(t, s, target); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, rec.Code)
		}
	}
}

func tail(s string) string {
	if len(s) > 80 {
		return s[len(s)-80:]
	}
	return s
}
