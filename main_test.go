package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-raymarcher/pkg/output"
	"github.com/df07/go-raymarcher/pkg/replay"
	"github.com/df07/go-raymarcher/pkg/scene"
)

func TestCreateScene(t *testing.T) {
	scenesDir := t.TempDir()
	custom := scene.NewSingleSphereScene()
	custom.MaxIterations = 42
	if err := scene.SaveParameters(filepath.Join(scenesDir, "custom.json"), custom); err != nil {
		t.Fatalf("SaveParameters failed: %v", err)
	}

	tests := []struct {
		name        string
		sceneType   string
		expectError bool
	}{
		// Built-in scenes
		{"default scene", "default", false},
		{"single-sphere scene", "single-sphere", false},
		{"repeat scene", "repeat", false},
		{"boxes scene", "boxes", false},

		// Parameter files
		{"file scene", "file:custom", false},
		{"missing file scene", "file:missing", true},
		{"path traversal", "file:../custom", true},

		// Invalid scenes
		{"unknown scene", "nonexistent", true},
		{"empty scene name", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params, err := createScene(tt.sceneType, "", scenesDir)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for scene type '%s', but got none", tt.sceneType)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error for scene type '%s': %v", tt.sceneType, err)
			}
			if len(params.Primitives) == 0 {
				t.Errorf("Scene '%s' should have primitives", tt.sceneType)
			}
		})
	}

	params, err := createScene("file:custom", "", scenesDir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if params.MaxIterations != 42 {
		t.Errorf("Expected file parameters to be loaded, got maxIterations %d", params.MaxIterations)
	}
}

func TestCreateScene_ParamsOverride(t *testing.T) {
	paramsFile := filepath.Join(t.TempDir(), "override.json")
	if err := os.WriteFile(paramsFile, []byte(`{"maxIterations": 7, "rotationAngle": 1.5}`), 0644); err != nil {
		t.Fatal(err)
	}

	params, err := createScene("single-sphere", paramsFile, t.TempDir())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if params.MaxIterations != 7 || params.RotationAngle != 1.5 {
		t.Errorf("Expected overrides to apply, got iterations %d angle %f", params.MaxIterations, params.RotationAngle)
	}

	// Fields absent from the file keep the scene's values
	base := scene.NewSingleSphereScene()
	if params.Camera != base.Camera || len(params.Primitives) != len(base.Primitives) {
		t.Error("Expected scene values to survive a partial parameter file")
	}

	badFile := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(badFile, []byte(`{"accuracy": -1}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := createScene("single-sphere", badFile, t.TempDir()); err == nil {
		t.Error("Expected validation error for negative accuracy")
	}
}

func TestCreateOutputDir(t *testing.T) {
	tests := []struct {
		name      string
		sceneType string
		expected  string
	}{
		{"built-in scene", "default", filepath.Join("output", "default")},
		{"file scene", "file:my-scene", filepath.Join("output", "my-scene")},
		{"separators replaced", "a/b", filepath.Join("output", "a-b")},
		{"dot dot", "file:..", filepath.Join("output", "scene")},
		{"empty", "", filepath.Join("output", "scene")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := createOutputDir("output", tt.sceneType); got != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, got)
			}
		})
	}
}

func TestFrameFilename(t *testing.T) {
	if got := frameFilename("20240101_120000", 0, 1, output.FormatPNG); got != "render_20240101_120000.png" {
		t.Errorf("Unexpected single frame name %s", got)
	}
	if got := frameFilename("20240101_120000", 12, 30, output.FormatTIFF); got != "render_20240101_120000_0012.tiff" {
		t.Errorf("Unexpected sequence frame name %s", got)
	}
}

func TestRun(t *testing.T) {
	root := t.TempDir()
	config := Config{
		SceneType:  "single-sphere",
		ScenesDir:  t.TempDir(),
		OutputRoot: filepath.Join(root, "output"),
		Width:      24,
		Height:     16,
		Frames:     3,
		Spin:       0.2,
		Format:     output.FormatBMP,
		Scale:      0.5,
		HUD:        true,
		RecordDir:  filepath.Join(root, "replays"),
		Workers:    2,
	}

	written, err := run(context.Background(), config)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(written) != 3 {
		t.Fatalf("Expected 3 files, got %d", len(written))
	}
	for _, filename := range written {
		if !strings.HasSuffix(filename, ".bmp") {
			t.Errorf("Expected bmp output, got %s", filename)
		}
		if _, err := os.Stat(filename); err != nil {
			t.Errorf("Expected %s to exist: %v", filename, err)
		}
	}

	bundles, err := filepath.Glob(filepath.Join(root, "replays", "single-sphere-*"))
	if err != nil || len(bundles) != 1 {
		t.Fatalf("Expected one replay bundle, got %v (%v)", bundles, err)
	}
	bundle, err := replay.Load(bundles[0])
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(bundle.Frames) != 3 {
		t.Fatalf("Expected 3 recorded frames, got %d", len(bundle.Frames))
	}
	// Recorded frames are the unscaled renders without the HUD
	if b := bundle.Frames[0].Image.Bounds(); b.Dx() != 12 || b.Dy() != 8 {
		t.Errorf("Expected 12x8 recorded frame, got %v", b)
	}
	if bundle.Records[2].Parameters.RotationAngle != 0.4 {
		t.Errorf("Expected third frame angle 0.4, got %f", bundle.Records[2].Parameters.RotationAngle)
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	base := Config{SceneType: "default", OutputRoot: t.TempDir(), Width: 8, Height: 8, Frames: 1}

	bad := base
	bad.Width = 0
	if _, err := run(context.Background(), bad); err == nil {
		t.Error("Expected error for zero width")
	}

	bad = base
	bad.Frames = 0
	if _, err := run(context.Background(), bad); err == nil {
		t.Error("Expected error for zero frames")
	}

	bad = base
	bad.SceneType = "nonexistent"
	if _, err := run(context.Background(), bad); err == nil {
		t.Error("Expected error for unknown scene")
	}
}
