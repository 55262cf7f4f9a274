package scene

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTitleCase(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"cornell-empty", "Cornell Empty"},
		{"dragon_gold", "Dragon Gold"},
		{"my-custom-scene", "My Custom Scene"},
		{"simple", "Simple"},
		{"UPPER-case", "Upper Case"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			result := titleCase(tc.input)
			if result != tc.expected {
				t.Errorf("titleCase(%q) = %q, want %q", tc.input, result, tc.expected)
			}
		})
	}
}

func TestListSceneFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"warm-rings.json", "a_cold_box.json", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}

	scenes, err := ListSceneFiles(dir)
	if err != nil {
		t.Fatalf("ListSceneFiles failed: %v", err)
	}
	if len(scenes) != 2 {
		t.Fatalf("Expected 2 JSON scenes, got %d: %+v", len(scenes), scenes)
	}

	// Sorted by display name
	if scenes[0].ID != "file:a_cold_box" || scenes[0].DisplayName != "A Cold Box" {
		t.Errorf("Unexpected first scene %+v", scenes[0])
	}
	if scenes[1].ID != "file:warm-rings" || scenes[1].Type != "file" {
		t.Errorf("Unexpected second scene %+v", scenes[1])
	}
}

func TestListSceneFiles_MissingDirectory(t *testing.T) {
	scenes, err := ListSceneFiles(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("Missing directory should not be an error: %v", err)
	}
	if len(scenes) != 0 {
		t.Errorf("Expected no scenes, got %d", len(scenes))
	}
}

func TestListAllScenes(t *testing.T) {
	response, err := ListAllScenes(t.TempDir())
	if err != nil {
		t.Fatalf("ListAllScenes failed: %v", err)
	}
	if len(response.Groups) != 1 {
		t.Fatalf("Expected only the built-in group without files, got %d groups", len(response.Groups))
	}
	if response.Groups[0].Name != builtinGroup || len(response.Groups[0].Scenes) != len(builtinScenes) {
		t.Errorf("Unexpected built-in group %+v", response.Groups[0])
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	params := NewSingleSphereScene()
	params.Smoothing = 0.25
	if err := SaveParameters(filepath.Join(dir, "custom.json"), params); err != nil {
		t.Fatalf("SaveParameters failed: %v", err)
	}

	loaded, err := Resolve("file:custom", dir)
	if err != nil {
		t.Fatalf("Resolve file scene failed: %v", err)
	}
	if loaded.Smoothing != 0.25 {
		t.Errorf("Expected smoothing 0.25 from file, got %f", loaded.Smoothing)
	}

	if _, err := Resolve("default", dir); err != nil {
		t.Errorf("Resolve built-in failed: %v", err)
	}

	for _, bad := range []string{"file:", "file:../etc/passwd", "file:..", "no-such-scene"} {
		if _, err := Resolve(bad, dir); err == nil {
			t.Errorf("Expected error resolving %q", bad)
		}
	}
}
