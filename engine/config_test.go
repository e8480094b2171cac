package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prisma.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Width != 800 || config.Height != 600 {
		t.Errorf("default size = %dx%d, want 800x600", config.Width, config.Height)
	}
	if config.ObjectCount != 3 {
		t.Errorf("default object count = %d, want 3", config.ObjectCount)
	}
	if config.Backend != BackendVulkan {
		t.Errorf("default backend = %q", config.Backend)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
title = "demo"
width = 1280
height = 720
object_count = 6
backend = "headless"
frames_in_flight = 2
log_level = "debug"
`)
	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Title != "demo" || config.Width != 1280 || config.Height != 720 {
		t.Errorf("overrides not applied: %+v", config)
	}
	if config.ObjectCount != 6 || config.Backend != BackendHeadless || config.FramesInFlight != 2 {
		t.Errorf("overrides not applied: %+v", config)
	}
	// Unset keys keep their defaults.
	if config.ShaderDir != "assets/shaders" {
		t.Errorf("shader dir = %q, want default", config.ShaderDir)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero objects", "object_count = 0"},
		{"zero width", "width = 0"},
		{"unknown backend", `backend = "metal"`},
		{"empty shader dir", `shader_dir = ""`},
		{"malformed toml", "width = ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, tt.content)); err == nil {
				t.Error("invalid config was accepted")
			}
		})
	}
}
