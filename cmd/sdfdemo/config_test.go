package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sdfdemo.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
width = 320
mode = "color"
backend = "hal"

[physics]
gravity = [0.0, -1.0]
cell_size = 2.0
`)
	c, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if c.Width != 320 || c.Height != 600 {
		t.Errorf("size = %dx%d, want 320x600", c.Width, c.Height)
	}
	if c.Mode != "color" || c.Backend != "hal" {
		t.Errorf("mode %q backend %q", c.Mode, c.Backend)
	}
	if c.Physics.Gravity != [2]float32{0, -1} || c.Physics.CellSize != 2 {
		t.Errorf("physics = %+v", c.Physics)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if c != defaultConfig() {
		t.Errorf("config = %+v, want defaults", c)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		errConfig bool
	}{
		{"unknown key", `colour = "red"`, false},
		{"bad mode", `mode = "wireframe"`, true},
		{"bad backend", `backend = "metal"`, true},
		{"negative frames", `frames = -1`, true},
		{"zero cell", "[physics]\ncell_size = 0.0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("loadConfig succeeded, want error")
			}
			if got := errors.Is(err, errConfig); got != tt.errConfig {
				t.Errorf("errors.Is(%v, errConfig) = %v, want %v", err, got, tt.errConfig)
			}
		})
	}
}

func TestDemoSceneBuilds(t *testing.T) {
	objects, tl := demoScene()
	if len(objects) != 6 {
		t.Fatalf("objects = %d", len(objects))
	}
	if tl.MaxFrame("idle") != 120 {
		t.Errorf("MaxFrame = %v, want 120", tl.MaxFrame("idle"))
	}
}

func TestWatchConfig(t *testing.T) {
	path := writeConfig(t, "width = 100")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, err := watchConfig(ctx, path)
	if err != nil {
		t.Fatalf("watchConfig: %v", err)
	}
	if err := os.WriteFile(path, []byte("width = 200"), 0o600); err != nil {
		t.Fatal(err)
	}

	// Truncation may deliver an intermediate default config first.
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c := <-updates:
			if c.Width == 200 {
				cancel()
				for range updates {
				}
				return
			}
		case <-timeout:
			t.Fatal("no config update after write")
		}
	}
}
