package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Expected default config to validate, got %v", err)
	}
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "previewd")
	m := NewManager(dir)

	if err := m.Load(); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if _, err := os.Stat(m.GetPath()); err != nil {
		t.Fatalf("Expected config file to be written: %v", err)
	}
	if got := m.Get().Playback.FadeOutMs; got != 2000 {
		t.Errorf("Expected fade out 2000, got %d", got)
	}

	reloaded := NewManager(dir)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if got := reloaded.Get().Hover.GraceMs; got != 150 {
		t.Errorf("Expected grace 150 after round trip, got %d", got)
	}
}

func TestLoadFromSparseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := `
[playback]
fade_out_ms = 1500
auto_end_fade = false

[hover]
grace_ms = 0

[visual]
default_color = "#00ff00"
`
	if err := os.WriteFile(path, []byte(data), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if cfg.Playback.FadeOutMs != 1500 || cfg.Playback.AutoEndFade {
		t.Errorf("Expected file values, got %+v", cfg.Playback)
	}
	if cfg.Playback.FadeInMs != 300 {
		t.Errorf("Expected default fade in, got %d", cfg.Playback.FadeInMs)
	}
	if cfg.Hover.GraceMs != 0 {
		t.Errorf("Expected explicit zero grace, got %d", cfg.Hover.GraceMs)
	}
	if !cfg.Media.MPRIS {
		t.Error("Expected mpris on by default")
	}

	opts := cfg.SessionOptions()
	if opts.FadeOut != 1500*time.Millisecond || opts.SwapFade != 180*time.Millisecond {
		t.Errorf("Expected converted durations, got %+v", opts)
	}
	if cfg.VisualOptions().DefaultColor != "#00ff00" {
		t.Errorf("Expected default color passed through, got %q", cfg.VisualOptions().DefaultColor)
	}
	if h := cfg.HoverOptions(); h.Grace != 0 || h.AutoEndFade {
		t.Errorf("Expected hover options from file, got %+v", h)
	}
}

func TestLoadFromRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"negative fade", "[playback]\nfade_in_ms = -5\n", "fade_in_ms"},
		{"bad decoder", "[playback]\ndecoder = \"wasm\"\n", "decoder"},
		{"bad color", "[visual]\ndefault_color = \"nope\"\n", "default_color"},
		{"bad level", "[log]\nlevel = \"loud\"\n", "level"},
		{"bad volume", "[prefs]\ndefault_volume = 2.0\n", "default_volume"},
		{"not toml", "[playback\n", "parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.data), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFrom(path)
			if err == nil {
				t.Fatal("Expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PREVIEWD_SOCKET", "/tmp/x.sock")
	t.Setenv("PREVIEWD_GRACE_MS", "40")
	t.Setenv("PREVIEWD_AUTO_END_FADE", "false")
	t.Setenv("PREVIEWD_LOG_LEVEL", "debug")
	t.Setenv("PREVIEWD_FADE_OUT_MS", "not a number")

	cfg := Default()
	applyEnvOverrides(cfg)

	if cfg.IPC.Socket != "/tmp/x.sock" {
		t.Errorf("Expected socket override, got %q", cfg.IPC.Socket)
	}
	if cfg.Hover.GraceMs != 40 {
		t.Errorf("Expected grace 40, got %d", cfg.Hover.GraceMs)
	}
	if cfg.Playback.AutoEndFade {
		t.Error("Expected auto end fade disabled")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug level, got %q", cfg.Log.Level)
	}
	if cfg.Playback.FadeOutMs != 2000 {
		t.Errorf("Expected invalid override to be ignored, got %d", cfg.Playback.FadeOutMs)
	}
}

func TestApplyDefaultsFillsZeroes(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Playback.FrameMs != 16 || cfg.Playback.Decoder != "auto" {
		t.Errorf("Expected playback defaults, got %+v", cfg.Playback)
	}
	if cfg.IPC.Socket == "" || cfg.Prefs.Path == "" || cfg.Tints.DBPath == "" {
		t.Error("Expected paths to be filled")
	}
}
