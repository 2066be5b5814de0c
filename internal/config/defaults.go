package config

import (
	"os"
	"path/filepath"

	"github.com/austinkregel/local-media/previewd/internal/prefs"
	"github.com/austinkregel/local-media/previewd/internal/visual"
)

// Default returns a Config populated with the stock policy.
func Default() *Config {
	return &Config{
		IPC: IPCConfig{
			Socket:       defaultSocketPath(),
			GainPushRate: 20,
		},
		Playback: PlaybackConfig{
			FadeInMs:        300,
			FadeOutMs:       2000,
			SwapFadeMs:      180,
			ReaffirmFadeMs:  180,
			DuckFadeMs:      250,
			UnduckFadeMs:    300,
			FrameMs:         16,
			StopSlackMs:     30,
			MinEndFadeMs:    6000,
			EndFadeFraction: 0.25,
			AutoEndFade:     true,
			Decoder:         "auto",
			SampleRate:      44100,
		},
		Hover: HoverConfig{
			GraceMs: 150,
		},
		Visual: VisualConfig{
			DefaultColor:   visual.DefaultColor,
			DefaultTempo:   visual.DefaultTempo,
			MinPulsePeriod: visual.MinPulsePeriod,
		},
		Prefs: PrefsConfig{
			Path:          filepath.Join(dataDir(), "prefs.json"),
			DefaultVolume: prefs.DefaultVolume,
			Watch:         true,
		},
		Tints: TintsConfig{
			DBPath: filepath.Join(dataDir(), "tints.db"),
		},
		Media: MediaConfig{
			MPRIS: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values left by a sparse config file.
func (c *Config) ApplyDefaults() {
	d := Default()

	// IPC
	if c.IPC.Socket == "" {
		c.IPC.Socket = d.IPC.Socket
	}
	if c.IPC.GainPushRate == 0 {
		c.IPC.GainPushRate = d.IPC.GainPushRate
	}

	// Playback
	p, dp := &c.Playback, d.Playback
	for _, f := range []struct {
		v   *int
		def int
	}{
		{&p.FadeInMs, dp.FadeInMs},
		{&p.FadeOutMs, dp.FadeOutMs},
		{&p.SwapFadeMs, dp.SwapFadeMs},
		{&p.ReaffirmFadeMs, dp.ReaffirmFadeMs},
		{&p.DuckFadeMs, dp.DuckFadeMs},
		{&p.UnduckFadeMs, dp.UnduckFadeMs},
		{&p.FrameMs, dp.FrameMs},
		{&p.MinEndFadeMs, dp.MinEndFadeMs},
		{&p.SampleRate, dp.SampleRate},
	} {
		if *f.v == 0 {
			*f.v = f.def
		}
	}
	if p.EndFadeFraction == 0 {
		p.EndFadeFraction = dp.EndFadeFraction
	}
	if p.Decoder == "" {
		p.Decoder = dp.Decoder
	}

	// Visual
	if c.Visual.DefaultColor == "" {
		c.Visual.DefaultColor = d.Visual.DefaultColor
	}
	if c.Visual.DefaultTempo == 0 {
		c.Visual.DefaultTempo = d.Visual.DefaultTempo
	}
	if c.Visual.MinPulsePeriod == 0 {
		c.Visual.MinPulsePeriod = d.Visual.MinPulsePeriod
	}

	// Prefs
	if c.Prefs.Path == "" {
		c.Prefs.Path = d.Prefs.Path
	}

	// Tints
	if c.Tints.DBPath == "" {
		c.Tints.DBPath = d.Tints.DBPath
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// dataDir returns $XDG_DATA_HOME/previewd or ~/.local/share/previewd.
func dataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "previewd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "previewd")
	}
	return filepath.Join(home, ".local", "share", "previewd")
}

func defaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "previewd.sock")
	}
	return filepath.Join(os.TempDir(), "previewd.sock")
}
