package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides applies PREVIEWD_* environment variables to the config.
func applyEnvOverrides(cfg *Config) {
	// IPC
	if v := os.Getenv("PREVIEWD_SOCKET"); v != "" {
		cfg.IPC.Socket = v
	}

	// Playback
	envInt("PREVIEWD_FADE_IN_MS", &cfg.Playback.FadeInMs)
	envInt("PREVIEWD_FADE_OUT_MS", &cfg.Playback.FadeOutMs)
	envInt("PREVIEWD_SWAP_FADE_MS", &cfg.Playback.SwapFadeMs)
	if v := os.Getenv("PREVIEWD_MEDIA_BASE"); v != "" {
		cfg.Playback.MediaBase = v
	}
	if v := os.Getenv("PREVIEWD_DECODER"); v != "" {
		cfg.Playback.Decoder = v
	}
	if v := os.Getenv("PREVIEWD_AUTO_END_FADE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Playback.AutoEndFade = b
		}
	}

	// Hover
	envInt("PREVIEWD_GRACE_MS", &cfg.Hover.GraceMs)

	// Prefs
	if v := os.Getenv("PREVIEWD_PREFS"); v != "" {
		cfg.Prefs.Path = v
	}

	// Tints
	if v := os.Getenv("PREVIEWD_TINTS_DB"); v != "" {
		cfg.Tints.DBPath = v
	}

	// Media
	if v := os.Getenv("PREVIEWD_MPRIS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Media.MPRIS = b
		}
	}

	// Log
	if v := os.Getenv("PREVIEWD_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PREVIEWD_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			*dst = i
		}
	}
}
