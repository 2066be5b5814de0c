package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/austinkregel/local-media/previewd/internal/visual"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.IPC.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ipc: %w", err))
	}
	if err := c.Playback.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("playback: %w", err))
	}
	if c.Hover.GraceMs < 0 {
		errs = append(errs, errors.New("hover: grace_ms must be non-negative"))
	}
	if err := c.Visual.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("visual: %w", err))
	}
	if c.Prefs.DefaultVolume < 0 || c.Prefs.DefaultVolume > 1 {
		errs = append(errs, errors.New("prefs: default_volume must be between 0 and 1"))
	}
	if c.Log.Level != "" {
		if _, err := log.ParseLevel(strings.ToLower(c.Log.Level)); err != nil {
			errs = append(errs, fmt.Errorf("log: invalid level %q", c.Log.Level))
		}
	}

	return errors.Join(errs...)
}

// Validate checks IPCConfig for errors.
func (c *IPCConfig) Validate() error {
	if c.Socket == "" {
		return errors.New("socket must be set")
	}
	if c.GainPushRate < 0 {
		return errors.New("gain_push_rate must be non-negative")
	}
	return nil
}

// Validate checks PlaybackConfig for errors.
func (c *PlaybackConfig) Validate() error {
	var errs []error
	for name, v := range map[string]int{
		"fade_in_ms":       c.FadeInMs,
		"fade_out_ms":      c.FadeOutMs,
		"swap_fade_ms":     c.SwapFadeMs,
		"reaffirm_fade_ms": c.ReaffirmFadeMs,
		"duck_fade_ms":     c.DuckFadeMs,
		"unduck_fade_ms":   c.UnduckFadeMs,
		"stop_slack_ms":    c.StopSlackMs,
		"min_end_fade_ms":  c.MinEndFadeMs,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must be non-negative", name))
		}
	}
	if c.FrameMs < 1 {
		errs = append(errs, errors.New("frame_ms must be at least 1"))
	}
	if c.EndFadeFraction <= 0 || c.EndFadeFraction > 1 {
		errs = append(errs, errors.New("end_fade_fraction must be in (0, 1]"))
	}
	switch c.Decoder {
	case "auto", "native", "ffmpeg":
	default:
		errs = append(errs, fmt.Errorf("unknown decoder %q", c.Decoder))
	}
	if c.SampleRate < 8000 {
		errs = append(errs, errors.New("sample_rate must be at least 8000"))
	}
	return errors.Join(errs...)
}

// Validate checks VisualConfig for errors.
func (c *VisualConfig) Validate() error {
	if _, ok := visual.NormalizeColor(c.DefaultColor); !ok {
		return fmt.Errorf("invalid default_color %q", c.DefaultColor)
	}
	if c.DefaultTempo <= 0 {
		return errors.New("default_tempo must be positive")
	}
	if c.MinPulsePeriod <= 0 {
		return errors.New("min_pulse_period must be positive")
	}
	return nil
}
