// Package config handles daemon configuration file management.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/austinkregel/local-media/previewd/internal/hover"
	"github.com/austinkregel/local-media/previewd/internal/session"
	"github.com/austinkregel/local-media/previewd/internal/visual"
)

// Config represents the daemon configuration
type Config struct {
	IPC      IPCConfig      `toml:"ipc"`
	Playback PlaybackConfig `toml:"playback"`
	Hover    HoverConfig    `toml:"hover"`
	Visual   VisualConfig   `toml:"visual"`
	Prefs    PrefsConfig    `toml:"prefs"`
	Tints    TintsConfig    `toml:"tints"`
	Media    MediaConfig    `toml:"media"`
	Log      LogConfig      `toml:"log"`
}

// IPCConfig configures the client socket.
type IPCConfig struct {
	// Socket is the unix socket path
	Socket string `toml:"socket"`

	// GainPushRate caps gain pushes per second to each subscriber
	GainPushRate float64 `toml:"gain_push_rate"`
}

// PlaybackConfig holds the fade policy. Durations are milliseconds.
type PlaybackConfig struct {
	FadeInMs       int `toml:"fade_in_ms"`
	FadeOutMs      int `toml:"fade_out_ms"`
	SwapFadeMs     int `toml:"swap_fade_ms"`
	ReaffirmFadeMs int `toml:"reaffirm_fade_ms"`
	DuckFadeMs     int `toml:"duck_fade_ms"`
	UnduckFadeMs   int `toml:"unduck_fade_ms"`
	FrameMs        int `toml:"frame_ms"`
	StopSlackMs    int `toml:"stop_slack_ms"`

	// MinEndFadeMs is the shortest clip that fades out by itself
	MinEndFadeMs    int     `toml:"min_end_fade_ms"`
	EndFadeFraction float64 `toml:"end_fade_fraction"`
	AutoEndFade     bool    `toml:"auto_end_fade"`

	// MediaBase resolves relative preview urls (a directory or an http url)
	MediaBase string `toml:"media_base"`

	// Decoder is "auto", "native" or "ffmpeg"
	Decoder    string `toml:"decoder"`
	SampleRate int    `toml:"sample_rate"`
}

// HoverConfig configures the hover router.
type HoverConfig struct {
	GraceMs int `toml:"grace_ms"`
}

// VisualConfig configures visual signals.
type VisualConfig struct {
	DefaultColor   string  `toml:"default_color"`
	DefaultTempo   float64 `toml:"default_tempo"`
	MinPulsePeriod float64 `toml:"min_pulse_period"`
}

// PrefsConfig locates the preference store.
type PrefsConfig struct {
	Path          string  `toml:"path"`
	DefaultVolume float64 `toml:"default_volume"`
	Watch         bool    `toml:"watch"`
}

// TintsConfig locates the tint cache.
type TintsConfig struct {
	DBPath string `toml:"db_path"`
}

// MediaConfig controls the OS media session.
type MediaConfig struct {
	MPRIS bool `toml:"mpris"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// ms converts a millisecond setting, keeping negative values as "immediately".
func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// SessionOptions converts the playback section.
func (c *Config) SessionOptions() session.Options {
	p := c.Playback
	return session.Options{
		FadeIn:             ms(p.FadeInMs),
		FadeOut:            ms(p.FadeOutMs),
		SwapFade:           ms(p.SwapFadeMs),
		ReaffirmFade:       ms(p.ReaffirmFadeMs),
		DuckFade:           ms(p.DuckFadeMs),
		UnduckFade:         ms(p.UnduckFadeMs),
		Frame:              ms(p.FrameMs),
		StopSlack:          ms(p.StopSlackMs),
		MinEndFadeDuration: ms(p.MinEndFadeMs),
		EndFadeFraction:    p.EndFadeFraction,
		MediaBase:          p.MediaBase,
	}
}

// HoverOptions converts the hover section.
func (c *Config) HoverOptions() hover.Options {
	return hover.Options{
		Grace:       ms(c.Hover.GraceMs),
		AutoEndFade: c.Playback.AutoEndFade,
	}
}

// VisualOptions converts the visual section.
func (c *Config) VisualOptions() visual.Options {
	return visual.Options{
		DefaultColor:   c.Visual.DefaultColor,
		DefaultTempo:   c.Visual.DefaultTempo,
		MinPulsePeriod: c.Visual.MinPulsePeriod,
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	configDir  string
	configPath string
	config     *Config
}

// NewManager creates a new configuration manager
func NewManager(configDir string) *Manager {
	return NewManagerFor(filepath.Join(configDir, "config.toml"))
}

// NewManagerFor creates a manager for a specific config file.
func NewManagerFor(path string) *Manager {
	return &Manager{
		configDir:  filepath.Dir(path),
		configPath: path,
		config:     Default(),
	}
}

// Load reads the configuration from disk, creating it with defaults when it
// does not exist, then applies environment overrides.
func (m *Manager) Load() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(m.configPath); errors.Is(err, os.ErrNotExist) {
		m.config = Default()
		if err := m.Save(); err != nil {
			return err
		}
		applyEnvOverrides(m.config)
		return m.config.Validate()
	}

	cfg, err := LoadFrom(m.configPath)
	if err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// LoadFrom reads configuration from a specific file path.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	if err := os.MkdirAll(m.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m.config); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	return m.config
}

// GetPath returns the config file path
func (m *Manager) GetPath() string {
	return m.configPath
}

// DefaultDir returns $XDG_CONFIG_HOME/previewd or ~/.config/previewd.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "previewd"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "previewd"), nil
}
