// Package prefs persists the user's preview preferences as string keys.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/austinkregel/local-media/previewd/internal/session"
)

const (
	// KeyMuted holds "true" or "false".
	KeyMuted = "preview.muted"

	// KeyVolume holds a float in [0,1].
	KeyVolume = "preview.volume"

	// DefaultVolume applies when no valid volume is stored.
	DefaultVolume = 0.9
)

var (
	ErrUnknownKey   = errors.New("unknown preference key")
	ErrInvalidValue = errors.New("invalid preference value")
)

// Store is a small key/value file shared with other tools. It is safe for
// concurrent use.
type Store struct {
	mu            sync.RWMutex
	path          string
	defaultVolume float64
	values        map[string]string
}

// NewStore creates a store backed by path. A defaultVolume outside [0,1]
// uses DefaultVolume.
func NewStore(path string, defaultVolume float64) *Store {
	if defaultVolume < 0 || defaultVolume > 1 {
		defaultVolume = DefaultVolume
	}
	return &Store{
		path:          path,
		defaultVolume: defaultVolume,
		values:        make(map[string]string),
	}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the file. A missing file leaves the store empty.
func (s *Store) Load() error {
	values, err := readFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

func readFile(path string) (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return values, nil
}

// Get returns the raw value of key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// All returns a copy of every stored key.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Keys lists the keys the store understands.
func Keys() []string {
	keys := []string{KeyMuted, KeyVolume}
	sort.Strings(keys)
	return keys
}

// Normalize validates value for key and returns its canonical form.
func Normalize(key, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyMuted:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		return strconv.FormatBool(b), nil
	case KeyVolume:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || f < 0 || f > 1 {
			return "", fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

// Set validates and stores value, then writes the file.
func (s *Store) Set(key, value string) error {
	v, err := Normalize(key, value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = v
	s.mu.Unlock()
	return s.Save()
}

// Save writes the store to disk through a temporary file.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.values, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace preferences: %w", err)
	}
	return nil
}

// Preference interprets the stored keys. Unparseable values fall back to
// unmuted and the default volume.
func (s *Store) Preference() session.Preference {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return parse(s.values, s.defaultVolume)
}

func parse(values map[string]string, defaultVolume float64) session.Preference {
	p := session.Preference{Volume: defaultVolume}
	if v, ok := values[KeyMuted]; ok {
		p.Muted = strings.TrimSpace(v) == "true"
	}
	if v, ok := values[KeyVolume]; ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f >= 0 && f <= 1 {
			p.Volume = f
		}
	}
	return p
}
