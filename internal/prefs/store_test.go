package prefs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/austinkregel/local-media/previewd/internal/session"
)

func TestLoadMissingFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "prefs.json"), 0.9)
	if err := s.Load(); err != nil {
		t.Fatalf("Expected missing file to load, got %v", err)
	}

	p := s.Preference()
	if p.Muted || p.Volume != 0.9 {
		t.Errorf("Expected defaults, got %+v", p)
	}
}

func TestSetPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")
	s := NewStore(path, 0.9)

	if err := s.Set(KeyMuted, "TRUE"); err != nil {
		t.Fatalf("Failed to set muted: %v", err)
	}
	if err := s.Set(KeyVolume, " 0.25 "); err != nil {
		t.Fatalf("Failed to set volume: %v", err)
	}

	reloaded := NewStore(path, 0.9)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if v, _ := reloaded.Get(KeyMuted); v != "true" {
		t.Errorf("Expected muted \"true\", got %q", v)
	}
	if v, _ := reloaded.Get(KeyVolume); v != "0.25" {
		t.Errorf("Expected volume \"0.25\", got %q", v)
	}
	if p := reloaded.Preference(); !p.Muted || p.Volume != 0.25 {
		t.Errorf("Expected muted at 0.25, got %+v", p)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestSetRejectsInvalid(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "prefs.json"), 0.9)

	tests := []struct {
		key, value string
		want       error
	}{
		{KeyVolume, "1.5", ErrInvalidValue},
		{KeyVolume, "-0.1", ErrInvalidValue},
		{KeyVolume, "loud", ErrInvalidValue},
		{KeyMuted, "maybe", ErrInvalidValue},
		{"preview.speed", "2", ErrUnknownKey},
	}
	for _, tt := range tests {
		if err := s.Set(tt.key, tt.value); !errors.Is(err, tt.want) {
			t.Errorf("Set(%s, %s): Expected %v, got %v", tt.key, tt.value, tt.want, err)
		}
	}
	if len(s.All()) != 0 {
		t.Errorf("Expected nothing stored, got %v", s.All())
	}
}

func TestPreferenceFallsBackOnBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte(`{"preview.muted":"yes","preview.volume":"7"}`), 0600); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, 0.9)
	if err := s.Load(); err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if p := s.Preference(); p.Muted || p.Volume != 0.9 {
		t.Errorf("Expected unmuted default volume, got %+v", p)
	}
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0600); err != nil {
		t.Fatal(err)
	}
	if err := NewStore(path, 0.9).Load(); err == nil {
		t.Error("Expected parse error")
	}
}

func TestNewStoreClampsDefault(t *testing.T) {
	s := NewStore("unused.json", 4)
	if p := s.Preference(); p.Volume != DefaultVolume {
		t.Errorf("Expected %v, got %v", DefaultVolume, p.Volume)
	}
}

func TestWatchReportsExternalChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := NewStore(path, 0.9)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan session.Preference, 8)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, func(p session.Preference) { changes <- p }, nil)
	}()

	writer := NewStore(path, 0.9)
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()

	for i := 1; ; i++ {
		select {
		case p := <-changes:
			if p.Volume == 0.9 {
				t.Errorf("Expected a changed volume, got %+v", p)
			}
			if got := s.Preference(); got != p {
				t.Errorf("Expected store to hold %+v, got %+v", p, got)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Expected clean shutdown, got %v", err)
			}
			return
		case <-tick.C:
			vol := strconv.FormatFloat(float64(i%9+1)/10, 'f', -1, 64)
			if err := writer.Set(KeyVolume, vol); err != nil {
				t.Fatalf("Failed to write: %v", err)
			}
		case <-deadline:
			t.Fatal("Timed out waiting for change notification")
		}
	}
}

func TestWatchSurvivesWatcherErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := NewStore(path, 0.9)
	writer := NewStore(path, 0.9)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events := make(chan fsnotify.Event)
	errs := make(chan error)
	changes := make(chan session.Preference, 8)
	reported := make(chan error, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.watchLoop(ctx, events, errs,
			func(p session.Preference) { changes <- p },
			func(err error) { reported <- err })
	}()

	next := func() session.Preference {
		t.Helper()
		select {
		case p := <-changes:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("Timed out waiting for change notification")
			return session.Preference{}
		}
	}

	// An error forces a reload of whatever was missed.
	if err := writer.Set(KeyVolume, "0.3"); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	errs <- fsnotify.ErrEventOverflow
	if err := <-reported; !errors.Is(err, fsnotify.ErrEventOverflow) {
		t.Errorf("Expected overflow to be reported, got %v", err)
	}
	if p := next(); p.Volume != 0.3 {
		t.Errorf("Expected volume 0.3 after the error, got %+v", p)
	}

	// Later events are still handled.
	if err := writer.Set(KeyMuted, "true"); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	events <- fsnotify.Event{Name: path, Op: fsnotify.Write}
	if p := next(); !p.Muted {
		t.Errorf("Expected muted after a later change, got %+v", p)
	}

	cancel()
	<-done
}
