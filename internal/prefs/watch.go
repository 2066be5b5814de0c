package prefs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/austinkregel/local-media/previewd/internal/session"
)

// settle coalesces the burst of events an editor produces for one save.
const settle = 100 * time.Millisecond

// Watch reloads the store whenever its file changes and calls onChange when
// the interpreted preference differs. Watcher errors are passed to onError
// (which may be nil) and force a reload, since events may have been lost.
// It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func(session.Preference), onError func(error)) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer w.Close()

	// Watch the directory: editors and Save replace the file by rename.
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s.watchLoop(ctx, w.Events, w.Errors, onChange, onError)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, onChange func(session.Preference), onError func(error)) {
	target := filepath.Clean(s.path)
	var debounce <-chan time.Time

	apply := func() {
		if changed, pref := s.reload(); changed && onChange != nil {
			onChange(pref)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			debounce = time.After(settle)
		case <-debounce:
			debounce = nil
			apply()
		case err, ok := <-errs:
			if !ok {
				return
			}
			if onError != nil {
				onError(fmt.Errorf("preferences watcher: %w", err))
			}
			apply()
		}
	}
}

// reload re-reads the file and reports whether the preference changed. A
// file that cannot be parsed keeps the previous values.
func (s *Store) reload() (bool, session.Preference) {
	values, err := readFile(s.path)

	s.mu.Lock()
	defer s.mu.Unlock()
	before := parse(s.values, s.defaultVolume)
	if err != nil {
		return false, before
	}
	s.values = values
	after := parse(values, s.defaultVolume)
	return after != before, after
}
