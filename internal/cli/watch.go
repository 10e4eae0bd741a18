package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/cellgen/internal/config"
)

// Watcher calls OnChange once a burst of input changes settles.
type Watcher struct {
	Dirs     []string
	Debounce time.Duration

	// Ignore drops events for paths it returns true for, such as the
	// generated file itself.
	Ignore func(path string) bool

	OnChange func(ctx context.Context) error

	// ready, when set, is closed once the directories are watched.
	ready chan struct{}
}

// Run watches until ctx is done. Errors from OnChange are logged, not
// returned.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Watch directories rather than files: editors replace files on save.
	for _, dir := range w.Dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
	}
	if w.ready != nil {
		close(w.ready)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			slog.Debug("input change detected", "file", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.Debounce)
			} else {
				timer.Reset(w.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if err := w.OnChange(ctx); err != nil {
				slog.Error("regeneration failed", "error", err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("file watcher error", "error", err)
		}
	}
}

// relevant reports whether an event can change the generated output.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if w.Ignore != nil && w.Ignore(event.Name) {
		return false
	}
	base := filepath.Base(event.Name)
	switch {
	case base == config.FileName:
		return true
	case strings.HasSuffix(base, "_test.go"):
		return false
	case strings.HasSuffix(base, ".go"), strings.HasSuffix(base, ".cue"):
		return true
	}
	return false
}
