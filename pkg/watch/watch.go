// Package watch triggers transcription runs when audio files appear under
// the audio root.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/eternnoir/elderlisten/pkg/logger"
	"github.com/eternnoir/elderlisten/pkg/store"
)

// Trigger starts a transcription run. started is false when a run was
// already in progress.
type Trigger func(ctx context.Context) (started bool, err error)

// Config contains watcher settings
type Config struct {
	// Directory tree to watch
	Root string

	// Quiet period after the last audio event before triggering
	Debounce time.Duration

	// Trigger once when watching starts
	RunOnStart bool

	// Trigger periodically regardless of events; zero disables
	Interval time.Duration
}

// Stats counts watcher activity
type Stats struct {
	StartTime time.Time
	Events    int
	Started   int
	Skipped   int
	Errors    int
}

// Watcher turns filesystem events into debounced triggers
type Watcher struct {
	cfg     Config
	trigger Trigger
	log     *logger.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a watcher
func New(cfg Config, trigger Trigger) (*Watcher, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("watch root is required")
	}
	if cfg.Debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive")
	}
	if trigger == nil {
		return nil, fmt.Errorf("trigger is required")
	}

	return &Watcher{
		cfg:     cfg,
		trigger: trigger,
		log:     logger.WithComponent("watch").WithField("root", cfg.Root),
	}, nil
}

// Run watches until ctx is cancelled. The root is created if missing.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Root, 0o755); err != nil {
		return fmt.Errorf("failed to create watch root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsw.Close()

	if err := addTree(fsw, w.cfg.Root); err != nil {
		return fmt.Errorf("failed to add watch directory: %w", err)
	}

	w.log.Info().
		Dur("debounce", w.cfg.Debounce).
		Dur("interval", w.cfg.Interval).
		Bool("run_on_start", w.cfg.RunOnStart).
		Msg("Watching for new recordings")

	return w.loop(ctx, fsw.Events, fsw.Errors, func(dir string) error {
		return addTree(fsw, dir)
	})
}

// Stats returns a copy of the counters
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) loop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, addDir func(string) error) error {
	w.mu.Lock()
	w.stats.StartTime = time.Now()
	w.mu.Unlock()

	var tick <-chan time.Time
	if w.cfg.Interval > 0 {
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	debounce := time.NewTimer(w.cfg.Debounce)
	debounce.Stop()
	defer debounce.Stop()

	if w.cfg.RunOnStart && !w.fire(ctx) {
		debounce.Reset(w.cfg.Debounce)
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Watcher stopped")
			return nil

		case event, ok := <-events:
			if !ok {
				return nil
			}
			if w.relevant(event, addDir) {
				w.count(func(s *Stats) { s.Events++ })
				debounce.Reset(w.cfg.Debounce)
			}

		case err, ok := <-errs:
			if !ok {
				return nil
			}
			w.count(func(s *Stats) { s.Errors++ })
			w.log.Error().Err(err).Msg("Watcher error")

		case <-debounce.C:
			if !w.fire(ctx) {
				// a run is in progress; it may have missed the new files
				debounce.Reset(w.cfg.Debounce)
			}

		case <-tick:
			w.fire(ctx)
		}
	}
}

// relevant reports whether event may have produced a new audio asset. New
// directories are added to the watch.
func (w *Watcher) relevant(event fsnotify.Event, addDir func(string) error) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addDir(event.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
			}
			return true
		}
	}

	return store.IsAudioFile(event.Name)
}

// fire calls the trigger and reports whether the call is settled
func (w *Watcher) fire(ctx context.Context) bool {
	started, err := w.trigger(ctx)
	switch {
	case err != nil:
		w.count(func(s *Stats) { s.Errors++ })
		w.log.Error().Err(err).Msg("Failed to trigger transcription")
		return true
	case started:
		w.count(func(s *Stats) { s.Started++ })
		w.log.Info().Msg("Transcription run triggered")
		return true
	default:
		w.count(func(s *Stats) { s.Skipped++ })
		w.log.Debug().Msg("Transcription already running, will retry")
		return false
	}
}

func (w *Watcher) count(fn func(*Stats)) {
	w.mu.Lock()
	fn(&w.stats)
	w.mu.Unlock()
}

func addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fsw.Add(path)
	})
}
