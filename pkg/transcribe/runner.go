// Package transcribe sweeps the audio root and writes a transcript for every
// asset that does not have one yet.
package transcribe

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eternnoir/elderlisten/pkg/history"
	"github.com/eternnoir/elderlisten/pkg/logger"
	"github.com/eternnoir/elderlisten/pkg/providers"
	"github.com/eternnoir/elderlisten/pkg/store"
)

// RunStats are the counters of one run. They are not persisted.
type RunStats struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Runner is the batch transcription runner. It must only run while the
// caller holds the job lock; it never takes the lock itself.
type Runner struct {
	store      *store.Store
	recognizer providers.SpeechRecognizer
	history    history.Ledger
	log        *logger.Logger
	now        func() time.Time
}

// Option configures a Runner
type Option func(*Runner)

// WithHistory records every attempt in ledger
func WithHistory(ledger history.Ledger) Option {
	return func(r *Runner) {
		r.history = ledger
	}
}

// WithLogger sets the runner logger
func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRunner creates a runner
func NewRunner(st *store.Store, recognizer providers.SpeechRecognizer, opts ...Option) (*Runner, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if recognizer == nil {
		return nil, fmt.Errorf("speech recognizer is required")
	}

	r := &Runner{
		store:      st,
		recognizer: recognizer,
		log:        logger.WithComponent("transcribe"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run visits every audio asset once, in lexical order. Per-asset failures
// are appended to the error log and counted; they never stop the sweep.
// Cancelling ctx stops the sweep before the next asset and returns the
// counters so far with the context error.
func (r *Runner) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
	}
	log := r.log.WithField("run_id", stats.RunID)

	log.Info().
		Str("audio_root", r.store.AudioRoot()).
		Str("context_root", r.store.ContextRoot()).
		Str("provider", r.recognizer.Name()).
		Msg("Starting transcription run")

	err := r.store.WalkAudio(func(asset store.AudioAsset) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Total++
		r.process(ctx, asset, stats, log)
		return nil
	}, func(path string, err error) {
		r.skipUnreadable(path, err, log)
	})
	stats.Duration = r.now().Sub(stats.StartedAt)

	if err != nil {
		log.Error().Err(err).
			Int("total", stats.Total).
			Int("processed", stats.Processed).
			Msg("Transcription run stopped")
		return stats, err
	}

	log.Info().
		Int("total", stats.Total).
		Int("processed", stats.Processed).
		Int("skipped", stats.Skipped).
		Int("failed", stats.Failed).
		Dur("duration", stats.Duration).
		Msg("Transcription run completed")
	return stats, nil
}

func (r *Runner) process(ctx context.Context, asset store.AudioAsset, stats *RunStats, log *logger.Logger) {
	log = log.WithField("file", asset.Path)

	textPath, err := r.store.TranscriptPathFor(asset.Path)
	if err != nil {
		r.fail(asset.Path, err, stats, log)
		return
	}

	if store.HasText(textPath) {
		stats.Skipped++
		log.Debug().Msg("Transcript exists, skipping")
		return
	}

	start := r.now()
	res, err := r.recognize(ctx, asset.Path)
	if err != nil {
		r.fail(asset.Path, err, stats, log)
		return
	}

	if err := store.SaveText(textPath, res.Text); err != nil {
		r.fail(asset.Path, err, stats, log)
		return
	}

	took := r.now().Sub(start)
	stats.Processed++
	log.Info().Str("transcript", textPath).Dur("took", took).Msg("Transcribed")

	if r.history != nil {
		if err := r.history.RecordTranscribed(asset.Path, textPath, took); err != nil {
			log.Warn().Err(err).Msg("Failed to record success in history")
		}
	}
}

// recognize calls the provider once, converting a panic into an error
func (r *Runner) recognize(ctx context.Context, path string) (res *providers.Transcription, err error) {
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("speech recognizer panicked: %v", p)
		}
	}()

	res, err = r.recognizer.Transcribe(ctx, path)
	if err == nil && res == nil {
		err = fmt.Errorf("speech recognizer returned no result")
	}
	return res, err
}

// skipUnreadable records an entry the walk could not read. It is not an
// asset, so it is not counted in the run stats.
func (r *Runner) skipUnreadable(path string, cause error, log *logger.Logger) {
	log.Error().Err(cause).Str("path", path).Msg("Skipping unreadable path")
	if err := r.store.AppendError(path, cause.Error(), r.now()); err != nil {
		log.Error().Err(err).Msg("Failed to append error record")
	}
}

func (r *Runner) fail(path string, cause error, stats *RunStats, log *logger.Logger) {
	stats.Failed++
	log.Error().Err(cause).Msg("Transcription failed")

	if err := r.store.AppendError(path, cause.Error(), r.now()); err != nil {
		log.Error().Err(err).Msg("Failed to append error record")
	}

	if r.history != nil {
		if err := r.history.RecordFailed(path, cause); err != nil {
			log.Warn().Err(err).Msg("Failed to record failure in history")
		}
	}
}
