package transcribe

import (
	"context"
	"fmt"
	"os"

	"github.com/eternnoir/elderlisten/pkg/lock"
)

// Outcome is delivered on the done channel of Start when a background run ends
type Outcome struct {
	Stats *RunStats
	Err   error
}

// Start acquires l and, on success, runs r in a new goroutine and returns
// immediately. The lock is released when the sweep ends, including by panic.
// A held lock returns false and a nil error. done, if not nil, receives
// exactly one Outcome.
func Start(ctx context.Context, l *lock.FileLock, r *Runner, done chan<- Outcome) (bool, error) {
	held, err := l.Acquire()
	if err != nil {
		return false, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !held {
		r.log.Info().Str("lock", l.Path()).Msg("Transcription already running, not starting")
		return false, nil
	}

	go func() {
		stats, err := runReleasing(ctx, l, r)
		if done != nil {
			done <- Outcome{Stats: stats, Err: err}
		}
	}()
	return true, nil
}

// RunLocked acquires l, runs r in the calling goroutine and releases l. A
// held lock returns false and a nil error without running.
func RunLocked(ctx context.Context, l *lock.FileLock, r *Runner) (*RunStats, bool, error) {
	held, err := l.Acquire()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !held {
		return nil, false, nil
	}

	stats, err := runReleasing(ctx, l, r)
	return stats, true, err
}

func runReleasing(ctx context.Context, l *lock.FileLock, r *Runner) (stats *RunStats, err error) {
	log := r.log.WithFields(map[string]interface{}{
		"lock": l.Path(),
		"pid":  os.Getpid(),
	})

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("transcription run panicked: %v", p)
			log.Error().Err(err).Msg("Transcription run aborted")
		}
		l.Release()
		log.Debug().Msg("Job lock released")
	}()

	log.Debug().Msg("Job lock acquired")
	return r.Run(ctx)
}
