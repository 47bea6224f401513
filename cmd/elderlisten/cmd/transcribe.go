package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eternnoir/elderlisten/pkg/config"
	"github.com/eternnoir/elderlisten/pkg/history"
	"github.com/eternnoir/elderlisten/pkg/lock"
	"github.com/eternnoir/elderlisten/pkg/logger"
	"github.com/eternnoir/elderlisten/pkg/providers/factory"
	"github.com/eternnoir/elderlisten/pkg/transcribe"
)

// transcribeCmd represents the transcribe command
var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe every recording that has no transcript yet",
	Long: `Sweep the audio root and transcribe every recording whose transcript is
missing or empty. Existing transcripts are never touched, so an interrupted
run can simply be started again.

Only one run may be active per context root. If another run holds the lock
the command exits without doing anything. A lock left behind by a crashed
process has to be removed with "elderlisten lock clear".

Examples:
  # Transcribe everything pending
  elderlisten transcribe

  # Print the run counters as JSON
  elderlisten transcribe --json`,
	Args: cobra.NoArgs,
	RunE: runTranscribe,
}

func init() {
	rootCmd.AddCommand(transcribeCmd)

	transcribeCmd.Flags().Bool("json", false, "print run statistics as JSON")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cli")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, ledger, err := buildRunner(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLedger(ledger, log)

	l := lock.ForContextRoot(cfg.Storage.ContextRoot)
	stats, ran, err := transcribe.RunLocked(ctx, l, runner)
	if err != nil && stats == nil {
		return err
	}
	if !ran {
		holder, _ := l.Holder()
		log.Warn().Str("lock", l.Path()).Str("holder", holder).Msg("Another transcription run is in progress")
		fmt.Fprintln(cmd.OutOrStdout(), "transcription already running")
		return nil
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if printErr := printStats(cmd.OutOrStdout(), stats, asJSON); printErr != nil {
		return printErr
	}
	return err
}

// buildRunner wires a runner with the configured recognizer and, when enabled, the history ledger
func buildRunner(ctx context.Context, cfg *config.Config, log *logger.Logger) (*transcribe.Runner, history.Ledger, error) {
	st, err := newStore(cfg)
	if err != nil {
		return nil, nil, err
	}

	recognizer, err := factory.NewRecognizer(ctx, cfg.ASR)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize speech recognizer: %w", err)
	}
	log.Info().Str("provider", recognizer.Name()).Msg("Initialized speech recognizer")

	opts := []transcribe.Option{}
	ledger := openLedger(cfg, log)
	if ledger != nil {
		opts = append(opts, transcribe.WithHistory(ledger))
	}

	runner, err := transcribe.NewRunner(st, recognizer, opts...)
	if err != nil {
		closeLedger(ledger, log)
		return nil, nil, err
	}
	return runner, ledger, nil
}

func printStats(w io.Writer, stats *transcribe.RunStats, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(w, "run:       %s\n", stats.RunID)
	fmt.Fprintf(w, "total:     %d\n", stats.Total)
	fmt.Fprintf(w, "processed: %d\n", stats.Processed)
	fmt.Fprintf(w, "skipped:   %d\n", stats.Skipped)
	fmt.Fprintf(w, "failed:    %d\n", stats.Failed)
	fmt.Fprintf(w, "duration:  %s\n", stats.Duration.Round(time.Millisecond))
	return nil
}
