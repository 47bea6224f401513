package cmd

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eternnoir/elderlisten/pkg/lock"
	"github.com/eternnoir/elderlisten/pkg/logger"
	"github.com/eternnoir/elderlisten/pkg/transcribe"
	"github.com/eternnoir/elderlisten/pkg/watch"
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Transcribe new recordings as they arrive",
	Long: `Watch the audio root and start a transcription run shortly after new
recordings stop arriving. Runs share the job lock with "elderlisten transcribe";
when a run is already active the trigger is retried after the debounce period.

Examples:
  # Watch with the configured settings
  elderlisten watch

  # Wait 30s of quiet before each run and also run every hour
  elderlisten watch --debounce 30s --interval 1h`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().Duration("debounce", 0, "quiet period before a run is triggered")
	watchCmd.Flags().Duration("interval", 0, "also trigger a run at this interval")
	watchCmd.Flags().Bool("no-initial-run", false, "do not trigger a run on startup")

	_ = viper.BindPFlag("watch.debounce", watchCmd.Flags().Lookup("debounce"))
	_ = viper.BindPFlag("watch.interval", watchCmd.Flags().Lookup("interval"))
}

func runWatch(cmd *cobra.Command, args []string) error {
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
	outcomes := make(chan transcribe.Outcome)
	var inflight sync.WaitGroup

	go func() {
		for out := range outcomes {
			if out.Err != nil {
				log.Error().Err(out.Err).Msg("Background transcription run ended with error")
			}
			if out.Stats != nil {
				log.Info().
					Str("run_id", out.Stats.RunID).
					Int("processed", out.Stats.Processed).
					Int("failed", out.Stats.Failed).
					Msg("Background transcription run finished")
			}
			inflight.Done()
		}
	}()

	trigger := func(ctx context.Context) (bool, error) {
		inflight.Add(1)
		started, err := transcribe.Start(ctx, l, runner, outcomes)
		if !started {
			inflight.Done()
		}
		return started, err
	}

	noInitial, _ := cmd.Flags().GetBool("no-initial-run")
	w, err := watch.New(watch.Config{
		Root:       cfg.Storage.AudioRoot,
		Debounce:   cfg.Watch.Debounce,
		RunOnStart: cfg.Watch.RunOnStart && !noInitial,
		Interval:   cfg.Watch.Interval,
	}, trigger)
	if err != nil {
		return err
	}

	err = w.Run(ctx)

	// a cancelled run stops before its next recording and releases the lock
	inflight.Wait()
	close(outcomes)
	return err
}
