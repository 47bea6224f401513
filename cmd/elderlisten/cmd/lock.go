package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eternnoir/elderlisten/pkg/lock"
	"github.com/eternnoir/elderlisten/pkg/logger"
)

// lockCmd groups job lock commands
var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect or clear the transcription job lock",
}

var lockStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a transcription run holds the lock",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		l := lock.ForContextRoot(cfg.Storage.ContextRoot)
		if !l.IsHeld() {
			fmt.Fprintf(cmd.OutOrStdout(), "free (%s)\n", l.Path())
			return nil
		}

		holder, err := l.Holder()
		if err != nil {
			holder = "unknown"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "held by %s (%s)\n", holder, l.Path())
		return nil
	},
}

var lockClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove a lock left behind by a crashed run",
	Long: `Remove the transcription lock marker. Only do this when no run is active,
e.g. after the process holding it crashed or was killed. Removing the lock of
a live run allows a second run to start concurrently.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		path := lock.ForContextRoot(cfg.Storage.ContextRoot).Path()
		removed, err := lock.Clear(path)
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintln(cmd.OutOrStdout(), "lock was not held")
			return nil
		}

		logger.WithComponent("cli").Warn().Str("lock", path).Msg("Job lock cleared by operator")
		fmt.Fprintln(cmd.OutOrStdout(), "lock cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lockCmd)
	lockCmd.AddCommand(lockStatusCmd, lockClearCmd)
}
