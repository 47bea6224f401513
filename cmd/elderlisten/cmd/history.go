package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/eternnoir/elderlisten/pkg/history"
	"github.com/eternnoir/elderlisten/pkg/logger"
)

// historyCmd groups commands reading past transcription attempts
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past transcription failures",
}

var historyFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List recordings whose latest transcription attempt failed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if !cfg.History.Enabled {
			return fmt.Errorf("history is disabled (history.enabled=false)")
		}

		ledger, err := history.Open(cfg.History.DBPath)
		if err != nil {
			return err
		}
		defer closeLedger(ledger, logger.WithComponent("cli"))

		failed, err := ledger.Failed()
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), failed)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FILE\tATTEMPTS\tLAST FAILURE\tERROR")
		for _, f := range failed {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", f.AudioPath, f.Attempts, f.FailedAt.Format(time.RFC3339), f.Error)
		}
		return tw.Flush()
	},
}

var historyErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Print the most recent entries of the error log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := newStore(cfg)
		if err != nil {
			return err
		}

		records, err := st.ReadErrors()
		if err != nil {
			return err
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(records) > limit {
			records = records[len(records)-limit:]
		}
		for _, r := range records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n    %s\n", r.Time, r.File, r.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyFailedCmd, historyErrorsCmd)

	historyFailedCmd.Flags().Bool("json", false, "print as JSON")
	historyErrorsCmd.Flags().Int("limit", 20, "number of entries to show, 0 for all")
}
