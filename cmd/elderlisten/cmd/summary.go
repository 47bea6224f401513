package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eternnoir/elderlisten/pkg/logger"
	"github.com/eternnoir/elderlisten/pkg/providers/factory"
	"github.com/eternnoir/elderlisten/pkg/summary"
)

// summaryCmd represents the summary command
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Generate or show the daily summary of one subject",
	Long: `Summarize one day of transcripts of one subject. The most recent transcripts
are kept when the day holds more text than fits a single request.

The result is cached; later calls return the cache unless --force is given.

Examples:
  elderlisten summary --subject 12 --date 2024-05-01
  elderlisten summary --subject 12 --date 2024-05-01 --force`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func init() {
	rootCmd.AddCommand(summaryCmd)

	summaryCmd.Flags().Int64("subject", 0, "subject id")
	summaryCmd.Flags().String("date", "", "day to summarize (YYYY-MM-DD)")
	summaryCmd.Flags().Bool("force", false, "regenerate even when a cached summary exists")
	_ = summaryCmd.MarkFlagRequired("subject")
	_ = summaryCmd.MarkFlagRequired("date")
}

func runSummary(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("cli")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	subjectID, _ := cmd.Flags().GetInt64("subject")
	date, _ := cmd.Flags().GetString("date")
	force, _ := cmd.Flags().GetBool("force")

	st, err := newStore(cfg)
	if err != nil {
		return err
	}

	summarizer, err := factory.NewSummarizer(cmd.Context(), cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to initialize summarizer: %w", err)
	}
	log.Debug().Str("provider", summarizer.Name()).Msg("Initialized summarizer")

	gen, err := summary.NewGenerator(st, summarizer, cfg.Storage.SummaryRoot)
	if err != nil {
		return err
	}

	res, err := gen.GenerateSummary(cmd.Context(), subjectID, date, force)
	if res != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(res); encErr != nil {
			return encErr
		}
	}
	return err
}
