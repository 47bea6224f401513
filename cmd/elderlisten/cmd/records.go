package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/eternnoir/elderlisten/pkg/logger"
	"github.com/eternnoir/elderlisten/pkg/providers/factory"
	"github.com/eternnoir/elderlisten/pkg/records"
)

// recordsCmd groups per-recording commands
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect single recordings",
	Long: `Inspect the recordings of one subject. Record ids have the form
{date}/{name}, e.g. 2024-05-01/0930.

Examples:
  elderlisten records list --subject 12
  elderlisten records audio --subject 12 --id 2024-05-01/0930
  elderlisten records text --subject 12 --id 2024-05-01/0930
  elderlisten records get --subject 12 --id 2024-05-01/0930`,
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a subject's recordings, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, ctx, err := recordsService(cmd)
		if err != nil {
			return err
		}
		subjectID, _ := cmd.Flags().GetInt64("subject")

		recs, err := svc.List(ctx, subjectID)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), recs)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tFILE\tTEXT")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%t\n", r.ID, r.Filename, r.HasText)
		}
		return tw.Flush()
	},
}

var recordsAudioCmd = &cobra.Command{
	Use:   "audio",
	Short: "Print the audio file path of a recording",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, ctx, err := recordsService(cmd)
		if err != nil {
			return err
		}
		subjectID, _ := cmd.Flags().GetInt64("subject")
		id, _ := cmd.Flags().GetString("id")

		path, err := svc.AudioPath(ctx, subjectID, id)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var recordsTextCmd = &cobra.Command{
	Use:   "text",
	Short: "Print the stored transcript of a recording",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, ctx, err := recordsService(cmd)
		if err != nil {
			return err
		}
		subjectID, _ := cmd.Flags().GetInt64("subject")
		id, _ := cmd.Flags().GetString("id")

		text, err := svc.Text(ctx, subjectID, id)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), text)
	},
}

var recordsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the transcript of a recording, transcribing it if needed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, ctx, err := recordsService(cmd)
		if err != nil {
			return err
		}
		cfg, _ := loadConfig()
		subjectID, _ := cmd.Flags().GetInt64("subject")
		id, _ := cmd.Flags().GetString("id")

		recognizer, err := factory.NewRecognizer(ctx, cfg.ASR)
		if err != nil {
			return fmt.Errorf("failed to initialize speech recognizer: %w", err)
		}

		text, err := svc.GetOrTranscribe(ctx, subjectID, id, recognizer)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), text)
	},
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsAudioCmd, recordsTextCmd, recordsGetCmd)

	recordsCmd.PersistentFlags().Int64("subject", 0, "subject id")
	_ = recordsCmd.MarkPersistentFlagRequired("subject")

	for _, c := range []*cobra.Command{recordsAudioCmd, recordsTextCmd, recordsGetCmd} {
		c.Flags().String("id", "", "record id ({date}/{name})")
		_ = c.MarkFlagRequired("id")
	}
	recordsListCmd.Flags().Bool("json", false, "print as JSON")
}

func recordsService(cmd *cobra.Command) (*records.Service, context.Context, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := newStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	ctx := logger.WithLogger(cmd.Context(), logger.WithComponent("cli").WithField("command", cmd.Name()))
	return records.NewService(st), ctx, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
