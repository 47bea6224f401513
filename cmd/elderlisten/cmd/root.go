package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/eternnoir/elderlisten/pkg/config"
	"github.com/eternnoir/elderlisten/pkg/history"
	"github.com/eternnoir/elderlisten/pkg/logger"
	"github.com/eternnoir/elderlisten/pkg/store"
)

var (
	cfgFile string

	// set by initConfig
	appCfg    *config.Config
	appCfgErr error
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "elderlisten",
	Short: "Voice recording transcription and daily summaries",
	Long: `elderlisten turns the voice recordings of elderly people into transcripts
and a cautious daily summary for their family.

Recordings are read from {audio_root}/{subject}/{date}/{name}.{wav,mp3,m4a,amr}.
Transcripts are written next to them under the context root and summaries are
cached under the summary root.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.elderlisten.yaml)")
	rootCmd.PersistentFlags().String("audio-root", "", "root directory of audio recordings")
	rootCmd.PersistentFlags().String("context-root", "", "root directory of transcripts")
	rootCmd.PersistentFlags().String("summary-root", "", "root directory of summary caches")
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output (same as --log-level debug)")

	// Logging flags
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("log-output", "stderr", "log output (stdout, stderr, file path)")
	rootCmd.PersistentFlags().Bool("log-no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().Bool("log-caller", false, "include caller information in logs")

	// Bind flags to viper
	bindFlag("storage.audio_root", "audio-root")
	bindFlag("storage.context_root", "context-root")
	bindFlag("storage.summary_root", "summary-root")
	bindFlag("verbose", "verbose")

	// Bind logging flags to viper
	bindFlag("logging.level", "log-level")
	bindFlag("logging.format", "log-format")
	bindFlag("logging.output", "log-output")
	bindFlag("logging.caller", "log-caller")
	bindFlag("logging.no_color", "log-no-color")
}

func bindFlag(key, flag string) {
	_ = viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	loader := config.NewLoader(cfgFile, viper.GetViper())
	appCfg, appCfgErr = loader.Load()

	initLogger()

	if appCfgErr != nil {
		logger.Debug().Err(appCfgErr).Msg("Configuration not loaded")
		return
	}
	if used := loader.GetConfigFile(); used != "" {
		logger.Info().Str("config_file", used).Msg("Loaded configuration file")
	}
}

// initLogger initializes the logger based on configuration
func initLogger() {
	cfg := config.DefaultConfig().Logging
	if appCfg != nil {
		cfg = appCfg.Logging
	} else {
		cfg.Level = viper.GetString("logging.level")
		cfg.Format = viper.GetString("logging.format")
		cfg.Output = viper.GetString("logging.output")
		cfg.Caller = viper.GetBool("logging.caller")
		cfg.NoColor = viper.GetBool("logging.no_color")
	}

	// Handle legacy verbose flag
	if viper.GetBool("verbose") && (cfg.Level == "" || cfg.Level == "info") {
		cfg.Level = "debug"
	}

	if err := logger.Initialize(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig returns the configuration loaded at startup
func loadConfig() (*config.Config, error) {
	if appCfgErr != nil {
		return nil, appCfgErr
	}
	if appCfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return appCfg, nil
}

func newStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.New(cfg.Storage.AudioRoot, cfg.Storage.ContextRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript store: %w", err)
	}
	return st, nil
}

// openLedger opens the attempt ledger when enabled. The ledger is optional:
// failing to open it (e.g. another process holds it) only disables it.
func openLedger(cfg *config.Config, log *logger.Logger) history.Ledger {
	if !cfg.History.Enabled {
		return nil
	}
	ledger, err := history.Open(cfg.History.DBPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.History.DBPath).Msg("History ledger unavailable, continuing without it")
		return nil
	}
	return ledger
}

func closeLedger(ledger history.Ledger, log *logger.Logger) {
	if ledger == nil {
		return
	}
	if err := ledger.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing history database")
	}
}
