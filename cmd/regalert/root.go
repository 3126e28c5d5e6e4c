package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jmylchreest/regalert/internal/config"
	"github.com/jmylchreest/regalert/internal/store"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose     bool
		configPath  string
		journalFile string
	}
	logger *slog.Logger

	// logFile is the rotating log sink, if configured.
	logFile *lumberjack.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "regalert",
	Short: "Registration alert subscriber for the desktop and terminal",
	Long: `regalert subscribes to a server-pushed registration alert channel
(CometD/Bayeux long polling) and keeps the alerts addressed to you.

Relevant alerts raise desktop notifications and sound cues, are listed in a
terminal popover, and are recorded in a local journal.

Running regalert without a subcommand opens the popover (see "watch").`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return setupLogger(cfg.Log, os.Stderr)
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logFile != nil {
			return logFile.Close()
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/regalert/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.journalFile, "journal-file", "",
		"Path to journal file (default: ~/.local/share/regalert/journal.jsonl)")
}

// setupLogger configures the global slog logger. Logs go to console and,
// when log.file is set, to a rotating file as well.
func setupLogger(lc config.LogConfig, console io.Writer) error {
	level, err := config.ParseLevel(lc.Level)
	if err != nil {
		return err
	}
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	out := console
	if lc.File != "" {
		logFile = &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
		}
		out = io.MultiWriter(console, logFile)
	}

	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// quietLogger replaces the console sink while a full-screen view owns the terminal.
func quietLogger() {
	var out io.Writer = io.Discard
	if logFile != nil {
		out = logFile
	}
	level, _ := config.ParseLevel(cfg.Log.Level)
	if globalOpts.verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// journalPath resolves the journal file from flag, config, then default.
func journalPath() (string, error) {
	if globalOpts.journalFile != "" {
		return globalOpts.journalFile, nil
	}
	if p := cfg.JournalPath(); p != "" {
		return p, nil
	}
	return store.JournalPath()
}

// openJournal opens the journal, or returns nil when journaling is disabled.
func openJournal() (*store.JSONLJournal, error) {
	if !cfg.Journal.Enabled {
		return nil, nil
	}
	path, err := journalPath()
	if err != nil {
		return nil, err
	}
	j, err := store.NewJSONLJournal(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return j, nil
}
