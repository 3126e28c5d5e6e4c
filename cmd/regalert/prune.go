package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/regalert/internal/core"
	"github.com/jmylchreest/regalert/internal/store"
)

var pruneOpts struct {
	olderThan string
	keep      int
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old entries from the alert journal",
	Long: `Remove old entries from the alert journal.

Pruning changes what "history --active" can reconstruct: an Add dropped
here is no longer replayed, and dropping the latest run's start marker makes
the replay fold every entry that is left.

Examples:
  # Remove entries older than 30 days
  regalert prune --older-than 30d

  # Keep only the 500 most recent entries
  regalert prune --keep 500`,
	RunE: runPrune,
}

func init() {
	rootCmd.AddCommand(pruneCmd)

	pruneCmd.Flags().StringVar(&pruneOpts.olderThan, "older-than", "",
		"Remove entries older than this duration (e.g., 48h, 7d, 1w)")
	pruneCmd.Flags().IntVar(&pruneOpts.keep, "keep", 0,
		"Keep only the N most recent entries (0=unlimited)")
}

func runPrune(cmd *cobra.Command, args []string) error {
	if pruneOpts.olderThan == "" && pruneOpts.keep == 0 {
		return fmt.Errorf("specify --older-than or --keep")
	}

	var cutoff time.Time
	if pruneOpts.olderThan != "" {
		d, err := core.ParseDuration(pruneOpts.olderThan)
		if err != nil {
			return err
		}
		if d > 0 {
			cutoff = time.Now().Add(-d)
		}
	}

	path, err := journalPath()
	if err != nil {
		return err
	}
	j, err := store.NewJSONLJournal(path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	removed, err := store.Prune(j, cutoff, pruneOpts.keep)
	if err != nil {
		return fmt.Errorf("failed to prune journal: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries\n", removed)
	return nil
}
