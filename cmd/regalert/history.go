package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/regalert/internal/adapter/output"
	"github.com/jmylchreest/regalert/internal/core"
	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/store"
)

var historyOpts struct {
	// Filter options
	since    string
	recordID string
	variant  string
	action   string
	search   string
	limit    int
	active   bool

	// Output options
	format   string
	field    string
	template string
}

var historyCmd = &cobra.Command{
	Use:   "history [record-id]",
	Short: "Query the alert journal",
	Long: `Query the journal of alerts received for the configured user.

With --active, the journal is replayed from the start of the latest daemon
run and only the alerts still active are shown, as the popover would list
them.

Examples:
  # Everything from the last day
  regalert history --since 1d

  # Active alerts as JSON
  regalert history --active --format json

  # Message of one record
  regalert history a0B5e00000AbCdE --field message

  # Pick an alert with fuzzel and copy its record id
  regalert history -f dmenu | fuzzel -d | cut -d'|' -f5 | wl-copy`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyOpts.since, "since", "",
		"Show alerts from the last duration (e.g., 1h, 7d, 1w)")
	historyCmd.Flags().StringVar(&historyOpts.recordID, "record", "",
		"Filter by record id (exact match)")
	historyCmd.Flags().StringVar(&historyOpts.variant, "variant", "",
		"Filter by toast variant (success, error, warning, info)")
	historyCmd.Flags().StringVar(&historyOpts.action, "action", "",
		"Filter by action (Add, Update, Remove, ToastOnly)")
	historyCmd.Flags().StringVarP(&historyOpts.search, "search", "s", "",
		"Search in message, record id and toast title")
	historyCmd.Flags().IntVarP(&historyOpts.limit, "limit", "n", 0,
		"Maximum number of alerts to show, newest kept (0=unlimited)")
	historyCmd.Flags().BoolVar(&historyOpts.active, "active", false,
		"Show only alerts that are still active")

	historyCmd.Flags().StringVarP(&historyOpts.format, "format", "f", "plain",
		"Output format (plain, dmenu, json, yaml, ids)")
	historyCmd.Flags().StringVar(&historyOpts.field, "field", "",
		"Output a single field of the last matching alert (id, action, variant, title, body, message)")
	historyCmd.Flags().StringVar(&historyOpts.template, "template", "",
		"Custom Go template for plain and dmenu output")
}

// loadJournalEntries reads the journal in arrival order.
func loadJournalEntries() ([]model.Entry, error) {
	path, err := journalPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	j, err := store.NewJSONLJournal(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = j.Close() }()

	entries, err := j.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	logger.Debug("journal loaded", "path", path, "entries", len(entries))
	return entries, nil
}

// activeAlerts replays the latest daemon run's alerts. A run starts with an
// empty collection, so earlier runs contribute nothing.
func activeAlerts(entries []model.Entry) []model.Alert {
	return core.Replay(store.Alerts(store.CurrentSession(entries)))
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(historyOpts.format)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		historyOpts.recordID = args[0]
	}

	entries, err := loadJournalEntries()
	if err != nil {
		return err
	}
	alerts := store.Alerts(entries)
	if historyOpts.active {
		alerts = activeAlerts(entries)
	}

	since, err := core.ParseDuration(historyOpts.since)
	if err != nil {
		return err
	}
	alerts = core.Filter(alerts, core.FilterOptions{
		Since:    since,
		RecordID: historyOpts.recordID,
		Variant:  historyOpts.variant,
		Action:   historyOpts.action,
	})
	alerts = core.Search(alerts, historyOpts.search)
	if historyOpts.limit > 0 && len(alerts) > historyOpts.limit {
		alerts = alerts[len(alerts)-historyOpts.limit:]
	}

	if historyOpts.field != "" {
		if len(alerts) == 0 {
			return fmt.Errorf("no matching alert")
		}
		fmt.Fprintln(cmd.OutOrStdout(), output.FormatField(&alerts[len(alerts)-1], historyOpts.field))
		return nil
	}

	opts := output.DefaultFormatterOptions()
	opts.Template = historyOpts.template
	return output.NewFormatter(format, opts).Format(cmd.OutOrStdout(), alerts)
}
