package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/regalert/internal/model"
	"github.com/jmylchreest/regalert/internal/theme"
)

// tooltipLines caps how many alerts the tooltip lists.
const tooltipLines = 10

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text       string `json:"text"`
	Alt        string `json:"alt,omitempty"`
	Tooltip    string `json:"tooltip,omitempty"`
	Class      string `json:"class,omitempty"`
	Percentage int    `json:"percentage,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Output Waybar-compatible JSON status",
	Long: `Output the active alert count in Waybar's custom module JSON format.

Active alerts are reconstructed by replaying the journal from the start of
the latest daemon run, so "regalert run" must be journaling for the count to
move.

  "custom/regalert": {
    "exec": "regalert status",
    "interval": 10,
    "return-type": "json",
    "on-click": "foot regalert watch"
  }

The output includes:
  - text: number of active alerts (empty when none)
  - alt/class: error, active or empty
  - tooltip: the newest active alerts with their age`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	entries, err := loadJournalEntries()
	if err != nil {
		logger.Warn("failed to read journal", "error", err)
		return writeStatus(cmd.OutOrStdout(), WaybarStatus{Alt: "error", Class: "error", Tooltip: err.Error()})
	}
	return writeStatus(cmd.OutOrStdout(), buildStatus(activeAlerts(entries), time.Now()))
}

// buildStatus summarises the active alerts.
func buildStatus(active []model.Alert, now time.Time) WaybarStatus {
	if len(active) == 0 {
		return WaybarStatus{Alt: "empty", Class: "empty", Tooltip: "No active alerts"}
	}

	class := "active"
	for _, a := range active {
		if a.Style == theme.ClassError {
			class = "error"
			break
		}
	}

	lines := []string{fmt.Sprintf("%s active", humanize.Comma(int64(len(active))))}
	start := max(0, len(active)-tooltipLines)
	for i := len(active) - 1; i >= start; i-- {
		a := active[i]
		line := a.MessageTruncated(60)
		if line == "" {
			line = a.RecordID
		}
		if a.ReceivedAt > 0 {
			line += " (" + humanize.RelTime(a.ReceivedTime(), now, "ago", "from now") + ")"
		}
		lines = append(lines, line)
	}
	if start > 0 {
		lines = append(lines, fmt.Sprintf("and %d more", start))
	}

	return WaybarStatus{
		Text:       fmt.Sprintf("%d", len(active)),
		Alt:        class,
		Tooltip:    strings.Join(lines, "\n"),
		Class:      class,
		Percentage: min(len(active), 100),
	}
}

// writeStatus writes the status as one line of JSON.
func writeStatus(w io.Writer, status WaybarStatus) error {
	return json.NewEncoder(w).Encode(status)
}
