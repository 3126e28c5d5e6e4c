package popover

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/regalert/internal/model"
)

// ErrNoClipboard is returned when no clipboard command can be found.
var ErrNoClipboard = errors.New("no clipboard command available")

// copyText pipes text into the clipboard command.
func copyText(text, configured string) error {
	cmd := detectClipboardCommand(configured)
	if cmd == "" {
		return ErrNoClipboard
	}
	parts := strings.Fields(cmd)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c := exec.CommandContext(ctx, parts[0], parts[1:]...)
	c.Stdin = strings.NewReader(text)
	return c.Run()
}

// detectClipboardCommand returns the configured command, or the first of
// wl-copy, xclip and xsel found on PATH.
func detectClipboardCommand(configured string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	if _, err := exec.LookPath("wl-copy"); err == nil {
		return "wl-copy"
	}
	if _, err := exec.LookPath("xclip"); err == nil {
		return "xclip -selection clipboard"
	}
	if _, err := exec.LookPath("xsel"); err == nil {
		return "xsel --clipboard --input"
	}
	return ""
}

// alertsYAML renders the visible alerts for the clipboard.
func alertsYAML(alerts []model.Alert) (string, error) {
	type row struct {
		RecordID string        `yaml:"record_id"`
		Message  string        `yaml:"message"`
		Variant  model.Variant `yaml:"variant,omitempty"`
	}
	rows := make([]row, len(alerts))
	for i, a := range alerts {
		rows[i] = row{RecordID: a.RecordID, Message: a.Message, Variant: a.Toast.Variant}
	}
	data, err := yaml.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
