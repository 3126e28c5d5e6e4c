// Package output provides output formatters for alerts.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jmylchreest/regalert/internal/model"
)

// Formatter formats alerts for output.
type Formatter interface {
	// Format writes formatted alerts to the writer.
	Format(w io.Writer, alerts []model.Alert) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatDmenu FormatType = "dmenu"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
	FormatPlain FormatType = "plain"
	FormatIDs   FormatType = "ids"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (FormatType, error) {
	switch f := FormatType(s); f {
	case FormatDmenu, FormatJSON, FormatYAML, FormatPlain, FormatIDs:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (valid: plain, dmenu, json, yaml, ids)", s)
	}
}

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType, opts FormatterOptions) Formatter {
	switch format {
	case FormatJSON:
		return NewJSONFormatter()
	case FormatYAML:
		return NewYAMLFormatter()
	case FormatIDs:
		return NewIDsFormatter()
	case FormatDmenu:
		return NewDmenuFormatter(opts)
	default:
		return NewPlainFormatter(opts)
	}
}

// FormatterOptions configures formatter behavior.
type FormatterOptions struct {
	Template   string // Custom text/template for dmenu/plain format
	ShowIndex  bool   // Show 1-based index prefix
	ShowTime   bool   // Show relative receive time
	ShowAction bool   // Show the action that produced the alert
	MaxLen     int    // Maximum message length (0 = unlimited)
	Separator  string // Field separator for dmenu format

	Now func() time.Time // nil = time.Now
}

// DefaultFormatterOptions returns the options used by the CLI.
func DefaultFormatterOptions() FormatterOptions {
	return FormatterOptions{
		ShowIndex:  true,
		ShowTime:   true,
		ShowAction: true,
		MaxLen:     80,
		Separator:  " | ",
	}
}

func (o FormatterOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
