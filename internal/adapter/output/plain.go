package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/regalert/internal/model"
)

// PlainFormatter formats alerts as plain text, one block per alert.
type PlainFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewPlainFormatter creates a new plain text formatter.
// An unparsable template falls back to the default layout.
func NewPlainFormatter(opts FormatterOptions) *PlainFormatter {
	f := &PlainFormatter{opts: opts}
	if opts.Template != "" {
		if tmpl, err := template.New("plain").Funcs(templateFuncs(opts)).Parse(opts.Template); err == nil {
			f.template = tmpl
		}
	}
	return f
}

// Format writes alerts as plain text.
func (f *PlainFormatter) Format(w io.Writer, alerts []model.Alert) error {
	for i := range alerts {
		if err := f.formatAlert(w, i+1, &alerts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (f *PlainFormatter) formatAlert(w io.Writer, index int, a *model.Alert) error {
	if f.template != nil {
		return f.template.Execute(w, newTemplateData(f.opts, index, a))
	}

	var sb strings.Builder
	if f.opts.ShowIndex {
		fmt.Fprintf(&sb, "[%d] ", index)
	}
	fmt.Fprintf(&sb, "%s <%s>", a.RecordID, a.Toast.Variant.OrDefault())
	if f.opts.ShowAction && a.Action != "" {
		fmt.Fprintf(&sb, " %s", a.Action)
	}
	if f.opts.ShowTime {
		fmt.Fprintf(&sb, " (%s)", age(f.opts.now(), a.ReceivedAt))
	}
	sb.WriteString("\n")

	if msg := message(a, f.opts.MaxLen); msg != "" {
		sb.WriteString("    " + msg + "\n")
	}
	if a.Toast.Show && a.Toast.Title != "" {
		fmt.Fprintf(&sb, "    toast: %s\n", a.Toast.Title)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func age(now time.Time, ts int64) string {
	if ts == 0 {
		return "unknown"
	}
	return humanize.RelTime(time.Unix(ts, 0), now, "ago", "from now")
}

// FormatField returns a single field of an alert by name.
func FormatField(a *model.Alert, field string) string {
	switch strings.ToLower(field) {
	case "id", "record_id":
		return a.RecordID
	case "action":
		return string(a.Action)
	case "user", "target_user_id":
		return a.TargetUserID
	case "variant":
		return string(a.Toast.Variant.OrDefault())
	case "title":
		return a.Toast.Title
	case "body":
		return a.Toast.Body
	case "style":
		return a.Style
	default:
		return a.Message
	}
}
