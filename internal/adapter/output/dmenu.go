package output

import (
	"fmt"
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/jmylchreest/regalert/internal/model"
)

// DmenuFormatter formats alerts one per line for dmenu, rofi or fuzzel.
type DmenuFormatter struct {
	opts     FormatterOptions
	template *template.Template
}

// NewDmenuFormatter creates a new dmenu formatter.
func NewDmenuFormatter(opts FormatterOptions) *DmenuFormatter {
	f := &DmenuFormatter{opts: opts}
	if opts.Template != "" {
		if tmpl, err := template.New("dmenu").Funcs(templateFuncs(opts)).Parse(opts.Template); err == nil {
			f.template = tmpl
		}
	}
	return f
}

// Format writes alerts in dmenu format (one per line).
func (f *DmenuFormatter) Format(w io.Writer, alerts []model.Alert) error {
	for i := range alerts {
		if _, err := fmt.Fprintln(w, f.formatLine(i+1, &alerts[i])); err != nil {
			return err
		}
	}
	return nil
}

func (f *DmenuFormatter) formatLine(index int, a *model.Alert) string {
	if f.template != nil {
		var buf strings.Builder
		if err := f.template.Execute(&buf, newTemplateData(f.opts, index, a)); err == nil {
			return buf.String()
		}
	}

	sep := f.opts.Separator
	if sep == "" {
		sep = " | "
	}

	var parts []string
	if f.opts.ShowIndex {
		parts = append(parts, fmt.Sprintf("%d", index))
	}
	if f.opts.ShowTime {
		parts = append(parts, relativeTime(f.opts.now(), a.ReceivedAt))
	}
	parts = append(parts, string(a.Toast.Variant.OrDefault()))
	if f.opts.ShowAction && a.Action != "" {
		parts = append(parts, string(a.Action))
	}

	content := a.RecordID
	if msg := message(a, f.opts.MaxLen); msg != "" {
		content += ": " + msg
	}
	parts = append(parts, content)

	return strings.Join(parts, sep)
}

// templateData is the value passed to custom templates.
type templateData struct {
	Index        int
	Alert        *model.Alert
	RelativeTime string
}

func newTemplateData(opts FormatterOptions, index int, a *model.Alert) templateData {
	return templateData{
		Index:        index,
		Alert:        a,
		RelativeTime: relativeTime(opts.now(), a.ReceivedAt),
	}
}

func templateFuncs(opts FormatterOptions) template.FuncMap {
	return template.FuncMap{
		"truncate": func(s string, maxLen int) string {
			return message(&model.Alert{Message: s}, maxLen)
		},
		"reltime": func(ts int64) string {
			return relativeTime(opts.now(), ts)
		},
		"variantIcon": func(v model.Variant) string {
			switch v.OrDefault() {
			case model.VariantError:
				return "!"
			case model.VariantWarning:
				return "~"
			case model.VariantSuccess:
				return "+"
			default:
				return "-"
			}
		},
	}
}

func message(a *model.Alert, maxLen int) string {
	if maxLen <= 0 {
		return strings.Join(strings.Fields(a.Message), " ")
	}
	return a.MessageTruncated(maxLen)
}

// relativeTime returns a compact age such as "5m" or "2h".
func relativeTime(now time.Time, ts int64) string {
	if ts == 0 {
		return "unknown"
	}

	d := now.Sub(time.Unix(ts, 0))
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw", int(d.Hours()/24/7))
	}
}
