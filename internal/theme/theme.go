// Package theme maps alert variants to presentation classes and
// presentation classes to terminal styles.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jmylchreest/regalert/internal/model"
)

// Presentation classes. Consumers treat these as opaque strings.
const (
	ClassDefault = "slds-var-m-around_large slds-text-heading_small"
	ClassError   = "slds-var-m-around_large slds-text-color_error slds-text-heading_small"
)

// Resolve returns the presentation class for a variant.
// Success, info, empty and unknown variants all share the default class.
func Resolve(v model.Variant) string {
	switch v {
	case model.VariantError, model.VariantWarning:
		return ClassError
	default:
		return ClassDefault
	}
}

// Palette holds the terminal colours used by Style.
type Palette struct {
	Error   string `toml:"error"`
	Default string `toml:"default"`
	Muted   string `toml:"muted"`
	Accent  string `toml:"accent"`
}

// DefaultPalette returns ANSI colours that read well on dark and light terminals.
func DefaultPalette() Palette {
	return Palette{
		Error:   "9",
		Default: "15",
		Muted:   "8",
		Accent:  "12",
	}
}

// Styles turns presentation classes into lipgloss styles.
type Styles struct {
	palette Palette
}

// NewStyles creates Styles from a palette. Empty colours fall back to defaults.
func NewStyles(p Palette) *Styles {
	def := DefaultPalette()
	if p.Error == "" {
		p.Error = def.Error
	}
	if p.Default == "" {
		p.Default = def.Default
	}
	if p.Muted == "" {
		p.Muted = def.Muted
	}
	if p.Accent == "" {
		p.Accent = def.Accent
	}
	return &Styles{palette: p}
}

// Class returns the style for a presentation class.
// The class is read token by token, so unknown tokens are ignored.
func (s *Styles) Class(class string) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(s.palette.Default))
	for _, token := range strings.Fields(class) {
		switch token {
		case "slds-text-color_error":
			style = style.Foreground(lipgloss.Color(s.palette.Error))
		case "slds-text-heading_small":
			style = style.Bold(true)
		case "slds-var-m-around_large":
			style = style.MarginLeft(1)
		}
	}
	return style
}

// Toast returns the style for a toast banner of the given variant.
func (s *Styles) Toast(v model.Variant) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch v.OrDefault() {
	case model.VariantError, model.VariantWarning:
		return base.Foreground(lipgloss.Color(s.palette.Error))
	case model.VariantSuccess:
		return base.Foreground(lipgloss.Color(s.palette.Accent))
	default:
		return base.Foreground(lipgloss.Color(s.palette.Default))
	}
}

// Header returns the style for the popover header.
func (s *Styles) Header() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(s.palette.Accent))
}

// Muted returns the style for secondary text.
func (s *Styles) Muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(s.palette.Muted))
}
