package output

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/regalert/internal/model"
)

// JSONFormatter formats alerts as an indented JSON array.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes alerts as a JSON array. An empty list is written as [].
func (f *JSONFormatter) Format(w io.Writer, alerts []model.Alert) error {
	if alerts == nil {
		alerts = []model.Alert{}
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(alerts)
}

// YAMLFormatter formats alerts as a YAML sequence.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Format writes alerts as a YAML sequence.
func (f *YAMLFormatter) Format(w io.Writer, alerts []model.Alert) error {
	if alerts == nil {
		alerts = []model.Alert{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(alerts); err != nil {
		return err
	}
	return enc.Close()
}
