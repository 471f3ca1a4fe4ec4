package formatter

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/artpar/paramkit/core/state"
	"github.com/artpar/paramkit/core/value"
)

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Name returns the formatter name.
func (f *YAMLFormatter) Name() string {
	return "yaml"
}

// Description returns the formatter description.
func (f *YAMLFormatter) Description() string {
	return "YAML output format"
}

// FormatStates formats per-path state as YAML.
func (f *YAMLFormatter) FormatStates(w io.Writer, states []state.FieldState, opts FormatOptions) error {
	rows := stateRows(states, opts)
	output := map[string]any{
		"count": len(rows),
		"data":  rows,
	}
	return f.encode(w, output)
}

// FormatValues formats a value map as a YAML mapping.
func (f *YAMLFormatter) FormatValues(w io.Writer, values map[string]value.Value, opts FormatOptions) error {
	return f.encode(w, valueRecord(values, opts))
}

// FormatReport formats a validation report as YAML.
func (f *YAMLFormatter) FormatReport(w io.Writer, report state.Report, opts FormatOptions) error {
	return f.encode(w, reportRecord(report))
}

// FormatError formats an error as YAML.
func (f *YAMLFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error": err.Error(),
	}
	return f.encode(w, output)
}

// encode writes YAML to the writer.
func (f *YAMLFormatter) encode(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}

func init() {
	if err := Register(NewYAMLFormatter()); err != nil {
		fmt.Printf("failed to register yaml formatter: %v\n", err)
	}
}
