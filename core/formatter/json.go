package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/artpar/paramkit/core/state"
	"github.com/artpar/paramkit/core/value"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Description returns the formatter description.
func (f *JSONFormatter) Description() string {
	return "JSON output format"
}

// FormatStates formats per-path state as JSON.
func (f *JSONFormatter) FormatStates(w io.Writer, states []state.FieldState, opts FormatOptions) error {
	rows := stateRows(states, opts)
	output := map[string]any{
		"count": len(rows),
		"data":  rows,
	}
	return f.encode(w, output, opts.Compact)
}

// FormatValues formats a value map as a JSON object.
func (f *JSONFormatter) FormatValues(w io.Writer, values map[string]value.Value, opts FormatOptions) error {
	return f.encode(w, valueRecord(values, opts), opts.Compact)
}

// FormatReport formats a validation report as JSON.
func (f *JSONFormatter) FormatReport(w io.Writer, report state.Report, opts FormatOptions) error {
	return f.encode(w, reportRecord(report), opts.Compact)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error": err.Error(),
	}
	return f.encode(w, output, false)
}

// encode writes JSON to the writer.
func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

func init() {
	if err := Register(NewJSONFormatter()); err != nil {
		fmt.Printf("failed to register json formatter: %v\n", err)
	}
}
