package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/artpar/paramkit/core/state"
	"github.com/artpar/paramkit/core/value"
)

// TableFormatter formats output as aligned text tables.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Name returns the formatter name.
func (f *TableFormatter) Name() string {
	return "table"
}

// Description returns the formatter description.
func (f *TableFormatter) Description() string {
	return "Aligned text table output"
}

// FormatStates formats per-path state as a table, one row per path.
func (f *TableFormatter) FormatStates(w io.Writer, states []state.FieldState, opts FormatOptions) error {
	rows := stateRows(states, opts)
	if len(rows) == 0 {
		fmt.Fprintln(w, "No parameters.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	columns := opts.columns()

	if !opts.NoHeader {
		var headers []string
		for _, col := range columns {
			headers = append(headers, strings.ToUpper(col))
		}
		fmt.Fprintln(tw, strings.Join(headers, "\t"))
	}

	for _, row := range rows {
		var cells []string
		for _, col := range columns {
			cell := row[col]
			if p, ok := cell.(string); ok && col == ColumnPath {
				if l := opts.label(p); l != "" && l != p {
					cell = p + " (" + l + ")"
				}
			}
			cells = append(cells, f.formatValue(cell, opts.MaxWidth))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	return tw.Flush()
}

// FormatValues formats a value map as key-value pairs sorted by path.
func (f *TableFormatter) FormatValues(w io.Writer, values map[string]value.Value, opts FormatOptions) error {
	if len(values) == 0 {
		fmt.Fprintln(w, "No values.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	record := valueRecord(values, opts)
	for _, p := range sortedPaths(record) {
		fmt.Fprintf(tw, "%s:\t%s\n", p, f.formatValue(record[p], opts.MaxWidth))
	}
	return tw.Flush()
}

// FormatReport formats a validation report, one line per error.
func (f *TableFormatter) FormatReport(w io.Writer, report state.Report, opts FormatOptions) error {
	switch {
	case !report.Complete:
		fmt.Fprintf(w, "Validation incomplete: %d paths checked.\n", report.Checked)
	case report.Valid:
		fmt.Fprintf(w, "Valid: %d paths checked.\n", report.Checked)
		return nil
	default:
		fmt.Fprintf(w, "Invalid: %d of %d paths failed.\n", len(report.Errors), report.Checked)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !opts.NoHeader && len(report.Errors) > 0 {
		fmt.Fprintln(tw, "PATH\tRULE\tMESSAGE")
	}
	for _, p := range sortedPaths(report.Errors) {
		for _, fe := range report.Errors[p] {
			rule := string(fe.Rule)
			if fe.Name != "" {
				rule += "(" + fe.Name + ")"
			}
			if fe.Fault {
				rule += " [fault]"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p, rule, f.formatValue(fe.Message, opts.MaxWidth))
		}
	}
	return tw.Flush()
}

// FormatError formats an error message.
func (f *TableFormatter) FormatError(w io.Writer, err error) error {
	fmt.Fprintf(w, "Error: %s\n", err.Error())
	return nil
}

// formatValue formats a value for display.
func (f *TableFormatter) formatValue(val any, maxWidth int) string {
	if val == nil {
		return "-"
	}

	var str string
	switch v := val.(type) {
	case string:
		str = v
	case bool:
		if v {
			str = "yes"
		} else {
			str = "no"
		}
	case int64:
		str = fmt.Sprintf("%d", v)
	case float64:
		// Check if it's a whole number
		if v == float64(int64(v)) {
			str = fmt.Sprintf("%d", int64(v))
		} else {
			str = fmt.Sprintf("%.2f", v)
		}
	case []string:
		if len(v) == 0 {
			return "-"
		}
		str = strings.Join(v, "; ")
	default:
		b, _ := json.Marshal(v)
		str = string(b)
	}

	// Truncate if needed
	if maxWidth > 3 && len(str) > maxWidth {
		str = str[:maxWidth-3] + "..."
	}

	return str
}

func init() {
	Register(NewTableFormatter())
}
