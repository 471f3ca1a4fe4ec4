// Package formatter provides a pluggable output formatting system.
// Formatters render context state, value maps and validation reports as
// table, json or yaml output for the CLI.
package formatter

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/paramkit/core/state"
	"github.com/artpar/paramkit/core/value"
)

// Formatter converts context data to a specific output format.
type Formatter interface {
	// Name returns the formatter name (e.g., "table", "json", "yaml").
	Name() string

	// Description returns a human-readable description.
	Description() string

	// FormatStates formats per-path state.
	FormatStates(w io.Writer, states []state.FieldState, opts FormatOptions) error

	// FormatValues formats a flat path to value map.
	FormatValues(w io.Writer, values map[string]value.Value, opts FormatOptions) error

	// FormatReport formats the outcome of a full validation pass.
	FormatReport(w io.Writer, report state.Report, opts FormatOptions) error

	// FormatError formats an error.
	FormatError(w io.Writer, err error) error
}

// Columns of a state row.
const (
	ColumnPath    = "path"
	ColumnValue   = "value"
	ColumnValid   = "valid"
	ColumnVisible = "visible"
	ColumnDirty   = "dirty"
	ColumnTouched = "touched"
	ColumnErrors  = "errors"
)

// DefaultColumns are shown when FormatOptions.Columns is empty.
var DefaultColumns = []string{ColumnPath, ColumnValue, ColumnValid, ColumnVisible, ColumnErrors}

// Redacted replaces the value of redacted paths.
const Redacted = "********"

// FormatOptions configures formatting behavior.
type FormatOptions struct {
	// Columns specifies which state columns to include (nil = DefaultColumns).
	Columns []string

	// NoHeader disables header row for tabular formats.
	NoHeader bool

	// Compact minimizes whitespace (for json/yaml).
	Compact bool

	// MaxWidth truncates long values (0 = no limit).
	MaxWidth int

	// VisibleOnly drops hidden paths from state output.
	VisibleOnly bool

	// Redact reports paths whose value must not be shown, such as SENSITIVE
	// or WRITE_ONLY parameters.
	Redact func(path string) bool

	// Label returns the display label of a path, or "" for none. The table
	// formatter shows it beside the path.
	Label func(path string) string
}

func (o FormatOptions) columns() []string {
	if len(o.Columns) > 0 {
		return o.Columns
	}
	return DefaultColumns
}

func (o FormatOptions) redacted(path string) bool {
	return o.Redact != nil && o.Redact(path)
}

func (o FormatOptions) label(path string) string {
	if o.Label == nil {
		return ""
	}
	return o.Label(path)
}

// stateRows converts states to records keyed by column.
func stateRows(states []state.FieldState, opts FormatOptions) []map[string]any {
	rows := make([]map[string]any, 0, len(states))
	for _, st := range states {
		if opts.VisibleOnly && !st.Visible {
			continue
		}
		var v any = st.Value.ToAny()
		if opts.redacted(st.Path) {
			v = Redacted
		}
		var msgs []string
		for _, e := range st.Errors {
			msgs = append(msgs, e.Error())
		}
		full := map[string]any{
			ColumnPath:    st.Path,
			ColumnValue:   v,
			ColumnValid:   st.Valid,
			ColumnVisible: st.Visible,
			ColumnDirty:   st.Dirty,
			ColumnTouched: st.Touched,
			ColumnErrors:  msgs,
		}
		row := make(map[string]any, len(opts.columns()))
		for _, col := range opts.columns() {
			row[col] = full[col]
		}
		rows = append(rows, row)
	}
	return rows
}

// valueRecord converts a value map to plain Go values, applying redaction.
func valueRecord(values map[string]value.Value, opts FormatOptions) map[string]any {
	out := make(map[string]any, len(values))
	for p, v := range values {
		if opts.redacted(p) {
			out[p] = Redacted
			continue
		}
		out[p] = v.ToAny()
	}
	return out
}

// reportRecord converts a report to a record with sorted error messages.
func reportRecord(report state.Report) map[string]any {
	errs := make(map[string][]string, len(report.Errors))
	for p, fes := range report.Errors {
		for _, fe := range fes {
			errs[p] = append(errs[p], fe.Message)
		}
	}
	return map[string]any{
		"valid":    report.Valid,
		"complete": report.Complete,
		"checked":  report.Checked,
		"errors":   errs,
	}
}

func sortedPaths[V any](m map[string]V) []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Registry manages registered formatters.
type Registry struct {
	mu         sync.RWMutex
	formatters map[string]Formatter
	defaultFmt string
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		formatters: make(map[string]Formatter),
		defaultFmt: "table",
	}
}

// Register adds a formatter to the registry.
func (r *Registry) Register(f Formatter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[f.Name()]; exists {
		return fmt.Errorf("formatter %q already registered", f.Name())
	}

	r.formatters[f.Name()] = f
	return nil
}

// Get returns a formatter by name.
func (r *Registry) Get(name string) (Formatter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[strings.ToLower(name)]
	return f, ok
}

// Default returns the default formatter.
func (r *Registry) Default() Formatter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.formatters[r.defaultFmt]
	if !ok {
		// Fallback to first available
		for _, name := range sortedPaths(r.formatters) {
			return r.formatters[name]
		}
		return nil
	}
	return f
}

// SetDefault sets the default formatter.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.formatters[name]; !exists {
		return fmt.Errorf("formatter %q not registered", name)
	}

	r.defaultFmt = name
	return nil
}

// List returns all registered formatter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedPaths(r.formatters)
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter to the default registry.
func Register(f Formatter) error {
	return DefaultRegistry.Register(f)
}

// Get returns a formatter from the default registry.
func Get(name string) (Formatter, bool) {
	return DefaultRegistry.Get(name)
}

// Default returns the default formatter from the default registry.
func Default() Formatter {
	return DefaultRegistry.Default()
}

// List returns all formatter names from the default registry.
func List() []string {
	return DefaultRegistry.List()
}
