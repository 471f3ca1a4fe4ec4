package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/state"
	"github.com/artpar/paramkit/core/validation"
	"github.com/artpar/paramkit/core/value"
)

func createTestStates() []state.FieldState {
	return []state.FieldState{
		{Path: "name", Value: value.Text("alice"), Valid: true, Visible: true, Dirty: true, Touched: true},
		{Path: "password", Value: value.Text("hunter22"), Valid: true, Visible: true},
		{
			Path:    "port",
			Value:   value.Int(70000),
			Visible: true,
			Errors:  []validation.FieldError{{Path: "port", Rule: schema.RuleMax, Message: "must be at most 65535"}},
		},
		{Path: "auth.token", Value: value.Null(), Valid: true},
	}
}

func redactPassword(path string) bool { return path == "password" }

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.defaultFmt != "table" {
		t.Errorf("default format should be 'table', got %q", r.defaultFmt)
	}
	if r.Default() != nil {
		t.Error("empty registry should have no default")
	}
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(NewJSONFormatter()); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(NewJSONFormatter()); err == nil {
		t.Error("duplicate Register() should fail")
	}
	if f := r.Default(); f == nil || f.Name() != "json" {
		t.Errorf("Default() should fall back to the only formatter, got %v", f)
	}
	if err := r.SetDefault("xml"); err == nil {
		t.Error("SetDefault() of unknown formatter should fail")
	}
}

func TestDefaultRegistry(t *testing.T) {
	for _, name := range []string{"table", "json", "yaml"} {
		if _, ok := Get(name); !ok {
			t.Errorf("formatter %q not registered", name)
		}
	}
	if got := strings.Join(List(), ","); got != "json,table,yaml" {
		t.Errorf("List() = %s", got)
	}
	if Default().Name() != "table" {
		t.Errorf("Default() = %s", Default().Name())
	}
}

func TestTableFormatter_FormatStates(t *testing.T) {
	var buf bytes.Buffer
	f := NewTableFormatter()
	err := f.FormatStates(&buf, createTestStates(), FormatOptions{Redact: redactPassword, VisibleOnly: true})
	if err != nil {
		t.Fatalf("FormatStates() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{"PATH", "VALUE", "alice", Redacted, "70000", "must be at most 65535", "yes", "no"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "hunter22") {
		t.Error("redacted value leaked")
	}
	if strings.Contains(out, "auth.token") {
		t.Error("hidden path shown with VisibleOnly")
	}
}

func TestTableFormatter_Labels(t *testing.T) {
	var buf bytes.Buffer
	labels := map[string]string{"name": "Display name", "port": "port"}
	opts := FormatOptions{Label: func(p string) string { return labels[p] }}
	if err := NewTableFormatter().FormatStates(&buf, createTestStates(), opts); err != nil {
		t.Fatalf("FormatStates() error = %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "name (Display name)") {
		t.Errorf("label not shown beside path:\n%s", out)
	}
	if strings.Contains(out, "port (port)") {
		t.Errorf("label equal to the path should not repeat:\n%s", out)
	}
	if !strings.Contains(out, "auth.token") {
		t.Errorf("unlabelled path missing:\n%s", out)
	}
}

func TestTableFormatter_Empty(t *testing.T) {
	var buf bytes.Buffer
	_ = NewTableFormatter().FormatStates(&buf, nil, FormatOptions{})
	if !strings.Contains(buf.String(), "No parameters.") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTableFormatter_FormatValues(t *testing.T) {
	var buf bytes.Buffer
	values := map[string]value.Value{
		"b": value.Float(1.5),
		"a": value.Array(value.Int(1), value.Int(2)),
	}
	if err := NewTableFormatter().FormatValues(&buf, values, FormatOptions{}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "a:") || !strings.Contains(lines[1], "1.50") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTableFormatter_FormatReport(t *testing.T) {
	report := state.Report{
		Complete: true,
		Checked:  3,
		Errors: map[string][]validation.FieldError{
			"slug": {{Path: "slug", Rule: schema.RuleCustom, Name: "unique", Message: "validator failed", Fault: true}},
		},
	}
	var buf bytes.Buffer
	if err := NewTableFormatter().FormatReport(&buf, report, FormatOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Invalid: 1 of 3", "Custom(unique) [fault]", "validator failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	_ = NewTableFormatter().FormatReport(&buf, state.Report{Valid: true, Complete: true, Checked: 2}, FormatOptions{})
	if !strings.HasPrefix(buf.String(), "Valid: 2 paths") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestTableFormatter_Truncates(t *testing.T) {
	f := NewTableFormatter()
	if got := f.formatValue(strings.Repeat("x", 20), 10); got != "xxxxxxx..." {
		t.Errorf("formatValue() = %q", got)
	}
	if got := f.formatValue(nil, 0); got != "-" {
		t.Errorf("formatValue(nil) = %q", got)
	}
}

func TestJSONFormatter_FormatStates(t *testing.T) {
	var buf bytes.Buffer
	opts := FormatOptions{Columns: []string{ColumnPath, ColumnValue}, Redact: redactPassword, Compact: true}
	if err := NewJSONFormatter().FormatStates(&buf, createTestStates(), opts); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Count int              `json:"count"`
		Data  []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if out.Count != 4 || len(out.Data[0]) != 2 {
		t.Errorf("output = %+v", out)
	}
	if out.Data[1]["value"] != Redacted {
		t.Errorf("password value = %v", out.Data[1]["value"])
	}
}

func TestJSONFormatter_FormatError(t *testing.T) {
	var buf bytes.Buffer
	_ = NewJSONFormatter().FormatError(&buf, errors.New("boom"))
	var out map[string]string
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil || out["error"] != "boom" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestYAMLFormatter_FormatValues(t *testing.T) {
	var buf bytes.Buffer
	values := map[string]value.Value{"name": value.Text("alice"), "password": value.Text("x")}
	if err := NewYAMLFormatter().FormatValues(&buf, values, FormatOptions{Redact: redactPassword}); err != nil {
		t.Fatal(err)
	}
	var out map[string]string
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid yaml: %v", err)
	}
	if out["name"] != "alice" || out["password"] != Redacted {
		t.Errorf("output = %v", out)
	}
}

func TestYAMLFormatter_FormatReport(t *testing.T) {
	var buf bytes.Buffer
	report := state.Report{Complete: true, Checked: 1, Errors: map[string][]validation.FieldError{
		"port": {{Path: "port", Rule: schema.RuleMax, Message: "too big"}},
	}}
	if err := NewYAMLFormatter().FormatReport(&buf, report, FormatOptions{}); err != nil {
		t.Fatal(err)
	}
	var out struct {
		Valid  bool                `yaml:"valid"`
		Errors map[string][]string `yaml:"errors"`
	}
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Valid || out.Errors["port"][0] != "too big" {
		t.Errorf("output = %+v", out)
	}
}
