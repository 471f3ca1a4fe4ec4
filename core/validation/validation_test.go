package validation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/artpar/paramkit/core/condition"
	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/terminology"
	"github.com/artpar/paramkit/core/value"
	"github.com/artpar/paramkit/ports"
)

func textNode(key string, flags schema.Flags, rules ...schema.Rule) *schema.Node {
	return &schema.Node{Kind: schema.KindText, Key: key, Flags: flags, Rules: rules}
}

func TestValidate_RequiredReportedOnce(t *testing.T) {
	v := New()
	node := textNode("name", schema.FlagsNone, schema.Required(), schema.MinLength(3))

	for _, in := range []value.Value{value.Text(""), value.Null()} {
		res := v.Validate(context.Background(), "name", node, in, nil)
		if diff := cmp.Diff([]string{"Required"}, res.Rules()); diff != "" {
			t.Errorf("Validate(%v) rules mismatch (-want +got):\n%s", in, diff)
		}
	}
}

func TestValidate_RequiredFlagImpliesRule(t *testing.T) {
	v := New()
	node := textNode("username", schema.FlagRequired, schema.MinLength(3))

	res := v.Validate(context.Background(), "username", node, value.Text(""), nil)
	if diff := cmp.Diff([]string{"Required"}, res.Rules()); diff != "" {
		t.Errorf("empty rules mismatch (-want +got):\n%s", diff)
	}

	res = v.Validate(context.Background(), "username", node, value.Text("ab"), nil)
	if diff := cmp.Diff([]string{"MinLength"}, res.Rules()); diff != "" {
		t.Errorf("short rules mismatch (-want +got):\n%s", diff)
	}

	res = v.Validate(context.Background(), "username", node, value.Text("abc"), nil)
	if !res.Valid() {
		t.Errorf("abc should be valid, got %v", res.Errors)
	}
}

func TestValidate_NullSkipsOptionalRules(t *testing.T) {
	v := New()
	node := textNode("email", schema.FlagsNone, schema.Email(), schema.MinLength(5))

	res := v.Validate(context.Background(), "email", node, value.Null(), nil)
	if !res.Valid() {
		t.Errorf("null optional should pass, got %v", res.Errors)
	}

	res = v.Validate(context.Background(), "email", node, value.Text(""), nil)
	if diff := cmp.Diff([]string{"Email", "MinLength"}, res.Rules()); diff != "" {
		t.Errorf("empty text runs all rules (-want +got):\n%s", diff)
	}
}

func TestValidate_AllRulesNoShortCircuit(t *testing.T) {
	v := New()
	node := textNode("code", schema.FlagsNone,
		schema.MinLength(5),
		schema.Pattern("^[0-9]+$", "digits only"),
		schema.MaxLength(1),
	)

	res := v.Validate(context.Background(), "code", node, value.Text("ab"), nil)
	if diff := cmp.Diff([]string{"MinLength", "Pattern", "MaxLength"}, res.Rules()); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
	if res.Errors[1].Message != "digits only" {
		t.Errorf("Pattern message = %q, want configured message", res.Errors[1].Message)
	}
	if res.Errors[0].Message != "must be at least 5 long" {
		t.Errorf("MinLength message = %q", res.Errors[0].Message)
	}
	for _, e := range res.Errors {
		if e.Path != "code" {
			t.Errorf("error path = %q, want code", e.Path)
		}
	}
}

func TestValidate_BuiltinFormats(t *testing.T) {
	tests := []struct {
		name string
		rule schema.Rule
		in   value.Value
		ok   bool
	}{
		{"email ok", schema.Email(), value.Text("a@example.com"), true},
		{"email display name", schema.Email(), value.Text("A <a@example.com>"), false},
		{"email bad", schema.Email(), value.Text("nope"), false},
		{"url ok", schema.URL(), value.Text("https://example.com/x"), true},
		{"url relative", schema.URL(), value.Text("/x"), false},
		{"uuid ok", schema.UUID(), value.Text("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), true},
		{"uuid urn", schema.UUID(), value.Text("urn:uuid:6ba7b810-9dad-11d1-80b4-00c04fd430c8"), false},
		{"min", schema.Min(value.Int(3)), value.Float(2.5), false},
		{"max", schema.Max(value.Float(3.5)), value.Int(3), true},
		{"range", schema.Range(value.Int(1), value.Int(10)), value.Int(10), true},
		{"array length", schema.MaxLength(1), value.Array(value.Int(1), value.Int(2)), false},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := &schema.Node{Kind: schema.KindText, Key: "f", Rules: []schema.Rule{tt.rule}}
			res := v.Validate(context.Background(), "f", node, tt.in, nil)
			if res.Valid() != tt.ok {
				t.Errorf("Valid() = %v, want %v (%v)", res.Valid(), tt.ok, res.Errors)
			}
		})
	}
}

func TestValidate_NumericRuleOnTextIsMismatch(t *testing.T) {
	v := New()
	node := textNode("port", schema.FlagsNone, schema.Min(value.Int(1)))

	res := v.Validate(context.Background(), "port", node, value.Text("80"), nil)
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want one", res.Errors)
	}
	e := res.Errors[0]
	if !e.Mismatch || e.Fault || e.Rule != schema.RuleMin {
		t.Errorf("error = %+v, want Min mismatch", e)
	}
	if !errors.Is(e, value.ErrTypeMismatch) {
		t.Errorf("error should wrap ErrTypeMismatch: %v", e.Cause)
	}
}

func TestValidate_CustomRules(t *testing.T) {
	fields := condition.Values{"password": value.Text("secret")}

	matches := schema.Custom("matches_password", func(ctx context.Context, v value.Value, f schema.FieldReader) (string, error) {
		pw, _ := f.Lookup("password")
		if !value.Equal(v, pw) {
			return "passwords differ", nil
		}
		return "", nil
	})
	broken := schema.Custom("broken", func(ctx context.Context, v value.Value, f schema.FieldReader) (string, error) {
		return "", errors.New("backend down")
	})
	panics := schema.Custom("panics", func(ctx context.Context, v value.Value, f schema.FieldReader) (string, error) {
		panic("boom")
	})
	unbound := schema.Rule{Type: schema.RuleCustom, Name: "unbound"}

	node := textNode("confirm", schema.FlagsNone, matches, broken, schema.MinLength(10), panics, unbound)

	res := New().Validate(context.Background(), "confirm", node, value.Text("other"), fields)

	want := []string{"Custom", "Custom", "MinLength", "Custom", "Custom"}
	if diff := cmp.Diff(want, res.Rules()); diff != "" {
		t.Fatalf("rules mismatch (-want +got):\n%s", diff)
	}
	if res.Errors[0].Fault || res.Errors[0].Message != "passwords differ" || res.Errors[0].Name != "matches_password" {
		t.Errorf("custom failure = %+v", res.Errors[0])
	}
	if !res.Errors[1].Fault || !errors.Is(res.Errors[1], ErrCustomRuleFault) {
		t.Errorf("error return should be a fault: %+v", res.Errors[1])
	}
	if !res.Errors[3].Fault || !errors.Is(res.Errors[3], ErrCustomRuleFault) {
		t.Errorf("panic should be a fault: %+v", res.Errors[3])
	}
	if !res.Errors[4].Fault || !errors.Is(res.Errors[4], ErrUnboundCustomRule) {
		t.Errorf("unbound slot should be a fault: %+v", res.Errors[4])
	}
	if !res.Faulted() {
		t.Error("Faulted() = false")
	}

	err := NewError(res.Errors)
	if !errors.Is(err, ErrCustomRuleFault) {
		t.Errorf("Error should expose faults: %v", err)
	}
}

func TestValidate_CustomRulesRunConcurrently(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	var once sync.Once

	slow := func(ctx context.Context, v value.Value, f schema.FieldReader) (string, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if n == 3 {
			once.Do(func() { close(release) })
		}
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		running.Add(-1)
		return "", nil
	}

	node := textNode("f", schema.FlagsNone,
		schema.Custom("a", slow), schema.Custom("b", slow), schema.Custom("c", slow))

	res := New().Validate(context.Background(), "f", node, value.Text("x"), nil)
	if !res.Valid() {
		t.Fatalf("errors = %v", res.Errors)
	}
	if peak.Load() != 3 {
		t.Errorf("peak concurrency = %d, want 3", peak.Load())
	}
}

func TestValidate_RuleTimeout(t *testing.T) {
	waits := schema.Custom("waits", func(ctx context.Context, v value.Value, f schema.FieldReader) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	node := textNode("f", schema.FlagsNone, waits)

	res := New(WithRuleTimeout(10*time.Millisecond)).Validate(context.Background(), "f", node, value.Text("x"), nil)
	if len(res.Errors) != 1 || !errors.Is(res.Errors[0], context.DeadlineExceeded) {
		t.Errorf("errors = %v, want deadline fault", res.Errors)
	}
}

func TestValidate_ListElements(t *testing.T) {
	node := &schema.Node{
		Kind:  schema.KindList,
		Key:   "servers",
		Rules: []schema.Rule{schema.MinLength(1)},
		Item: &schema.Node{
			Kind: schema.KindObject,
			Key:  "server",
			Children: []*schema.Node{
				textNode("host", schema.FlagRequired),
				{Kind: schema.KindNumber, Key: "port", Rules: []schema.Rule{schema.Range(value.Int(1), value.Int(65535))}},
			},
		},
	}

	list := value.Array(
		value.Object(map[string]value.Value{"host": value.Text("a"), "port": value.Int(80)}),
		value.Object(map[string]value.Value{"port": value.Int(0)}),
	)

	res := New().Validate(context.Background(), "servers", node, list, nil)
	var paths []string
	for _, e := range res.Errors {
		paths = append(paths, e.Path+":"+string(e.Rule))
	}
	if diff := cmp.Diff([]string{"servers.1.host:Required", "servers.1.port:Range"}, paths); diff != "" {
		t.Errorf("element errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_Localized(t *testing.T) {
	catalog := terminology.NewCatalog(terminology.Map{"validation.Required": "obligatoire"})
	node := textNode("f", schema.FlagRequired)

	res := New(WithCatalog(catalog)).Validate(context.Background(), "f", node, value.Null(), nil)
	if diff := cmp.Diff([]string{"obligatoire"}, res.Messages()); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *recordingObserver) ObserveRule(rule, outcome string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes[rule+"/"+outcome]++
}

func (o *recordingObserver) ObserveMutation(string, string) {}

var _ ports.ValidationObserver = (*recordingObserver)(nil)

func TestValidate_Observer(t *testing.T) {
	obs := &recordingObserver{outcomes: map[string]int{}}
	v := New(WithObserver(obs))
	node := textNode("f", schema.FlagsNone, schema.MinLength(2), schema.Min(value.Int(1)))

	v.Validate(context.Background(), "f", node, value.Text("a"), nil)
	v.Validate(context.Background(), "f", node, value.Null(), nil)

	want := map[string]int{
		"MinLength/fail":    1,
		"Min/mismatch":      1,
		"MinLength/skipped": 1,
		"Min/skipped":       1,
	}
	if diff := cmp.Diff(want, obs.outcomes); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateBatch(t *testing.T) {
	v := New(WithConcurrency(2))
	jobs := []Job{
		{Path: "a", Node: textNode("a", schema.FlagRequired), Value: value.Null()},
		{Path: "b", Node: textNode("b", schema.FlagsNone, schema.MinLength(2)), Value: value.Text("bb")},
		{Path: "c", Node: textNode("c", schema.FlagsNone, schema.MaxLength(1)), Value: value.Text("cc")},
	}

	results, err := v.ValidateBatch(context.Background(), jobs, nil)
	if err != nil {
		t.Fatalf("ValidateBatch() error = %v", err)
	}
	got := map[string]bool{}
	for _, r := range results {
		got[r.Path] = r.Valid()
	}
	if diff := cmp.Diff(map[string]bool{"a": false, "b": true, "c": false}, got); diff != "" {
		t.Errorf("validity mismatch (-want +got):\n%s", diff)
	}
	if results[0].Path != "a" || results[2].Path != "c" {
		t.Errorf("results not in job order: %v", results)
	}
}

func TestValidateBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{{Path: "a", Node: textNode("a", schema.FlagsNone), Value: value.Text("x")}}
	results, err := New().ValidateBatch(ctx, jobs, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
}
