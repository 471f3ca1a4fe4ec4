package state

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/artpar/paramkit/adapters/clock"
	"github.com/artpar/paramkit/core/condition"
	"github.com/artpar/paramkit/core/events"
	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/validation"
	"github.com/artpar/paramkit/core/value"
)

type fixedID string

func (f fixedID) New() string { return string(f) }

func text(key string, flags schema.Flags, rules ...schema.Rule) *schema.Node {
	return &schema.Node{Kind: schema.KindText, Key: key, Flags: flags, Rules: rules}
}

func loginSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(
		text("username", schema.FlagRequired, schema.MinLength(3)),
		text("password", schema.FlagSensitive, schema.Required(), schema.MinLength(8)),
		text("session", schema.FlagRuntime),
	)
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return s
}

func authSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s, err := schema.New(&schema.Node{
		Kind:           schema.KindMode,
		Key:            "auth",
		DefaultVariant: "basic",
		Variants: []schema.Variant{
			{Key: "basic", Nodes: []*schema.Node{text("user", schema.FlagsNone)}},
			{Key: "token", Nodes: []*schema.Node{{
				Kind:    schema.KindText,
				Key:     "token",
				Default: schema.DefaultTo(value.Text("none")),
			}}},
		},
	})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	return s
}

func rules(t *testing.T, err error) []string {
	t.Helper()
	if err == nil {
		return nil
	}
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *validation.Error, got %T: %v", err, err)
	}
	var out []string
	for _, fe := range verr.Errors {
		out = append(out, string(fe.Rule))
	}
	return out
}

func mustState(t *testing.T, c *Context, path string) FieldState {
	t.Helper()
	st, err := c.State(path)
	if err != nil {
		t.Fatalf("State(%q): %v", path, err)
	}
	return st
}

func TestSetValue_ValidatesStoredValue(t *testing.T) {
	ctx := context.Background()
	c := New(loginSchema(t))

	err := c.SetValue(ctx, "username", value.Text("ab"))
	if diff := cmp.Diff([]string{"MinLength"}, rules(t, err)); diff != "" {
		t.Errorf("short username rules (-want +got):\n%s", diff)
	}
	st := mustState(t, c, "username")
	if st.Valid || !st.Dirty || !st.Touched {
		t.Errorf("state after invalid write = %+v", st)
	}
	if !value.Equal(st.Value, value.Text("ab")) {
		t.Errorf("invalid value should stay stored, got %v", st.Value)
	}

	if err := c.SetValue(ctx, "username", value.Text("abc")); err != nil {
		t.Fatalf("valid username: %v", err)
	}
	if st := mustState(t, c, "username"); !st.Valid || len(st.Errors) != 0 {
		t.Errorf("state after valid write = %+v", st)
	}
}

func TestSetValue_Idempotent(t *testing.T) {
	ctx := context.Background()
	c := New(loginSchema(t))

	first := rules(t, c.SetValue(ctx, "password", value.Text("short")))
	before := mustState(t, c, "password")
	second := rules(t, c.SetValue(ctx, "password", value.Text("short")))
	after := mustState(t, c, "password")

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated write errors differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, after, cmp.Comparer(value.Equal)); diff != "" {
		t.Errorf("repeated write state differs (-first +second):\n%s", diff)
	}
}

func TestSetValue_RequiredReportedOnce(t *testing.T) {
	c := New(loginSchema(t))
	err := c.SetValue(context.Background(), "password", value.Text(""))
	if diff := cmp.Diff([]string{"Required"}, rules(t, err)); diff != "" {
		t.Errorf("rules (-want +got):\n%s", diff)
	}
}

func TestSetValue_RejectsWithoutMutation(t *testing.T) {
	ctx := context.Background()
	c := New(loginSchema(t))
	before := c.States()

	if err := c.SetValue(ctx, "nope", value.Text("x")); !errors.Is(err, schema.ErrUnknownPath) {
		t.Errorf("unknown path error = %v", err)
	}
	if err := c.SetValue(ctx, "username", value.Int(3)); !errors.Is(err, value.ErrTypeMismatch) {
		t.Errorf("mismatch error = %v", err)
	}

	if diff := cmp.Diff(before, c.States(), cmp.Comparer(value.Equal)); diff != "" {
		t.Errorf("rejected writes changed state (-before +after):\n%s", diff)
	}
}

func TestVisibility_OneHop(t *testing.T) {
	ctx := context.Background()
	s, err := schema.New(
		&schema.Node{Kind: schema.KindBoolean, Key: "a", Default: schema.DefaultTo(value.Bool(false))},
		&schema.Node{Kind: schema.KindText, Key: "b", Visibility: condition.True("a")},
		&schema.Node{Kind: schema.KindText, Key: "c", Visibility: condition.NotEmpty("b")},
	)
	if err != nil {
		t.Fatal(err)
	}
	c := New(s)

	if mustState(t, c, "b").Visible {
		t.Error("b should start hidden")
	}
	if mustState(t, c, "c").Visible {
		t.Error("c should start hidden: b is null")
	}

	if err := c.SetValue(ctx, "a", value.Bool(true)); err != nil {
		t.Fatal(err)
	}
	if !mustState(t, c, "b").Visible {
		t.Error("b should be visible after a=true")
	}

	if err := c.SetValue(ctx, "b", value.Text("x")); err != nil {
		t.Fatal(err)
	}
	if !mustState(t, c, "c").Visible {
		t.Error("c should be visible after b is set")
	}

	// Hiding b does not recompute c: c depends on b's value only.
	if err := c.SetValue(ctx, "a", value.Bool(false)); err != nil {
		t.Fatal(err)
	}
	if mustState(t, c, "b").Visible {
		t.Error("b should be hidden after a=false")
	}
	if !mustState(t, c, "c").Visible {
		t.Error("c should keep its visibility")
	}
}

func TestScenario_LoginForm(t *testing.T) {
	ctx := context.Background()
	s, err := schema.New(
		text("username", schema.FlagRequired, schema.MinLength(3)),
		text("password", schema.FlagRequired|schema.FlagSensitive|schema.FlagWriteOnly),
	)
	if err != nil {
		t.Fatal(err)
	}
	c := New(s)

	err = c.SetValue(ctx, "username", value.Text("ab"))
	if diff := cmp.Diff([]string{"MinLength"}, rules(t, err)); diff != "" {
		t.Errorf("errors (-want +got):\n%s", diff)
	}
	if mustState(t, c, "username").Valid {
		t.Error("username should be invalid")
	}

	if err := c.SetValue(ctx, "username", value.Text("abc")); err != nil {
		t.Errorf("abc: %v", err)
	}
	if st := mustState(t, c, "username"); !st.Valid || len(st.Errors) != 0 {
		t.Errorf("username state = %+v", st)
	}

	_ = c.SetValue(ctx, "password", value.Text("pw"))
	exported := c.CollectValuesFiltered(ExcludeSensitive)
	if diff := cmp.Diff([]string{"username"}, keys(exported)); diff != "" {
		t.Errorf("filtered export (-want +got):\n%s", diff)
	}
}

func TestVisibility_SharedField(t *testing.T) {
	ctx := context.Background()
	s, err := schema.New(
		&schema.Node{Kind: schema.KindBoolean, Key: "a"},
		&schema.Node{Kind: schema.KindBoolean, Key: "b"},
		&schema.Node{Kind: schema.KindText, Key: "node_b", Visibility: condition.EqualsTo("a", value.Bool(true))},
		&schema.Node{Kind: schema.KindText, Key: "node_c", Visibility: condition.All(
			condition.EqualsTo("a", value.Bool(true)),
			condition.EqualsTo("b", value.Bool(true)),
		)},
	)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"node_b", "node_c"}, s.Dependents("a")); diff != "" {
		t.Errorf("dependents of a (-want +got):\n%s", diff)
	}
	c := New(s)

	_ = c.SetValue(ctx, "a", value.Bool(true))
	if !mustState(t, c, "node_b").Visible {
		t.Error("node_b should be visible")
	}
	if mustState(t, c, "node_c").Visible {
		t.Error("node_c needs b as well")
	}

	_ = c.SetValue(ctx, "b", value.Bool(true))
	if !mustState(t, c, "node_c").Visible {
		t.Error("node_c should be visible")
	}
}

func TestVisibility_ContainerHidesDescendants(t *testing.T) {
	s, err := schema.New(
		&schema.Node{Kind: schema.KindBoolean, Key: "advanced"},
		&schema.Node{
			Kind:       schema.KindGroup,
			Key:        "tuning",
			Visibility: condition.True("advanced"),
			Children:   []*schema.Node{text("level", schema.FlagsNone)},
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	c := New(s)

	if v, _ := c.Visible("tuning.level"); v {
		t.Error("tuning.level should be hidden with its group")
	}
	if !mustState(t, c, "tuning.level").Visible {
		t.Error("own visibility of tuning.level should be true")
	}
	if err := c.SetValue(context.Background(), "advanced", value.Bool(true)); err != nil {
		t.Fatal(err)
	}
	if v, _ := c.Visible("tuning.level"); !v {
		t.Error("tuning.level should be shown")
	}
	if _, err := c.Visible("missing"); !errors.Is(err, schema.ErrUnknownPath) {
		t.Errorf("Visible(missing) error = %v", err)
	}
}

func TestMode_SwitchPreservesValues(t *testing.T) {
	ctx := context.Background()
	c := New(authSchema(t))

	if !mustState(t, c, "auth.basic.user").Visible {
		t.Fatal("default variant should be visible")
	}
	if mustState(t, c, "auth.token.token").Visible {
		t.Fatal("other variant should be hidden")
	}

	if err := c.SetValue(ctx, "auth.basic.user", value.Text("bob")); err != nil {
		t.Fatal(err)
	}
	if err := c.SetValue(ctx, "auth", value.Text("token")); err != nil {
		t.Fatal(err)
	}

	user := mustState(t, c, "auth.basic.user")
	if user.Visible || user.Active {
		t.Errorf("basic.user should be inactive, got %+v", user)
	}
	if !value.Equal(user.Value, value.Text("bob")) {
		t.Errorf("basic.user lost its value: %v", user.Value)
	}
	tok := mustState(t, c, "auth.token.token")
	if !tok.Visible || !value.Equal(tok.Value, value.Text("none")) {
		t.Errorf("token variant should be seeded from defaults, got %+v", tok)
	}

	if err := c.SetValue(ctx, "auth", value.Text("basic")); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Value("auth.basic.user"); !value.Equal(got, value.Text("bob")) {
		t.Errorf("switching back lost value: %v", got)
	}
}

func TestMode_StructuredForm(t *testing.T) {
	ctx := context.Background()
	c := New(authSchema(t))

	err := c.SetValue(ctx, "auth", value.Mode("token", map[string]value.Value{
		"token": value.Text("secret"),
	}))
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Value("auth"); !value.Equal(got, value.Text("token")) {
		t.Errorf("auth = %v, want token", got)
	}
	if got, _ := c.Value("auth.token.token"); !value.Equal(got, value.Text("secret")) {
		t.Errorf("auth.token.token = %v", got)
	}

	err = c.SetValue(ctx, "auth", value.Mode("token", map[string]value.Value{
		"missing": value.Text("x"),
	}))
	if !errors.Is(err, schema.ErrUnknownPath) {
		t.Errorf("unknown variant field error = %v", err)
	}
	if err := c.SetValue(ctx, "auth", value.Text("oauth")); !errors.Is(err, value.ErrTypeMismatch) {
		t.Errorf("unknown variant error = %v", err)
	}
}

func TestMode_StructuredDefault(t *testing.T) {
	s, err := schema.New(&schema.Node{
		Kind:           schema.KindMode,
		Key:            "auth",
		DefaultVariant: "basic",
		Default: schema.DefaultTo(value.Mode("token", map[string]value.Value{
			"token": value.Text("abc"),
		})),
		Variants: []schema.Variant{
			{Key: "basic", Nodes: []*schema.Node{text("user", schema.FlagsNone)}},
			{Key: "token", Nodes: []*schema.Node{text("token", schema.FlagsNone)}},
		},
	})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	c := New(s)

	if got, _ := c.Value("auth"); !value.Equal(got, value.Text("token")) {
		t.Errorf("auth = %v, want token", got)
	}
	tok := mustState(t, c, "auth.token.token")
	if !tok.Active || !tok.Visible || !value.Equal(tok.Value, value.Text("abc")) {
		t.Errorf("token field should carry the default, got %+v", tok)
	}
	if tok.Dirty || tok.Touched {
		t.Errorf("default should not mark the field dirty, got %+v", tok)
	}
	if mustState(t, c, "auth.basic.user").Active {
		t.Error("basic variant should be inactive")
	}

	ctx := context.Background()
	if err := c.SetValue(ctx, "auth", value.Text("basic")); err != nil {
		t.Fatal(err)
	}
	if err := c.SetValue(ctx, "auth", value.Text("token")); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Value("auth.token.token"); !value.Equal(got, value.Text("abc")) {
		t.Errorf("token lost its default after switching back: %v", got)
	}
}

func TestValidateAll_ClearsHiddenErrors(t *testing.T) {
	ctx := context.Background()
	s, err := schema.New(&schema.Node{
		Kind:           schema.KindMode,
		Key:            "auth",
		DefaultVariant: "basic",
		Variants: []schema.Variant{
			{Key: "basic", Nodes: []*schema.Node{text("user", schema.FlagsNone, schema.MinLength(3))}},
			{Key: "token", Nodes: []*schema.Node{text("token", schema.FlagsNone)}},
		},
	})
	if err != nil {
		t.Fatalf("schema.New: %v", err)
	}
	c := New(s)

	if err := c.SetValue(ctx, "auth.basic.user", value.Text("ab")); err == nil {
		t.Fatal("short user should fail MinLength")
	}
	if err := c.SetValue(ctx, "auth", value.Text("token")); err != nil {
		t.Fatal(err)
	}

	report, err := c.ValidateAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Valid {
		t.Errorf("report should ignore the hidden variant, got %+v", report.Errors)
	}

	user := mustState(t, c, "auth.basic.user")
	if !user.Valid || len(user.Errors) != 0 {
		t.Errorf("hidden user should carry no errors, got %+v", user)
	}
	if !value.Equal(user.Value, value.Text("ab")) {
		t.Errorf("hidden user lost its value: %v", user.Value)
	}
	for _, st := range c.States() {
		if !st.Valid {
			t.Errorf("exported state %s still invalid: %+v", st.Path, st.Errors)
		}
	}
}

func TestCollectValues(t *testing.T) {
	ctx := context.Background()
	c := New(loginSchema(t))
	_ = c.SetValue(ctx, "username", value.Text("alice"))
	_ = c.SetValue(ctx, "password", value.Text("hunter22"))
	_ = c.SetValue(ctx, "session", value.Text("s1"))

	all := c.CollectValues()
	if len(all) != 3 {
		t.Errorf("CollectValues returned %d entries, want 3", len(all))
	}

	safe := c.CollectValuesFiltered(ExcludeSensitive)
	if _, ok := safe["password"]; ok {
		t.Error("sensitive value exported")
	}
	if !value.Equal(safe["username"], value.Text("alice")) {
		t.Errorf("username = %v", safe["username"])
	}

	saved := c.CollectValuesFiltered(AllOf(ExcludeSensitive, Persistable))
	if diff := cmp.Diff([]string{"username"}, keys(saved)); diff != "" {
		t.Errorf("persistable keys (-want +got):\n%s", diff)
	}
}

func TestCollectValues_InactiveVariants(t *testing.T) {
	ctx := context.Background()
	c := New(authSchema(t))
	_ = c.SetValue(ctx, "auth.basic.user", value.Text("bob"))
	_ = c.SetValue(ctx, "auth", value.Text("token"))

	if _, ok := c.CollectValues()["auth.basic.user"]; !ok {
		t.Error("CollectValues should include inactive variant values")
	}
	filtered := c.CollectValuesFiltered(func(schema.Flags) bool { return true })
	if _, ok := filtered["auth.basic.user"]; ok {
		t.Error("filtered export should drop inactive variant values")
	}
}

func TestSnapshotFiltered(t *testing.T) {
	s, err := schema.New(
		text("username", schema.FlagsNone),
		text("password", schema.FlagSensitive),
		text("api_key", schema.FlagWriteOnly),
	)
	if err != nil {
		t.Fatal(err)
	}
	c := New(s)

	var got []string
	for _, st := range c.SnapshotFiltered(Transmittable).States {
		got = append(got, st.Path)
	}
	if diff := cmp.Diff([]string{"username"}, got); diff != "" {
		t.Errorf("transmittable paths (-want +got):\n%s", diff)
	}
	if n := len(c.Snapshot().States); n != 3 {
		t.Errorf("full snapshot has %d states, want 3", n)
	}
}

func TestLookup_ListElements(t *testing.T) {
	s, err := schema.New(&schema.Node{
		Kind: schema.KindList,
		Key:  "servers",
		Item: &schema.Node{
			Kind:     schema.KindObject,
			Key:      "server",
			Children: []*schema.Node{text("host", schema.FlagsNone)},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	c := New(s)
	list := value.Array(
		value.Object(map[string]value.Value{"host": value.Text("a")}),
		value.Object(map[string]value.Value{"host": value.Text("b")}),
	)
	if err := c.SetValue(context.Background(), "servers", list); err != nil {
		t.Fatal(err)
	}

	got, ok := c.Lookup("servers.1.host")
	if !ok || !value.Equal(got, value.Text("b")) {
		t.Errorf("Lookup(servers.1.host) = %v, %v", got, ok)
	}
	if _, ok := c.Lookup("servers.5.host"); ok {
		t.Error("out of range element should not resolve")
	}
}

func TestValidateAll(t *testing.T) {
	ctx := context.Background()
	s, err := schema.New(
		&schema.Node{Kind: schema.KindBoolean, Key: "enabled", Default: schema.DefaultTo(value.Bool(false))},
		text("name", schema.FlagRequired),
		&schema.Node{
			Kind:       schema.KindText,
			Key:        "endpoint",
			Flags:      schema.FlagRequired,
			Visibility: condition.True("enabled"),
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	c := New(s)

	report, err := c.ValidateAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Valid || !report.Complete {
		t.Errorf("report = %+v", report)
	}
	if _, ok := report.Errors["endpoint"]; ok {
		t.Error("hidden endpoint should be skipped")
	}
	if _, ok := report.Errors["name"]; !ok {
		t.Error("name should fail Required")
	}
	if mustState(t, c, "name").Valid {
		t.Error("ValidateAll should store results")
	}

	_ = c.SetValue(ctx, "name", value.Text("svc"))
	report, _ = c.ValidateAll(ctx)
	if !report.Valid {
		t.Errorf("report should be valid, got %+v", report.Errors)
	}
}

func TestValidateAll_Cancelled(t *testing.T) {
	c := New(loginSchema(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := c.ValidateAll(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if report.Complete || report.Valid {
		t.Errorf("cancelled report = %+v", report)
	}
}

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()
	s := authSchema(t)
	c := New(s, WithIDGenerator(fixedID("ctx-1")))
	_ = c.SetValue(ctx, "auth.basic.user", value.Text("bob"))
	_ = c.SetValue(ctx, "auth", value.Text("token"))
	snap := c.Snapshot()

	if snap.Context != "ctx-1" || snap.SchemaVersion != schema.FormatVersion {
		t.Errorf("snapshot header = %q %q", snap.Context, snap.SchemaVersion)
	}

	other := New(s)
	if err := other.Restore(snap); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(snap.States, other.States(), cmp.Comparer(value.Equal)); diff != "" {
		t.Errorf("restored states (-want +got):\n%s", diff)
	}

	snap.SchemaVersion = "9.9"
	if err := other.Restore(snap); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("version mismatch error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	c := New(loginSchema(t))
	err := c.Load(map[string]value.Value{
		"username": value.Text("alice"),
		"password": value.Text("longenough"),
	})
	if err != nil {
		t.Fatal(err)
	}
	st := mustState(t, c, "username")
	if st.Dirty || st.Touched || !value.Equal(st.Value, value.Text("alice")) {
		t.Errorf("loaded state = %+v", st)
	}

	err = c.Load(map[string]value.Value{"username": value.Text("bob"), "ghost": value.Int(1)})
	if !errors.Is(err, schema.ErrUnknownPath) {
		t.Errorf("Load error = %v", err)
	}
	if got, _ := c.Value("username"); !value.Equal(got, value.Text("alice")) {
		t.Errorf("failed Load wrote values: %v", got)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	c := New(authSchema(t))
	_ = c.SetValue(ctx, "auth", value.Text("token"))

	if err := c.Reset(ctx, "auth"); err != nil {
		t.Fatal(err)
	}
	st := mustState(t, c, "auth")
	if st.Dirty || !value.Equal(st.Value, value.Text("basic")) {
		t.Errorf("reset state = %+v", st)
	}
	if !mustState(t, c, "auth.basic.user").Visible {
		t.Error("reset should reactivate the default variant")
	}
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	s, err := schema.New(&schema.Node{
		Kind:     schema.KindExpirable,
		Key:      "cache",
		TTL:      time.Minute,
		Children: []*schema.Node{text("token", schema.FlagsNone)},
	}, text("name", schema.FlagsNone))
	if err != nil {
		t.Fatal(err)
	}
	clk := clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	bus := events.NewBus(zerolog.Nop())
	var expired []string
	bus.Subscribe(events.ValuesExpired, func(_ context.Context, e events.Event) error {
		expired = append(expired, e.Path)
		return nil
	})
	c := New(s, WithClock(clk), WithPublisher(bus))

	_ = c.SetValue(ctx, "cache.token", value.Text("abc"))
	_ = c.SetValue(ctx, "name", value.Text("n"))

	clk.Advance(30 * time.Second)
	if got := c.SweepExpired(ctx); len(got) != 0 {
		t.Errorf("nothing should expire yet, got %v", got)
	}

	clk.Advance(time.Minute)
	if ok, _ := c.Expired("cache.token"); !ok {
		t.Error("cache.token should be expired")
	}
	if diff := cmp.Diff([]string{"cache.token"}, c.SweepExpired(ctx)); diff != "" {
		t.Errorf("swept paths (-want +got):\n%s", diff)
	}
	if got, _ := c.Value("cache.token"); !got.IsNull() {
		t.Errorf("expired value not reset: %v", got)
	}
	if diff := cmp.Diff([]string{"cache.token"}, expired); diff != "" {
		t.Errorf("expiry events (-want +got):\n%s", diff)
	}
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	bus := events.NewBus(zerolog.Nop())
	var names []string
	bus.Subscribe("*", func(_ context.Context, e events.Event) error {
		names = append(names, e.Name+":"+e.Path)
		return nil
	})
	c := New(authSchema(t), WithPublisher(bus))

	// Handlers run after the lock is released and may read the context.
	bus.Subscribe(events.ModeSwitched, func(_ context.Context, e events.Event) error {
		_, err := c.Value(e.Path)
		return err
	})

	_ = c.SetValue(ctx, "auth", value.Text("token"))

	want := []string{
		"visibility.changed:auth.basic.user",
		"visibility.changed:auth.token.token",
		"mode.switched:auth",
		"value.changed:auth",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
}

func keys(m map[string]value.Value) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
