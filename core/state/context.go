// Package state holds live parameter values against a schema.
//
// A Context is bound to one schema and keeps, per full path, the current
// value and its derived state. All writes go through SetValue, which
// type-checks, stores, validates that one path and re-evaluates the
// visibility of the nodes whose condition references the path. Dependency
// re-evaluation is one hop: nodes that depend on a changed node's visibility
// rather than on its value are not recomputed.
//
// A Context expects one logical owner performing mutations in sequence.
// Reads and exports may run concurrently with each other.
package state

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/artpar/paramkit/core/condition"
	"github.com/artpar/paramkit/core/events"
	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/validation"
	"github.com/artpar/paramkit/core/value"
	"github.com/artpar/paramkit/ports"
)

// ErrVersionMismatch is returned when restoring a snapshot taken against a
// different schema version.
var ErrVersionMismatch = errors.New("schema version mismatch")

type entry struct {
	value       value.Value
	dirty       bool
	touched     bool
	valid       bool
	errors      []validation.FieldError
	condVisible bool
	active      bool
	writtenAt   time.Time
}

// FieldState is the externally visible state of one path.
type FieldState struct {
	Path    string                  `json:"path" yaml:"path"`
	Value   value.Value             `json:"value" yaml:"value"`
	Dirty   bool                    `json:"dirty" yaml:"dirty"`
	Touched bool                    `json:"touched" yaml:"touched"`
	Valid   bool                    `json:"valid" yaml:"valid"`
	Visible bool                    `json:"visible" yaml:"visible"`
	Active  bool                    `json:"active" yaml:"active"`
	Errors  []validation.FieldError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Context is a mutable value store bound to one schema.
type Context struct {
	mu sync.RWMutex

	id        string
	schema    *schema.Schema
	validator *validation.Validator
	publisher ports.Publisher
	clock     ports.Clock
	observer  ports.ValidationObserver
	logger    zerolog.Logger

	entries      map[string]*entry
	materialized map[schema.Selector]bool
}

// Option configures a Context.
type Option func(*Context)

// WithValidator sets the validator used for every validation pass.
func WithValidator(v *validation.Validator) Option {
	return func(c *Context) { c.validator = v }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// WithPublisher sets where change events are published.
func WithPublisher(p ports.Publisher) Option {
	return func(c *Context) { c.publisher = p }
}

// WithClock sets the clock used for write times and expiry.
func WithClock(clk ports.Clock) Option {
	return func(c *Context) { c.clock = clk }
}

// WithIDGenerator sets how the context ID is generated.
func WithIDGenerator(g ports.IDGenerator) Option {
	return func(c *Context) { c.id = g.New() }
}

// WithObserver sets the mutation observer.
func WithObserver(o ports.ValidationObserver) Option {
	return func(c *Context) { c.observer = o }
}

// New creates a context over s with every path seeded from its default.
func New(s *schema.Schema, opts ...Option) *Context {
	c := &Context{
		schema:       s,
		clock:        ports.SystemClock{},
		observer:     ports.NopObserver{},
		logger:       zerolog.Nop(),
		entries:      make(map[string]*entry, s.Len()),
		materialized: make(map[schema.Selector]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.validator == nil {
		c.validator = validation.New(validation.WithLogger(c.logger))
	}
	c.logger = c.logger.With().Str("context", c.id).Logger()

	s.Walk(func(e *schema.Entry) bool {
		c.entries[e.Path] = &entry{value: e.Node.DefaultValue(), valid: true}
		return true
	})
	c.applyModeDefaultsLocked(c.schema.Paths())
	c.markSelected()
	c.recomputeAll()
	return c
}

// ID returns the context identifier.
func (c *Context) ID() string { return c.id }

// Schema returns the bound schema.
func (c *Context) Schema() *schema.Schema { return c.schema }

// Value returns the stored value at path.
func (c *Context) Value(path string) (value.Value, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	if !ok {
		return value.Value{}, unknownPath(path)
	}
	return e.value, nil
}

// Lookup implements condition.Lookup and schema.FieldReader. It resolves
// indexed paths and element paths inside list values, such as "servers.0.host".
func (c *Context) Lookup(path string) (value.Value, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lookupLocked(path)
}

func (c *Context) lookupLocked(path string) (value.Value, bool) {
	if e, ok := c.entries[path]; ok {
		return e.value, true
	}
	list, ok := c.schema.ListOf(path)
	if !ok {
		return value.Value{}, false
	}
	cur := c.entries[list].value
	for _, seg := range strings.Split(strings.TrimPrefix(path, list+"."), ".") {
		if i, err := strconv.Atoi(seg); err == nil {
			cur, ok = cur.Index(i)
		} else {
			cur, ok = cur.Field(seg)
		}
		if !ok {
			return value.Value{}, false
		}
	}
	return cur, true
}

// State returns the state of path.
func (c *Context) State(path string) (FieldState, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	if !ok {
		return FieldState{}, unknownPath(path)
	}
	return c.stateOf(path, e), nil
}

// States returns the state of every path in schema order.
func (c *Context) States() []FieldState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]FieldState, 0, len(c.entries))
	for _, p := range c.schema.Paths() {
		out = append(out, c.stateOf(p, c.entries[p]))
	}
	return out
}

func (c *Context) stateOf(path string, e *entry) FieldState {
	return FieldState{
		Path:    path,
		Value:   e.value,
		Dirty:   e.dirty,
		Touched: e.touched,
		Valid:   e.valid,
		Visible: e.visible(),
		Active:  e.active,
		Errors:  append([]validation.FieldError(nil), e.errors...),
	}
}

// Visible reports whether path and all its ancestors are visible.
func (c *Context) Visible(path string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.entries[path]; !ok {
		return false, unknownPath(path)
	}
	return c.shownLocked(path), nil
}

func (e *entry) visible() bool { return e.active && e.condVisible }

func (c *Context) shownLocked(path string) bool {
	for path != "" {
		e := c.entries[path]
		if !e.visible() {
			return false
		}
		se, _ := c.schema.Lookup(path)
		path = se.Parent
	}
	return true
}

// markSelected records the currently selected variant of every Mode as materialized.
func (c *Context) markSelected() {
	c.schema.Walk(func(e *schema.Entry) bool {
		if e.Node.Kind == schema.KindMode {
			if v, ok := c.entries[e.Path].value.AsText(); ok {
				c.materialized[schema.Selector{Mode: e.Path, Variant: v}] = true
			}
		}
		return true
	})
}

// recomputeAll refreshes activity and condition results of every entry.
func (c *Context) recomputeAll() {
	c.schema.Walk(func(se *schema.Entry) bool {
		e := c.entries[se.Path]
		e.active = c.activeLocked(se)
		e.condVisible = c.evalLocked(se)
		return true
	})
}

func (c *Context) activeLocked(se *schema.Entry) bool {
	for _, sel := range se.Selectors {
		v, ok := c.entries[sel.Mode].value.AsText()
		if !ok || v != sel.Variant {
			return false
		}
	}
	return true
}

func (c *Context) evalLocked(se *schema.Entry) bool {
	if se.Condition == nil {
		return true
	}
	ok, err := condition.Eval(se.Condition, lockedView{c})
	if err != nil {
		c.logger.Debug().Err(err).Str("path", se.Path).Msg("visibility condition failed")
		return false
	}
	return ok
}

// lockedView reads entries without taking the lock. It is only used while
// the caller already holds c.mu.
type lockedView struct{ c *Context }

func (v lockedView) Lookup(path string) (value.Value, bool) { return v.c.lookupLocked(path) }

func (c *Context) publish(ctx context.Context, evts []events.Event) {
	if c.publisher == nil {
		return
	}
	for _, evt := range evts {
		c.publisher.Publish(ctx, evt)
	}
}

func (c *Context) event(name, path string, data map[string]any) events.Event {
	return events.Event{Name: name, Context: c.id, Path: path, Data: data, At: c.clock.Now()}
}

func unknownPath(path string) error {
	return fmt.Errorf("%w: %s", schema.ErrUnknownPath, path)
}
