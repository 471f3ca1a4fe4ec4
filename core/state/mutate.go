package state

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/artpar/paramkit/core/events"
	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/validation"
	"github.com/artpar/paramkit/core/value"
)

// Mutation outcomes reported to the observer.
const (
	mutationOK       = "ok"
	mutationInvalid  = "invalid"
	mutationRejected = "rejected"
)

type assignment struct {
	path  string
	value value.Value
}

// SetValue writes v at path.
//
// The value is type-checked against the node kind first; an unknown path
// or a mismatch returns an error and leaves the context untouched.
// Otherwise the value is stored, marked dirty and touched, validated, and
// the visibility of every node whose condition references path is
// re-evaluated. A Mode accepts a variant key or the {mode, value} form,
// whose value entries are written to the variant's fields.
//
// When the stored value fails validation the returned error is a
// *validation.Error; the value stays stored.
func (c *Context) SetValue(ctx context.Context, path string, v value.Value) error {
	c.mu.Lock()
	assigns, err := c.expand(path, v)
	if err != nil {
		c.mu.Unlock()
		c.observer.ObserveMutation(c.schema.Version(), mutationRejected)
		return err
	}

	var evts []events.Event
	var errs []validation.FieldError
	for _, a := range assigns {
		errs = append(errs, c.assignLocked(ctx, a, &evts)...)
	}
	c.mu.Unlock()

	c.publish(ctx, evts)
	if len(errs) > 0 {
		c.observer.ObserveMutation(c.schema.Version(), mutationInvalid)
		return validation.NewError(errs)
	}
	c.observer.ObserveMutation(c.schema.Version(), mutationOK)
	return nil
}

// expand flattens v into per-path assignments, checking every target path
// and value shape before anything is written.
func (c *Context) expand(path string, v value.Value) ([]assignment, error) {
	var out []assignment
	if err := c.expandInto(path, v, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Context) expandInto(path string, v value.Value, out *[]assignment) error {
	se, ok := c.schema.Lookup(path)
	if !ok {
		return unknownPath(path)
	}
	if err := se.Node.Check(v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if se.Node.Kind != schema.KindMode || v.IsNull() {
		*out = append(*out, assignment{path: path, value: v})
		return nil
	}

	variant, fields, _ := v.AsMode()
	*out = append(*out, assignment{path: path, value: value.Text(variant)})
	prefix := path + "." + variant + "."
	for _, key := range fields.Keys() {
		inner, _ := fields.Field(key)
		if err := c.expandInto(prefix+key, inner, out); err != nil {
			return err
		}
	}
	return nil
}

// assignLocked stores one checked value and runs validation and one-hop
// re-evaluation for it.
func (c *Context) assignLocked(ctx context.Context, a assignment, evts *[]events.Event) []validation.FieldError {
	se, _ := c.schema.Lookup(a.path)
	e := c.entries[a.path]
	prev := e.value

	e.value = a.value
	e.dirty = true
	e.touched = true
	e.writtenAt = c.clock.Now()
	for _, sel := range se.Selectors {
		c.materialized[sel] = true
	}

	c.logger.Debug().Str("path", a.path).Stringer("value", a.value).Msg("value set")

	if se.Node.Kind == schema.KindMode && !value.Equal(prev, a.value) {
		c.switchModeLocked(se, prev, a.value, evts)
	}

	c.validateLocked(ctx, se, e)
	*evts = append(*evts, c.event(events.ValueChanged, a.path, map[string]any{
		"value": a.value.ToAny(),
		"valid": e.valid,
	}))

	c.reevaluateLocked(a.path, evts)
	return e.errors
}

func (c *Context) validateLocked(ctx context.Context, se *schema.Entry, e *entry) {
	res := c.validator.Validate(ctx, se.Path, se.Node, e.value, lockedView{c})
	e.errors = res.Errors
	e.valid = res.Valid()
}

// reevaluateLocked recomputes visibility of the direct dependents of path.
func (c *Context) reevaluateLocked(path string, evts *[]events.Event) {
	for _, dep := range c.schema.Dependents(path) {
		se, _ := c.schema.Lookup(dep)
		e := c.entries[dep]
		before := e.visible()
		e.condVisible = c.evalLocked(se)
		if e.visible() != before {
			c.visibilityChanged(dep, e, evts)
		}
	}
}

func (c *Context) visibilityChanged(path string, e *entry, evts *[]events.Event) {
	c.logger.Debug().Str("path", path).Bool("visible", e.visible()).Msg("visibility changed")
	*evts = append(*evts, c.event(events.VisibilityChanged, path, map[string]any{"visible": e.visible()}))
}

// switchModeLocked activates the newly selected variant, seeding it from
// defaults if it was never materialized, and hides the others. Entries of
// inactive variants keep their values.
func (c *Context) switchModeLocked(se *schema.Entry, prev, next value.Value, evts *[]events.Event) {
	from, _ := prev.AsText()
	to, _ := next.AsText()
	members := c.schema.ModeMembers(se.Path)

	if to != "" {
		sel := schema.Selector{Mode: se.Path, Variant: to}
		if !c.materialized[sel] {
			c.seedLocked(members[to])
			c.materialized[sel] = true
		}
	}

	variants := make([]string, 0, len(members))
	for v := range members {
		variants = append(variants, v)
	}
	sort.Strings(variants)
	for _, v := range variants {
		for _, p := range members[v] {
			mse, _ := c.schema.Lookup(p)
			e := c.entries[p]
			before := e.visible()
			e.active = c.activeLocked(mse)
			if e.active {
				e.condVisible = c.evalLocked(mse)
			}
			if e.visible() != before {
				c.visibilityChanged(p, e, evts)
			}
		}
	}

	c.logger.Debug().Str("path", se.Path).Str("from", from).Str("to", to).Msg("mode switched")
	*evts = append(*evts, c.event(events.ModeSwitched, se.Path, map[string]any{"from": from, "to": to}))
}

// seedLocked resets paths to their defaults and marks the default variants
// of nested modes as materialized.
func (c *Context) seedLocked(paths []string) {
	for _, p := range paths {
		se, _ := c.schema.Lookup(p)
		c.resetEntry(se, c.entries[p])
	}
	c.applyModeDefaultsLocked(paths)
	for _, p := range paths {
		se, _ := c.schema.Lookup(p)
		if se.Node.Kind == schema.KindMode {
			if v, ok := c.entries[p].value.AsText(); ok {
				c.materialized[schema.Selector{Mode: p, Variant: v}] = true
			}
		}
	}
}

// applyModeDefaultsLocked writes the variant fields carried by {mode, value}
// defaults of the modes among paths. Deeper modes go first so an enclosing
// default wins over a nested one.
func (c *Context) applyModeDefaultsLocked(paths []string) {
	for i := len(paths) - 1; i >= 0; i-- {
		se, _ := c.schema.Lookup(paths[i])
		fields := se.Node.DefaultFields()
		if len(fields) == 0 {
			continue
		}
		variant, _ := se.Node.DefaultValue().AsText()
		prefix := se.Path + "." + variant + "."
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			assigns, err := c.expand(prefix+k, fields[k])
			if err != nil {
				c.logger.Debug().Err(err).Str("path", se.Path).Msg("mode default field skipped")
				continue
			}
			for _, a := range assigns {
				c.entries[a.path].value = a.value
			}
		}
	}
}

func (c *Context) resetEntry(se *schema.Entry, e *entry) {
	e.value = se.Node.DefaultValue()
	e.dirty = false
	e.touched = false
	e.valid = true
	e.errors = nil
	e.writtenAt = time.Time{}
}

// Revalidate re-runs validation of the stored value at path without
// changing it. It returns a *validation.Error when the value is invalid.
func (c *Context) Revalidate(ctx context.Context, path string) error {
	c.mu.Lock()
	se, ok := c.schema.Lookup(path)
	if !ok {
		c.mu.Unlock()
		return unknownPath(path)
	}
	e := c.entries[path]
	c.validateLocked(ctx, se, e)
	errs := e.errors
	c.mu.Unlock()
	return validation.NewError(errs)
}

// Reset restores path to its default, clearing dirty, touched and errors.
func (c *Context) Reset(ctx context.Context, path string) error {
	c.mu.Lock()
	se, ok := c.schema.Lookup(path)
	if !ok {
		c.mu.Unlock()
		return unknownPath(path)
	}
	var evts []events.Event
	e := c.entries[path]
	prev := e.value
	c.resetEntry(se, e)
	if se.Node.Kind == schema.KindMode && !value.Equal(prev, e.value) {
		c.switchModeLocked(se, prev, e.value, &evts)
	}
	evts = append(evts, c.event(events.ValueChanged, path, map[string]any{"value": e.value.ToAny(), "valid": true}))
	c.reevaluateLocked(path, &evts)
	c.mu.Unlock()

	c.publish(ctx, evts)
	return nil
}

// Load replaces stored values from a values-only map, as produced by
// CollectValues. Loaded values become the baseline: dirty and touched are
// cleared and errors dropped until the next validation. Every path and value
// is checked before anything is written.
func (c *Context) Load(values map[string]value.Value) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	paths := make([]string, 0, len(values))
	for p := range values {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var assigns []assignment
	var problems []error
	for _, p := range paths {
		a, err := c.expand(p, values[p])
		if err != nil {
			problems = append(problems, err)
			continue
		}
		assigns = append(assigns, a...)
	}
	if len(problems) > 0 {
		return errors.Join(problems...)
	}

	now := c.clock.Now()
	for _, a := range assigns {
		se, _ := c.schema.Lookup(a.path)
		e := c.entries[a.path]
		e.value = a.value
		e.dirty = false
		e.touched = false
		e.valid = true
		e.errors = nil
		e.writtenAt = now
		for _, sel := range se.Selectors {
			c.materialized[sel] = true
		}
	}
	c.markSelected()
	c.recomputeAll()
	return nil
}
