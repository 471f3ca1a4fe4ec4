package state

import (
	"errors"
	"fmt"

	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/core/validation"
	"github.com/artpar/paramkit/core/value"
)

// FlagPredicate selects entries by their node flags.
type FlagPredicate func(schema.Flags) bool

// ExcludeSensitive drops SENSITIVE entries.
func ExcludeSensitive(f schema.Flags) bool { return !f.Has(schema.FlagSensitive) }

// Transmittable keeps entries whose values may leave the process: not
// SENSITIVE, not WRITE_ONLY.
func Transmittable(f schema.Flags) bool {
	return !f.Has(schema.FlagSensitive) && !f.Has(schema.FlagWriteOnly)
}

// Persistable keeps entries that should be saved: not SKIP_SAVE, not RUNTIME.
func Persistable(f schema.Flags) bool { return f.ShouldPersist() }

// AllOf combines predicates; an entry must satisfy each.
func AllOf(preds ...FlagPredicate) FlagPredicate {
	return func(f schema.Flags) bool {
		for _, p := range preds {
			if !p(f) {
				return false
			}
		}
		return true
	}
}

// CollectValues exports the value of every valued path, including entries
// of inactive Mode variants.
func (c *Context) CollectValues() map[string]value.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collectLocked(nil)
}

// CollectValuesFiltered exports values whose node flags satisfy pred.
// Entries of inactive Mode variants are always excluded.
func (c *Context) CollectValuesFiltered(pred FlagPredicate) map[string]value.Value {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collectLocked(pred)
}

func (c *Context) collectLocked(pred FlagPredicate) map[string]value.Value {
	out := make(map[string]value.Value)
	c.schema.Walk(func(se *schema.Entry) bool {
		if !se.Node.Kind.Valued() {
			return true
		}
		e := c.entries[se.Path]
		if pred != nil && (!e.active || !pred(se.Node.Flags)) {
			return true
		}
		out[se.Path] = e.value
		return true
	})
	return out
}

// Snapshot is the full state of a context, for debugging and restoring.
type Snapshot struct {
	SchemaVersion string
	Context       string
	States        []FieldState
}

// Snapshot captures the full state of every path.
func (c *Context) Snapshot() Snapshot {
	return Snapshot{
		SchemaVersion: c.schema.Version(),
		Context:       c.id,
		States:        c.States(),
	}
}

// SnapshotFiltered captures the state of the paths whose node flags satisfy
// pred. The result is meant for display; restoring it leaves the omitted
// paths untouched.
func (c *Context) SnapshotFiltered(pred FlagPredicate) Snapshot {
	snap := c.Snapshot()
	kept := snap.States[:0]
	for _, st := range snap.States {
		if se, ok := c.schema.Lookup(st.Path); ok && pred(se.Node.Flags) {
			kept = append(kept, st)
		}
	}
	snap.States = kept
	return snap
}

// Restore replaces values and per-path dirty, touched, valid and error
// state from a snapshot. Visibility is recomputed rather than restored.
// Paths absent from the snapshot keep their current state.
func (c *Context) Restore(snap Snapshot) error {
	if snap.SchemaVersion != c.schema.Version() {
		return fmt.Errorf("%w: snapshot %q, schema %q", ErrVersionMismatch, snap.SchemaVersion, c.schema.Version())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var problems []error
	for _, st := range snap.States {
		se, ok := c.schema.Lookup(st.Path)
		if !ok {
			problems = append(problems, unknownPath(st.Path))
			continue
		}
		if err := se.Node.Check(st.Value); err != nil {
			problems = append(problems, fmt.Errorf("%s: %w", st.Path, err))
			continue
		}
		if se.Node.Kind == schema.KindMode && st.Value.Kind() == value.KindObject {
			problems = append(problems, fmt.Errorf("%s: snapshot holds mode values as variant keys", st.Path))
		}
	}
	if len(problems) > 0 {
		return errors.Join(problems...)
	}

	now := c.clock.Now()
	for _, st := range snap.States {
		se, _ := c.schema.Lookup(st.Path)
		e := c.entries[st.Path]
		e.value = st.Value
		e.dirty = st.Dirty
		e.touched = st.Touched
		e.valid = st.Valid
		e.errors = append([]validation.FieldError(nil), st.Errors...)
		if st.Touched {
			e.writtenAt = now
			for _, sel := range se.Selectors {
				c.materialized[sel] = true
			}
		}
	}
	c.markSelected()
	c.recomputeAll()
	return nil
}
