package condition

import (
	"fmt"

	"github.com/artpar/paramkit/core/value"
)

// Lookup resolves a field to its current value.
type Lookup interface {
	Lookup(field string) (value.Value, bool)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(field string) (value.Value, bool)

func (f LookupFunc) Lookup(field string) (value.Value, bool) { return f(field) }

// Values is a Lookup over a fixed path to value map.
type Values map[string]value.Value

func (m Values) Lookup(field string) (value.Value, bool) {
	v, ok := m[field]
	return v, ok
}

// Eval evaluates c against lookup. Missing fields read as Null.
// And and Or short-circuit left to right. Ordered comparisons against a Null
// field are false; comparisons across incompatible kinds return an error
// wrapping value.ErrTypeMismatch.
func Eval(c *Condition, lookup Lookup) (bool, error) {
	if c == nil {
		return true, nil
	}

	switch c.Type {
	case And:
		for _, sub := range c.Conditions {
			ok, err := Eval(sub, lookup)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, sub := range c.Conditions {
			ok, err := Eval(sub, lookup)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case Not:
		ok, err := Eval(c.Condition, lookup)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}

	v := read(lookup, c.Field)
	ok, err := evalLeaf(c, v)
	if err != nil {
		return false, fmt.Errorf("%s %q: %w", c.Type, c.Field, err)
	}
	return ok, nil
}

// Evaluate is Eval with errors treated as false.
func Evaluate(c *Condition, lookup Lookup) bool {
	ok, err := Eval(c, lookup)
	return err == nil && ok
}

func read(lookup Lookup, field string) value.Value {
	if lookup == nil {
		return value.Null()
	}
	v, ok := lookup.Lookup(field)
	if !ok {
		return value.Null()
	}
	return v
}

func evalLeaf(c *Condition, v value.Value) (bool, error) {
	switch c.Type {
	case Equals:
		return value.Equal(v, c.Value), nil
	case NotEquals:
		return !value.Equal(v, c.Value), nil
	case IsSet:
		return !v.IsNull(), nil
	case IsNull:
		return v.IsNull(), nil
	case IsEmpty:
		return v.IsEmpty()
	case IsNotEmpty:
		empty, err := v.IsEmpty()
		return !empty && err == nil, err
	case IsTrue, IsFalse:
		if v.IsNull() {
			return false, nil
		}
		b, ok := v.AsBool()
		if !ok {
			return false, fmt.Errorf("%w: expected bool, got %s", value.ErrTypeMismatch, v.Kind())
		}
		return b == (c.Type == IsTrue), nil
	case GreaterThan, LessThan:
		if v.IsNull() {
			return false, nil
		}
		cmp, err := value.Compare(v, c.Value)
		if err != nil {
			return false, err
		}
		if c.Type == GreaterThan {
			return cmp > 0, nil
		}
		return cmp < 0, nil
	case InRange:
		if v.IsNull() {
			return false, nil
		}
		lo, err := value.Compare(v, c.Min)
		if err != nil {
			return false, err
		}
		hi, err := value.Compare(v, c.Max)
		if err != nil {
			return false, err
		}
		return lo >= 0 && hi <= 0, nil
	case Contains:
		if v.IsNull() {
			return false, nil
		}
		return value.Contains(v, c.Value)
	case OneOf:
		for _, candidate := range c.Values {
			if value.Equal(v, candidate) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("%w: unknown type %q", ErrInvalid, c.Type)
}
