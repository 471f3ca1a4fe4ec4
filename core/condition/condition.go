// Package condition implements boolean expression trees over named fields.
//
// Conditions are plain data: they serialize, compare structurally and can be
// rewritten. Evaluation reads fields through a Lookup; a field the lookup does
// not know evaluates as Null.
package condition

import (
	"errors"
	"fmt"

	"github.com/artpar/paramkit/core/value"
)

// Type names a condition predicate or combinator. The names are the wire names.
type Type string

const (
	Equals      Type = "Equals"
	NotEquals   Type = "NotEquals"
	IsSet       Type = "IsSet"
	IsNull      Type = "IsNull"
	IsEmpty     Type = "IsEmpty"
	IsNotEmpty  Type = "IsNotEmpty"
	IsTrue      Type = "IsTrue"
	IsFalse     Type = "IsFalse"
	GreaterThan Type = "GreaterThan"
	LessThan    Type = "LessThan"
	InRange     Type = "InRange"
	Contains    Type = "Contains"
	OneOf       Type = "OneOf"
	And         Type = "And"
	Or          Type = "Or"
	Not         Type = "Not"
)

// ErrInvalid is returned by Validate for structurally malformed conditions.
var ErrInvalid = errors.New("invalid condition")

// IsCombinator reports whether t combines other conditions.
func (t Type) IsCombinator() bool {
	return t == And || t == Or || t == Not
}

// Known reports whether t is a defined condition type.
func (t Type) Known() bool {
	switch t {
	case Equals, NotEquals, IsSet, IsNull, IsEmpty, IsNotEmpty, IsTrue, IsFalse,
		GreaterThan, LessThan, InRange, Contains, OneOf, And, Or, Not:
		return true
	}
	return false
}

// Condition is one node of a condition tree.
// Leaf predicates use Field plus the operands their type needs; And and Or
// use Conditions; Not uses Condition.
type Condition struct {
	Type Type

	// Field is the full path the leaf predicate reads.
	Field string

	// Value is the operand of Equals, NotEquals, GreaterThan, LessThan and Contains.
	Value value.Value

	// Min and Max bound InRange, inclusive.
	Min value.Value
	Max value.Value

	// Values is the candidate set of OneOf.
	Values []value.Value

	// Conditions are the operands of And and Or.
	Conditions []*Condition

	// Condition is the operand of Not.
	Condition *Condition
}

func leaf(t Type, field string) *Condition { return &Condition{Type: t, Field: field} }

// EqualsTo is satisfied when field is structurally equal to v.
func EqualsTo(field string, v value.Value) *Condition {
	return &Condition{Type: Equals, Field: field, Value: v}
}

// NotEqualsTo is satisfied when field differs from v.
func NotEqualsTo(field string, v value.Value) *Condition {
	return &Condition{Type: NotEquals, Field: field, Value: v}
}

// Set is satisfied when field holds a non-null value.
func Set(field string) *Condition { return leaf(IsSet, field) }

// Null is satisfied when field is null or missing.
func Null(field string) *Condition { return leaf(IsNull, field) }

// Empty is satisfied when field is null, or empty text or array.
func Empty(field string) *Condition { return leaf(IsEmpty, field) }

// NotEmpty negates Empty.
func NotEmpty(field string) *Condition { return leaf(IsNotEmpty, field) }

// True is satisfied when field is Bool(true).
func True(field string) *Condition { return leaf(IsTrue, field) }

// False is satisfied when field is Bool(false).
func False(field string) *Condition { return leaf(IsFalse, field) }

// Greater is satisfied when field orders after v.
func Greater(field string, v value.Value) *Condition {
	return &Condition{Type: GreaterThan, Field: field, Value: v}
}

// Less is satisfied when field orders before v.
func Less(field string, v value.Value) *Condition {
	return &Condition{Type: LessThan, Field: field, Value: v}
}

// Between is satisfied when min <= field <= max.
func Between(field string, min, max value.Value) *Condition {
	return &Condition{Type: InRange, Field: field, Min: min, Max: max}
}

// Has is satisfied when field contains v: substring for text, element for arrays.
func Has(field string, v value.Value) *Condition {
	return &Condition{Type: Contains, Field: field, Value: v}
}

// In is satisfied when field equals one of values.
func In(field string, values ...value.Value) *Condition {
	return &Condition{Type: OneOf, Field: field, Values: append([]value.Value(nil), values...)}
}

// All is satisfied when every operand is; an empty And is true.
func All(conds ...*Condition) *Condition {
	return &Condition{Type: And, Conditions: conds}
}

// Any is satisfied when some operand is; an empty Or is false.
func Any(conds ...*Condition) *Condition {
	return &Condition{Type: Or, Conditions: conds}
}

// Negate inverts c.
func Negate(c *Condition) *Condition {
	return &Condition{Type: Not, Condition: c}
}

// Validate checks that c is well formed: known types, fields on every leaf,
// operands present where the type needs them.
func Validate(c *Condition) error {
	if c == nil {
		return fmt.Errorf("%w: nil condition", ErrInvalid)
	}
	if !c.Type.Known() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalid, c.Type)
	}

	switch c.Type {
	case And, Or:
		for i, sub := range c.Conditions {
			if err := Validate(sub); err != nil {
				return fmt.Errorf("%s[%d]: %w", c.Type, i, err)
			}
		}
		return nil
	case Not:
		if c.Condition == nil {
			return fmt.Errorf("%w: Not requires a condition", ErrInvalid)
		}
		return Validate(c.Condition)
	}

	if c.Field == "" {
		return fmt.Errorf("%w: %s requires a field", ErrInvalid, c.Type)
	}

	switch c.Type {
	case GreaterThan, LessThan:
		if !orderable(c.Value) {
			return fmt.Errorf("%w: %s on %q needs a number or text operand", ErrInvalid, c.Type, c.Field)
		}
	case InRange:
		cmp, err := value.Compare(c.Min, c.Max)
		if err != nil {
			return fmt.Errorf("%w: InRange on %q: %v", ErrInvalid, c.Field, err)
		}
		if cmp > 0 {
			return fmt.Errorf("%w: InRange on %q has min > max", ErrInvalid, c.Field)
		}
	case Contains:
		if c.Value.IsNull() {
			return fmt.Errorf("%w: Contains on %q needs an operand", ErrInvalid, c.Field)
		}
	}
	return nil
}

func orderable(v value.Value) bool {
	return v.IsNumeric() || v.Kind() == value.KindText
}

// Fields returns the distinct fields c references, in first-appearance order.
func Fields(c *Condition) []string {
	var out []string
	seen := make(map[string]bool)
	Walk(c, func(n *Condition) {
		if n.Field != "" && !seen[n.Field] {
			seen[n.Field] = true
			out = append(out, n.Field)
		}
	})
	return out
}

// Walk visits every node of c depth first, parents before operands.
func Walk(c *Condition, fn func(*Condition)) {
	if c == nil {
		return
	}
	fn(c)
	for _, sub := range c.Conditions {
		Walk(sub, fn)
	}
	Walk(c.Condition, fn)
}

// Rewrite returns a deep copy of c with every field passed through fn.
func Rewrite(c *Condition, fn func(field string) string) *Condition {
	if c == nil {
		return nil
	}
	out := *c
	if out.Field != "" {
		out.Field = fn(out.Field)
	}
	if c.Values != nil {
		out.Values = append([]value.Value(nil), c.Values...)
	}
	if c.Conditions != nil {
		out.Conditions = make([]*Condition, len(c.Conditions))
		for i, sub := range c.Conditions {
			out.Conditions[i] = Rewrite(sub, fn)
		}
	}
	out.Condition = Rewrite(c.Condition, fn)
	return &out
}

// Clone returns a deep copy of c.
func Clone(c *Condition) *Condition {
	return Rewrite(c, func(field string) string { return field })
}
