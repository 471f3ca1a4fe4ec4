package codec

import (
	"fmt"

	"github.com/artpar/paramkit/core/condition"
	"github.com/artpar/paramkit/core/value"
)

// EncodeCondition converts a condition tree to its wire form. Nil yields nil.
func EncodeCondition(c *condition.Condition) *ConditionDoc {
	if c == nil {
		return nil
	}
	doc := &ConditionDoc{Type: string(c.Type), Field: c.Field}
	switch c.Type {
	case condition.Equals, condition.NotEquals, condition.GreaterThan,
		condition.LessThan, condition.Contains:
		doc.Value = valuePtr(c.Value)
	case condition.InRange:
		doc.Min = valuePtr(c.Min)
		doc.Max = valuePtr(c.Max)
	case condition.OneOf:
		doc.Values = append([]value.Value(nil), c.Values...)
	case condition.And, condition.Or:
		for _, sub := range c.Conditions {
			if d := EncodeCondition(sub); d != nil {
				doc.Conditions = append(doc.Conditions, *d)
			}
		}
	case condition.Not:
		doc.Condition = EncodeCondition(c.Condition)
	}
	return doc
}

// DecodeCondition converts a wire condition back to a tree and validates it.
func DecodeCondition(doc *ConditionDoc) (*condition.Condition, error) {
	if doc == nil {
		return nil, nil
	}
	c := decodeCondition(doc)
	if err := condition.Validate(c); err != nil {
		return nil, err
	}
	return c, nil
}

func decodeCondition(doc *ConditionDoc) *condition.Condition {
	c := &condition.Condition{
		Type:   condition.Type(doc.Type),
		Field:  doc.Field,
		Value:  deref(doc.Value),
		Min:    deref(doc.Min),
		Max:    deref(doc.Max),
		Values: append([]value.Value(nil), doc.Values...),
	}
	for i := range doc.Conditions {
		c.Conditions = append(c.Conditions, decodeCondition(&doc.Conditions[i]))
	}
	if doc.Condition != nil {
		c.Condition = decodeCondition(doc.Condition)
	}
	return c
}

func valuePtr(v value.Value) *value.Value { return &v }

func deref(v *value.Value) value.Value {
	if v == nil {
		return value.Null()
	}
	return *v
}

func conditionError(path string, err error) error {
	return fmt.Errorf("%s show_when: %w", path, err)
}
