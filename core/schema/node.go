package schema

import (
	"fmt"
	"time"

	"github.com/artpar/paramkit/core/condition"
	"github.com/artpar/paramkit/core/value"
)

// Kind identifies the variant of a Node. The names are the wire names.
type Kind string

const (
	// Parameter kinds hold a value.
	KindText    Kind = "Text"
	KindNumber  Kind = "Number"
	KindBoolean Kind = "Boolean"
	KindVector  Kind = "Vector"
	KindSelect  Kind = "Select"

	// Container kinds own child nodes.
	KindGroup     Kind = "Group"
	KindPanel     Kind = "Panel"
	KindObject    Kind = "Object"
	KindList      Kind = "List"
	KindMode      Kind = "Mode"
	KindNotice    Kind = "Notice"
	KindRouting   Kind = "Routing"
	KindExpirable Kind = "Expirable"
)

// Known reports whether k is a defined node kind.
func (k Kind) Known() bool {
	switch k {
	case KindText, KindNumber, KindBoolean, KindVector, KindSelect,
		KindGroup, KindPanel, KindObject, KindList, KindMode,
		KindNotice, KindRouting, KindExpirable:
		return true
	}
	return false
}

// Valued reports whether nodes of kind k store a value of their own.
// List stores the array of its elements; Mode stores the selected variant key.
func (k Kind) Valued() bool {
	switch k {
	case KindText, KindNumber, KindBoolean, KindVector, KindSelect, KindList, KindMode:
		return true
	}
	return false
}

// HasChildren reports whether nodes of kind k own an ordered child list.
func (k Kind) HasChildren() bool {
	switch k {
	case KindGroup, KindPanel, KindObject, KindRouting, KindExpirable:
		return true
	}
	return false
}

// SelectMode determines whether a Select binds one option or several.
type SelectMode string

const (
	SelectSingle SelectMode = "single"
	SelectMulti  SelectMode = "multi"
)

// Number subtypes with a type consequence. Other subtypes are descriptive.
const SubtypeInteger = "integer"

// Metadata is purely descriptive.
type Metadata struct {
	Label       string
	Description string
	Placeholder string
	Help        string
	Group       string
	Page        string
	Order       int
	Tags        []string
}

// Constraints bound Number and Vector components for editors.
// They describe the widget range; enforcement belongs to Rules.
type Constraints struct {
	Min  *float64
	Max  *float64
	Step *float64
}

// Option is one selectable value of a Select.
type Option struct {
	Value value.Value
	Label string
}

// Variant is one branch of a Mode. A variant without nodes contributes no fields.
type Variant struct {
	Key    string
	Label  string
	Nodes  []*Node
	Groups []Group
}

// Group is a named, ordered presentation grouping of full paths.
type Group struct {
	Key      string
	Label    string
	Children []string
	Order    int
}

// Node is one unit of the schema tree. Kind selects which of the
// kind-specific fields are meaningful.
type Node struct {
	Kind     Kind
	Key      string
	Metadata Metadata
	Flags    Flags

	// Visibility hides the node while it evaluates false. Fields are paths in
	// the enclosing schema's namespace.
	Visibility *condition.Condition

	// Default seeds the context entry. Nil means Null.
	Default *value.Value

	// Rules run in declared order.
	Rules []Rule

	// Text and Number.
	Subtype     string
	Unit        string
	Constraints *Constraints

	// Vector component count.
	Size int

	// Select.
	Options    []Option
	SelectMode SelectMode

	// Group, Panel, Object, Routing and Expirable.
	Children []*Node

	// List element template.
	Item *Node

	// Mode.
	Variants       []Variant
	DefaultVariant string

	// Routing descriptor, passed through untouched.
	Routing map[string]string

	// Expirable lifetime of descendant values after each write.
	TTL time.Duration
}

// Variant returns the variant named key.
func (n *Node) Variant(key string) (*Variant, bool) {
	for i := range n.Variants {
		if n.Variants[i].Key == key {
			return &n.Variants[i], true
		}
	}
	return nil, false
}

// DefaultValue returns the node's default, or Null. A Mode default in the
// {mode, value} form yields its variant key; see DefaultFields.
func (n *Node) DefaultValue() value.Value {
	if n.Default != nil {
		if n.Kind == KindMode {
			if variant, _, ok := n.Default.AsMode(); ok {
				return value.Text(variant)
			}
		}
		return *n.Default
	}
	if n.Kind == KindMode && n.DefaultVariant != "" {
		return value.Text(n.DefaultVariant)
	}
	return value.Null()
}

// DefaultFields returns the variant field values of a Mode default given in
// the {mode, value} form, keyed by field key. It is nil for every other node.
func (n *Node) DefaultFields() map[string]value.Value {
	if n.Kind != KindMode || n.Default == nil {
		return nil
	}
	_, fields, ok := n.Default.AsMode()
	if !ok {
		return nil
	}
	return fields.Fields()
}

// checkModeFields checks the {mode, value} entries of v against the fields
// of the selected variant, descending into nested modes.
func (n *Node) checkModeFields(v value.Value) error {
	variant, fields, ok := v.AsMode()
	if !ok {
		return nil
	}
	vt, ok := n.Variant(variant)
	if !ok {
		return mismatch(n, "unknown variant %q", variant)
	}
	for _, key := range fields.Keys() {
		var field *Node
		for _, c := range vt.Nodes {
			if c.Key == key && c.Kind.Valued() {
				field = c
				break
			}
		}
		if field == nil {
			return mismatch(n, "variant %q has no field %q", variant, key)
		}
		inner, _ := fields.Field(key)
		if err := field.Check(inner); err != nil {
			return fmt.Errorf("%s.%s: %w", variant, key, err)
		}
		if field.Kind == KindMode {
			if err := field.checkModeFields(inner); err != nil {
				return fmt.Errorf("%s.%s: %w", variant, key, err)
			}
		}
	}
	return nil
}

// Check verifies that v has the shape the node kind expects.
// Null is accepted by every valued kind and clears the value.
func (n *Node) Check(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	if !n.Kind.Valued() {
		return mismatch(n, "%s holds no value", n.Kind)
	}

	switch n.Kind {
	case KindText:
		if v.Kind() != value.KindText {
			return mismatch(n, "expected text, got %s", v.Kind())
		}
	case KindNumber:
		if n.Subtype == SubtypeInteger {
			if v.Kind() != value.KindInt {
				return mismatch(n, "expected integer, got %s", v.Kind())
			}
		} else if !v.IsNumeric() {
			return mismatch(n, "expected number, got %s", v.Kind())
		}
	case KindBoolean:
		if v.Kind() != value.KindBool {
			return mismatch(n, "expected bool, got %s", v.Kind())
		}
	case KindVector:
		if v.Kind() != value.KindArray {
			return mismatch(n, "expected array, got %s", v.Kind())
		}
		if n.Size > 0 && v.Len() != n.Size {
			return mismatch(n, "expected %d components, got %d", n.Size, v.Len())
		}
		for _, c := range v.Items() {
			if !c.IsNumeric() {
				return mismatch(n, "vector component must be numeric, got %s", c.Kind())
			}
		}
	case KindSelect:
		return n.checkSelect(v)
	case KindList:
		if v.Kind() != value.KindArray {
			return mismatch(n, "expected array, got %s", v.Kind())
		}
		if n.Item == nil {
			return nil
		}
		for i, elem := range v.Items() {
			if err := n.Item.checkElement(elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
	case KindMode:
		variant, _, ok := v.AsMode()
		if !ok {
			return mismatch(n, "expected variant key or {mode, value}, got %s", v.Kind())
		}
		if _, ok := n.Variant(variant); !ok {
			return mismatch(n, "unknown variant %q", variant)
		}
	}
	return nil
}

// checkElement checks one List element. Structural templates take an Object
// keyed by child key; Mode templates take the {mode, value} form.
func (n *Node) checkElement(v value.Value) error {
	if v.IsNull() || n.Kind.Valued() {
		return n.Check(v)
	}
	if !n.Kind.HasChildren() {
		return mismatch(n, "%s cannot be a list element", n.Kind)
	}
	if v.Kind() != value.KindObject {
		return mismatch(n, "expected object, got %s", v.Kind())
	}
	known := make(map[string]*Node, len(n.Children))
	for _, c := range n.Children {
		known[c.Key] = c
	}
	for key, field := range v.Fields() {
		child, ok := known[key]
		if !ok {
			return mismatch(n, "unknown field %q", key)
		}
		if err := child.checkElement(field); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func (n *Node) checkSelect(v value.Value) error {
	if n.SelectMode == SelectMulti {
		if v.Kind() != value.KindArray {
			return mismatch(n, "multi select expects array, got %s", v.Kind())
		}
		for _, item := range v.Items() {
			if !n.hasOption(item) {
				return mismatch(n, "%v is not an option", item)
			}
		}
		return nil
	}
	if !n.hasOption(v) {
		return mismatch(n, "%v is not an option", v)
	}
	return nil
}

func (n *Node) hasOption(v value.Value) bool {
	for _, o := range n.Options {
		if value.Equal(o.Value, v) {
			return true
		}
	}
	return false
}

func mismatch(n *Node, format string, args ...any) error {
	return fmt.Errorf("%w: %s %q: %s", value.ErrTypeMismatch, n.Kind, n.Key, fmt.Sprintf(format, args...))
}

// Clone returns a deep copy of n. Custom rule functions are shared.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Metadata.Tags = append([]string(nil), n.Metadata.Tags...)
	out.Visibility = condition.Clone(n.Visibility)
	if n.Default != nil {
		d := *n.Default
		out.Default = &d
	}
	out.Rules = append([]Rule(nil), n.Rules...)
	if n.Constraints != nil {
		c := *n.Constraints
		out.Constraints = &c
	}
	out.Options = append([]Option(nil), n.Options...)
	out.Children = cloneNodes(n.Children)
	out.Item = n.Item.Clone()
	if n.Variants != nil {
		out.Variants = make([]Variant, len(n.Variants))
		for i, v := range n.Variants {
			out.Variants[i] = Variant{
				Key:    v.Key,
				Label:  v.Label,
				Nodes:  cloneNodes(v.Nodes),
				Groups: cloneGroups(v.Groups),
			}
		}
	}
	if n.Routing != nil {
		out.Routing = make(map[string]string, len(n.Routing))
		for k, v := range n.Routing {
			out.Routing[k] = v
		}
	}
	return &out
}

func cloneNodes(nodes []*Node) []*Node {
	if nodes == nil {
		return nil
	}
	out := make([]*Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

func cloneGroups(groups []Group) []Group {
	if groups == nil {
		return nil
	}
	out := make([]Group, len(groups))
	for i, g := range groups {
		out[i] = g
		out[i].Children = append([]string(nil), g.Children...)
	}
	return out
}
