package codec

import "github.com/artpar/paramkit/core/value"

// SchemaDoc is the wire form of a schema.
type SchemaDoc struct {
	Version    string     `json:"version" yaml:"version"`
	Parameters []NodeDoc  `json:"parameters" yaml:"parameters"`
	Groups     []GroupDoc `json:"groups,omitempty" yaml:"groups,omitempty"`
}

// NodeDoc is the wire form of a node. Fields at their zero value are omitted.
type NodeDoc struct {
	Kind     string       `json:"kind" yaml:"kind"`
	Key      string       `json:"key,omitempty" yaml:"key,omitempty"`
	Metadata *MetadataDoc `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Flags    []string     `json:"flags,omitempty" yaml:"flags,omitempty"`

	Constraints *ConstraintsDoc `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Subtype     string          `json:"subtype,omitempty" yaml:"subtype,omitempty"`
	Unit        string          `json:"unit,omitempty" yaml:"unit,omitempty"`
	Default     *value.Value    `json:"default,omitempty" yaml:"default,omitempty"`
	Size        int             `json:"size,omitempty" yaml:"size,omitempty"`

	Options []OptionDoc `json:"options,omitempty" yaml:"options,omitempty"`
	Mode    string      `json:"mode,omitempty" yaml:"mode,omitempty"`

	Children   []NodeDoc          `json:"children,omitempty" yaml:"children,omitempty"`
	Properties map[string]NodeDoc `json:"properties,omitempty" yaml:"properties,omitempty"`
	Item       *NodeDoc           `json:"item,omitempty" yaml:"item,omitempty"`

	Variants       []VariantDoc `json:"variants,omitempty" yaml:"variants,omitempty"`
	DefaultVariant string       `json:"default_variant,omitempty" yaml:"default_variant,omitempty"`

	Routing map[string]string `json:"routing,omitempty" yaml:"routing,omitempty"`
	TTL     string            `json:"ttl,omitempty" yaml:"ttl,omitempty"`

	ShowWhen   *ConditionDoc `json:"show_when,omitempty" yaml:"show_when,omitempty"`
	Validation []RuleDoc     `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// MetadataDoc is the descriptive part of a node.
type MetadataDoc struct {
	Label       string   `json:"label,omitempty" yaml:"label,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Placeholder string   `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Help        string   `json:"help,omitempty" yaml:"help,omitempty"`
	Group       string   `json:"group,omitempty" yaml:"group,omitempty"`
	Page        string   `json:"page,omitempty" yaml:"page,omitempty"`
	Order       int      `json:"order,omitempty" yaml:"order,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

type ConstraintsDoc struct {
	Min  *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Step *float64 `json:"step,omitempty" yaml:"step,omitempty"`
}

type OptionDoc struct {
	Value value.Value `json:"value" yaml:"value"`
	Label string      `json:"label,omitempty" yaml:"label,omitempty"`
}

// VariantDoc is one Mode branch. Schema is absent for a variant without fields.
type VariantDoc struct {
	Key    string        `json:"key" yaml:"key"`
	Label  string        `json:"label,omitempty" yaml:"label,omitempty"`
	Schema *SubschemaDoc `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// SubschemaDoc is the versionless schema owned by a Mode variant.
type SubschemaDoc struct {
	Parameters []NodeDoc  `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Groups     []GroupDoc `json:"groups,omitempty" yaml:"groups,omitempty"`
}

type GroupDoc struct {
	Key      string   `json:"key" yaml:"key"`
	Label    string   `json:"label,omitempty" yaml:"label,omitempty"`
	Children []string `json:"children,omitempty" yaml:"children,omitempty"`
	Order    int      `json:"order,omitempty" yaml:"order,omitempty"`
}

// ConditionDoc is the wire form of a condition. Combinators nest
// Conditions (And, Or) or Condition (Not).
type ConditionDoc struct {
	Type       string         `json:"type" yaml:"type"`
	Field      string         `json:"field,omitempty" yaml:"field,omitempty"`
	Value      *value.Value   `json:"value,omitempty" yaml:"value,omitempty"`
	Min        *value.Value   `json:"min,omitempty" yaml:"min,omitempty"`
	Max        *value.Value   `json:"max,omitempty" yaml:"max,omitempty"`
	Values     []value.Value  `json:"values,omitempty" yaml:"values,omitempty"`
	Conditions []ConditionDoc `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Condition  *ConditionDoc  `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// RuleDoc is the wire form of a built-in rule, or of an unbound custom
// rule slot identified by Name.
type RuleDoc struct {
	Type    string       `json:"type" yaml:"type"`
	Value   *value.Value `json:"value,omitempty" yaml:"value,omitempty"`
	Min     *value.Value `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *value.Value `json:"max,omitempty" yaml:"max,omitempty"`
	Message string       `json:"message,omitempty" yaml:"message,omitempty"`
	Name    string       `json:"name,omitempty" yaml:"name,omitempty"`
}
