// Package codec maps schemas and context state to their JSON and YAML wire
// forms.
//
// Custom rules hold functions and never reach the wire. Encoding either
// skips them, fails, or writes a named placeholder slot; after decoding, the
// host re-binds them with WithCustomRule.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/go-version"
	"gopkg.in/yaml.v3"

	"github.com/artpar/paramkit/core/schema"
)

// CurrentVersion is the schema document version this package writes.
const CurrentVersion = schema.FormatVersion

var (
	// ErrUnsupportedVersion is returned for a missing, unparseable or out of range document version.
	ErrUnsupportedVersion = errors.New("unsupported schema version")

	// ErrCustomRule is returned when encoding a custom rule under FailOnCustomRules.
	ErrCustomRule = errors.New("custom rule cannot be serialized")

	// ErrUnboundBinding is returned when WithCustomRule names a path the document does not define.
	ErrUnboundBinding = errors.New("custom rule binding has no target")
)

// supported is the range of document versions this package reads.
var supported = version.MustConstraints(version.NewConstraint(">= 1.0, < 2.0"))

// CustomPolicy decides what encoding does with custom rules.
type CustomPolicy int

const (
	// SkipCustom omits custom rules and reports their paths.
	SkipCustom CustomPolicy = iota
	// FailCustom refuses to encode a schema with custom rules.
	FailCustom
	// PlaceholderCustom writes {"type": "Custom", "name": ...} slots.
	PlaceholderCustom
)

type options struct {
	policy   CustomPolicy
	bindings map[string][]schema.Rule
}

// Option configures encoding and decoding.
type Option func(*options)

// SkipCustomRules omits custom rules when encoding. This is the default.
func SkipCustomRules() Option { return func(o *options) { o.policy = SkipCustom } }

// FailOnCustomRules makes encoding fail with ErrCustomRule.
func FailOnCustomRules() Option { return func(o *options) { o.policy = FailCustom } }

// PlaceholderCustomRules encodes custom rules as named, unbound slots.
func PlaceholderCustomRules() Option { return func(o *options) { o.policy = PlaceholderCustom } }

// WithCustomRule binds a custom rule to the node at path while decoding.
// An unbound slot with the same name is filled in place; otherwise the rule
// is appended to the node's rules.
func WithCustomRule(path string, rule schema.Rule) Option {
	return func(o *options) {
		if o.bindings == nil {
			o.bindings = make(map[string][]schema.Rule)
		}
		o.bindings[path] = append(o.bindings[path], rule)
	}
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// EncodeReport lists what encoding left out.
type EncodeReport struct {
	// SkippedCustom holds "path:name" for every custom rule not written.
	SkippedCustom []string
}

// CheckVersion reports whether v is a document version this package reads.
func CheckVersion(v string) error {
	if v == "" {
		return fmt.Errorf("%w: missing version", ErrUnsupportedVersion)
	}
	parsed, err := version.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrUnsupportedVersion, v, err)
	}
	if !supported.Check(parsed) {
		return fmt.Errorf("%w: %s (supported %s)", ErrUnsupportedVersion, v, supported)
	}
	return nil
}

// ToDoc converts s to its wire document.
func ToDoc(s *schema.Schema, opts ...Option) (SchemaDoc, EncodeReport, error) {
	o := newOptions(opts)
	enc := &encoder{opts: o}
	doc := SchemaDoc{
		Version:    s.Version(),
		Parameters: enc.nodes(s.Nodes(), ""),
		Groups:     encodeGroups(s.Groups()),
	}
	if enc.err != nil {
		return SchemaDoc{}, EncodeReport{}, enc.err
	}
	return doc, enc.report, nil
}

// EncodeSchema writes s as JSON.
func EncodeSchema(s *schema.Schema, opts ...Option) ([]byte, EncodeReport, error) {
	doc, report, err := ToDoc(s, opts...)
	if err != nil {
		return nil, report, err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	return data, report, err
}

// EncodeSchemaYAML writes s as YAML.
func EncodeSchemaYAML(s *schema.Schema, opts ...Option) ([]byte, EncodeReport, error) {
	doc, report, err := ToDoc(s, opts...)
	if err != nil {
		return nil, report, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, report, err
	}
	if err := enc.Close(); err != nil {
		return nil, report, err
	}
	return buf.Bytes(), report, nil
}

type encoder struct {
	opts   *options
	report EncodeReport
	err    error
}

func (e *encoder) nodes(nodes []*schema.Node, prefix string) []NodeDoc {
	var out []NodeDoc
	for _, n := range nodes {
		out = append(out, e.node(n, join(prefix, n.Key)))
	}
	return out
}

func (e *encoder) node(n *schema.Node, path string) NodeDoc {
	doc := NodeDoc{
		Kind:           string(n.Kind),
		Key:            n.Key,
		Metadata:       encodeMetadata(n.Metadata),
		Flags:          n.Flags.Names(),
		Subtype:        n.Subtype,
		Unit:           n.Unit,
		Size:           n.Size,
		Mode:           string(n.SelectMode),
		DefaultVariant: n.DefaultVariant,
		ShowWhen:       EncodeCondition(n.Visibility),
		Validation:     e.rules(n.Rules, path),
	}
	if n.Constraints != nil {
		doc.Constraints = &ConstraintsDoc{Min: n.Constraints.Min, Max: n.Constraints.Max, Step: n.Constraints.Step}
	}
	if n.Default != nil && !n.Default.IsNull() {
		doc.Default = valuePtr(*n.Default)
	}
	for _, opt := range n.Options {
		doc.Options = append(doc.Options, OptionDoc{Value: opt.Value, Label: opt.Label})
	}

	if n.Kind == schema.KindObject {
		doc.Properties = make(map[string]NodeDoc, len(n.Children))
		for _, c := range n.Children {
			child := e.node(c, join(path, c.Key))
			child.Key = ""
			doc.Properties[c.Key] = child
		}
	} else {
		doc.Children = e.nodes(n.Children, path)
	}
	if n.Item != nil {
		item := e.node(n.Item, join(path, n.Item.Key))
		doc.Item = &item
	}
	for _, v := range n.Variants {
		vd := VariantDoc{Key: v.Key, Label: v.Label}
		if len(v.Nodes) > 0 || len(v.Groups) > 0 {
			vd.Schema = &SubschemaDoc{
				Parameters: e.nodes(v.Nodes, join(path, v.Key)),
				Groups:     encodeGroups(v.Groups),
			}
		}
		doc.Variants = append(doc.Variants, vd)
	}
	if len(n.Routing) > 0 {
		doc.Routing = make(map[string]string, len(n.Routing))
		for k, v := range n.Routing {
			doc.Routing[k] = v
		}
	}
	if n.TTL > 0 {
		doc.TTL = n.TTL.String()
	}
	return doc
}

func (e *encoder) rules(rules []schema.Rule, path string) []RuleDoc {
	var out []RuleDoc
	for _, r := range rules {
		if r.Type != schema.RuleCustom {
			out = append(out, encodeRule(r))
			continue
		}
		switch e.opts.policy {
		case FailCustom:
			if e.err == nil {
				e.err = fmt.Errorf("%w: %s rule %q", ErrCustomRule, path, r.Name)
			}
		case PlaceholderCustom:
			out = append(out, RuleDoc{Type: string(schema.RuleCustom), Name: r.Name, Message: r.Message})
		default:
			e.report.SkippedCustom = append(e.report.SkippedCustom, path+":"+r.Name)
		}
	}
	return out
}

func encodeRule(r schema.Rule) RuleDoc {
	doc := RuleDoc{Type: string(r.Type), Message: r.Message, Name: r.Name}
	if !r.Value.IsNull() {
		doc.Value = valuePtr(r.Value)
	}
	if !r.Min.IsNull() {
		doc.Min = valuePtr(r.Min)
	}
	if !r.Max.IsNull() {
		doc.Max = valuePtr(r.Max)
	}
	return doc
}

func encodeMetadata(m schema.Metadata) *MetadataDoc {
	doc := MetadataDoc{
		Label:       m.Label,
		Description: m.Description,
		Placeholder: m.Placeholder,
		Help:        m.Help,
		Group:       m.Group,
		Page:        m.Page,
		Order:       m.Order,
		Tags:        append([]string(nil), m.Tags...),
	}
	if doc.Label == "" && doc.Description == "" && doc.Placeholder == "" && doc.Help == "" &&
		doc.Group == "" && doc.Page == "" && doc.Order == 0 && len(doc.Tags) == 0 {
		return nil
	}
	return &doc
}

func encodeGroups(groups []schema.Group) []GroupDoc {
	var out []GroupDoc
	for _, g := range groups {
		out = append(out, GroupDoc{
			Key:      g.Key,
			Label:    g.Label,
			Children: append([]string(nil), g.Children...),
			Order:    g.Order,
		})
	}
	return out
}

// FromDoc builds a schema from its wire document. The version is checked
// first; an unsupported version never yields a schema.
func FromDoc(doc SchemaDoc, opts ...Option) (*schema.Schema, error) {
	if err := CheckVersion(doc.Version); err != nil {
		return nil, err
	}
	o := newOptions(opts)
	dec := &decoder{opts: o, bound: make(map[string]bool)}

	def := schema.Definition{
		Version: doc.Version,
		Nodes:   dec.nodes(doc.Parameters, ""),
		Groups:  decodeGroups(doc.Groups),
	}
	for path := range o.bindings {
		if !dec.bound[path] {
			dec.fail(fmt.Errorf("%w: %s", ErrUnboundBinding, path))
		}
	}
	if len(dec.errs) > 0 {
		return nil, errors.Join(dec.errs...)
	}
	return schema.Build(def)
}

// DecodeSchema reads a JSON schema document. Unknown fields are rejected.
func DecodeSchema(data []byte, opts ...Option) (*schema.Schema, error) {
	var doc SchemaDoc
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return FromDoc(doc, opts...)
}

// ParseYAML reads a YAML schema document. Unknown fields are rejected.
func ParseYAML(data []byte, opts ...Option) (*schema.Schema, error) {
	var doc SchemaDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse schema yaml: %w", err)
	}
	return FromDoc(doc, opts...)
}

type decoder struct {
	opts  *options
	bound map[string]bool
	errs  []error
}

func (d *decoder) fail(err error) { d.errs = append(d.errs, err) }

func (d *decoder) nodes(docs []NodeDoc, prefix string) []*schema.Node {
	var out []*schema.Node
	for i := range docs {
		out = append(out, d.node(&docs[i], join(prefix, docs[i].Key)))
	}
	return out
}

func (d *decoder) node(doc *NodeDoc, path string) *schema.Node {
	n := &schema.Node{
		Kind:           schema.Kind(doc.Kind),
		Key:            doc.Key,
		Subtype:        doc.Subtype,
		Unit:           doc.Unit,
		Size:           doc.Size,
		SelectMode:     schema.SelectMode(doc.Mode),
		DefaultVariant: doc.DefaultVariant,
	}
	if doc.Metadata != nil {
		n.Metadata = schema.Metadata{
			Label:       doc.Metadata.Label,
			Description: doc.Metadata.Description,
			Placeholder: doc.Metadata.Placeholder,
			Help:        doc.Metadata.Help,
			Group:       doc.Metadata.Group,
			Page:        doc.Metadata.Page,
			Order:       doc.Metadata.Order,
			Tags:        append([]string(nil), doc.Metadata.Tags...),
		}
	}

	flags, err := schema.ParseFlags(doc.Flags)
	if err != nil {
		d.fail(fmt.Errorf("%s flags: %w", path, err))
	}
	n.Flags = flags

	if doc.Constraints != nil {
		n.Constraints = &schema.Constraints{Min: doc.Constraints.Min, Max: doc.Constraints.Max, Step: doc.Constraints.Step}
	}
	if doc.Default != nil {
		n.Default = schema.DefaultTo(*doc.Default)
	}
	for _, o := range doc.Options {
		n.Options = append(n.Options, schema.Option{Value: o.Value, Label: o.Label})
	}

	if doc.ShowWhen != nil {
		c, err := DecodeCondition(doc.ShowWhen)
		if err != nil {
			d.fail(conditionError(path, err))
		}
		n.Visibility = c
	}

	for _, r := range doc.Validation {
		n.Rules = append(n.Rules, decodeRule(r))
	}
	d.bind(n, path)

	n.Children = d.nodes(doc.Children, path)
	if len(doc.Properties) > 0 {
		keys := make([]string, 0, len(doc.Properties))
		for k := range doc.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			child := doc.Properties[k]
			if child.Key != "" && child.Key != k {
				d.fail(fmt.Errorf("%s: property %q declares key %q", path, k, child.Key))
			}
			child.Key = k
			n.Children = append(n.Children, d.node(&child, join(path, k)))
		}
	}
	if doc.Item != nil {
		n.Item = d.node(doc.Item, join(path, doc.Item.Key))
	}

	for _, vd := range doc.Variants {
		v := schema.Variant{Key: vd.Key, Label: vd.Label}
		if vd.Schema != nil {
			v.Nodes = d.nodes(vd.Schema.Parameters, join(path, vd.Key))
			v.Groups = decodeGroups(vd.Schema.Groups)
		}
		n.Variants = append(n.Variants, v)
	}

	if len(doc.Routing) > 0 {
		n.Routing = make(map[string]string, len(doc.Routing))
		for k, v := range doc.Routing {
			n.Routing[k] = v
		}
	}
	if doc.TTL != "" {
		ttl, err := time.ParseDuration(doc.TTL)
		if err != nil {
			d.fail(fmt.Errorf("%s ttl: %w", path, err))
		}
		n.TTL = ttl
	}
	return n
}

// bind attaches host custom rules registered for path.
func (d *decoder) bind(n *schema.Node, path string) {
	rules, ok := d.opts.bindings[path]
	if !ok {
		return
	}
	d.bound[path] = true
	for _, r := range rules {
		filled := false
		for i := range n.Rules {
			slot := &n.Rules[i]
			if slot.Type == schema.RuleCustom && slot.Custom == nil && slot.Name == r.Name {
				msg := slot.Message
				*slot = r
				if slot.Message == "" {
					slot.Message = msg
				}
				filled = true
				break
			}
		}
		if !filled {
			n.Rules = append(n.Rules, r)
		}
	}
}

func decodeRule(doc RuleDoc) schema.Rule {
	return schema.Rule{
		Type:    schema.RuleType(doc.Type),
		Value:   deref(doc.Value),
		Min:     deref(doc.Min),
		Max:     deref(doc.Max),
		Message: doc.Message,
		Name:    doc.Name,
	}
}

func decodeGroups(docs []GroupDoc) []schema.Group {
	var out []schema.Group
	for _, g := range docs {
		out = append(out, schema.Group{
			Key:      g.Key,
			Label:    g.Label,
			Children: append([]string(nil), g.Children...),
			Order:    g.Order,
		})
	}
	return out
}

func join(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
