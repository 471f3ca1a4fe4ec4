// Package schema provides the immutable parameter schema: flags, nodes,
// validation rule descriptors and the validated, path-indexed Schema.
//
// A Schema is built once from a Definition and is safe to share read-only
// across any number of contexts and goroutines.
package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/artpar/paramkit/core/condition"
	"github.com/artpar/paramkit/core/value"
)

// FormatVersion is the schema format version written by this package and
// assumed when a Definition leaves Version empty.
const FormatVersion = "1.0"

var (
	ErrDuplicatePath   = errors.New("duplicate path")
	ErrUnknownVariant  = errors.New("unknown variant")
	ErrUnresolvedField = errors.New("unresolved condition field")
	ErrInvalidNode     = errors.New("invalid node")
	ErrInvalidGroup    = errors.New("invalid group")
	ErrUnknownPath     = errors.New("unknown path")
)

// BuildError aggregates every problem found while building a schema.
// errors.Is matches each underlying sentinel.
type BuildError struct {
	errs *multierror.Error
}

func (e *BuildError) Error() string {
	return "schema: " + e.errs.Error()
}

// Unwrap exposes the accumulated errors to errors.Is and errors.As.
func (e *BuildError) Unwrap() error { return e.errs.Unwrap() }

// Errors returns the individual problems in discovery order.
func (e *BuildError) Errors() []error { return append([]error(nil), e.errs.Errors...) }

// Definition is the unvalidated input to Build.
type Definition struct {
	Version string
	Nodes   []*Node
	Groups  []Group
}

// Selector records that an entry belongs to one variant of a Mode.
type Selector struct {
	Mode    string
	Variant string
}

// Entry is the indexed view of one node at its full path.
type Entry struct {
	Path   string
	Parent string
	Node   *Node

	// Condition is the node's visibility with fields resolved to full paths.
	Condition *condition.Condition

	// Refs are the distinct full paths Condition references.
	Refs []string

	// Selectors lists every enclosing Mode variant, outermost first.
	Selectors []Selector

	// Expirable is the path of the nearest enclosing Expirable, if any.
	Expirable string
}

// Schema is an immutable, validated collection of root nodes plus groups.
type Schema struct {
	version    string
	nodes      []*Node
	groups     []Group
	entries    map[string]*Entry
	order      []string
	dependents map[string][]string
	members    map[string]map[string][]string
	lists      []string
}

// New builds a schema from root nodes at FormatVersion.
func New(nodes ...*Node) (*Schema, error) {
	return Build(Definition{Version: FormatVersion, Nodes: nodes})
}

// Build validates def and indexes it by full path. The definition is deep
// copied; later changes to it do not affect the schema. On failure no schema
// is returned and the error is a *BuildError listing every problem.
func Build(def Definition) (*Schema, error) {
	version := def.Version
	if version == "" {
		version = FormatVersion
	}

	b := &builder{
		s: &Schema{
			version:    version,
			nodes:      cloneNodes(def.Nodes),
			groups:     cloneGroups(def.Groups),
			entries:    make(map[string]*Entry),
			dependents: make(map[string][]string),
			members:    make(map[string]map[string][]string),
		},
	}

	b.walk(b.s.nodes, walkState{})
	sort.Strings(b.s.lists)
	b.resolveConditions()
	b.checkGroups(b.s.groups, nil, "")
	b.index()

	if b.errs != nil {
		return nil, &BuildError{errs: b.errs}
	}
	return b.s, nil
}

// MustBuild is Build for schemas known to be valid; it panics otherwise.
func MustBuild(def Definition) *Schema {
	s, err := Build(def)
	if err != nil {
		panic(err)
	}
	return s
}

type walkState struct {
	prefix    string
	parent    string
	selectors []Selector
	scopes    []string
	expirable string
	template  bool
}

type pending struct {
	entry  *Entry
	scopes []string
}

type builder struct {
	s       *Schema
	errs    *multierror.Error
	pending []pending
}

func (b *builder) fail(err error) {
	b.errs = multierror.Append(b.errs, err)
}

func (b *builder) walk(nodes []*Node, st walkState) {
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n == nil {
			b.fail(fmt.Errorf("%w: nil node under %q", ErrInvalidNode, st.prefix))
			continue
		}
		if !isValidKey(n.Key) {
			b.fail(fmt.Errorf("%w: invalid key %q under %q", ErrInvalidNode, n.Key, st.prefix))
			continue
		}
		path := joinPath(st.prefix, n.Key)

		if st.template {
			if seen[n.Key] {
				b.fail(fmt.Errorf("%w: %s", ErrDuplicatePath, path))
				continue
			}
		} else if _, dup := b.s.entries[path]; dup {
			b.fail(fmt.Errorf("%w: %s", ErrDuplicatePath, path))
			continue
		}
		seen[n.Key] = true

		b.checkNode(path, n)

		if !st.template {
			e := &Entry{
				Path:      path,
				Parent:    st.parent,
				Node:      n,
				Selectors: st.selectors,
				Expirable: st.expirable,
			}
			b.s.entries[path] = e
			b.s.order = append(b.s.order, path)
			if n.Visibility != nil {
				b.pending = append(b.pending, pending{entry: e, scopes: st.scopes})
			}
		}

		child := st
		child.prefix = path
		child.parent = path

		switch n.Kind {
		case KindObject:
			sort.SliceStable(n.Children, func(i, j int) bool {
				return keyOf(n.Children[i]) < keyOf(n.Children[j])
			})
		case KindExpirable:
			child.expirable = path
		case KindList:
			if !st.template {
				b.s.lists = append(b.s.lists, path)
			}
			if n.Item != nil {
				tmpl := child
				tmpl.template = true
				b.walk([]*Node{n.Item}, tmpl)
			}
		case KindMode:
			b.walkVariants(path, n, child)
		}

		if n.Kind.HasChildren() {
			b.walk(n.Children, child)
		}
	}
}

func (b *builder) walkVariants(path string, n *Node, st walkState) {
	seen := make(map[string]bool, len(n.Variants))
	for _, v := range n.Variants {
		if !isValidKey(v.Key) {
			b.fail(fmt.Errorf("%w: mode %s has invalid variant key %q", ErrInvalidNode, path, v.Key))
			continue
		}
		if seen[v.Key] {
			b.fail(fmt.Errorf("%w: %s.%s", ErrDuplicatePath, path, v.Key))
			continue
		}
		seen[v.Key] = true

		scope := joinPath(path, v.Key)
		vs := st
		vs.prefix = scope
		vs.parent = path
		vs.selectors = appendCopy(st.selectors, Selector{Mode: path, Variant: v.Key})
		vs.scopes = appendCopy(st.scopes, scope)
		b.walk(v.Nodes, vs)

		if !st.template {
			b.checkGroups(v.Groups, vs.scopes, scope)
		}
	}
	if n.DefaultVariant != "" && !seen[n.DefaultVariant] {
		b.fail(fmt.Errorf("%w: mode %s default variant %q", ErrUnknownVariant, path, n.DefaultVariant))
	}
}

func (b *builder) checkNode(path string, n *Node) {
	if !n.Kind.Known() {
		b.fail(fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidNode, path, n.Kind))
		return
	}
	if len(n.Rules) > 0 && !n.Kind.Valued() {
		b.fail(fmt.Errorf("%w: %s: %s nodes take no validation rules", ErrInvalidNode, path, n.Kind))
	}
	for i, r := range n.Rules {
		if err := r.validate(); err != nil {
			b.fail(fmt.Errorf("%w: %s rule %d: %v", ErrInvalidNode, path, i, err))
		}
	}
	if n.Default != nil {
		err := n.Check(*n.Default)
		if err == nil && n.Kind == KindMode {
			err = n.checkModeFields(*n.Default)
		}
		if err != nil {
			b.fail(fmt.Errorf("%w: %s default: %v", ErrInvalidNode, path, err))
		}
	}
	if n.Visibility != nil {
		if err := condition.Validate(n.Visibility); err != nil {
			b.fail(fmt.Errorf("%w: %s visibility: %v", ErrInvalidNode, path, err))
		}
	}
	switch n.Kind {
	case KindVector:
		if n.Size < 0 {
			b.fail(fmt.Errorf("%w: %s has negative size", ErrInvalidNode, path))
		}
	case KindSelect:
		if n.SelectMode != "" && n.SelectMode != SelectSingle && n.SelectMode != SelectMulti {
			b.fail(fmt.Errorf("%w: %s has unknown select mode %q", ErrInvalidNode, path, n.SelectMode))
		}
	case KindList:
		if n.Item == nil {
			b.fail(fmt.Errorf("%w: list %s has no item template", ErrInvalidNode, path))
		}
	case KindExpirable:
		if n.TTL <= 0 {
			b.fail(fmt.Errorf("%w: expirable %s needs a positive ttl", ErrInvalidNode, path))
		}
	}
}

// resolveConditions rewrites condition fields to full paths, trying each
// enclosing variant scope innermost first, then the root namespace.
func (b *builder) resolveConditions() {
	for _, p := range b.pending {
		var unresolved []string
		cond := condition.Rewrite(p.entry.Node.Visibility, func(field string) string {
			if full, ok := b.resolve(field, p.scopes); ok {
				return full
			}
			unresolved = append(unresolved, field)
			return field
		})
		for _, f := range unresolved {
			b.fail(fmt.Errorf("%w: %s references %q", ErrUnresolvedField, p.entry.Path, f))
		}
		p.entry.Condition = cond
		p.entry.Refs = condition.Fields(cond)
	}
}

func (b *builder) resolve(field string, scopes []string) (string, bool) {
	for i := len(scopes) - 1; i >= 0; i-- {
		candidate := joinPath(scopes[i], field)
		if b.known(candidate) {
			return candidate, true
		}
	}
	if b.known(field) {
		return field, true
	}
	return "", false
}

// known reports whether path is indexed or addresses inside a list element.
func (b *builder) known(path string) bool {
	if _, ok := b.s.entries[path]; ok {
		return true
	}
	_, ok := b.s.listOf(path)
	return ok
}

func (b *builder) checkGroups(groups []Group, scopes []string, where string) {
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g.Key == "" {
			b.fail(fmt.Errorf("%w: empty key in %q", ErrInvalidGroup, where))
			continue
		}
		if seen[g.Key] {
			b.fail(fmt.Errorf("%w: duplicate group %q in %q", ErrInvalidGroup, g.Key, where))
			continue
		}
		seen[g.Key] = true
		for _, child := range g.Children {
			if _, ok := b.resolve(child, scopes); !ok {
				b.fail(fmt.Errorf("%w: group %q lists %q", ErrUnknownPath, g.Key, child))
			}
		}
	}
}

func (b *builder) index() {
	for _, path := range b.s.order {
		e := b.s.entries[path]
		for _, ref := range e.Refs {
			owner := ref
			if _, ok := b.s.entries[ref]; !ok {
				owner, _ = b.s.listOf(ref)
			}
			if owner != "" {
				b.s.dependents[owner] = appendUnique(b.s.dependents[owner], path)
			}
		}
		for _, sel := range e.Selectors {
			if b.s.members[sel.Mode] == nil {
				b.s.members[sel.Mode] = make(map[string][]string)
			}
			b.s.members[sel.Mode][sel.Variant] = append(b.s.members[sel.Mode][sel.Variant], path)
		}
	}
}

// Version returns the schema format version.
func (s *Schema) Version() string { return s.version }

// Nodes returns a copy of the root nodes.
func (s *Schema) Nodes() []*Node { return cloneNodes(s.nodes) }

// Groups returns a copy of the root group registry.
func (s *Schema) Groups() []Group { return cloneGroups(s.groups) }

// Paths returns every indexed full path in depth-first declaration order.
func (s *Schema) Paths() []string { return append([]string(nil), s.order...) }

// Len returns the number of indexed paths.
func (s *Schema) Len() int { return len(s.order) }

// Lookup returns the entry at path. The entry is shared and must not be modified.
func (s *Schema) Lookup(path string) (*Entry, bool) {
	e, ok := s.entries[path]
	return e, ok
}

// Node returns the node at path.
func (s *Schema) Node(path string) (*Node, error) {
	e, ok := s.entries[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	return e.Node, nil
}

// Dependents returns the paths whose visibility condition references path
// directly. Writes to a list also reach conditions on its element paths.
func (s *Schema) Dependents(path string) []string {
	return s.dependents[path]
}

// ModeMembers returns the descendant paths of each variant of the Mode at path.
func (s *Schema) ModeMembers(path string) map[string][]string {
	return s.members[path]
}

// Children returns the direct child paths of path in declaration order,
// including variant descendants of a Mode.
func (s *Schema) Children(path string) []string {
	var out []string
	for _, p := range s.order {
		if s.entries[p].Parent == path {
			out = append(out, p)
		}
	}
	return out
}

// ListOf reports the innermost list path that owns a dynamic element path
// such as "servers.0.host".
func (s *Schema) ListOf(path string) (list string, ok bool) {
	return s.listOf(path)
}

func (s *Schema) listOf(path string) (string, bool) {
	best := ""
	for _, l := range s.lists {
		if strings.HasPrefix(path, l+".") && len(l) > len(best) {
			best = l
		}
	}
	return best, best != ""
}

// Walk visits every entry in declaration order until fn returns false.
func (s *Schema) Walk(fn func(*Entry) bool) {
	for _, p := range s.order {
		if !fn(s.entries[p]) {
			return
		}
	}
}

// DefaultTo returns a pointer to v for use as a node default.
func DefaultTo(v value.Value) *value.Value { return &v }

func keyOf(n *Node) string {
	if n == nil {
		return ""
	}
	return n.Key
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

// isValidKey accepts identifiers: a letter or underscore followed by
// letters, digits, underscores or hyphens. Digits-first keys would collide
// with list element indexes.
func isValidKey(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case (c >= '0' && c <= '9') || c == '-':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func appendCopy[T any](s []T, v T) []T {
	out := make([]T, len(s), len(s)+1)
	copy(out, s)
	return append(out, v)
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}
