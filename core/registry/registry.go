// Package registry holds named schemas shared read-only across contexts.
// Schemas are immutable, so a registered schema can be handed to any number
// of concurrent contexts; reloading swaps entries without touching contexts
// already bound to the previous schema.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/paramkit/core/codec"
	"github.com/artpar/paramkit/core/schema"
	"github.com/artpar/paramkit/ports"
)

// ErrNotFound is returned for a name that is not registered.
var ErrNotFound = errors.New("schema not registered")

// Entry is one registered schema.
type Entry struct {
	Name     string
	Schema   *schema.Schema
	Source   string
	LoadedAt time.Time
}

// Registry manages registered schemas by name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	logger  zerolog.Logger
	clock   ports.Clock
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock sets the clock used for Entry.LoadedAt.
func WithClock(c ports.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// New creates an empty registry.
func New(logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]Entry),
		logger:  logger,
		clock:   ports.SystemClock{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a schema under name. It fails if the name is taken.
func (r *Registry) Register(name string, s *schema.Schema) error {
	if name == "" || s == nil {
		return fmt.Errorf("register: name and schema are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return &ConflictError{Names: []string{name}}
	}
	r.entries[name] = Entry{Name: name, Schema: s, LoadedAt: r.clock.Now()}
	return nil
}

// Replace registers s under name, replacing any previous schema.
func (r *Registry) Replace(name string, s *schema.Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = Entry{Name: name, Schema: s, LoadedAt: r.clock.Now()}
}

// Unregister removes a schema.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; !exists {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(r.entries, name)
	return nil
}

// Get returns the schema registered under name.
func (r *Registry) Get(name string) (*schema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e.Schema, ok
}

// Entry returns the registration record for name.
func (r *Registry) Entry(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e, ok
}

// List returns every entry sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the registered names, sorted.
func (r *Registry) Names() []string {
	entries := r.List()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Len returns the number of registered schemas.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// LoadDir parses every schema file in dir and registers it under its file
// name. Names already registered are reported as a ConflictError; other
// files still load. Parse failures are returned alongside.
func (r *Registry) LoadDir(dir string, opts ...codec.Option) (int, error) {
	loaded, parseErr := codec.ParseDir(dir, opts...)

	r.mu.Lock()
	defer r.mu.Unlock()

	var conflicts []string
	names := sortedNames(loaded)
	for _, name := range names {
		if _, exists := r.entries[name]; exists {
			conflicts = append(conflicts, name)
			continue
		}
		r.entries[name] = Entry{Name: name, Schema: loaded[name], Source: dir, LoadedAt: r.clock.Now()}
	}

	count := len(names) - len(conflicts)
	r.logger.Info().Str("dir", dir).Int("loaded", count).Msg("schemas loaded")

	var errs []error
	if parseErr != nil {
		errs = append(errs, parseErr)
	}
	if len(conflicts) > 0 {
		errs = append(errs, &ConflictError{Names: conflicts})
	}
	return count, errors.Join(errs...)
}

// Reload replaces the entries previously loaded from dir with the current
// contents of dir. If dir cannot be read or any file fails to parse,
// nothing changes.
func (r *Registry) Reload(dir string, opts ...codec.Option) (int, error) {
	loaded, err := codec.ParseDir(dir, opts...)
	if err != nil {
		r.logger.Warn().Err(err).Str("dir", dir).Msg("schema reload failed, keeping previous schemas")
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name, e := range r.entries {
		if e.Source == dir {
			delete(r.entries, name)
		}
	}
	var conflicts []string
	for _, name := range sortedNames(loaded) {
		if _, exists := r.entries[name]; exists {
			conflicts = append(conflicts, name)
			continue
		}
		r.entries[name] = Entry{Name: name, Schema: loaded[name], Source: dir, LoadedAt: r.clock.Now()}
	}
	r.logger.Info().Str("dir", dir).Int("loaded", len(loaded)-len(conflicts)).Msg("schemas reloaded")

	if len(conflicts) > 0 {
		return len(loaded) - len(conflicts), &ConflictError{Names: conflicts}
	}
	return len(loaded), nil
}

// DropSource unregisters every entry loaded from dir and returns how many
// were removed.
func (r *Registry) DropSource(dir string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for name, e := range r.entries {
		if e.Source == dir {
			delete(r.entries, name)
			n++
		}
	}
	if n > 0 {
		r.logger.Info().Str("dir", dir).Int("dropped", n).Msg("schemas dropped")
	}
	return n
}

func sortedNames(m map[string]*schema.Schema) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConflictError represents one or more names registered twice.
type ConflictError struct {
	Names []string
}

// Error returns the conflict error message.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("schema names already registered: %s", strings.Join(e.Names, ", "))
}

// HasConflicts returns true if there are any conflicts.
func (e *ConflictError) HasConflicts() bool {
	return len(e.Names) > 0
}
