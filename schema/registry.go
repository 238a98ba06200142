package schema

import (
	"sync"

	"github.com/go-openapi/inflect"
)

// Registry holds the registered entity type descriptors. Registration is
// explicit and happens once per type; after that, descriptors are looked
// up by name or passed around directly.
type Registry struct {
	mu         sync.RWMutex
	types      map[string]*Type
	fallbackID string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithFallbackIdentifier restores the legacy behavior of falling back to
// the given literal column name when a hierarchy declares no primary
// identifier. Without this option, a missing primary identifier is a
// registration error.
func WithFallbackIdentifier(name string) RegistryOption {
	return func(r *Registry) { r.fallbackID = name }
}

// NewRegistry returns an empty Registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{types: make(map[string]*Type)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register validates and registers the given types. Parents must be
// reachable through the Parent references; they do not need to be
// registered first. Table names left empty are derived from the type
// name (pluralized snake case).
func (r *Registry) Register(types ...*Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range types {
		if err := r.register(t); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is like Register but panics on error. Intended for
// package-level schema declarations.
func (r *Registry) MustRegister(types ...*Type) {
	if err := r.Register(types...); err != nil {
		panic(err)
	}
}

func (r *Registry) register(t *Type) error {
	if t.Name == "" {
		return NewSchemaError("?", "type has no name")
	}
	if _, ok := r.types[t.Name]; ok {
		return NewSchemaError(t.Name, "type already registered")
	}
	if !t.Embedded && t.Table == "" {
		t.Table = TableFor(t.Name)
	}
	if t.Embedded && t.Table != "" {
		return NewSchemaError(t.Name, "embedded type cannot declare a table")
	}
	if t.SubTable && t.Parent == nil {
		return NewSchemaError(t.Name, "sub-table type has no parent")
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if c.Name == "" {
			return NewSchemaError(t.Name, "column has no name")
		}
		if _, ok := seen[c.Name]; ok {
			return NewSchemaError(t.Name, "duplicate column %q", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	t.fallbackID = r.fallbackID
	if !t.Embedded {
		if _, err := t.PrimaryIdentifier(); err != nil {
			return err
		}
	}
	r.types[t.Name] = t
	return nil
}

// Lookup returns the registered type with the given name.
func (r *Registry) Lookup(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Bind attaches an entity factory to a registered type. Types loaded from
// declarations (e.g. YAML) have no factory until one is bound; fetching
// such a type fails with a SchemaError.
func (r *Registry) Bind(name string, newFn func() Entity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.types[name]
	if !ok {
		return NewSchemaError(name, "type not registered")
	}
	t.New = newFn
	return nil
}

// TableFor derives the default table name for an entity type name:
// pluralized snake case, e.g. "CoursePrerequisite" -> "course_prerequisites".
func TableFor(name string) string {
	return inflect.Underscore(inflect.Pluralize(name))
}
