// Package tool holds tool definitions, the qualified-name scheme, and the
// per-backend declaration views.
package tool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// ErrInvalidInput is returned when tool input fails schema validation.
var ErrInvalidInput = errors.New("invalid tool input")

type entry struct {
	def       Definition
	validator *jsonschema.Resolved // nil when the schema could not be compiled
}

// Registry maps qualified names to definitions. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]entry)}
}

// Register inserts or replaces a definition by qualified name.
func (r *Registry) Register(def Definition) {
	def.InputSchema = copyMap(def.InputSchema)
	e := entry{def: def}
	if def.IsLocal() {
		e.validator, _ = compileSchema(def.InputSchema)
	}

	r.mu.Lock()
	r.tools[def.QualifiedName()] = e
	r.mu.Unlock()
}

// RegisterMany registers each definition in order.
func (r *Registry) RegisterMany(defs ...Definition) {
	for _, def := range defs {
		r.Register(def)
	}
}

// UnregisterServer removes every definition in the namespace and reports
// how many were removed.
func (r *Registry) UnregisterServer(server string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for name, e := range r.tools {
		if e.def.Server == server {
			delete(r.tools, name)
			removed++
		}
	}
	return removed
}

// Resolve looks up a definition by exact qualified name.
func (r *Registry) Resolve(qualified string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tools[qualified]
	return e.def, ok
}

// All returns a snapshot of every definition sorted by qualified name.
func (r *Registry) All() []Definition {
	return r.collect(func(Definition) bool { return true })
}

// ForServer returns a snapshot of the definitions in one namespace.
func (r *Registry) ForServer(server string) []Definition {
	return r.collect(func(d Definition) bool { return d.Server == server })
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Validate checks input against the tool's compiled schema. Tools without
// a compiled schema accept any input.
func (r *Registry) Validate(qualified string, input map[string]any) error {
	r.mu.RLock()
	e, ok := r.tools[qualified]
	r.mu.RUnlock()
	if !ok || e.validator == nil {
		return nil
	}
	if input == nil {
		input = map[string]any{}
	}
	if err := e.validator.Validate(input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Summary returns the listing entries for every definition.
func (r *Registry) Summary() []Summary {
	defs := r.All()
	out := make([]Summary, 0, len(defs))
	for _, d := range defs {
		out = append(out, Summary{
			Server:        d.Server,
			Name:          d.Name,
			QualifiedName: d.QualifiedName(),
			Description:   d.Description,
		})
	}
	return out
}

// Declarations renders every definition as a backend-neutral declaration.
// Schemas are deep copies.
func (r *Registry) Declarations() []Declaration {
	defs := r.All()
	out := make([]Declaration, 0, len(defs))
	for _, d := range defs {
		out = append(out, Declaration{
			Name:        d.QualifiedName(),
			Description: d.Description,
			InputSchema: copyMap(d.InputSchema),
		})
	}
	return out
}

func (r *Registry) collect(keep func(Definition) bool) []Definition {
	r.mu.RLock()
	out := make([]Definition, 0, len(r.tools))
	for _, e := range r.tools {
		if keep(e.def) {
			out = append(out, e.def)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].QualifiedName() < out[j].QualifiedName()
	})
	return out
}
