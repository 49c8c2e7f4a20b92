// Package registry holds named record shapes and the functions derived from
// them. Shapes come from Go code through Register or from parsed definition
// files through Load; derived mappers, equality and hash functions are built
// on first use and cached until the shape set is replaced.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/core/runtime"
	"github.com/artpar/shapekit/core/shape"
)

// ErrNotFound is returned when a shape name is not registered.
var ErrNotFound = errors.New("shape not found")

// Registry manages named record shapes.
type Registry struct {
	mu sync.RWMutex

	// shapes by name
	shapes map[string]shape.Record

	// definitions the shapes were resolved from, when loaded from files
	defs map[string]shape.Definition

	// derived functions by name, filled lazily
	derived map[string]*derived

	codecOpts []jsoncodec.Option
}

type derived struct {
	mapper  jsoncodec.Mapper
	storage jsoncodec.Mapper
	equals  runtime.EqualsFunc
	hash    runtime.HashFunc
}

// New creates an empty registry. Codec options apply to every mapper the
// registry derives.
func New(opts ...jsoncodec.Option) *Registry {
	return &Registry{
		shapes:    make(map[string]shape.Record),
		defs:      make(map[string]shape.Definition),
		derived:   make(map[string]*derived),
		codecOpts: opts,
	}
}

// SetCodecOptions replaces the codec options and drops cached mappers.
func (r *Registry) SetCodecOptions(opts ...jsoncodec.Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecOpts = opts
	r.derived = make(map[string]*derived)
}

// Register adds a record shape built in Go.
func (r *Registry) Register(rec shape.Record) error {
	if rec.Name() == "" {
		return fmt.Errorf("cannot register anonymous record")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.shapes[rec.Name()]; exists {
		return fmt.Errorf("shape %q already registered", rec.Name())
	}
	r.shapes[rec.Name()] = rec
	return nil
}

// Load resolves defs and adds the resulting shapes. Definitions may refer
// to each other and to shapes already registered. Either every definition
// is added or none is.
func (r *Registry) Load(defs []shape.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, def := range defs {
		if _, exists := r.shapes[def.Name]; exists {
			return fmt.Errorf("shape %q already registered", def.Name)
		}
	}

	resolved, err := Resolve(defs, r.shapes)
	if err != nil {
		return err
	}
	for _, def := range defs {
		r.shapes[def.Name] = resolved[def.Name]
		r.defs[def.Name] = def
	}
	return nil
}

// Replace swaps the loaded definitions for defs. Shapes registered from Go
// are kept. On error the registry is left unchanged. Cached derived
// functions are dropped.
func (r *Registry) Replace(defs []shape.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := make(map[string]shape.Record, len(r.shapes))
	for name, rec := range r.shapes {
		if _, fromFile := r.defs[name]; !fromFile {
			base[name] = rec
		}
	}
	for _, def := range defs {
		if _, exists := base[def.Name]; exists {
			return fmt.Errorf("shape %q already registered", def.Name)
		}
	}

	resolved, err := Resolve(defs, base)
	if err != nil {
		return err
	}

	newDefs := make(map[string]shape.Definition, len(defs))
	for _, def := range defs {
		base[def.Name] = resolved[def.Name]
		newDefs[def.Name] = def
	}

	r.shapes = base
	r.defs = newDefs
	r.derived = make(map[string]*derived)
	return nil
}

// Get returns a registered shape by name.
func (r *Registry) Get(name string) (shape.Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.shapes[name]
	return rec, ok
}

// Definition returns the definition a shape was loaded from.
func (r *Registry) Definition(name string) (shape.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	return def, ok
}

// List returns all registered shape names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.shapes))
	for name := range r.shapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered shapes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.shapes)
}

// Lookup resolves a type expression against the registry, e.g. "MyType" or
// "array<MyType>".
func (r *Registry) Lookup(expr string) (shape.Shape, error) {
	t, err := shape.ParseType(expr)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return build(t, func(name string) (shape.Shape, error) {
		rec, ok := r.shapes[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return rec, nil
	})
}

// Mapper returns the JSON mapper for a named shape.
func (r *Registry) Mapper(name string) (jsoncodec.Mapper, error) {
	d, err := r.derive(name)
	if err != nil {
		return nil, err
	}
	return d.mapper, nil
}

// StorageMapper returns the mapper stored bodies are written and read with.
// It always uses the default codec options, so SetCodecOptions never changes
// how persisted documents decode.
func (r *Registry) StorageMapper(name string) (jsoncodec.Mapper, error) {
	d, err := r.derive(name)
	if err != nil {
		return nil, err
	}
	return d.storage, nil
}

// Equals returns the equality predicate for a named shape.
func (r *Registry) Equals(name string) (runtime.EqualsFunc, error) {
	d, err := r.derive(name)
	if err != nil {
		return nil, err
	}
	return d.equals, nil
}

// HashCode returns the hash function for a named shape.
func (r *Registry) HashCode(name string) (runtime.HashFunc, error) {
	d, err := r.derive(name)
	if err != nil {
		return nil, err
	}
	return d.hash, nil
}

func (r *Registry) derive(name string) (*derived, error) {
	r.mu.RLock()
	d, ok := r.derived[name]
	r.mu.RUnlock()
	if ok {
		return d, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.derived[name]; ok {
		return d, nil
	}
	rec, ok := r.shapes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	d = &derived{
		mapper:  jsoncodec.For(rec, r.codecOpts...),
		storage: jsoncodec.For(rec),
		equals:  runtime.Equals(rec),
		hash:    runtime.HashCode(rec),
	}
	r.derived[name] = d
	return d, nil
}
