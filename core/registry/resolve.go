package registry

import (
	"fmt"
	"strings"

	"github.com/artpar/shapekit/core/shape"
)

// Resolve turns definitions into record shapes. Field types may reference
// other definitions in defs or shapes in base. Unknown references, duplicate
// names and reference cycles are reported together.
func Resolve(defs []shape.Definition, base map[string]shape.Record) (map[string]shape.Record, error) {
	byName := make(map[string]shape.Definition, len(defs))
	var errs []string

	for _, def := range defs {
		if prev, exists := byName[def.Name]; exists {
			errs = append(errs, fmt.Sprintf("shape %q defined twice (%s and %s)", def.Name, sourceOf(prev), sourceOf(def)))
			continue
		}
		byName[def.Name] = def
	}

	for _, def := range defs {
		for _, f := range def.Fields {
			t, err := shape.ParseType(f.Type)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s.%s: %v", def.Name, f.Name, err))
				continue
			}
			for _, ref := range t.Refs() {
				_, local := byName[ref]
				_, known := base[ref]
				if !local && !known {
					errs = append(errs, fmt.Sprintf("%s.%s: unknown shape %q", def.Name, f.Name, ref))
				}
			}
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	res := &resolver{
		defs:  byName,
		base:  base,
		done:  make(map[string]shape.Record, len(defs)),
		state: make(map[string]visitState, len(defs)),
	}
	for _, def := range defs {
		if _, err := res.resolve(def.Name); err != nil {
			return nil, err
		}
	}
	return res.done, nil
}

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

type resolver struct {
	defs  map[string]shape.Definition
	base  map[string]shape.Record
	done  map[string]shape.Record
	state map[string]visitState
	stack []string
}

func (r *resolver) resolve(name string) (shape.Record, error) {
	if rec, ok := r.done[name]; ok {
		return rec, nil
	}
	def, ok := r.defs[name]
	if !ok {
		return r.base[name], nil
	}

	if r.state[name] == visiting {
		cycle := append(r.cycleFrom(name), name)
		return shape.Record{}, fmt.Errorf("reference cycle: %s", strings.Join(cycle, " -> "))
	}
	r.state[name] = visiting
	r.stack = append(r.stack, name)

	fields := make([]shape.Field, 0, len(def.Fields))
	for _, f := range def.Fields {
		t, err := shape.ParseType(f.Type)
		if err != nil {
			return shape.Record{}, fmt.Errorf("%s.%s: %w", name, f.Name, err)
		}
		s, err := build(t, func(ref string) (shape.Shape, error) {
			return r.resolve(ref)
		})
		if err != nil {
			return shape.Record{}, err
		}
		fields = append(fields, shape.F(f.Name, shape.Apply(s, f.Traits()...)))
	}

	rec, err := shape.NewRecord(name, fields...)
	if err != nil {
		return shape.Record{}, err
	}
	if def.Doc != "" {
		rec = rec.Apply(shape.Doc(def.Doc))
	}

	r.stack = r.stack[:len(r.stack)-1]
	r.state[name] = visited
	r.done[name] = rec
	return rec, nil
}

func (r *resolver) cycleFrom(name string) []string {
	for i, n := range r.stack {
		if n == name {
			return append([]string(nil), r.stack[i:]...)
		}
	}
	return []string{name}
}

// build converts a parsed type expression into a shape, resolving named
// records with lookup.
func build(t shape.TypeExpr, lookup func(string) (shape.Shape, error)) (shape.Shape, error) {
	switch {
	case t.Ref != "":
		return lookup(t.Ref)
	case t.Item != nil:
		item, err := build(*t.Item, lookup)
		if err != nil {
			return nil, err
		}
		return shape.CollectionOf(t.Kind, item)
	default:
		p, ok := shape.PrimitiveOf(t.Kind)
		if !ok {
			return nil, fmt.Errorf("unknown type %q", t.Kind)
		}
		return p, nil
	}
}

func sourceOf(def shape.Definition) string {
	if def.Source == "" {
		return "<inline>"
	}
	return def.Source
}
