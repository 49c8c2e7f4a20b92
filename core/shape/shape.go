package shape

import (
	"errors"
	"fmt"
)

// Kind identifies the variant of a shape.
type Kind string

const (
	// Primitive kinds
	KindString    Kind = "string"
	KindNumber    Kind = "number"
	KindTimestamp Kind = "timestamp"
	KindBool      Kind = "bool"

	// Composite kinds
	KindRecord Kind = "record"
	KindArray  Kind = "array"
	KindSet    Kind = "set"
	KindMap    Kind = "map"
)

// IsPrimitive returns true for kinds without children.
func (k Kind) IsPrimitive() bool {
	switch k {
	case KindString, KindNumber, KindTimestamp, KindBool:
		return true
	default:
		return false
	}
}

// IsCollection returns true for array, set and map.
func (k Kind) IsCollection() bool {
	switch k {
	case KindArray, KindSet, KindMap:
		return true
	default:
		return false
	}
}

var (
	// ErrDuplicateField is returned when a record declares the same field name twice.
	ErrDuplicateField = errors.New("duplicate field")

	// ErrInvalidField is returned for fields with an empty name or a nil shape.
	ErrInvalidField = errors.New("invalid field")
)

// Shape is an immutable type descriptor.
//
// The set of implementations is closed: Primitive, Record, Array, Set and Map.
// Code deriving behaviour from a shape switches over these types.
type Shape interface {
	// Kind returns the shape variant.
	Kind() Kind

	// Metadata returns a copy of the attached trait data.
	Metadata() Metadata

	// String renders the shape as a type expression (e.g. "array<string>").
	String() string

	withMetadata(meta Metadata) Shape
}

// Collection is a shape with a single item shape.
type Collection interface {
	Shape
	Item() Shape
}

// Primitive describes a scalar value.
type Primitive struct {
	kind Kind
	meta Metadata
}

// Built-in primitive shapes.
var (
	String    = Primitive{kind: KindString}
	Number    = Primitive{kind: KindNumber}
	Timestamp = Primitive{kind: KindTimestamp}
	Bool      = Primitive{kind: KindBool}
)

// PrimitiveOf returns the primitive shape for a kind.
func PrimitiveOf(kind Kind) (Primitive, bool) {
	if !kind.IsPrimitive() {
		return Primitive{}, false
	}
	return Primitive{kind: kind}, true
}

func (p Primitive) Kind() Kind { return p.kind }
func (p Primitive) Metadata() Metadata { return p.meta.clone() }
func (p Primitive) String() string { return string(p.kind) }
func (p Primitive) withMetadata(m Metadata) Shape {
	p.meta = m
	return p
}

// Apply returns a copy of p with the traits merged into its metadata.
func (p Primitive) Apply(traits ...Trait) Primitive { return Apply(p, traits...) }

// Field is a named member of a record.
type Field struct {
	Name  string
	Shape Shape
}

// F is shorthand for constructing a Field.
func F(name string, s Shape) Field {
	return Field{Name: name, Shape: s}
}

// Record describes a keyed structure with an ordered set of fields.
type Record struct {
	name   string
	fields []Field
	index  map[string]int
	meta   Metadata
}

// NewRecord creates a record shape. Field names must be unique and every
// field must carry a shape.
func NewRecord(name string, fields ...Field) (Record, error) {
	r := Record{
		name:   name,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	for _, f := range fields {
		if f.Name == "" {
			return Record{}, fmt.Errorf("record %q: %w: empty name", name, ErrInvalidField)
		}
		if f.Shape == nil {
			return Record{}, fmt.Errorf("record %q: %w: field %q has no shape", name, ErrInvalidField, f.Name)
		}
		if _, exists := r.index[f.Name]; exists {
			return Record{}, fmt.Errorf("record %q: %w %q", name, ErrDuplicateField, f.Name)
		}
		r.index[f.Name] = len(r.fields)
		r.fields = append(r.fields, f)
	}

	return r, nil
}

// MustRecord is like NewRecord but panics on error. Intended for
// package-level shape definitions.
func MustRecord(name string, fields ...Field) Record {
	r, err := NewRecord(name, fields...)
	if err != nil {
		panic("shape: " + err.Error())
	}
	return r
}

func (r Record) Kind() Kind { return KindRecord }
func (r Record) Metadata() Metadata { return r.meta.clone() }

func (r Record) String() string {
	if r.name == "" {
		return string(KindRecord)
	}
	return r.name
}

func (r Record) withMetadata(m Metadata) Shape {
	r.meta = m
	return r
}

// Apply returns a copy of r with the traits merged into its metadata.
func (r Record) Apply(traits ...Trait) Record { return Apply(r, traits...) }

// Name returns the record name (may be empty for anonymous records).
func (r Record) Name() string { return r.name }

// Len returns the number of fields.
func (r Record) Len() int { return len(r.fields) }

// Fields returns the fields in declaration order.
func (r Record) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Field looks up a field by name.
func (r Record) Field(name string) (Field, bool) {
	i, ok := r.index[name]
	if !ok {
		return Field{}, false
	}
	return r.fields[i], true
}

// Array describes an ordered sequence.
type Array struct {
	item Shape
	meta Metadata
}

// ArrayOf returns an array shape of item.
func ArrayOf(item Shape) Array { return Array{item: item} }

func (a Array) Kind() Kind { return KindArray }
func (a Array) Metadata() Metadata { return a.meta.clone() }
func (a Array) String() string { return "array<" + a.item.String() + ">" }
func (a Array) Item() Shape { return a.item }
func (a Array) Apply(traits ...Trait) Array { return Apply(a, traits...) }
func (a Array) withMetadata(m Metadata) Shape {
	a.meta = m
	return a
}

// Set describes an unordered, duplicate-free collection.
type Set struct {
	item Shape
	meta Metadata
}

// SetOf returns a set shape of item.
func SetOf(item Shape) Set { return Set{item: item} }

func (s Set) Kind() Kind { return KindSet }
func (s Set) Metadata() Metadata { return s.meta.clone() }
func (s Set) String() string { return "set<" + s.item.String() + ">" }
func (s Set) Item() Shape { return s.item }
func (s Set) Apply(traits ...Trait) Set { return Apply(s, traits...) }
func (s Set) withMetadata(m Metadata) Shape {
	s.meta = m
	return s
}

// Map describes a string-keyed mapping.
type Map struct {
	item Shape
	meta Metadata
}

// MapOf returns a map shape with values of item.
func MapOf(item Shape) Map { return Map{item: item} }

func (m Map) Kind() Kind { return KindMap }
func (m Map) Metadata() Metadata { return m.meta.clone() }
func (m Map) String() string { return "map<" + m.item.String() + ">" }
func (m Map) Item() Shape { return m.item }
func (m Map) Apply(traits ...Trait) Map { return Apply(m, traits...) }
func (m Map) withMetadata(meta Metadata) Shape {
	m.meta = meta
	return m
}

// CollectionOf builds the collection shape for kind around item.
func CollectionOf(kind Kind, item Shape) (Collection, error) {
	switch kind {
	case KindArray:
		return ArrayOf(item), nil
	case KindSet:
		return SetOf(item), nil
	case KindMap:
		return MapOf(item), nil
	default:
		return nil, fmt.Errorf("kind %q is not a collection", kind)
	}
}

// Children returns the direct child shapes: record fields in declaration
// order, or the single item shape of a collection.
func Children(s Shape) []Shape {
	switch v := s.(type) {
	case Record:
		children := make([]Shape, len(v.fields))
		for i, f := range v.fields {
			children[i] = f.Shape
		}
		return children
	case Collection:
		return []Shape{v.Item()}
	default:
		return nil
	}
}

// Walk visits s and its descendants depth-first. Returning false from fn
// skips the children of the visited shape.
func Walk(s Shape, fn func(Shape) bool) {
	if !fn(s) {
		return
	}
	for _, child := range Children(s) {
		Walk(child, fn)
	}
}
