// Package jsoncodec converts between decoded JSON values and shape runtime
// values.
//
// Read takes the generic tree produced by encoding/json (nil, bool, float64,
// string, []any, map[string]any) and returns runtime values as described in
// package runtime. Write is its inverse. Records are written as Object so the
// output keeps declared field order; Read accepts Object wherever it accepts
// map[string]any, so Read(Write(v)) holds without a trip through bytes.
//
// Reading is strict: a value whose JSON type does not match its shape fails
// with a *DecodeError carrying the JSON pointer of the offending value.
package jsoncodec

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/artpar/shapekit/core/runtime"
	"github.com/artpar/shapekit/core/shape"
)

// Mapper reads and writes runtime values of one shape.
type Mapper interface {
	// Shape returns the shape the mapper was built for.
	Shape() shape.Shape
	// Read converts a decoded JSON value into a runtime value.
	Read(v any) (any, error)
	// Write converts a runtime value into a JSON-marshalable value.
	Write(v any) (any, error)
	// Unmarshal decodes JSON text and reads it.
	Unmarshal(data []byte) (any, error)
	// Marshal writes v and encodes it as JSON text.
	Marshal(v any) ([]byte, error)
}

// node is the per-shape conversion, built once per mapper.
type node interface {
	read(path string, v any) (any, error)
	write(path string, v any) (any, error)
}

type mapper struct {
	shape shape.Shape
	root  node
}

// For builds the mapper for s. The result is immutable and safe for
// concurrent use.
func For(s shape.Shape, opts ...Option) Mapper {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &mapper{shape: s, root: build(s, o)}
}

func (m *mapper) Shape() shape.Shape { return m.shape }

func (m *mapper) Read(v any) (any, error) { return m.root.read("", v) }

func (m *mapper) Write(v any) (any, error) { return m.root.write("", v) }

func (m *mapper) Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return m.Read(v)
}

func (m *mapper) Marshal(v any) ([]byte, error) {
	out, err := m.Write(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(out)
}

func build(s shape.Shape, o options) node {
	switch v := s.(type) {
	case shape.Primitive:
		return buildPrimitive(v.Kind(), o)
	case shape.Record:
		r := &recordNode{fields: make([]fieldNode, 0, v.Len()), reject: o.rejectUnknownFields}
		for _, f := range v.Fields() {
			r.fields = append(r.fields, fieldNode{
				name:     f.Name,
				optional: shape.IsOptional(f.Shape),
				node:     build(f.Shape, o),
			})
		}
		return r
	case shape.Array:
		return &arrayNode{item: build(v.Item(), o)}
	case shape.Map:
		return &mapNode{item: build(v.Item(), o)}
	case shape.Set:
		return &setNode{itemShape: v.Item(), item: build(v.Item(), o)}
	}
	panic(fmt.Sprintf("jsoncodec: unsupported shape %T", s))
}

func buildPrimitive(k shape.Kind, o options) node {
	switch k {
	case shape.KindString:
		return stringNode{}
	case shape.KindNumber:
		return numberNode{}
	case shape.KindBool:
		return boolNode{}
	case shape.KindTimestamp:
		return timestampNode{format: o.timestamps}
	}
	panic(fmt.Sprintf("jsoncodec: unsupported primitive %s", k))
}

func join(path, key string) string {
	return path + "/" + escapePointer(key)
}

func index(path string, i int) string {
	return path + "/" + strconv.Itoa(i)
}

// escapePointer applies RFC 6901 escaping.
func escapePointer(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '~':
			out = append(out, '~', '0')
		case '/':
			out = append(out, '~', '1')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}

func asNumber(v any) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}
	return runtime.AsFloat(v)
}

// asObject accepts both decoded JSON objects and Objects produced by Write.
func asObject(v any) (map[string]any, bool) {
	switch o := v.(type) {
	case map[string]any:
		return o, true
	case Object:
		m := make(map[string]any, len(o))
		for _, member := range o {
			m[member.Key] = member.Value
		}
		return m, true
	}
	return nil, false
}

type stringNode struct{}

func (stringNode) read(path string, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, &DecodeError{Path: path, Want: "string", Got: jsonType(v), Err: ErrTypeMismatch}
	}
	return s, nil
}

func (stringNode) write(path string, v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, &EncodeError{Path: path, Want: "string", Got: goType(v), Err: ErrTypeMismatch}
	}
	return s, nil
}

type numberNode struct{}

func (numberNode) read(path string, v any) (any, error) {
	f, ok := asNumber(v)
	if !ok {
		return nil, &DecodeError{Path: path, Want: "number", Got: jsonType(v), Err: ErrTypeMismatch}
	}
	return f, nil
}

func (numberNode) write(path string, v any) (any, error) {
	f, ok := runtime.AsFloat(v)
	if !ok {
		return nil, &EncodeError{Path: path, Want: "number", Got: goType(v), Err: ErrTypeMismatch}
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, &EncodeError{Path: path, Want: "finite number", Got: strconv.FormatFloat(f, 'g', -1, 64), Err: ErrInvalidValue}
	}
	return f, nil
}

type boolNode struct{}

func (boolNode) read(path string, v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, &DecodeError{Path: path, Want: "bool", Got: jsonType(v), Err: ErrTypeMismatch}
	}
	return b, nil
}

func (boolNode) write(path string, v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, &EncodeError{Path: path, Want: "bool", Got: goType(v), Err: ErrTypeMismatch}
	}
	return b, nil
}

type timestampNode struct {
	format TimestampFormat
}

func (n timestampNode) read(path string, v any) (any, error) {
	if n.format == TimestampUnixMillis {
		f, ok := asNumber(v)
		if !ok {
			return nil, &DecodeError{Path: path, Want: "timestamp (unix millis)", Got: jsonType(v), Err: ErrTypeMismatch}
		}
		return time.UnixMilli(int64(f)).UTC(), nil
	}

	s, ok := v.(string)
	if !ok {
		return nil, &DecodeError{Path: path, Want: "timestamp (RFC 3339 string)", Got: jsonType(v), Err: ErrTypeMismatch}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, &DecodeError{Path: path, Want: "timestamp (RFC 3339 string)", Got: strconv.Quote(s), Err: ErrInvalidValue}
	}
	return t, nil
}

func (n timestampNode) write(path string, v any) (any, error) {
	t, ok := runtime.AsTime(v)
	if !ok {
		return nil, &EncodeError{Path: path, Want: "time.Time", Got: goType(v), Err: ErrTypeMismatch}
	}
	if n.format == TimestampUnixMillis {
		return t.UnixMilli(), nil
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}

type fieldNode struct {
	name     string
	optional bool
	node     node
}

type recordNode struct {
	fields []fieldNode
	reject bool
}

func (n *recordNode) declared(key string) bool {
	for _, f := range n.fields {
		if f.name == key {
			return true
		}
	}
	return false
}

func (n *recordNode) read(path string, v any) (any, error) {
	obj, ok := asObject(v)
	if !ok {
		return nil, &DecodeError{Path: path, Want: "object", Got: jsonType(v), Err: ErrTypeMismatch}
	}

	if n.reject {
		for key := range obj {
			if !n.declared(key) {
				return nil, &DecodeError{Path: join(path, key), Want: "declared field", Got: strconv.Quote(key), Err: ErrUnknownField}
			}
		}
	}

	out := make(runtime.Record, len(n.fields))
	for _, f := range n.fields {
		raw, present := obj[f.name]
		if !present || raw == nil {
			if f.optional {
				continue
			}
			return nil, &DecodeError{Path: join(path, f.name), Want: "value", Got: jsonType(raw), Err: ErrMissingField}
		}
		val, err := f.node.read(join(path, f.name), raw)
		if err != nil {
			return nil, err
		}
		out[f.name] = val
	}
	return out, nil
}

func (n *recordNode) write(path string, v any) (any, error) {
	rec, ok := runtime.AsMap(v)
	if !ok {
		return nil, &EncodeError{Path: path, Want: "record", Got: goType(v), Err: ErrTypeMismatch}
	}

	out := make(Object, 0, len(n.fields))
	for _, f := range n.fields {
		val, present := runtime.Field(rec, f.name)
		if !present {
			if f.optional {
				continue
			}
			return nil, &EncodeError{Path: join(path, f.name), Want: "value", Got: "absent", Err: ErrMissingField}
		}
		enc, err := f.node.write(join(path, f.name), val)
		if err != nil {
			return nil, err
		}
		out = append(out, Member{Key: f.name, Value: enc})
	}
	return out, nil
}

type arrayNode struct {
	item node
}

func (n *arrayNode) read(path string, v any) (any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, &DecodeError{Path: path, Want: "array", Got: jsonType(v), Err: ErrTypeMismatch}
	}
	out := make([]any, len(arr))
	for i, e := range arr {
		val, err := n.item.read(index(path, i), e)
		if err != nil {
			return nil, err
		}
		out[i] = val
	}
	return out, nil
}

func (n *arrayNode) write(path string, v any) (any, error) {
	arr, ok := runtime.AsSlice(v)
	if !ok {
		return nil, &EncodeError{Path: path, Want: "[]any", Got: goType(v), Err: ErrTypeMismatch}
	}
	out := make([]any, len(arr))
	for i, e := range arr {
		enc, err := n.item.write(index(path, i), e)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

type mapNode struct {
	item node
}

func (n *mapNode) read(path string, v any) (any, error) {
	obj, ok := asObject(v)
	if !ok {
		return nil, &DecodeError{Path: path, Want: "object", Got: jsonType(v), Err: ErrTypeMismatch}
	}
	out := make(map[string]any, len(obj))
	for k, e := range obj {
		val, err := n.item.read(join(path, k), e)
		if err != nil {
			return nil, err
		}
		out[k] = val
	}
	return out, nil
}

func (n *mapNode) write(path string, v any) (any, error) {
	m, ok := runtime.AsMap(v)
	if !ok {
		return nil, &EncodeError{Path: path, Want: "map[string]any", Got: goType(v), Err: ErrTypeMismatch}
	}
	out := make(map[string]any, len(m))
	for k, e := range m {
		enc, err := n.item.write(join(path, k), e)
		if err != nil {
			return nil, err
		}
		out[k] = enc
	}
	return out, nil
}

type setNode struct {
	itemShape shape.Shape
	item      node
}

func (n *setNode) read(path string, v any) (any, error) {
	arr, ok := v.([]any)
	if !ok {
		return nil, &DecodeError{Path: path, Want: "array", Got: jsonType(v), Err: ErrTypeMismatch}
	}
	set := runtime.NewHashSet(n.itemShape)
	for i, e := range arr {
		val, err := n.item.read(index(path, i), e)
		if err != nil {
			return nil, err
		}
		set.Add(val)
	}
	return set, nil
}

func (n *setNode) write(path string, v any) (any, error) {
	set, ok := v.(*runtime.HashSet)
	if !ok || set == nil {
		return nil, &EncodeError{Path: path, Want: "*runtime.HashSet", Got: goType(v), Err: ErrTypeMismatch}
	}
	out := make([]any, 0, set.Len())
	i := 0
	for e := range set.Values() {
		enc, err := n.item.write(index(path, i), e)
		if err != nil {
			return nil, err
		}
		out = append(out, enc)
		i++
	}
	return out, nil
}
