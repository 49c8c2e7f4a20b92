package runtime

import (
	"fmt"

	"github.com/artpar/shapekit/core/shape"
)

// EqualsFunc reports whether two runtime values of the same shape are
// structurally equal. Values of the wrong Go type are never equal.
type EqualsFunc func(a, b any) bool

// Equals derives the structural equality predicate for s.
func Equals(s shape.Shape) EqualsFunc {
	switch v := s.(type) {
	case shape.Primitive:
		return primitiveEquals(v.Kind())
	case shape.Record:
		return recordEquals(v)
	case shape.Array:
		return arrayEquals(Equals(v.Item()))
	case shape.Map:
		return mapEquals(Equals(v.Item()))
	case shape.Set:
		return setEquals
	}
	panic(fmt.Sprintf("runtime: unsupported shape %T", s))
}

func primitiveEquals(k shape.Kind) EqualsFunc {
	switch k {
	case shape.KindString:
		return func(a, b any) bool {
			x, ok1 := a.(string)
			y, ok2 := b.(string)
			return ok1 && ok2 && x == y
		}
	case shape.KindNumber:
		return func(a, b any) bool {
			x, ok1 := AsFloat(a)
			y, ok2 := AsFloat(b)
			return ok1 && ok2 && x == y
		}
	case shape.KindBool:
		return func(a, b any) bool {
			x, ok1 := a.(bool)
			y, ok2 := b.(bool)
			return ok1 && ok2 && x == y
		}
	case shape.KindTimestamp:
		return func(a, b any) bool {
			x, ok1 := AsTime(a)
			y, ok2 := AsTime(b)
			return ok1 && ok2 && x.Equal(y)
		}
	}
	panic(fmt.Sprintf("runtime: unsupported primitive %s", k))
}

type fieldEquals struct {
	name   string
	equals EqualsFunc
}

func recordEquals(r shape.Record) EqualsFunc {
	fields := make([]fieldEquals, 0, r.Len())
	for _, f := range r.Fields() {
		fields = append(fields, fieldEquals{name: f.Name, equals: Equals(f.Shape)})
	}

	return func(a, b any) bool {
		x, ok1 := AsMap(a)
		y, ok2 := AsMap(b)
		if !ok1 || !ok2 {
			return false
		}
		for _, f := range fields {
			xv, xok := Field(x, f.name)
			yv, yok := Field(y, f.name)
			if xok != yok {
				return false
			}
			if xok && !f.equals(xv, yv) {
				return false
			}
		}
		return true
	}
}

func arrayEquals(item EqualsFunc) EqualsFunc {
	return func(a, b any) bool {
		x, ok1 := AsSlice(a)
		y, ok2 := AsSlice(b)
		if !ok1 || !ok2 || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !item(x[i], y[i]) {
				return false
			}
		}
		return true
	}
}

func mapEquals(item EqualsFunc) EqualsFunc {
	return func(a, b any) bool {
		x, ok1 := AsMap(a)
		y, ok2 := AsMap(b)
		if !ok1 || !ok2 || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !item(xv, yv) {
				return false
			}
		}
		return true
	}
}

func setEquals(a, b any) bool {
	x, ok1 := a.(*HashSet)
	y, ok2 := b.(*HashSet)
	if !ok1 || !ok2 {
		return false
	}
	if x == nil || y == nil {
		return x == y
	}
	return x.Equal(y)
}
