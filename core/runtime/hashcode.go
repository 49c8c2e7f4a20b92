package runtime

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/artpar/shapekit/core/shape"
)

// HashFunc computes a structural hash code for a runtime value. Values that
// are equal under the matching EqualsFunc produce the same code.
type HashFunc func(v any) uint64

const (
	hashSeed  uint64 = 17
	hashPrime uint64 = 31
)

// combine folds x into h. Order-sensitive.
func combine(h, x uint64) uint64 {
	return h*hashPrime + x
}

// HashCode derives the hash function for s.
func HashCode(s shape.Shape) HashFunc {
	switch v := s.(type) {
	case shape.Primitive:
		return primitiveHash(v.Kind())
	case shape.Record:
		return recordHash(v)
	case shape.Array:
		return arrayHash(HashCode(v.Item()))
	case shape.Map:
		return mapHash(HashCode(v.Item()))
	case shape.Set:
		return setHash
	}
	panic(fmt.Sprintf("runtime: unsupported shape %T", s))
}

func primitiveHash(k shape.Kind) HashFunc {
	switch k {
	case shape.KindString:
		return func(v any) uint64 {
			s, _ := v.(string)
			return hashString(s)
		}
	case shape.KindNumber:
		return func(v any) uint64 {
			f, _ := AsFloat(v)
			return hashFloat(f)
		}
	case shape.KindBool:
		return func(v any) uint64 {
			if b, _ := v.(bool); b {
				return 1
			}
			return 0
		}
	case shape.KindTimestamp:
		return func(v any) uint64 {
			t, ok := AsTime(v)
			if !ok {
				return 0
			}
			return uint64(t.UnixNano())
		}
	}
	panic(fmt.Sprintf("runtime: unsupported primitive %s", k))
}

func hashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

func hashFloat(f float64) uint64 {
	if f == 0 {
		f = 0 // -0 == 0
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
	return xxhash.Sum64(buf[:])
}

type fieldHash struct {
	name string
	hash HashFunc
}

func recordHash(r shape.Record) HashFunc {
	fields := make([]fieldHash, 0, r.Len())
	for _, f := range r.Fields() {
		fields = append(fields, fieldHash{name: f.Name, hash: HashCode(f.Shape)})
	}

	return func(v any) uint64 {
		m, _ := AsMap(v)
		h := hashSeed
		for _, f := range fields {
			fv, ok := Field(m, f.name)
			if !ok {
				h = combine(h, 0)
				continue
			}
			h = combine(h, f.hash(fv))
		}
		return h
	}
}

func arrayHash(item HashFunc) HashFunc {
	return func(v any) uint64 {
		s, _ := AsSlice(v)
		h := hashSeed
		for _, e := range s {
			h = combine(h, item(e))
		}
		return h
	}
}

func mapHash(item HashFunc) HashFunc {
	return func(v any) uint64 {
		m, _ := AsMap(v)
		var h uint64
		for k, e := range m {
			h += combine(combine(hashSeed, hashString(k)), item(e))
		}
		return h
	}
}

// setHash sums member hashes so that iteration order does not matter.
func setHash(v any) uint64 {
	s, ok := v.(*HashSet)
	if !ok || s == nil {
		return 0
	}
	var h uint64
	for _, bucket := range s.buckets {
		for _, e := range bucket {
			h += s.hash(e)
		}
	}
	return h
}
