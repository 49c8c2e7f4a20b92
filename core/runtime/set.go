package runtime

import (
	"fmt"
	"iter"
	"slices"

	"github.com/artpar/shapekit/core/shape"
)

// HashSet is a set of runtime values keyed by the structural hash of its item
// shape. Members sharing a hash live in one bucket and are told apart with
// the derived equals.
//
// Iteration order is stable for a given set state and unspecified across
// mutations. A HashSet must not be mutated concurrently.
//
// The zero value is not usable; create sets with NewHashSet.
type HashSet struct {
	item    shape.Shape
	equals  EqualsFunc
	hash    HashFunc
	buckets map[uint64][]any
	order   []uint64
	size    int
}

// NewHashSet creates an empty set over item and adds values in order.
func NewHashSet(item shape.Shape, values ...any) *HashSet {
	s := &HashSet{
		item:    item,
		equals:  Equals(item),
		hash:    HashCode(item),
		buckets: make(map[uint64][]any),
	}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// ItemShape returns the shape of the set's members.
func (s *HashSet) ItemShape() shape.Shape { return s.item }

// Len returns the number of members.
func (s *HashSet) Len() int { return s.size }

// Add inserts v unless an equal member is already present.
func (s *HashSet) Add(v any) *HashSet {
	h := s.hash(v)
	bucket, ok := s.buckets[h]
	if !ok {
		s.buckets[h] = []any{v}
		s.order = append(s.order, h)
		s.size++
		return s
	}
	if s.indexOf(bucket, v) >= 0 {
		return s
	}
	s.buckets[h] = append(bucket, v)
	s.size++
	return s
}

// Has reports whether a member equal to v is present.
func (s *HashSet) Has(v any) bool {
	bucket, ok := s.buckets[s.hash(v)]
	return ok && s.indexOf(bucket, v) >= 0
}

// Delete removes the member equal to v and reports whether one was found.
func (s *HashSet) Delete(v any) bool {
	h := s.hash(v)
	bucket, ok := s.buckets[h]
	if !ok {
		return false
	}
	i := s.indexOf(bucket, v)
	if i < 0 {
		return false
	}

	if len(bucket) == 1 {
		delete(s.buckets, h)
		s.order = slices.DeleteFunc(slices.Clone(s.order), func(x uint64) bool { return x == h })
	} else {
		// Copy so that a sequence already ranging over the old bucket is unaffected.
		remaining := make([]any, 0, len(bucket)-1)
		remaining = append(remaining, bucket[:i]...)
		remaining = append(remaining, bucket[i+1:]...)
		s.buckets[h] = remaining
	}
	s.size--
	return true
}

// Clear removes every member.
func (s *HashSet) Clear() {
	s.buckets = make(map[uint64][]any)
	s.order = nil
	s.size = 0
}

func (s *HashSet) indexOf(bucket []any, v any) int {
	for i, e := range bucket {
		if s.equals(e, v) {
			return i
		}
	}
	return -1
}

// Values returns a sequence over the current members. Each call starts a
// fresh pass over the set as it is when ranged.
func (s *HashSet) Values() iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, h := range s.order {
			for _, v := range s.buckets[h] {
				if !yield(v) {
					return
				}
			}
		}
	}
}

// Keys is Values; a set's keys are its members.
func (s *HashSet) Keys() iter.Seq[any] { return s.Values() }

// All is Values.
func (s *HashSet) All() iter.Seq[any] { return s.Values() }

// Entries yields each member paired with itself.
func (s *HashSet) Entries() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		for v := range s.Values() {
			if !yield(v, v) {
				return
			}
		}
	}
}

// ForEach calls fn(v, v) for every member in iteration order.
func (s *HashSet) ForEach(fn func(value, key any)) {
	for v := range s.Values() {
		fn(v, v)
	}
}

// Slice returns the members in iteration order.
func (s *HashSet) Slice() []any {
	out := make([]any, 0, s.size)
	for v := range s.Values() {
		out = append(out, v)
	}
	return out
}

// Equal reports whether both sets hold the same members. A nil set equals
// only another nil set.
func (s *HashSet) Equal(other *HashSet) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.size != other.size {
		return false
	}
	for v := range s.Values() {
		if !other.Has(v) {
			return false
		}
	}
	return true
}

// String renders the set for debugging, e.g. set<string>{3}.
func (s *HashSet) String() string {
	return fmt.Sprintf("%s{%d}", shape.SetOf(s.item), s.size)
}
