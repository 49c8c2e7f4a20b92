// Package runtime derives structural equality and hash functions from shapes
// and provides HashSet, a set keyed by those derived functions.
//
// Runtime values use plain Go representations:
//
//	string     string
//	number     float64 (any Go integer or float is accepted)
//	bool       bool
//	timestamp  time.Time
//	record     Record (map[string]any, one entry per present field)
//	array<T>   []any
//	map<T>     map[string]any
//	set<T>     *HashSet
//
// Derived functions are pure and safe to share between goroutines. A HashSet
// is not; callers synchronize access to a single instance themselves.
//
// The hash contract is one-way: values that are equal under Equals(s) hash
// identically under HashCode(s). Unequal values may collide, and HashSet
// resolves collisions by scanning the bucket with Equals.
package runtime
