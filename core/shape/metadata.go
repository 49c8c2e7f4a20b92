package shape

import "sort"

// Metadata is the trait data attached to a shape. It never changes a shape's
// kind or its derived codec, equality and hashing behaviour.
type Metadata map[string]any

// Well-known metadata keys that are not constraints.
const (
	KeyOptional = "optional"
	KeyDoc      = "doc"
)

// Get returns the value stored under key.
func (m Metadata) Get(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

// Merge returns a new Metadata holding the union of m and other. Keys in
// other win on conflict. Neither argument is modified.
func (m Metadata) Merge(other Metadata) Metadata {
	out := make(Metadata, len(m)+len(other))
	for k, v := range m {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Keys returns the metadata keys in sorted order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m Metadata) clone() Metadata {
	if m == nil {
		return nil
	}
	out := make(Metadata, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Trait is a plain key/value record merged into a shape's metadata.
type Trait map[string]any

// Apply returns a copy of s with every trait merged into its metadata, in
// order. Later traits override earlier keys. s itself is not modified.
func Apply[S Shape](s S, traits ...Trait) S {
	meta := s.Metadata()
	for _, t := range traits {
		meta = meta.Merge(Metadata(t))
	}
	return s.withMetadata(meta).(S)
}

// Optional marks a record field as allowed to be absent.
func Optional() Trait {
	return Trait{KeyOptional: true}
}

// Doc attaches human-readable documentation.
func Doc(text string) Trait {
	return Trait{KeyDoc: text}
}

// IsOptional reports whether s carries the Optional trait.
func IsOptional(s Shape) bool {
	v, _ := s.Metadata()[KeyOptional].(bool)
	return v
}

// Documentation returns the text attached with Doc, if any.
func Documentation(s Shape) string {
	v, _ := s.Metadata()[KeyDoc].(string)
	return v
}
