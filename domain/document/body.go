package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"github.com/fxamacker/cbor/v2"

	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/core/shape"
)

// encMode uses Core Deterministic Encoding (RFC 8949 section 4.2): sorted
// map keys, smallest encodings, no indefinite lengths.
var encMode cbor.EncMode

// decMode decodes maps into map[string]any so the result can be handed
// straight to a jsoncodec mapper.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("document: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("document: CBOR decoder initialization failed: " + err.Error())
	}
}

// Body is the storage form of a runtime value.
type Body struct {
	Data        []byte
	Compression Compression
	Size        int // uncompressed length
	Digest      Digest
}

// EncodeOptions selects the digest and compression of encoded bodies.
type EncodeOptions struct {
	Digest      Algorithm
	Compression Compression
}

// Encode writes value with m, canonicalizes it and encodes the result.
func Encode(m jsoncodec.Mapper, value any, opts EncodeOptions) (Body, error) {
	wire, err := m.Write(value)
	if err != nil {
		return Body{}, err
	}
	canon, err := Canonical(m.Shape(), wire)
	if err != nil {
		return Body{}, err
	}

	raw, err := encMode.Marshal(canon)
	if err != nil {
		return Body{}, fmt.Errorf("encode cbor: %w", err)
	}

	alg := opts.Digest
	if alg == "" {
		alg = Blake2b
	}
	digest, err := ComputeDigest(alg, raw)
	if err != nil {
		return Body{}, err
	}

	data, used, err := Compress(raw, opts.Compression)
	if err != nil {
		return Body{}, err
	}

	return Body{Data: data, Compression: used, Size: len(raw), Digest: digest}, nil
}

// Decode verifies b and reads it back into a runtime value with m.
func Decode(m jsoncodec.Mapper, b Body) (any, error) {
	raw, err := Decompress(b.Data, b.Compression, b.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := b.Digest.Verify(raw); err != nil {
		return nil, err
	}

	var wire any
	if err := decMode.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: decode cbor: %v", ErrCorrupt, err)
	}
	return m.Read(wire)
}

// Canonical converts the output of a mapper's Write into a plain tree with
// one representation per value: record objects become maps and set members
// are sorted by their JSON encoding.
func Canonical(s shape.Shape, wire any) (any, error) {
	switch v := s.(type) {
	case shape.Primitive:
		if f, ok := wire.(float64); ok && f == 0 {
			return 0.0, nil // fold -0
		}
		return wire, nil

	case shape.Record:
		obj, ok := wire.(jsoncodec.Object)
		if !ok {
			return nil, fmt.Errorf("canonical %s: unexpected %T", s, wire)
		}
		out := make(map[string]any, len(obj))
		for _, m := range obj {
			f, ok := v.Field(m.Key)
			if !ok {
				return nil, fmt.Errorf("canonical %s: unexpected field %q", s, m.Key)
			}
			c, err := Canonical(f.Shape, m.Value)
			if err != nil {
				return nil, err
			}
			out[m.Key] = c
		}
		return out, nil

	case shape.Array:
		return canonicalSlice(v.Item(), wire)

	case shape.Map:
		m, ok := wire.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("canonical %s: unexpected %T", s, wire)
		}
		out := make(map[string]any, len(m))
		for k, e := range m {
			c, err := Canonical(v.Item(), e)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil

	case shape.Set:
		items, err := canonicalSlice(v.Item(), wire)
		if err != nil {
			return nil, err
		}
		return sortByJSON(items)
	}
	return nil, fmt.Errorf("canonical: unsupported shape %T", s)
}

func canonicalSlice(item shape.Shape, wire any) ([]any, error) {
	arr, ok := wire.([]any)
	if !ok {
		return nil, fmt.Errorf("canonical %s: unexpected %T", shape.ArrayOf(item), wire)
	}
	out := make([]any, len(arr))
	for i, e := range arr {
		c, err := Canonical(item, e)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func sortByJSON(items []any) ([]any, error) {
	keys := make([][]byte, len(items))
	for i, e := range items {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("canonical set member: %w", err)
		}
		keys[i] = b
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return bytes.Compare(keys[idx[a]], keys[idx[b]]) < 0
	})

	out := make([]any, len(items))
	for i, j := range idx {
		out[i] = items[j]
	}
	return out, nil
}
