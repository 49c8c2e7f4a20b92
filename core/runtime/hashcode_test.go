package runtime

import (
	"math"
	"testing"
	"time"

	"github.com/artpar/shapekit/core/shape"
)

func TestHashCode_EqualImpliesSameHash(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name  string
		shape shape.Shape
		a, b  any
	}{
		{"number int and float", shape.Number, 3, 3.0},
		{"negative zero", shape.Number, math.Copysign(0, -1), 0.0},
		{"timestamp zones", shape.Timestamp, now, now.UTC()},
		{"record extra key", nestedShape, Record{"a": "x"}, Record{"a": "x", "b": 1}},
		{"record nil field", nestedShape, Record{}, Record{"a": nil}},
		{"array string slice", shape.ArrayOf(shape.String), []string{"a", "b"}, []any{"a", "b"}},
		{"map order", shape.MapOf(shape.Number), map[string]any{"a": 1.0, "b": 2.0}, map[string]any{"b": 2, "a": 1}},
		{"set order", shape.SetOf(shape.String), NewHashSet(shape.String, "a", "b", "c"), NewHashSet(shape.String, "c", "b", "a")},
		{"full record", myTypeShape, myTypeValue(), myTypeValue()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Equals(tt.shape)(tt.a, tt.b) {
				t.Fatalf("values should be equal")
			}
			hash := HashCode(tt.shape)
			if ha, hb := hash(tt.a), hash(tt.b); ha != hb {
				t.Errorf("HashCode = %d and %d, want equal", ha, hb)
			}
		})
	}
}

func TestHashCode_RecordConstructionOrder(t *testing.T) {
	r := shape.MustRecord("Pair", shape.F("a", shape.String), shape.F("b", shape.Number))

	first := Record{}
	first["a"] = "x"
	first["b"] = 1.0

	second := Record{}
	second["b"] = 1.0
	second["a"] = "x"

	if !Equals(r)(first, second) {
		t.Fatal("records built in different order should be equal")
	}
	if HashCode(r)(first) != HashCode(r)(second) {
		t.Error("records built in different order should hash identically")
	}

	changed := Record{"a": "x", "b": 2.0}
	if Equals(r)(first, changed) {
		t.Error("changed field should make records unequal")
	}
	if HashCode(r)(first) == HashCode(r)(changed) {
		t.Error("changed field should change the hash")
	}
}

func TestHashCode_ArrayOrderSensitive(t *testing.T) {
	hash := HashCode(shape.ArrayOf(shape.String))
	if hash([]any{"a", "b"}) == hash([]any{"b", "a"}) {
		t.Error("array hash should depend on element order")
	}
}

func TestHashCode_Bool(t *testing.T) {
	hash := HashCode(shape.Bool)
	if hash(true) != 1 || hash(false) != 0 {
		t.Errorf("HashCode(bool) = %d/%d, want 1/0", hash(true), hash(false))
	}
}

func TestHashCode_WrongTypeDoesNotPanic(t *testing.T) {
	for _, s := range []shape.Shape{shape.String, shape.Number, shape.Timestamp, myTypeShape, shape.ArrayOf(shape.Bool), shape.MapOf(shape.Bool), shape.SetOf(shape.Bool)} {
		_ = HashCode(s)(struct{}{})
	}
}
