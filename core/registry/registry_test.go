package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/core/runtime"
	"github.com/artpar/shapekit/core/shape"
)

const definitionsYAML = `
shape: MyType
doc: Example record.
fields:
  id:
    type: string
    constraints: { max_length: 1 }
  count: number
  nested: Nested
  set: set<Nested>
  map: map<array<Nested>>
---
shape: Nested
fields:
  a: { type: string, optional: true }
`

func mustParse(t *testing.T, data string) []shape.Definition {
	t.Helper()
	defs, err := shape.Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return defs
}

func TestNew(t *testing.T) {
	r := New()
	if r == nil {
		t.Fatal("New() returned nil")
	}
	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
}

func TestLoad_ResolvesReferences(t *testing.T) {
	r := New()
	if err := r.Load(mustParse(t, definitionsYAML)); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	my, ok := r.Get("MyType")
	if !ok {
		t.Fatal("MyType not registered")
	}
	if shape.Documentation(my) != "Example record." {
		t.Errorf("Documentation() = %q", shape.Documentation(my))
	}

	wantTypes := map[string]string{
		"id":     "string",
		"count":  "number",
		"nested": "Nested",
		"set":    "set<Nested>",
		"map":    "map<array<Nested>>",
	}
	for _, f := range my.Fields() {
		if got := f.Shape.String(); got != wantTypes[f.Name] {
			t.Errorf("%s type = %s, want %s", f.Name, got, wantTypes[f.Name])
		}
	}

	id, _ := my.Field("id")
	if id.Shape.Metadata()["max_length"] != 1 {
		t.Errorf("id metadata = %v", id.Shape.Metadata())
	}

	nested, _ := my.Field("nested")
	inner := nested.Shape.(shape.Record)
	a, _ := inner.Field("a")
	if !shape.IsOptional(a.Shape) {
		t.Error("Nested.a should be optional")
	}

	if got := r.List(); len(got) != 2 || got[0] != "MyType" || got[1] != "Nested" {
		t.Errorf("List() = %v, want [MyType Nested]", got)
	}
	if def, ok := r.Definition("MyType"); !ok || def.Name != "MyType" {
		t.Errorf("Definition(MyType) = %+v, %v", def, ok)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown reference",
			yaml:    "shape: A\nfields:\n  b: set<Missing>\n",
			wantErr: `unknown shape "Missing"`,
		},
		{
			name:    "direct cycle",
			yaml:    "shape: A\nfields:\n  a: A\n",
			wantErr: "reference cycle: A -> A",
		},
		{
			name:    "indirect cycle",
			yaml:    "shape: A\nfields:\n  b: B\n---\nshape: B\nfields:\n  a: array<A>\n",
			wantErr: "reference cycle: A -> B -> A",
		},
		{
			name:    "defined twice",
			yaml:    "shape: A\nfields:\n  x: string\n---\nshape: A\nfields:\n  y: string\n",
			wantErr: "defined twice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()
			err := r.Load(mustParse(t, tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
			if r.Len() != 0 {
				t.Errorf("Len() = %d after failed load, want 0", r.Len())
			}
		})
	}
}

func TestLoad_ReferencesRegisteredShapes(t *testing.T) {
	r := New()
	point := shape.MustRecord("Point", shape.F("x", shape.Number), shape.F("y", shape.Number))
	if err := r.Register(point); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := r.Load(mustParse(t, "shape: Path\nfields:\n  points: array<Point>\n")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := r.Load(mustParse(t, "shape: Point\nfields:\n  z: number\n")); err == nil {
		t.Error("loading a name that is already registered should fail")
	}
}

func TestRegister(t *testing.T) {
	r := New()
	rec := shape.MustRecord("A", shape.F("x", shape.String))

	if err := r.Register(rec); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(rec); err == nil {
		t.Error("duplicate Register() should fail")
	}
	if err := r.Register(shape.MustRecord("", shape.F("x", shape.String))); err == nil {
		t.Error("anonymous Register() should fail")
	}
}

func TestReplace(t *testing.T) {
	r := New()
	builtin := shape.MustRecord("Builtin", shape.F("x", shape.String))
	if err := r.Register(builtin); err != nil {
		t.Fatal(err)
	}
	if err := r.Load(mustParse(t, definitionsYAML)); err != nil {
		t.Fatal(err)
	}

	oldMapper, err := r.Mapper("Nested")
	if err != nil {
		t.Fatal(err)
	}

	if err := r.Replace(mustParse(t, "shape: Nested\nfields:\n  b: number\n")); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	if _, ok := r.Get("MyType"); ok {
		t.Error("MyType should be gone after Replace")
	}
	if _, ok := r.Get("Builtin"); !ok {
		t.Error("shapes registered from Go should survive Replace")
	}

	newMapper, err := r.Mapper("Nested")
	if err != nil {
		t.Fatal(err)
	}
	if newMapper == oldMapper {
		t.Error("Replace should drop cached mappers")
	}
	if _, ok := newMapper.Shape().(shape.Record).Field("b"); !ok {
		t.Error("new mapper should use the replaced shape")
	}

	if err := r.Replace(mustParse(t, "shape: Broken\nfields:\n  x: Missing\n")); err == nil {
		t.Fatal("expected error for unknown reference")
	}
	if _, ok := r.Get("Nested"); !ok {
		t.Error("failed Replace should keep the previous shapes")
	}
}

func TestDerived_Cached(t *testing.T) {
	r := New(jsoncodec.WithTimestampFormat(jsoncodec.TimestampUnixMillis))
	if err := r.Load(mustParse(t, definitionsYAML)); err != nil {
		t.Fatal(err)
	}

	m1, err := r.Mapper("MyType")
	if err != nil {
		t.Fatal(err)
	}
	m2, _ := r.Mapper("MyType")
	if m1 != m2 {
		t.Error("Mapper() should return the cached mapper")
	}

	eq, err := r.Equals("Nested")
	if err != nil {
		t.Fatal(err)
	}
	hash, err := r.HashCode("Nested")
	if err != nil {
		t.Fatal(err)
	}
	a := runtime.Record{"a": "x"}
	b := runtime.Record{"a": "x"}
	if !eq(a, b) || hash(a) != hash(b) {
		t.Error("derived equals and hash should agree for equal values")
	}

	if _, err := r.Mapper("Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Mapper(Missing) error = %v, want ErrNotFound", err)
	}
}

func TestSetCodecOptions(t *testing.T) {
	r := New()
	if err := r.Load(mustParse(t, definitionsYAML)); err != nil {
		t.Fatal(err)
	}

	lenient, _ := r.Mapper("Nested")
	if _, err := lenient.Unmarshal([]byte(`{"a":"x","b":1}`)); err != nil {
		t.Fatalf("Unmarshal with unknown field error = %v", err)
	}

	r.SetCodecOptions(jsoncodec.WithUnknownFields(true))
	strict, _ := r.Mapper("Nested")
	if strict == lenient {
		t.Fatal("SetCodecOptions() should drop cached mappers")
	}
	if _, err := strict.Unmarshal([]byte(`{"a":"x","b":1}`)); !errors.Is(err, jsoncodec.ErrUnknownField) {
		t.Errorf("Unmarshal error = %v, want ErrUnknownField", err)
	}
}

func TestStorageMapper_IgnoresCodecOptions(t *testing.T) {
	r := New(jsoncodec.WithUnknownFields(true))
	if err := r.Load(mustParse(t, definitionsYAML)); err != nil {
		t.Fatal(err)
	}

	storage, err := r.StorageMapper("Nested")
	if err != nil {
		t.Fatalf("StorageMapper() error = %v", err)
	}
	if _, err := storage.Unmarshal([]byte(`{"a":"x","b":1}`)); err != nil {
		t.Errorf("storage mapper should use default options, got %v", err)
	}

	r.SetCodecOptions(jsoncodec.WithTimestampFormat(jsoncodec.TimestampUnixMillis))
	again, _ := r.StorageMapper("Nested")
	if _, err := again.Unmarshal([]byte(`{"a":"x","b":1}`)); err != nil {
		t.Errorf("storage mapper after SetCodecOptions error = %v", err)
	}
	if _, err := r.StorageMapper("Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("StorageMapper(Missing) error = %v, want ErrNotFound", err)
	}
}

func TestLookup(t *testing.T) {
	r := New()
	if err := r.Load(mustParse(t, definitionsYAML)); err != nil {
		t.Fatal(err)
	}

	s, err := r.Lookup("array<Nested>")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if s.String() != "array<Nested>" {
		t.Errorf("Lookup() = %s", s)
	}

	if _, err := r.Lookup("Missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(Missing) error = %v, want ErrNotFound", err)
	}
	if _, err := r.Lookup("array<"); err == nil {
		t.Error("Lookup with malformed expression should fail")
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shapes.yaml")
	if err := os.WriteFile(path, []byte("shape: A\nfields:\n  x: string\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	w := NewWatcher(r, dir, zerolog.Nop())

	var reloaded []string
	var failures int
	w.OnReload(func(names []string) { reloaded = names })
	w.OnError(func(error) { failures++ })

	if err := w.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(reloaded) != 1 || reloaded[0] != "A" {
		t.Errorf("OnReload names = %v, want [A]", reloaded)
	}

	if err := os.WriteFile(path, []byte("shape: A\nfields:\n  x: Missing\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := w.Reload(); err == nil {
		t.Fatal("expected error for broken definitions")
	}
	if failures != 1 {
		t.Errorf("OnError calls = %d, want 1", failures)
	}
	if _, ok := r.Get("A"); !ok {
		t.Error("failed reload should keep A")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("shape: A\nfields:\n  x: string\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := New()
	w := NewWatcher(r, dir, zerolog.Nop())
	w.debounce = 50 * time.Millisecond

	done := make(chan []string, 1)
	w.OnReload(func(names []string) {
		if len(names) != 2 {
			return
		}
		select {
		case done <- names:
		default:
		}
	})

	if err := w.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("shape: B\nfields:\n  a: A\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case names := <-done:
		if names[0] != "A" || names[1] != "B" {
			t.Errorf("reloaded names = %v, want [A B]", names)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	w.Stop()
	w.Stop()
}
