package shape

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const myTypeYAML = `
shape: MyType
doc: Example record.
fields:
  id:
    type: string
    doc: Field documentation.
    constraints: { max_length: 1, min_length: 0, pattern: ".*" }
  count:
    type: number
    constraints: { maximum: 1, minimum: 1, exclusive_minimum: true, multiple_of: 2 }
  boolean: bool
  nested: Nested
  array: array<string>
  set: set<string>
  map: map<Nested>
---
shape: Nested
fields:
  a: { type: string, optional: true }
`

func TestParse(t *testing.T) {
	defs, err := Parse([]byte(myTypeYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("len(defs) = %d, want 2", len(defs))
	}

	my := defs[0]
	if my.Name != "MyType" {
		t.Errorf("Name = %s, want MyType", my.Name)
	}
	if my.Doc != "Example record." {
		t.Errorf("Doc = %q", my.Doc)
	}

	wantOrder := []string{"id", "count", "boolean", "nested", "array", "set", "map"}
	if len(my.Fields) != len(wantOrder) {
		t.Fatalf("len(Fields) = %d, want %d", len(my.Fields), len(wantOrder))
	}
	for i, name := range wantOrder {
		if my.Fields[i].Name != name {
			t.Errorf("Fields[%d].Name = %s, want %s", i, my.Fields[i].Name, name)
		}
	}

	if my.Fields[2].Type != "bool" {
		t.Errorf("boolean type = %s, want bool", my.Fields[2].Type)
	}
	if my.Fields[0].Doc != "Field documentation." {
		t.Errorf("id doc = %q", my.Fields[0].Doc)
	}

	nested := defs[1]
	if !nested.Fields[0].Optional {
		t.Error("Nested.a should be optional")
	}
}

func TestParse_DuplicateField(t *testing.T) {
	data := `
shape: Dup
fields:
  a: string
  a: number
`
	_, err := Parse([]byte(data))
	if err == nil {
		t.Fatal("expected error for duplicate field")
	}
	if !strings.Contains(err.Error(), "duplicate field") {
		t.Errorf("error = %v, want mention of duplicate field", err)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "fields:\n  a: string\n",
			wantErr: "shape name is required",
		},
		{
			name:    "reserved name",
			yaml:    "shape: string\nfields:\n  a: string\n",
			wantErr: "reserved",
		},
		{
			name:    "no fields",
			yaml:    "shape: Empty\n",
			wantErr: "at least one field",
		},
		{
			name:    "bad type",
			yaml:    "shape: T\nfields:\n  a: array<string\n",
			wantErr: "missing closing",
		},
		{
			name:    "unknown constraint",
			yaml:    "shape: T\nfields:\n  a: { type: string, constraints: { shiny: true } }\n",
			wantErr: "unknown constraint",
		},
		{
			name:    "constraint on wrong kind",
			yaml:    "shape: T\nfields:\n  a: { type: bool, constraints: { maximum: 1 } }\n",
			wantErr: "does not apply",
		},
		{
			name:    "bad pattern",
			yaml:    "shape: T\nfields:\n  a: { type: string, constraints: { pattern: \"(\" } }\n",
			wantErr: "invalid pattern",
		},
		{
			name:    "negative length",
			yaml:    "shape: T\nfields:\n  a: { type: string, constraints: { max_length: -1 } }\n",
			wantErr: "non-negative",
		},
		{
			name:    "bad field name",
			yaml:    "shape: T\nfields:\n  1a: string\n",
			wantErr: "not a valid identifier",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestFieldDef_Traits(t *testing.T) {
	defs, err := Parse([]byte(myTypeYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	count := Apply(Number, defs[0].Fields[1].Traits()...)
	meta := count.Metadata()
	if meta["maximum"] != 1.0 {
		t.Errorf("maximum = %#v, want float64 1", meta["maximum"])
	}
	if meta["exclusive_minimum"] != true {
		t.Errorf("exclusive_minimum = %v, want true", meta["exclusive_minimum"])
	}

	id := Apply(String, defs[0].Fields[0].Traits()...)
	if Documentation(id) != "Field documentation." {
		t.Errorf("Documentation(id) = %q", Documentation(id))
	}
	if id.Metadata()["max_length"] != 1 {
		t.Errorf("max_length = %#v, want 1", id.Metadata()["max_length"])
	}

	a := Apply(String, defs[1].Fields[0].Traits()...)
	if !IsOptional(a) {
		t.Error("Nested.a should carry the optional trait")
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		expr    string
		want    string
		refs    []string
		wantErr bool
	}{
		{expr: "string", want: "string"},
		{expr: " number ", want: "number"},
		{expr: "array<string>", want: "array<string>"},
		{expr: "map< set<Nested> >", want: "map<set<Nested>>", refs: []string{"Nested"}},
		{expr: "Nested", want: "Nested", refs: []string{"Nested"}},
		{expr: "", wantErr: true},
		{expr: "array", wantErr: true},
		{expr: "record", wantErr: true},
		{expr: "list<string>", wantErr: true},
		{expr: "array<string>>", wantErr: true},
		{expr: "my-type", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseType(tt.expr)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseType(%q) = %v, want error", tt.expr, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseType(%q) error = %v", tt.expr, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseType(%q) = %s, want %s", tt.expr, got, tt.want)
			}
			refs := got.Refs()
			if len(refs) != len(tt.refs) {
				t.Fatalf("Refs() = %v, want %v", refs, tt.refs)
			}
			for i := range refs {
				if refs[i] != tt.refs[i] {
					t.Errorf("Refs()[%d] = %s, want %s", i, refs[i], tt.refs[i])
				}
			}
		})
	}
}

func TestParseDir(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	files := map[string]string{
		filepath.Join(dir, "a.yaml"):     "shape: A\nfields:\n  x: string\n",
		filepath.Join(sub, "b.yml"):      "shape: B\nfields:\n  y: A\n",
		filepath.Join(dir, "notes.txt"):  "not a definition",
		filepath.Join(dir, "broken.bak"): "shape: [",
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	defs, err := ParseDir(dir)
	if err != nil {
		t.Fatalf("ParseDir() error = %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("len(defs) = %d, want 2", len(defs))
	}

	sources := map[string]string{}
	for _, d := range defs {
		sources[d.Name] = d.Source
	}
	if sources["B"] != filepath.Join(sub, "b.yml") {
		t.Errorf("B.Source = %s", sources["B"])
	}
}

func TestParseFile_NotFound(t *testing.T) {
	_, err := ParseFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseFile_JSONC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "point.jsonc")
	content := `{
  // a point
  "shape": "Point",
  "fields": {
    "y": "number",
    "x": {"type": "number", "optional": true,},
  },
}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	defs, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "Point" {
		t.Fatalf("defs = %+v", defs)
	}
	fields := defs[0].Fields
	if len(fields) != 2 || fields[0].Name != "y" || fields[1].Name != "x" {
		t.Errorf("fields = %+v, want y then x", fields)
	}
	if !fields[1].Optional {
		t.Error("x should be optional")
	}
}
