package shape

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Definition is a record shape declared in YAML. Field types are unresolved
// type expressions; the registry package turns definitions into shapes.
type Definition struct {
	// Name is the record name other definitions refer to it by.
	Name string `yaml:"shape"`

	// Doc is attached to the resolved record with the Doc trait.
	Doc string `yaml:"doc,omitempty"`

	// Fields in declaration order.
	Fields FieldDefs `yaml:"fields"`

	// Source is the file the definition was read from, if any.
	Source string `yaml:"-"`
}

// FieldDef declares one record field.
type FieldDef struct {
	Name        string         `yaml:"-"`
	Type        string         `yaml:"type"`
	Optional    bool           `yaml:"optional,omitempty"`
	Doc         string         `yaml:"doc,omitempty"`
	Constraints map[string]any `yaml:"constraints,omitempty"`
}

// Traits returns the traits the field definition describes.
func (f FieldDef) Traits() []Trait {
	var traits []Trait
	if f.Optional {
		traits = append(traits, Optional())
	}
	if f.Doc != "" {
		traits = append(traits, Doc(f.Doc))
	}
	if len(f.Constraints) > 0 {
		t := make(Trait, len(f.Constraints))
		for k, v := range f.Constraints {
			t[k] = normalizeConstraintValue(ConstraintType(k), v)
		}
		traits = append(traits, t)
	}
	return traits
}

// FieldDefs is an ordered list of field definitions. In YAML it is written
// as a mapping; key order is preserved.
type FieldDefs []FieldDef

// UnmarshalYAML decodes a mapping of field name to either a bare type
// expression or a full field definition.
func (f *FieldDefs) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}

	seen := make(map[string]int, len(node.Content)/2)
	defs := make(FieldDefs, 0, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		if first, dup := seen[key.Value]; dup {
			return fmt.Errorf("line %d: %w %q (first declared on line %d)", key.Line, ErrDuplicateField, key.Value, first)
		}
		seen[key.Value] = key.Line

		var def FieldDef
		switch value.Kind {
		case yaml.ScalarNode:
			def.Type = value.Value
		case yaml.MappingNode:
			if err := value.Decode(&def); err != nil {
				return fmt.Errorf("field %q: %w", key.Value, err)
			}
		default:
			return fmt.Errorf("line %d: field %q must be a type or a mapping", value.Line, key.Value)
		}
		def.Name = key.Value

		defs = append(defs, def)
	}

	*f = defs
	return nil
}

// ParseFile parses the shape definitions in a YAML file. Files ending in
// .json or .jsonc are accepted too; comments and trailing commas are
// stripped before parsing.
func ParseFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	if isJSONFile(path) {
		data = jsonc.ToJSON(data)
	}

	defs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range defs {
		defs[i].Source = path
	}
	return defs, nil
}

// Parse parses shape definitions from YAML bytes. A document stream may
// hold several definitions separated by "---".
func Parse(data []byte) ([]Definition, error) {
	var defs []Definition

	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var def Definition
		err := dec.Decode(&def)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}

		if err := Validate(def); err != nil {
			return nil, fmt.Errorf("validate shape %q: %w", def.Name, err)
		}
		defs = append(defs, def)
	}

	return defs, nil
}

// ParseDir parses all definitions from a directory, including subdirectories.
func ParseDir(dir string) ([]Definition, error) {
	var defs []Definition

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		if entry.IsDir() {
			sub, err := ParseDir(path)
			if err != nil {
				return nil, err
			}
			defs = append(defs, sub...)
			continue
		}

		if !IsDefinitionFile(entry.Name()) {
			continue
		}

		fileDefs, err := ParseFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, fileDefs...)
	}

	return defs, nil
}

// IsDefinitionFile reports whether name has a definition file extension.
func IsDefinitionFile(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") || isJSONFile(name)
}

func isJSONFile(name string) bool {
	return strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".jsonc")
}

// Validate checks a definition in isolation. References to other
// definitions are not resolved here.
func Validate(def Definition) error {
	var errs []string

	if def.Name == "" {
		errs = append(errs, "shape name is required")
	} else if !isValidIdentifier(def.Name) {
		errs = append(errs, fmt.Sprintf("shape name %q is not a valid identifier", def.Name))
	} else if isReservedName(def.Name) {
		errs = append(errs, fmt.Sprintf("shape name %q is reserved", def.Name))
	}

	if len(def.Fields) == 0 {
		errs = append(errs, "shape must have at least one field")
	}

	for _, field := range def.Fields {
		if !isValidIdentifier(field.Name) {
			errs = append(errs, fmt.Sprintf("field name %q is not a valid identifier", field.Name))
		}
		if err := validateField(field); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// validateField checks a field's type expression and constraints.
func validateField(field FieldDef) error {
	expr, err := ParseType(field.Type)
	if err != nil {
		return fmt.Errorf("field %q: %w", field.Name, err)
	}

	for key, value := range field.Constraints {
		ct := ConstraintType(key)
		if !IsConstraint(key) {
			return fmt.Errorf("field %q: unknown constraint %q", field.Name, key)
		}
		// Kind checks are skipped for references; their kind is always record.
		if expr.Ref == "" && !ct.AppliesTo(expr.Kind) {
			return fmt.Errorf("field %q: constraint %q does not apply to %s", field.Name, key, expr)
		}
		if err := validateConstraintValue(ct, value); err != nil {
			return fmt.Errorf("field %q: constraint %q: %w", field.Name, key, err)
		}
	}

	return nil
}

// validateConstraintValue checks the YAML value type of a constraint.
func validateConstraintValue(ct ConstraintType, value any) error {
	switch ct {
	case ConstraintMaxLength, ConstraintMinLength:
		n, ok := value.(int)
		if !ok || n < 0 {
			return fmt.Errorf("must be a non-negative integer")
		}
	case ConstraintPattern:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("must be a string")
		}
		if _, err := regexp.Compile(s); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	case ConstraintExclusiveMaximum, ConstraintExclusiveMinimum:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("must be a boolean")
		}
	case ConstraintMaximum, ConstraintMinimum, ConstraintMultipleOf:
		switch value.(type) {
		case int, float64:
		default:
			return fmt.Errorf("must be a number")
		}
	}
	return nil
}

// normalizeConstraintValue converts YAML integers to float64 for numeric
// constraints so YAML and Go definitions carry identical metadata.
func normalizeConstraintValue(ct ConstraintType, value any) any {
	switch ct {
	case ConstraintMaximum, ConstraintMinimum, ConstraintMultipleOf:
		if n, ok := value.(int); ok {
			return float64(n)
		}
	}
	return value
}
