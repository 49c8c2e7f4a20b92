package shape

// Descriptor is a serializable view of a shape, used to expose shapes over
// the CLI and HTTP surfaces.
type Descriptor struct {
	Kind        Kind              `json:"kind" yaml:"kind"`
	Type        string            `json:"type" yaml:"type"`
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Optional    bool              `json:"optional,omitempty" yaml:"optional,omitempty"`
	Doc         string            `json:"doc,omitempty" yaml:"doc,omitempty"`
	Constraints []Constraint      `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty" yaml:"metadata,omitempty"` // traits that are not constraints
	Item        *Descriptor       `json:"item,omitempty" yaml:"item,omitempty"`
	Fields      []FieldDescriptor `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// FieldDescriptor describes one record field.
type FieldDescriptor struct {
	Field      string `json:"field" yaml:"field"`
	Descriptor `yaml:",inline"`
}

// Describe builds the descriptor tree for s. Nested records are expanded in
// full; the shape graph is acyclic by construction.
func Describe(s Shape) Descriptor {
	meta := s.Metadata()

	d := Descriptor{
		Kind:        s.Kind(),
		Type:        s.String(),
		Optional:    IsOptional(s),
		Doc:         Documentation(s),
		Constraints: Constraints(s),
	}

	for _, k := range meta.Keys() {
		if k == KeyOptional || k == KeyDoc || IsConstraint(k) {
			continue
		}
		if d.Metadata == nil {
			d.Metadata = make(map[string]any)
		}
		d.Metadata[k] = meta[k]
	}

	switch v := s.(type) {
	case Record:
		d.Name = v.Name()
		for _, f := range v.fields {
			d.Fields = append(d.Fields, FieldDescriptor{Field: f.Name, Descriptor: Describe(f.Shape)})
		}
	case Collection:
		item := Describe(v.Item())
		d.Item = &item
	}

	return d
}
