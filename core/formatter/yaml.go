package formatter

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/artpar/shapekit/core/shape"
)

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

// Name returns the formatter name.
func (f *YAMLFormatter) Name() string {
	return "yaml"
}

// Description returns the formatter description.
func (f *YAMLFormatter) Description() string {
	return "YAML output format"
}

// FormatShapes formats a list of shapes as YAML.
func (f *YAMLFormatter) FormatShapes(w io.Writer, shapes []shape.Descriptor, opts FormatOptions) error {
	if shapes == nil {
		shapes = []shape.Descriptor{}
	}
	output := map[string]any{
		"count":  len(shapes),
		"shapes": shapes,
	}
	return f.encode(w, output)
}

// FormatShape formats a single shape as YAML.
func (f *YAMLFormatter) FormatShape(w io.Writer, d shape.Descriptor, opts FormatOptions) error {
	return f.encode(w, d)
}

// FormatValue formats a value as YAML. jsoncodec.Object renders as an
// ordered mapping.
func (f *YAMLFormatter) FormatValue(w io.Writer, v any, opts FormatOptions) error {
	return f.encode(w, v)
}

// FormatError formats an error as YAML.
func (f *YAMLFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error": err.Error(),
	}
	return f.encode(w, output)
}

// encode writes YAML to the writer.
func (f *YAMLFormatter) encode(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(data)
}

func init() {
	if err := Register(NewYAMLFormatter()); err != nil {
		fmt.Printf("failed to register yaml formatter: %v\n", err)
	}
}
