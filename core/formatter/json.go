package formatter

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/artpar/shapekit/core/shape"
)

// JSONFormatter formats output as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// Name returns the formatter name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// Description returns the formatter description.
func (f *JSONFormatter) Description() string {
	return "JSON output format"
}

// FormatShapes formats a list of shapes as JSON.
func (f *JSONFormatter) FormatShapes(w io.Writer, shapes []shape.Descriptor, opts FormatOptions) error {
	if shapes == nil {
		shapes = []shape.Descriptor{}
	}
	output := map[string]any{
		"count":  len(shapes),
		"shapes": shapes,
	}
	return f.encode(w, output, opts.Compact)
}

// FormatShape formats a single shape as JSON.
func (f *JSONFormatter) FormatShape(w io.Writer, d shape.Descriptor, opts FormatOptions) error {
	return f.encode(w, d, opts.Compact)
}

// FormatValue formats a value as JSON. Record fields keep their declared
// order.
func (f *JSONFormatter) FormatValue(w io.Writer, v any, opts FormatOptions) error {
	return f.encode(w, v, opts.Compact)
}

// FormatError formats an error as JSON.
func (f *JSONFormatter) FormatError(w io.Writer, err error) error {
	output := map[string]any{
		"error": err.Error(),
	}
	return f.encode(w, output, false)
}

// encode writes JSON to the writer.
func (f *JSONFormatter) encode(w io.Writer, data any, compact bool) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if !compact {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(data)
}

func init() {
	if err := Register(NewJSONFormatter()); err != nil {
		fmt.Printf("failed to register json formatter: %v\n", err)
	}
}
