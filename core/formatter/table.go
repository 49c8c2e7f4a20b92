package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/core/shape"
)

// TableFormatter formats output as aligned text tables.
type TableFormatter struct{}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Name returns the formatter name.
func (f *TableFormatter) Name() string {
	return "table"
}

// Description returns the formatter description.
func (f *TableFormatter) Description() string {
	return "Aligned text table output"
}

// FormatShapes formats a list of shapes, one row per shape.
func (f *TableFormatter) FormatShapes(w io.Writer, shapes []shape.Descriptor, opts FormatOptions) error {
	if len(shapes) == 0 {
		fmt.Fprintln(w, "No shapes found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !opts.NoHeader {
		fmt.Fprintln(tw, "NAME\tFIELDS\tDOC")
	}
	for _, d := range shapes {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Name, len(d.Fields), f.truncate(d.Doc, opts.MaxWidth))
	}
	return tw.Flush()
}

// FormatShape formats a record's fields as a table.
func (f *TableFormatter) FormatShape(w io.Writer, d shape.Descriptor, opts FormatOptions) error {
	fmt.Fprintf(w, "Shape: %s\n", d.Type)
	if d.Doc != "" {
		fmt.Fprintf(w, "Doc:   %s\n", d.Doc)
	}
	if len(d.Fields) == 0 {
		return nil
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if !opts.NoHeader {
		fmt.Fprintln(tw, "FIELD\tTYPE\tOPTIONAL\tCONSTRAINTS\tDOC")
	}
	for _, field := range d.Fields {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			field.Field,
			field.Type,
			f.formatValue(field.Optional, 0),
			f.formatConstraints(field.Constraints),
			f.truncate(field.Doc, opts.MaxWidth),
		)
	}
	return tw.Flush()
}

// FormatValue formats a record value as key-value pairs. Other values are
// printed on a single line.
func (f *TableFormatter) FormatValue(w io.Writer, v any, opts FormatOptions) error {
	obj, ok := v.(jsoncodec.Object)
	if !ok {
		fmt.Fprintln(w, f.formatValue(v, opts.MaxWidth))
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, m := range obj {
		fmt.Fprintf(tw, "%s:\t%s\n", f.formatLabel(m.Key), f.formatValue(m.Value, opts.MaxWidth))
	}
	return tw.Flush()
}

// FormatError formats an error message.
func (f *TableFormatter) FormatError(w io.Writer, err error) error {
	fmt.Fprintf(w, "Error: %s\n", err.Error())
	return nil
}

func (f *TableFormatter) formatConstraints(cs []shape.Constraint) string {
	if len(cs) == 0 {
		return "-"
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("%s=%s", c.Type, f.formatValue(c.Value, 0))
	}
	return strings.Join(parts, ",")
}

// formatLabel formats a field name as a label.
func (f *TableFormatter) formatLabel(name string) string {
	// Convert snake_case to Title Case
	words := strings.Split(name, "_")
	for i, word := range words {
		if len(word) > 0 {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ")
}

// formatValue formats a value for display.
func (f *TableFormatter) formatValue(val any, maxWidth int) string {
	if val == nil {
		return "-"
	}

	var str string
	switch v := val.(type) {
	case string:
		str = v
	case bool:
		if v {
			str = "yes"
		} else {
			str = "no"
		}
	case int:
		str = strconv.Itoa(v)
	case float64:
		str = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		b, _ := json.Marshal(v)
		str = string(b)
	}

	return f.truncate(str, maxWidth)
}

func (f *TableFormatter) truncate(str string, maxWidth int) string {
	if maxWidth > 3 && len(str) > maxWidth {
		return str[:maxWidth-3] + "..."
	}
	return str
}

func init() {
	Register(NewTableFormatter())
}
