/*
Package shape defines the structural type descriptors that every other shapekit
package derives its behaviour from.

A shape describes the structure of a value. Codecs, equality and hashing are
all derived from a shape; nothing is hand-written per type.

# Kinds

Supported kinds:

  - string:    Text value
  - number:    Numeric value (float64 at runtime)
  - timestamp: Point in time (time.Time at runtime)
  - bool:      Boolean value
  - record:    Named, ordered set of uniquely named fields
  - array:     Ordered sequence of one item shape
  - set:       Unordered, duplicate-free collection of one item shape
  - map:       String-keyed mapping to one item shape

# Defining Shapes in Go

	var Nested = shape.MustRecord("Nested",
		shape.F("a", shape.String.Apply(shape.Optional())),
	)

	var MyType = shape.MustRecord("MyType",
		shape.F("id", shape.String.Apply(shape.MaxLength(1), shape.Pattern(".*"))),
		shape.F("count", shape.Number.Apply(shape.Maximum(1, false))),
		shape.F("nested", Nested),
		shape.F("tags", shape.SetOf(shape.String)),
	)

Field order is significant: it drives hash combination and JSON field order.

# Traits

Traits are plain key/value data merged into a shape's metadata by Apply. The
original shape is never modified. Constraint traits (MaxLength, MinLength,
Pattern, Maximum, Minimum, MultipleOf) are carried for external validators and
are never enforced here.

# Defining Shapes in YAML

	shape: MyType
	doc: Example record.
	fields:
	  id:
	    type: string
	    constraints: { max_length: 1, pattern: ".*" }
	  count:   { type: number, constraints: { maximum: 1 } }
	  boolean: bool
	  nested:  Nested
	  array:   array<string>
	  set:     set<string>
	  map:     map<Nested>

Load definitions with:

	defs, err := shape.ParseFile("shapes/mytype.yaml")
	defs, err := shape.ParseDir("shapes/")

Definitions reference each other by name; resolving them into shapes is the
job of the registry package.
*/
package shape
