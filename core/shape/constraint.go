package shape

// ConstraintType identifies a constraint trait. The value doubles as the
// metadata key the trait is stored under.
type ConstraintType string

const (
	// Length constraints (strings and collections)
	ConstraintMaxLength ConstraintType = "max_length"
	ConstraintMinLength ConstraintType = "min_length"

	// String constraints
	ConstraintPattern ConstraintType = "pattern"

	// Numeric constraints
	ConstraintMaximum          ConstraintType = "maximum"
	ConstraintExclusiveMaximum ConstraintType = "exclusive_maximum"
	ConstraintMinimum          ConstraintType = "minimum"
	ConstraintExclusiveMinimum ConstraintType = "exclusive_minimum"
	ConstraintMultipleOf       ConstraintType = "multiple_of"
)

// constraintOrder is the order constraints are reported in.
var constraintOrder = []ConstraintType{
	ConstraintMinLength,
	ConstraintMaxLength,
	ConstraintPattern,
	ConstraintMinimum,
	ConstraintExclusiveMinimum,
	ConstraintMaximum,
	ConstraintExclusiveMaximum,
	ConstraintMultipleOf,
}

// Constraint is a constraint trait read back from a shape's metadata.
type Constraint struct {
	Type  ConstraintType `json:"type" yaml:"type"`
	Value any            `json:"value" yaml:"value"`
}

// IsConstraint reports whether key names a known constraint.
func IsConstraint(key string) bool {
	for _, t := range constraintOrder {
		if string(t) == key {
			return true
		}
	}
	return false
}

// AppliesTo reports whether constraint t is meaningful for kind k.
func (t ConstraintType) AppliesTo(k Kind) bool {
	switch t {
	case ConstraintMaxLength, ConstraintMinLength:
		return k == KindString || k.IsCollection()
	case ConstraintPattern:
		return k == KindString
	case ConstraintMaximum, ConstraintExclusiveMaximum,
		ConstraintMinimum, ConstraintExclusiveMinimum, ConstraintMultipleOf:
		return k == KindNumber
	default:
		return false
	}
}

// MaxLength limits the length of a string or collection.
func MaxLength(n int) Trait {
	return Trait{string(ConstraintMaxLength): n}
}

// MinLength requires a minimum length of a string or collection.
func MinLength(n int) Trait {
	return Trait{string(ConstraintMinLength): n}
}

// Pattern requires a string to match a regular expression.
func Pattern(pattern string) Trait {
	return Trait{string(ConstraintPattern): pattern}
}

// Maximum bounds a number from above.
func Maximum(n float64, exclusive bool) Trait {
	return Trait{
		string(ConstraintMaximum):          n,
		string(ConstraintExclusiveMaximum): exclusive,
	}
}

// Minimum bounds a number from below.
func Minimum(n float64, exclusive bool) Trait {
	return Trait{
		string(ConstraintMinimum):          n,
		string(ConstraintExclusiveMinimum): exclusive,
	}
}

// MultipleOf requires a number to be a multiple of n.
func MultipleOf(n float64) Trait {
	return Trait{string(ConstraintMultipleOf): n}
}

// Even is MultipleOf(2).
func Even() Trait {
	return MultipleOf(2)
}

// Constraints returns the constraint traits attached to s in a stable order.
func Constraints(s Shape) []Constraint {
	meta := s.Metadata()

	var out []Constraint
	for _, t := range constraintOrder {
		if v, ok := meta[string(t)]; ok {
			out = append(out, Constraint{Type: t, Value: v})
		}
	}
	return out
}
