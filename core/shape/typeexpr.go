package shape

import (
	"fmt"
	"strings"
)

// TypeExpr is a parsed type expression such as "string", "set<Nested>" or
// "map<array<number>>". Named records are left unresolved in Ref.
type TypeExpr struct {
	Kind Kind
	Ref  string
	Item *TypeExpr
}

// ParseType parses a type expression.
func ParseType(expr string) (TypeExpr, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return TypeExpr{}, fmt.Errorf("empty type expression")
	}

	if open := strings.IndexByte(expr, '<'); open >= 0 {
		if !strings.HasSuffix(expr, ">") {
			return TypeExpr{}, fmt.Errorf("type %q: missing closing '>'", expr)
		}
		kind := Kind(strings.TrimSpace(expr[:open]))
		if !kind.IsCollection() {
			return TypeExpr{}, fmt.Errorf("type %q: %q is not a collection", expr, kind)
		}
		item, err := ParseType(expr[open+1 : len(expr)-1])
		if err != nil {
			return TypeExpr{}, fmt.Errorf("type %q: %w", expr, err)
		}
		return TypeExpr{Kind: kind, Item: &item}, nil
	}

	if strings.ContainsAny(expr, ">,") {
		return TypeExpr{}, fmt.Errorf("type %q: unexpected character", expr)
	}

	kind := Kind(expr)
	if kind.IsPrimitive() {
		return TypeExpr{Kind: kind}, nil
	}
	if kind.IsCollection() || kind == KindRecord {
		return TypeExpr{}, fmt.Errorf("type %q requires an item type", expr)
	}
	if !isValidIdentifier(expr) {
		return TypeExpr{}, fmt.Errorf("type %q is not a valid identifier", expr)
	}
	return TypeExpr{Kind: KindRecord, Ref: expr}, nil
}

// String renders the expression back to its source form.
func (t TypeExpr) String() string {
	switch {
	case t.Item != nil:
		return string(t.Kind) + "<" + t.Item.String() + ">"
	case t.Ref != "":
		return t.Ref
	default:
		return string(t.Kind)
	}
}

// Refs returns the record names the expression references.
func (t TypeExpr) Refs() []string {
	switch {
	case t.Item != nil:
		return t.Item.Refs()
	case t.Ref != "":
		return []string{t.Ref}
	default:
		return nil
	}
}

// isValidIdentifier checks if a string is a valid identifier.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, c := range s {
		if i == 0 {
			if !isLetter(c) && c != '_' {
				return false
			}
		} else {
			if !isLetter(c) && !isDigit(c) && c != '_' {
				return false
			}
		}
	}

	return true
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

// isReservedName reports whether name collides with a built-in kind.
func isReservedName(name string) bool {
	k := Kind(name)
	return k.IsPrimitive() || k.IsCollection() || k == KindRecord
}
