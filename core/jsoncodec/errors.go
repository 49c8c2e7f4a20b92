package jsoncodec

import (
	"errors"
	"fmt"
)

var (
	// ErrTypeMismatch is returned when a value does not have the JSON or Go
	// type its shape requires.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrMissingField is returned when a required record field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrUnknownField is returned for undeclared record keys when unknown
	// fields are rejected.
	ErrUnknownField = errors.New("unknown field")
	// ErrInvalidValue is returned when a value has the right type but cannot
	// be represented, such as a malformed timestamp or a NaN.
	ErrInvalidValue = errors.New("invalid value")
)

// DecodeError describes why Read rejected a JSON value.
type DecodeError struct {
	Path string // JSON pointer to the offending value
	Want string
	Got  string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v: want %s, got %s", pointer(e.Path), e.Err, e.Want, e.Got)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError describes why Write rejected a runtime value.
type EncodeError struct {
	Path string
	Want string
	Got  string
	Err  error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s: %v: want %s, got %s", pointer(e.Path), e.Err, e.Want, e.Got)
}

func (e *EncodeError) Unwrap() error { return e.Err }

func pointer(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

// jsonType names the JSON type of a decoded value.
func jsonType(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any, Object:
		return "object"
	}
	if _, ok := asNumber(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

func goType(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
