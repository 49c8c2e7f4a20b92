package jsoncodec

import "fmt"

// TimestampFormat selects the wire encoding of timestamp values.
type TimestampFormat string

const (
	// TimestampRFC3339 encodes timestamps as RFC 3339 strings with
	// nanosecond precision. This is the default.
	TimestampRFC3339 TimestampFormat = "rfc3339"
	// TimestampUnixMillis encodes timestamps as milliseconds since the Unix
	// epoch. Sub-millisecond precision is lost on write.
	TimestampUnixMillis TimestampFormat = "unix_millis"
)

// ParseTimestampFormat maps a configuration value to a TimestampFormat. The
// empty string selects the default.
func ParseTimestampFormat(s string) (TimestampFormat, error) {
	switch TimestampFormat(s) {
	case "", TimestampRFC3339:
		return TimestampRFC3339, nil
	case TimestampUnixMillis:
		return TimestampUnixMillis, nil
	}
	return "", fmt.Errorf("unknown timestamp format %q (want %s or %s)", s, TimestampRFC3339, TimestampUnixMillis)
}

type options struct {
	timestamps          TimestampFormat
	rejectUnknownFields bool
}

func defaultOptions() options {
	return options{timestamps: TimestampRFC3339}
}

// Option configures a Mapper.
type Option func(*options)

// WithTimestampFormat sets the timestamp wire encoding.
func WithTimestampFormat(f TimestampFormat) Option {
	return func(o *options) {
		o.timestamps = f
	}
}

// WithUnknownFields controls whether Read rejects record keys that the shape
// does not declare. They are ignored by default.
func WithUnknownFields(reject bool) Option {
	return func(o *options) {
		o.rejectUnknownFields = reject
	}
}
