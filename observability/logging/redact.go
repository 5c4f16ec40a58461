package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the placeholder written in place of sensitive values.
const RedactedValue = "[REDACTED]"

// Keys that carry credentials. Everything else is logged as is.
var sensitiveKeys = map[string]struct{}{
	"authorization": {},
	"token":         {},
	"private_key":   {},
	"secret":        {},
}

// IsSensitive reports whether values logged under key must be masked.
func IsSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns a string attribute, masking the value when the key is
// sensitive. Empty values are left alone.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || !IsSensitive(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
