package logging

import (
	"regexp"
	"strings"
)

// secretPattern matches key=value or key: value pairs whose value is a
// broker credential.
var secretPattern = regexp.MustCompile(`(?i)(access[_-]?token|auth[_-]?token|client[_-]?secret|api[_-]?key|dhan[_-]?client[_-]?id|password|bearer)("?\s*[=:]\s*"?|\s+)([^\s"',}&]+)`)

// Redact masks credential values in s before it reaches a log sink.
func Redact(s string) string {
	if s == "" {
		return s
	}
	return secretPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := secretPattern.FindStringSubmatch(match)
		return parts[1] + parts[2] + Mask(parts[3])
	})
}

// Mask keeps the first and last four characters of long values and hides
// the rest.
func Mask(value string) string {
	switch n := len(value); {
	case n == 0:
		return ""
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		return value[:2] + strings.Repeat("*", n-2)
	default:
		return value[:4] + strings.Repeat("*", n-8) + value[n-4:]
	}
}

type redactedError struct {
	msg string
	err error
}

func (e redactedError) Error() string { return e.msg }
func (e redactedError) Unwrap() error { return e.err }

func redactErr(err error) error {
	if err == nil {
		return nil
	}
	msg := Redact(err.Error())
	if msg == err.Error() {
		return err
	}
	return redactedError{msg: msg, err: err}
}
