// Package backend is the HTTP client for the local trading backend that
// fronts the broker. It returns raw envelopes; field reconciliation is left
// to the normalize package.
package backend

import (
	"fmt"
	"strings"

	"dhan-trader/internal/errors"
	"dhan-trader/internal/normalize"
)

// usableStatuses are the status values that mark a response as a
// successful result.
var usableStatuses = map[string]bool{
	"success":  true,
	"ok":       true,
	"degraded": true,
}

// messageFields lists where a human-readable reason is found. The backend's
// own message comes first; raw broker remarks are only read when it has none.
var messageFields = normalize.Accessors{
	"$.message",
	"$.error",
	"$.broker.remarks.error_message",
	"$.data.remarks.error_message",
	"$.remarks.error_message",
	"$.data.errorMessage",
	"$.data.error_message",
	"$.why",
	"$.detail",
	"$.detail[0].msg",
}

var requestIDFields = normalize.Accessors{"$.rid", "$.request_id", "$.requestId"}

// Envelope is one decoded backend response.
type Envelope struct {
	Body map[string]any
	// HeaderRequestID is the X-Request-ID response header, if any.
	HeaderRequestID string
	StatusCode      int
}

// NewEnvelope wraps a decoded body.
func NewEnvelope(body map[string]any) *Envelope {
	if body == nil {
		body = map[string]any{}
	}
	return &Envelope{Body: body}
}

// Status returns the lowercased status field.
func (e *Envelope) Status() string {
	if e == nil {
		return ""
	}
	return strings.ToLower(normalize.FirstString(e.Body, "$.status"))
}

// OK reports whether the status marks a usable result.
func (e *Envelope) OK() bool {
	return usableStatuses[e.Status()]
}

// Message returns the most specific human-readable message in the body.
func (e *Envelope) Message() string {
	if e == nil {
		return ""
	}
	return messageFields.String(e.Body)
}

// RequestID returns the correlation id from the body, falling back to the
// X-Request-ID response header.
func (e *Envelope) RequestID() string {
	if e == nil {
		return ""
	}
	if rid := requestIDFields.String(e.Body); rid != "" {
		return rid
	}
	return e.HeaderRequestID
}

// Records returns the list stored under the first present key.
func (e *Envelope) Records(keys ...string) []normalize.Record {
	if e == nil {
		return nil
	}
	return normalize.Records(e.Body, keys...)
}

// String returns the first present value at any path as a string.
func (e *Envelope) String(paths ...string) string {
	if e == nil {
		return ""
	}
	return normalize.FirstString(e.Body, paths...)
}

// Bool reports whether the first present value at any path is truthy.
func (e *Envelope) Bool(paths ...string) bool {
	if e == nil {
		return false
	}
	v, ok := normalize.First(e.Body, paths...)
	if !ok {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case string:
		s := strings.ToLower(x)
		return s == "true" || s == "yes" || s == "1"
	case float64:
		return x != 0
	}
	return false
}

// Describe returns the most specific human-readable reason for a failed
// call. A call that never reached the backend reads "Backend unreachable".
func Describe(env *Envelope, err error) string {
	if msg := env.Message(); msg != "" {
		return msg
	}
	var berr *errors.BackendError
	if errors.As(err, &berr) {
		if berr.Message != "" {
			return berr.Message
		}
		return fmt.Sprintf("backend returned status %q", berr.Status)
	}
	var terr *errors.TransportError
	if errors.As(err, &terr) {
		if terr.StatusCode != 0 {
			return fmt.Sprintf("backend returned HTTP %d", terr.StatusCode)
		}
		return "Backend unreachable"
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
