// Package normalize reconciles the field spellings used by the backend and
// the broker into the canonical models. Every function here is total:
// missing or malformed fields fall back to zero values, never errors.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"
)

// Record is one decoded JSON object as returned by the backend.
type Record = map[string]any

// Accessors is an ordered list of JSONPath expressions for one canonical
// field. The first expression that yields a present, non-nil, non-empty
// value wins.
type Accessors []string

// Lookup returns the first present value in rec.
func (a Accessors) Lookup(rec any) (any, bool) {
	if rec == nil {
		return nil, false
	}
	for _, path := range a {
		v, err := jsonpath.Get(path, rec)
		if err != nil {
			continue
		}
		if present(v) {
			return v, true
		}
	}
	return nil, false
}

// Has reports whether any accessor yields a present value.
func (a Accessors) Has(rec any) bool {
	_, ok := a.Lookup(rec)
	return ok
}

// String returns the first value that renders as a non-empty scalar string.
// Objects and lists are skipped.
func (a Accessors) String(rec any) string {
	if rec == nil {
		return ""
	}
	for _, path := range a {
		v, err := jsonpath.Get(path, rec)
		if err != nil {
			continue
		}
		if s := toString(v); s != "" {
			return s
		}
	}
	return ""
}

// Decimal returns the first present value coerced to a number, 0 on failure.
func (a Accessors) Decimal(rec any) decimal.Decimal {
	v, ok := a.Lookup(rec)
	if !ok {
		return decimal.Zero
	}
	return toDecimal(v)
}

// Float returns the first present value as float64, 0 on failure.
func (a Accessors) Float(rec any) float64 {
	return a.Decimal(rec).InexactFloat64()
}

// Int returns the first present value truncated to an int, 0 on failure.
func (a Accessors) Int(rec any) int {
	return int(a.Decimal(rec).IntPart())
}

// Time returns the first present value parsed as a timestamp, nil when
// absent, unparseable, or the zero date the broker uses for "no expiry".
func (a Accessors) Time(rec any) *time.Time {
	s := a.String(rec)
	if s == "" {
		return nil
	}
	return parseTime(s)
}

// Map returns the first present value that is a JSON object.
func (a Accessors) Map(rec any) map[string]any {
	v, ok := a.Lookup(rec)
	if !ok {
		return nil
	}
	m, _ := v.(map[string]any)
	return m
}

func present(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(x) != ""
	case []any:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	}
	return true
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func toDecimal(v any) decimal.Decimal {
	switch x := v.(type) {
	case float64:
		return decimal.NewFromFloat(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		s := strings.NewReplacer(",", "", "₹", "", " ", "").Replace(strings.TrimSpace(x))
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02-Jan-2006",
}

func parseTime(s string) *time.Time {
	if strings.HasPrefix(s, "0001-01-01") {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// SecurityID renders a security identifier in its canonical form: trimmed,
// and without the fractional part a float-typed id picks up on the way
// through JSON (1333.0 -> "1333"). Leading zeros are kept.
func SecurityID(v any) string {
	s := toString(v)
	if !strings.Contains(s, ".") {
		return s
	}
	d, err := decimal.NewFromString(s)
	if err != nil || !d.Equal(d.Truncate(0)) {
		return s
	}
	return d.Truncate(0).String()
}

// First returns the first present value at any of the paths.
func First(rec any, paths ...string) (any, bool) {
	return Accessors(paths).Lookup(rec)
}

// FirstString returns the first present value at any of the paths as a string.
func FirstString(rec any, paths ...string) string {
	return Accessors(paths).String(rec)
}

// Records extracts the list of records stored under the first present key
// of payload. A single object is returned as a one-element list, and one
// level of nested {"data": [...]} wrapping is unwrapped.
func Records(payload Record, keys ...string) []Record {
	for _, key := range keys {
		v, ok := payload[key]
		if !ok || !present(v) {
			continue
		}
		return toRecords(v, true)
	}
	return nil
}

func toRecords(v any, unwrap bool) []Record {
	switch x := v.(type) {
	case []any:
		out := make([]Record, 0, len(x))
		for _, item := range x {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		if inner, ok := x["data"]; ok && unwrap {
			if _, isList := inner.([]any); isList {
				return toRecords(inner, false)
			}
		}
		return []Record{x}
	}
	return nil
}
