// Package normalize turns raw upstream records into typed snapshots.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// Date converts "DD.MM.YYYY" (leading zeros optional) or an ISO date or
// timestamp into "YYYY-MM-DD". It returns nil for anything that is not a
// real calendar date.
func Date(v any) *string {
	s := strings.TrimSpace(Text(v))
	if s == "" {
		return nil
	}

	var (
		t   time.Time
		err error
	)
	if strings.Contains(s, ".") {
		t, err = time.Parse("2.1.2006", s)
	} else {
		if i := strings.IndexAny(s, "T "); i > 0 {
			s = s[:i]
		}
		t, err = time.Parse(isoDate, s)
	}
	if err != nil {
		return nil
	}

	out := t.Format(isoDate)
	return &out
}

// Number coerces v into a finite float. Native numbers and json.Number are
// taken as-is; strings are trimmed and may use a decimal comma. Anything
// else is unknown.
func Number(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		s = strings.NewReplacer(",", ".", " ", "", "\u00a0", "").Replace(s)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Text returns the trimmed string form of v, "" when absent.
func Text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Segments splits a composite "a/ b/ c" string into trimmed parts.
func Segments(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, "/")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Segment returns the i-th segment of a composite string, or "" when it
// does not exist or is blank.
func Segment(s string, i int) string {
	parts := Segments(s)
	if i < 0 || i >= len(parts) {
		return ""
	}
	return parts[i]
}

// FirstNumeric returns the first segment, left to right, that parses as a
// number.
func FirstNumeric(s string) *float64 {
	for _, part := range Segments(s) {
		if part == "" {
			continue
		}
		if n := Number(part); n != nil {
			return n
		}
	}
	return nil
}

// Entry returns the i-th non-blank entry of a sep-separated list, such as
// the ";"-separated axle tyre list.
func Entry(s, sep string, i int) string {
	var entries []string
	for _, e := range strings.Split(s, sep) {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	if i < 0 || i >= len(entries) {
		return ""
	}
	return entries[i]
}
