package app

import (
	"fmt"
	"strings"
	"time"

	"autoshop-crm/internal/core"
)

const dateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD (midnight UTC) or RFC 3339.
func ParseDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, &core.ValidationError{Field: field, Message: fmt.Sprintf("%q is not a date (YYYY-MM-DD or RFC 3339)", raw)}
}

// ParseEndDate is ParseDate for inclusive upper bounds: a date-only value
// covers the whole day, so "2024-03-31" includes sales on the 31st.
func ParseEndDate(field, raw string) (time.Time, error) {
	t, err := ParseDate(field, raw)
	if err != nil {
		return time.Time{}, err
	}
	if _, err := time.Parse(dateLayout, strings.TrimSpace(raw)); err == nil {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// ParseDateRange parses an inclusive [from, to] range.
func ParseDateRange(from, to string) (time.Time, time.Time, error) {
	f, err := ParseDate("from", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := ParseEndDate("to", to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if f.After(t) {
		return time.Time{}, time.Time{}, &core.ValidationError{Field: "from", Message: "must not be after to"}
	}
	return f, t, nil
}
