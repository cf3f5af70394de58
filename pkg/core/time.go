package core

import (
	"fmt"
	"time"
)

// Timestamps are stored as RFC 3339 UTC text with millisecond precision so
// they sort lexicographically and stay readable in raw SQL.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtTimeOpt(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(raw, field string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %s timestamp %q: %w", field, raw, err)
	}
	return t.UTC(), nil
}

func parseTimeOpt(raw *string, field string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := parseTime(*raw, field)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
