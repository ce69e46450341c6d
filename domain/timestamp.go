package domain

import (
	"errors"
	"strings"
	"time"
)

// TimestampLayout is the literal YYYY-MM-DD HH:MM:SS format used by the feed
// and by the stored watermark.
const TimestampLayout = "2006-01-02 15:04:05"

var errNoLayouts = errors.New("no timestamp layouts configured")

// TimestampParser parses feed timestamps against an ordered list of layouts.
// Values without a zone are read as UTC.
type TimestampParser struct {
	layouts []string
}

// NewTimestampParser returns a parser for layouts; an empty list means
// TimestampLayout only.
func NewTimestampParser(layouts ...string) TimestampParser {
	if len(layouts) == 0 {
		layouts = []string{TimestampLayout}
	}
	return TimestampParser{layouts: layouts}
}

func (p TimestampParser) Layouts() []string {
	return append([]string(nil), p.layouts...)
}

// Parse tries every layout in order and returns the first match.
// field names the feed element for the error message.
func (p TimestampParser) Parse(field, value string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, &DateParseError{Field: field, Value: value, Err: errors.New("empty value")}
	}
	if len(p.layouts) == 0 {
		return time.Time{}, &DateParseError{Field: field, Value: value, Err: errNoLayouts}
	}
	var firstErr error
	for _, layout := range p.layouts {
		t, err := time.ParseInLocation(layout, v, time.UTC)
		if err == nil {
			return t.UTC(), nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, &DateParseError{Field: field, Value: value, Err: firstErr}
}

// FormatTimestamp renders t in TimestampLayout (UTC).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a value written by FormatTimestamp.
func ParseTimestamp(value string) (time.Time, error) {
	return NewTimestampParser().Parse("timestamp", value)
}
