package fhir

import (
	"fmt"
	"time"
)

// Precision of a FHIR date or dateTime value.
type Precision int

const (
	PrecisionYear Precision = iota
	PrecisionMonth
	PrecisionDay
	PrecisionSecond
)

var dateLayouts = []struct {
	layout    string
	precision Precision
}{
	{time.RFC3339Nano, PrecisionSecond},
	{"2006-01-02T15:04:05", PrecisionSecond},
	{"2006-01-02", PrecisionDay},
	{"2006-01", PrecisionMonth},
	{"2006", PrecisionYear},
}

// FormatDateTime renders t as a FHIR dateTime/instant.
func FormatDateTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// FormatDate renders t as a FHIR date.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatWithPrecision renders t truncated to the given precision.
func FormatWithPrecision(t time.Time, p Precision) string {
	switch p {
	case PrecisionYear:
		return t.Format("2006")
	case PrecisionMonth:
		return t.Format("2006-01")
	case PrecisionDay:
		return FormatDate(t)
	default:
		return FormatDateTime(t)
	}
}

// ParseDateTime parses any FHIR date, dateTime or instant value and reports
// the precision it was written with. Values without a zone are read as UTC.
func ParseDateTime(s string) (time.Time, Precision, error) {
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return t, l.precision, nil
		}
	}
	return time.Time{}, 0, fmt.Errorf("invalid FHIR date %q", s)
}

// FormatTimePtr is FormatDateTime for optional values.
func FormatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatDateTime(*t)
}

// ParseTimePtr parses an optional dateTime, returning nil for "".
func ParseTimePtr(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, _, err := ParseDateTime(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
