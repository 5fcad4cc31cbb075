// Package slots resolves a tutor's weekly availability into bookable slots for a
// date and turns a chosen slot into a booking window.
//
// Weekdays are derived from the calendar date alone. A "YYYY-MM-DD" string is
// read as that calendar day with no timezone shift, so the weekday never moves
// across midnight depending on where the gateway runs.
package slots

import (
	"fmt"
	"strings"
	"time"

	"tutorbook/internal/availability"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(date string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	return d, nil
}

// Weekday returns the lower-case English weekday of date's own wall-clock day.
func Weekday(date time.Time) string {
	return strings.ToLower(date.Weekday().String())
}

// WeekdayOf returns the weekday of a "YYYY-MM-DD" date.
func WeekdayOf(date string) (string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return Weekday(d), nil
}

// ForDate returns the slots offered on date's weekday, in stored order.
// A day without availability yields an empty slice.
func ForDate(date time.Time, weekly availability.Weekly) []string {
	stored := weekly[Weekday(date)]
	return append(make([]string, 0, len(stored)), stored...)
}

// ForDateString is ForDate for a "YYYY-MM-DD" date.
func ForDateString(date string, weekly availability.Weekly) ([]string, error) {
	d, err := ParseDate(date)
	if err != nil {
		return []string{}, err
	}
	return ForDate(d, weekly), nil
}
