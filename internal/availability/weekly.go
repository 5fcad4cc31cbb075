// Package availability models a tutor's weekly availability and its stored JSON forms.
package availability

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Days lists weekday keys in display order.
var Days = []string{
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
	"saturday",
	"sunday",
}

// Weekly maps a lower-case English weekday name to its slots ("HH:MM-HH:MM").
type Weekly map[string][]string

// IsDay reports whether day is a known weekday key (case-insensitive).
func IsDay(day string) bool {
	day = strings.ToLower(day)
	for _, d := range Days {
		if d == day {
			return true
		}
	}
	return false
}

// Slots returns the stored slots for day, nil when the day has none.
func (w Weekly) Slots(day string) []string {
	return w[strings.ToLower(day)]
}

// Toggle adds slot to day when absent and removes it when present.
// The day's slots are kept sorted. It reports whether the slot is now set.
func (w Weekly) Toggle(day, slot string) bool {
	day = strings.ToLower(day)
	current := w[day]

	next := make([]string, 0, len(current)+1)
	removed := false
	for _, s := range current {
		if s == slot {
			removed = true
			continue
		}
		next = append(next, s)
	}
	if !removed {
		next = append(next, slot)
	}
	sort.Strings(next)
	w[day] = next
	return !removed
}

// Clone returns a deep copy.
func (w Weekly) Clone() Weekly {
	out := make(Weekly, len(w))
	for day, slots := range w {
		out[day] = append([]string{}, slots...)
	}
	return out
}

// Normalize returns a copy with lower-cased keys and each day's slots sorted.
func (w Weekly) Normalize() Weekly {
	out := make(Weekly, len(w))
	for day, slots := range w {
		sorted := append([]string{}, slots...)
		sort.Strings(sorted)
		out[strings.ToLower(day)] = sorted
	}
	return out
}

// Total returns the number of slots across all days.
func (w Weekly) Total() int {
	n := 0
	for _, slots := range w {
		n += len(slots)
	}
	return n
}

// Encode serializes w in the given stored shape. ShapeUnknown encodes as an object.
func (w Weekly) Encode(shape Shape) (string, error) {
	clean := make(Weekly, len(w))
	for day, slots := range w {
		if slots == nil {
			slots = []string{}
		}
		clean[day] = slots
	}

	var v any = clean
	if shape == ShapeLegacyArray {
		v = []Weekly{clean}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode availability: %w", err)
	}
	return string(data), nil
}

// HourlyCatalog returns one-hour slots covering [fromHour, toHour).
func HourlyCatalog(fromHour, toHour int) []string {
	var out []string
	for h := fromHour; h < toHour && h < 24; h++ {
		out = append(out, fmt.Sprintf("%02d:00-%02d:00", h, h+1))
	}
	return out
}

// DefaultCatalog is the editable slot grid offered to tutors.
var DefaultCatalog = HourlyCatalog(9, 21)
