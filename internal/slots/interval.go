package slots

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Interval is a parsed slot, with boundaries in minutes since midnight.
type Interval struct {
	Start    string `json:"start"` // "09:00"
	End      string `json:"end"`   // "10:00"
	StartMin int    `json:"-"`
	EndMin   int    `json:"-"`
}

// ParseInterval parses "HH:MM-HH:MM". The end must be after the start.
func ParseInterval(slot string) (Interval, error) {
	start, end, ok := Split(slot)
	if !ok {
		return Interval{}, fmt.Errorf("%w: %q", ErrIncompleteSlot, slot)
	}
	startMin, err := parseClock(start)
	if err != nil {
		return Interval{}, err
	}
	endMin, err := parseClock(end)
	if err != nil {
		return Interval{}, err
	}
	if endMin <= startMin {
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidTimeRange, slot)
	}
	return Interval{Start: start, End: end, StartMin: startMin, EndMin: endMin}, nil
}

// Duration returns the length of the interval.
func (i Interval) Duration() time.Duration {
	return time.Duration(i.EndMin-i.StartMin) * time.Minute
}

// Overlaps reports whether the two intervals share any time.
func (i Interval) Overlaps(o Interval) bool {
	return i.StartMin < o.EndMin && o.StartMin < i.EndMin
}

// String formats the interval back into slot form.
func (i Interval) String() string {
	return i.Start + "-" + i.End
}

// Consecutive merges slots that touch end-to-start into continuous ranges.
// Unparsable slots are skipped.
func Consecutive(slots []string) []Interval {
	parsed := make([]Interval, 0, len(slots))
	for _, s := range slots {
		iv, err := ParseInterval(s)
		if err != nil {
			continue
		}
		parsed = append(parsed, iv)
	}
	if len(parsed) == 0 {
		return nil
	}

	sort.Slice(parsed, func(i, j int) bool {
		return parsed[i].StartMin < parsed[j].StartMin
	})

	var groups []Interval
	current := parsed[0]
	for _, iv := range parsed[1:] {
		if iv.StartMin == current.EndMin {
			current.End = iv.End
			current.EndMin = iv.EndMin
			continue
		}
		groups = append(groups, current)
		current = iv
	}
	groups = append(groups, current)

	return groups
}

// FormatDuration labels a length in minutes: "45 min", "1 hour", "3 hours", "1 h 30 min".
func FormatDuration(minutes int) string {
	hours, rest := minutes/60, minutes%60
	switch {
	case hours == 0:
		return strconv.Itoa(rest) + " min"
	case rest != 0:
		return fmt.Sprintf("%d h %d min", hours, rest)
	case hours == 1:
		return "1 hour"
	default:
		return strconv.Itoa(hours) + " hours"
	}
}

// parseClock parses "HH:MM" into minutes since midnight. "24:00" is allowed.
func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || hh == "" || len(mm) != 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid hour: %w", err)
	}

	minute, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid minute: %w", err)
	}

	if hour < 0 || minute < 0 || minute > 59 || hour > 24 || (hour == 24 && minute != 0) {
		return 0, fmt.Errorf("time out of range: %s", s)
	}
	return hour*60 + minute, nil
}
