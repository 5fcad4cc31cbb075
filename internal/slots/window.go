package slots

import (
	"errors"
	"strings"
	"time"
)

// TimestampLayout is the UTC ISO-8601 form sent to the backend.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// MsgSelectSlot is shown when a booking is submitted without a full selection.
const MsgSelectSlot = "please select a date and an available time slot"

var (
	ErrMissingSelection = errors.New("date, start time and end time are required")
	ErrIncompleteSlot   = errors.New("slot does not split into start and end")
	ErrInvalidTimeRange = errors.New("end time must be after start time")
	ErrInvalidDateTime  = errors.New("invalid date or time")
)

// ValidationError is a user-facing rejection of a booking selection.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(msg string, err error) *ValidationError {
	return &ValidationError{Message: msg, Err: err}
}

// Window is an absolute booking interval.
type Window struct {
	Start time.Time
	End   time.Time
}

// StartISO returns the start as a UTC ISO-8601 timestamp.
func (w Window) StartISO() string {
	return w.Start.UTC().Format(TimestampLayout)
}

// EndISO returns the end as a UTC ISO-8601 timestamp.
func (w Window) EndISO() string {
	return w.End.UTC().Format(TimestampLayout)
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Split splits a slot once on "-" and trims both sides. It reports false when
// either side is missing or the slot holds more than one "-".
func Split(slot string) (start, end string, ok bool) {
	start, end, found := strings.Cut(slot, "-")
	if !found || strings.Contains(end, "-") {
		return "", "", false
	}
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start == "" || end == "" {
		return "", "", false
	}
	return start, end, true
}

// BuildWindow combines a date with start and end wall-clock times in loc.
// It does not check the order of start and end.
func BuildWindow(date, start, end string, loc *time.Location) (Window, error) {
	date = strings.TrimSpace(date)
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if date == "" || start == "" || end == "" {
		return Window{}, invalid(MsgSelectSlot, ErrMissingSelection)
	}
	if loc == nil {
		loc = time.Local
	}

	day, err := ParseDate(date)
	if err != nil {
		return Window{}, invalid(err.Error(), ErrInvalidDateTime)
	}
	startAt, err := clockOnDate(day, start, loc)
	if err != nil {
		return Window{}, invalid(err.Error(), ErrInvalidDateTime)
	}
	endAt, err := clockOnDate(day, end, loc)
	if err != nil {
		return Window{}, invalid(err.Error(), ErrInvalidDateTime)
	}

	return Window{Start: startAt, End: endAt}, nil
}

// BuildFromSlot builds the window for a slot chosen on date. An incomplete slot
// counts as no selection.
func BuildFromSlot(date, slot string, loc *time.Location) (Window, error) {
	start, end, ok := Split(slot)
	if !ok {
		return Window{}, invalid(MsgSelectSlot, ErrIncompleteSlot)
	}
	return BuildManual(date, start, end, loc, true)
}

// BuildManual builds a window from independently entered times. With strict
// unset an end before the start is passed through for the backend to reject.
func BuildManual(date, start, end string, loc *time.Location, strict bool) (Window, error) {
	w, err := BuildWindow(date, start, end, loc)
	if err != nil {
		return Window{}, err
	}
	if strict && !w.End.After(w.Start) {
		return Window{}, invalid(ErrInvalidTimeRange.Error(), ErrInvalidTimeRange)
	}
	return w, nil
}

func clockOnDate(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	minutes, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, loc), nil
}
