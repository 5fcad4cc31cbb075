// Package booking holds the student's in-progress booking selection.
package booking

import (
	"errors"
	"sync"
	"time"

	"tutorbook/internal/availability"
	"tutorbook/internal/slots"
)

// State represents where a draft is in the booking flow.
type State string

const (
	StateIdle         State = "idle"
	StateDateSelected State = "date_selected"
	StateSlotSelected State = "slot_selected"
	StateSubmitted    State = "submitted"
)

var (
	ErrSlotNotOffered = errors.New("slot is not offered on the selected date")
	ErrNoDate         = errors.New("select a date first")
)

// Request is the payload sent to the backend to create a booking.
type Request struct {
	TutorID   string `json:"tutorId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// Draft is one student's selection for one tutor.
type Draft struct {
	TutorID   string
	Date      string   // YYYY-MM-DD
	StartTime string   // HH:MM
	EndTime   string   // HH:MM
	Slots     []string // slots offered on Date
	State     State
	UpdatedAt time.Time

	weekly availability.Weekly
	slot   string // selected slot, empty for manual times
	mu     sync.Mutex
}

// NewDraft creates an idle draft over the tutor's availability.
func NewDraft(tutorID string, weekly availability.Weekly) *Draft {
	if weekly == nil {
		weekly = availability.Weekly{}
	}
	return &Draft{
		TutorID:   tutorID,
		Slots:     []string{},
		State:     StateIdle,
		UpdatedAt: time.Now(),
		weekly:    weekly,
	}
}

// SetDate selects a date. Any previously chosen times are cleared, since the
// same slot may not exist on the new day.
func (d *Draft) SetDate(date string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setDateLocked(date)
}

func (d *Draft) setDateLocked(date string) error {
	d.StartTime = ""
	d.EndTime = ""
	d.slot = ""
	d.touch()

	if date == "" {
		d.Date = ""
		d.Slots = []string{}
		d.State = StateIdle
		return nil
	}

	offered, err := slots.ForDateString(date, d.weekly)
	if err != nil {
		d.Date = ""
		d.Slots = []string{}
		d.State = StateIdle
		return err
	}

	d.Date = date
	d.Slots = offered
	d.State = StateDateSelected
	return nil
}

// SetAvailability replaces the tutor's availability and recomputes the
// offered slots for the current date, clearing any chosen times.
func (d *Draft) SetAvailability(weekly availability.Weekly) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if weekly == nil {
		weekly = availability.Weekly{}
	}
	d.weekly = weekly
	return d.setDateLocked(d.Date)
}

// Refresh replaces the tutor's availability and recomputes the offered slots
// for the current date. A chosen slot survives only while it is still offered;
// manually entered times are kept.
func (d *Draft) Refresh(weekly availability.Weekly) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if weekly == nil {
		weekly = availability.Weekly{}
	}
	d.weekly = weekly
	if d.Date == "" {
		return
	}

	offered, err := slots.ForDateString(d.Date, weekly)
	if err != nil {
		return
	}
	d.Slots = offered
	if d.slot != "" && !contains(offered, d.slot) {
		d.StartTime = ""
		d.EndTime = ""
		d.slot = ""
		d.State = StateDateSelected
	}
}

// SelectSlot picks one of the slots offered on the current date.
func (d *Draft) SelectSlot(slot string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Date == "" {
		return ErrNoDate
	}
	if !contains(d.Slots, slot) {
		return ErrSlotNotOffered
	}
	start, end, ok := slots.Split(slot)
	if !ok {
		return slots.ErrIncompleteSlot
	}

	d.StartTime = start
	d.EndTime = end
	d.slot = slot
	d.State = StateSlotSelected
	d.touch()
	return nil
}

// SetManualTimes sets free-form start and end times for the current date.
func (d *Draft) SetManualTimes(start, end string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.StartTime = start
	d.EndTime = end
	d.slot = ""
	if d.Date != "" && start != "" && end != "" {
		d.State = StateSlotSelected
	}
	d.touch()
}

// Request builds the backend payload. Times taken from a slot must always be
// ordered; manual times are checked only with strict set.
func (d *Draft) Request(loc *time.Location, strict bool) (Request, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	w, err := slots.BuildManual(d.Date, d.StartTime, d.EndTime, loc, strict || d.slot != "")
	if err != nil {
		return Request{}, err
	}
	return Request{
		TutorID:   d.TutorID,
		StartTime: w.StartISO(),
		EndTime:   w.EndISO(),
	}, nil
}

// MarkSubmitted resets the selection after a successful submission.
func (d *Draft) MarkSubmitted() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.Date = ""
	d.StartTime = ""
	d.EndTime = ""
	d.slot = ""
	d.Slots = []string{}
	d.State = StateSubmitted
	d.touch()
}

// View is a point-in-time copy of a draft.
type View struct {
	TutorID   string    `json:"tutorId"`
	Date      string    `json:"date,omitempty"`
	StartTime string    `json:"startTime,omitempty"`
	EndTime   string    `json:"endTime,omitempty"`
	Slots     []string  `json:"slots"`
	State     State     `json:"state"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot returns a copy of the draft's visible fields.
func (d *Draft) Snapshot() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return View{
		TutorID:   d.TutorID,
		Date:      d.Date,
		StartTime: d.StartTime,
		EndTime:   d.EndTime,
		Slots:     append([]string{}, d.Slots...),
		State:     d.State,
		UpdatedAt: d.UpdatedAt,
	}
}

// IsExpired checks if the draft has been idle longer than timeout.
func (d *Draft) IsExpired(timeout time.Duration) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return time.Since(d.UpdatedAt) > timeout
}

func (d *Draft) touch() {
	d.UpdatedAt = time.Now()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
