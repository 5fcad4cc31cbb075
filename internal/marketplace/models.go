package marketplace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tutorbook/internal/availability"
)

// ID accepts both string and numeric identifiers from the backend.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// StoredAvailability is a tutor's availability as the backend returns it:
// normally a JSON-encoded string, sometimes the JSON value itself.
type StoredAvailability struct {
	raw *string
}

// NewStoredAvailability wraps an encoded availability value.
func NewStoredAvailability(raw string) StoredAvailability {
	return StoredAvailability{raw: &raw}
}

func (s *StoredAvailability) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		s.raw = nil
	case len(b) > 0 && b[0] == '"':
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		s.raw = &str
	default:
		str := string(b)
		s.raw = &str
	}
	return nil
}

func (s StoredAvailability) MarshalJSON() ([]byte, error) {
	if s.raw == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*s.raw)
}

// Raw returns the encoded value, nil when absent.
func (s StoredAvailability) Raw() *string {
	return s.raw
}

// Weekly parses the stored value with p.
func (s StoredAvailability) Weekly(p *availability.Parser) availability.Weekly {
	return p.Parse(s.raw)
}

type User struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Image string `json:"image,omitempty"`
	Role  string `json:"role"` // student, tutor, admin
}

type Category struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}

type TutorProfile struct {
	ID            ID                 `json:"id"`
	UserID        ID                 `json:"userId"`
	Bio           string             `json:"bio"`
	Expertise     []string           `json:"expertise"`
	HourlyRate    float64            `json:"hourlyRate"`
	Experience    int                `json:"experience"`
	Education     string             `json:"education"`
	Languages     []string           `json:"languages"`
	Availability  StoredAvailability `json:"availability"`
	CategoryID    ID                 `json:"categoryId"`
	Category      *Category          `json:"category,omitempty"`
	AverageRating float64            `json:"averageRating"`
	TotalReviews  int                `json:"totalReviews"`
	TotalSessions int                `json:"totalSessions"`
	IsVerified    bool               `json:"isVerified"`
	User          *User              `json:"user,omitempty"`
	Reviews       []Review           `json:"reviews,omitempty"`
}

// TutorPage is one page of the tutor listing.
type TutorPage struct {
	Data  []TutorProfile `json:"data"`
	Total int            `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

type Booking struct {
	ID          ID        `json:"id"`
	StudentID   ID        `json:"studentId"`
	TutorID     ID        `json:"tutorId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Status      string    `json:"status"` // confirmed, completed, cancelled
	TotalAmount float64   `json:"totalAmount"`
	Notes       string    `json:"notes,omitempty"`
}

type Review struct {
	ID        ID     `json:"id"`
	BookingID ID     `json:"bookingId,omitempty"`
	StudentID ID     `json:"studentId"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	Student   *User  `json:"student,omitempty"`
}

var ErrInvalidReview = errors.New("invalid review")

// ReviewRequest is the payload for POST /reviews.
type ReviewRequest struct {
	TutorID string `json:"tutorId"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Validate trims the comment and checks the rating range.
func (r *ReviewRequest) Validate() error {
	r.Comment = strings.TrimSpace(r.Comment)
	if r.Comment == "" {
		return fmt.Errorf("%w: please write a comment", ErrInvalidReview)
	}
	if r.Rating < 1 || r.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidReview)
	}
	if r.TutorID == "" {
		return fmt.Errorf("%w: tutor is required", ErrInvalidReview)
	}
	return nil
}
