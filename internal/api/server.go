package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tutorbook/internal/availability"
	"tutorbook/internal/booking"
	"tutorbook/internal/config"
	"tutorbook/internal/journal"
	"tutorbook/internal/marketplace"
)

// Backend is the subset of the marketplace client the gateway uses.
type Backend interface {
	ListTutors(ctx context.Context, filters marketplace.TutorFilters) (*marketplace.TutorPage, error)
	FeaturedTutors(ctx context.Context) ([]marketplace.TutorProfile, error)
	GetTutor(ctx context.Context, id string) (*marketplace.TutorProfile, error)
	Categories(ctx context.Context) ([]marketplace.Category, error)
	MyTutorProfile(ctx context.Context, auth string) (*marketplace.TutorProfile, error)
	UpdateAvailability(ctx context.Context, auth, tutorID string, weekly availability.Weekly, shape availability.Shape) error
	CreateBooking(ctx context.Context, auth string, req booking.Request) (*marketplace.Booking, error)
	MyBookings(ctx context.Context, auth string, filters marketplace.BookingFilters) ([]marketplace.Booking, error)
	CancelBooking(ctx context.Context, auth, id string) (*marketplace.Booking, error)
	CompleteSession(ctx context.Context, auth, id string) (*marketplace.Booking, error)
	CreateReview(ctx context.Context, auth string, req marketplace.ReviewRequest) (*marketplace.Review, error)
}

// Journal records what was sent to the backend.
type Journal interface {
	RecordBooking(ctx context.Context, e journal.BookingEntry) (int64, error)
	RecordAvailabilityUpdate(ctx context.Context, tutorID, encoded string) error
}

// Options tunes gateway behaviour.
type Options struct {
	APIKey            string
	Location          *time.Location
	StrictManualOrder bool
	SaveShape         availability.Shape
	DraftTimeout      time.Duration
}

// HTTPServer serves the booking gateway API.
type HTTPServer struct {
	backend Backend
	journal Journal
	parser  *availability.Parser
	drafts  *booking.Store
	catalog atomic.Pointer[config.Catalog]
	opts    Options
	logger  *zerolog.Logger
}

// NewHTTPServer wires the gateway. journal may be nil.
func NewHTTPServer(backend Backend, j Journal, opts Options, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	s := &HTTPServer{
		backend: backend,
		journal: j,
		parser:  availability.NewParser(logger),
		drafts:  booking.NewStore(opts.DraftTimeout),
		opts:    opts,
		logger:  logger,
	}
	s.catalog.Store(config.DefaultCatalog())
	return s
}

// SetCatalog swaps the slot catalog tutors may toggle.
func (s *HTTPServer) SetCatalog(c *config.Catalog) {
	if c != nil {
		s.catalog.Store(c)
	}
}

// Drafts exposes the draft store for housekeeping.
func (s *HTTPServer) Drafts() *booking.Store {
	return s.drafts
}

// Handler returns the routed handler.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/tutors", s.handleListTutors)
	mux.HandleFunc("GET /api/tutors/featured", s.handleFeaturedTutors)
	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/tutors/{id}/slots", s.handleTutorSlots)
	mux.HandleFunc("PUT /api/tutors/{id}/draft", s.handleUpdateDraft)
	mux.HandleFunc("POST /api/tutors/{id}/draft/submit", s.handleSubmitDraft)
	mux.HandleFunc("POST /api/bookings", s.handleCreateBooking)
	mux.HandleFunc("GET /api/bookings", s.handleMyBookings)
	mux.HandleFunc("PATCH /api/bookings/{id}/cancel", s.handleCancelBooking)
	mux.HandleFunc("PATCH /api/tutor/sessions/{id}/complete", s.handleCompleteSession)
	mux.HandleFunc("POST /api/reviews", s.handleCreateReview)
	mux.HandleFunc("GET /api/availability/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/tutor/availability", s.handleMyAvailability)
	mux.HandleFunc("PUT /api/tutor/availability", s.handleUpdateAvailability)

	return s.requireAPIKey(mux)
}

func (s *HTTPServer) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.opts.APIKey != "" && r.Header.Get("x-api-key") != s.opts.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: status < 300, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response{Success: false, Message: msg})
}

func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
