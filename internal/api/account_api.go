package api

import (
	"context"
	"errors"
	"net/http"

	"tutorbook/internal/marketplace"
	"tutorbook/internal/metrics"
)

var bookingStatuses = map[string]bool{
	"":          true,
	"confirmed": true,
	"completed": true,
	"cancelled": true,
}

// handleMyBookings lists the caller's bookings.
// GET /api/bookings?status=&sortBy=&order=
func (s *HTTPServer) handleMyBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("my_bookings")

	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	q := r.URL.Query()
	filters := marketplace.BookingFilters{
		Status: q.Get("status"),
		SortBy: q.Get("sortBy"),
		Order:  q.Get("order"),
	}
	if !bookingStatuses[filters.Status] {
		writeError(w, http.StatusBadRequest, "status must be confirmed, completed or cancelled")
		return
	}
	switch filters.Order {
	case "", "asc", "desc":
	default:
		writeError(w, http.StatusBadRequest, "order must be asc or desc")
		return
	}

	bookings, err := s.backend.MyBookings(r.Context(), auth, filters)
	if err != nil {
		s.writeBackendError(w, err, "failed to fetch bookings")
		return
	}
	if bookings == nil {
		bookings = []marketplace.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// handleCancelBooking cancels one of the caller's bookings.
// PATCH /api/bookings/{id}/cancel
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")
	s.patchBooking(w, r, s.backend.CancelBooking, "cancelled", "failed to cancel booking")
}

// handleCompleteSession marks one of the tutor's sessions as completed.
// PATCH /api/tutor/sessions/{id}/complete
func (s *HTTPServer) handleCompleteSession(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("complete_session")
	s.patchBooking(w, r, s.backend.CompleteSession, "completed", "failed to complete session")
}

type bookingAction func(ctx context.Context, auth, id string) (*marketplace.Booking, error)

func (s *HTTPServer) patchBooking(w http.ResponseWriter, r *http.Request, action bookingAction, status, failMsg string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	id := r.PathValue("id")

	updated, err := action(r.Context(), auth, id)
	if err != nil {
		s.writeBackendError(w, err, failMsg)
		return
	}
	metrics.IncBookingStatusChange(status)
	s.logger.Info().Str("booking_id", id).Str("status", status).Msg("booking updated")
	writeJSON(w, http.StatusOK, updated)
}

// handleCreateReview posts a review for a tutor.
// POST /api/reviews
func (s *HTTPServer) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_review")

	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	var body marketplace.ReviewRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := body.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	review, err := s.backend.CreateReview(r.Context(), auth, body)
	if err != nil {
		if errors.Is(err, marketplace.ErrInvalidReview) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeBackendError(w, err, "failed to create review")
		return
	}
	writeJSON(w, http.StatusCreated, review)
}
