package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"tutorbook/internal/booking"
	"tutorbook/internal/journal"
	"tutorbook/internal/marketplace"
	"tutorbook/internal/metrics"
	"tutorbook/internal/slots"
)

const sessionHeader = "X-Session-ID"

// CreateBookingRequest books either a listed slot or free-form times.
type CreateBookingRequest struct {
	TutorID   string `json:"tutorId"`
	Date      string `json:"date"`
	Slot      string `json:"slot,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// DraftUpdate changes a draft. Nil fields are left untouched.
type DraftUpdate struct {
	Date      *string `json:"date,omitempty"`
	Slot      *string `json:"slot,omitempty"`
	StartTime *string `json:"startTime,omitempty"`
	EndTime   *string `json:"endTime,omitempty"`
}

// BookingResponse is returned after the backend accepted a booking.
type BookingResponse struct {
	Request booking.Request      `json:"request"`
	Booking *marketplace.Booking `json:"booking"`
}

// handleCreateBooking builds the booking window and forwards it.
// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var body CreateBookingRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.TutorID) == "" {
		writeError(w, http.StatusBadRequest, "tutorId is required")
		return
	}

	var (
		window slots.Window
		err    error
	)
	if body.Slot != "" {
		window, err = slots.BuildFromSlot(body.Date, body.Slot, s.opts.Location)
		if err != nil {
			s.writeValidationError(w, err)
			return
		}
		tutor, err := s.backend.GetTutor(r.Context(), body.TutorID)
		if err != nil {
			s.writeBackendError(w, err, "failed to fetch tutor")
			return
		}
		offered, _ := slots.ForDateString(body.Date, tutor.Availability.Weekly(s.parser))
		if !containsSlot(offered, body.Slot) {
			writeError(w, http.StatusConflict, booking.ErrSlotNotOffered.Error())
			return
		}
	} else {
		window, err = slots.BuildManual(body.Date, body.StartTime, body.EndTime, s.opts.Location, s.opts.StrictManualOrder)
		if err != nil {
			s.writeValidationError(w, err)
			return
		}
	}

	req := booking.Request{
		TutorID:   body.TutorID,
		StartTime: window.StartISO(),
		EndTime:   window.EndISO(),
	}
	s.submit(w, r, r.Header.Get(sessionHeader), req, nil)
}

// handleUpdateDraft applies a change to the caller's draft for a tutor.
// PUT /api/tutors/{id}/draft
func (s *HTTPServer) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_draft")

	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing "+sessionHeader+" header")
		return
	}
	tutorID := r.PathValue("id")

	var body DraftUpdate
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	tutor, err := s.backend.GetTutor(r.Context(), tutorID)
	if err != nil {
		s.writeBackendError(w, err, "failed to fetch tutor")
		return
	}
	weekly := tutor.Availability.Weekly(s.parser)
	draft := s.drafts.GetOrCreate(sessionID, tutorID, weekly)

	draft.Refresh(weekly)

	if body.Date != nil {
		if err := draft.SetDate(*body.Date); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if body.Slot != nil {
		if err := draft.SelectSlot(*body.Slot); err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, booking.ErrSlotNotOffered) {
				status = http.StatusConflict
			}
			writeError(w, status, err.Error())
			return
		}
	}
	if body.StartTime != nil || body.EndTime != nil {
		view := draft.Snapshot()
		start, end := view.StartTime, view.EndTime
		if body.StartTime != nil {
			start = *body.StartTime
		}
		if body.EndTime != nil {
			end = *body.EndTime
		}
		draft.SetManualTimes(start, end)
	}

	writeJSON(w, http.StatusOK, draft.Snapshot())
}

// handleSubmitDraft turns the caller's draft into a booking.
// POST /api/tutors/{id}/draft/submit
func (s *HTTPServer) handleSubmitDraft(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("submit_draft")

	sessionID := r.Header.Get(sessionHeader)
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing "+sessionHeader+" header")
		return
	}
	draft := s.drafts.Get(sessionID, r.PathValue("id"))
	if draft == nil {
		writeError(w, http.StatusNotFound, "no booking draft for this tutor")
		return
	}

	req, err := draft.Request(s.opts.Location, s.opts.StrictManualOrder)
	if err != nil {
		s.writeValidationError(w, err)
		return
	}
	s.submit(w, r, sessionID, req, draft)
}

// submit forwards req to the backend and journals the outcome.
func (s *HTTPServer) submit(w http.ResponseWriter, r *http.Request, sessionID string, req booking.Request, draft *booking.Draft) {
	created, err := s.backend.CreateBooking(r.Context(), r.Header.Get("Authorization"), req)

	entry := journal.BookingEntry{
		SessionID: sessionID,
		TutorID:   req.TutorID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Status:    "submitted",
	}
	if err != nil {
		entry.Status = "failed"
		var apiErr *marketplace.APIError
		if errors.As(err, &apiErr) && apiErr.Status < 500 {
			entry.Status = "rejected"
		}
		entry.Error = err.Error()
	}
	s.record(r.Context(), entry)
	metrics.IncBookingSubmitted(entry.Status)

	if err != nil {
		s.writeBackendError(w, err, "failed to create booking")
		return
	}
	if draft != nil {
		draft.MarkSubmitted()
	}

	s.logger.Info().
		Str("tutor_id", req.TutorID).
		Str("start", req.StartTime).
		Str("end", req.EndTime).
		Msg("booking submitted")
	writeJSON(w, http.StatusCreated, BookingResponse{Request: req, Booking: created})
}

func (s *HTTPServer) record(ctx context.Context, e journal.BookingEntry) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.RecordBooking(ctx, e); err != nil {
		s.logger.Error().Err(err).Str("tutor_id", e.TutorID).Msg("failed to journal booking")
	}
}

func (s *HTTPServer) writeValidationError(w http.ResponseWriter, err error) {
	var vErr *slots.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, vErr.Message)
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func containsSlot(list []string, slot string) bool {
	for _, v := range list {
		if v == slot {
			return true
		}
	}
	return false
}
