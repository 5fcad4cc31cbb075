package api

import (
	"net/http"
	"strings"

	"tutorbook/internal/availability"
	"tutorbook/internal/marketplace"
	"tutorbook/internal/metrics"
)

// CatalogResponse lists what a tutor may put in their weekly availability.
type CatalogResponse struct {
	Days  []string `json:"days"`
	Slots []string `json:"slots"`
}

// AvailabilityResponse is a tutor's parsed weekly availability.
type AvailabilityResponse struct {
	TutorID      string              `json:"tutorId"`
	Availability availability.Weekly `json:"availability"`
	Total        int                 `json:"total"`
	Set          *bool               `json:"set,omitempty"`
}

// AvailabilityUpdate either toggles one slot or replaces the whole week.
type AvailabilityUpdate struct {
	Day          string              `json:"day,omitempty"`
	Slot         string              `json:"slot,omitempty"`
	Availability availability.Weekly `json:"availability,omitempty"`
}

// handleCatalog returns the toggleable slot grid.
// GET /api/availability/catalog
func (s *HTTPServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("catalog")

	cat := s.catalog.Load()
	writeJSON(w, http.StatusOK, CatalogResponse{
		Days:  availability.Days,
		Slots: append([]string{}, cat.Slots...),
	})
}

// handleMyAvailability returns the calling tutor's availability.
// GET /api/tutor/availability
func (s *HTTPServer) handleMyAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("my_availability")

	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	profile, err := s.backend.MyTutorProfile(r.Context(), auth)
	if err != nil {
		s.writeBackendError(w, err, "failed to fetch tutor profile")
		return
	}

	weekly := profile.Availability.Weekly(s.parser).Normalize()
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		TutorID:      string(profile.ID),
		Availability: weekly,
		Total:        weekly.Total(),
	})
}

// handleUpdateAvailability toggles a slot or replaces the week, then saves it.
// PUT /api/tutor/availability
func (s *HTTPServer) handleUpdateAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_availability")

	auth := r.Header.Get("Authorization")
	if auth == "" {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}

	var body AvailabilityUpdate
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	cat := s.catalog.Load()
	var replace availability.Weekly
	if body.Availability != nil {
		replace = make(availability.Weekly, len(body.Availability))
		for day, list := range body.Availability {
			if !availability.IsDay(day) {
				writeError(w, http.StatusBadRequest, "unknown day: "+day)
				return
			}
			for _, slot := range list {
				if !cat.Contains(slot) {
					writeError(w, http.StatusBadRequest, "slot not in catalog: "+slot)
					return
				}
			}
			replace[strings.ToLower(day)] = list
		}
	} else {
		if !availability.IsDay(body.Day) {
			writeError(w, http.StatusBadRequest, "day must be one of "+strings.Join(availability.Days, ", "))
			return
		}
		if !cat.Contains(body.Slot) {
			writeError(w, http.StatusBadRequest, "slot not in catalog: "+body.Slot)
			return
		}
	}

	profile, err := s.backend.MyTutorProfile(r.Context(), auth)
	if err != nil {
		s.writeBackendError(w, err, "failed to fetch tutor profile")
		return
	}
	tutorID := string(profile.ID)

	var (
		weekly availability.Weekly
		set    *bool
	)
	if replace != nil {
		weekly = replace.Normalize()
	} else {
		weekly = profile.Availability.Weekly(s.parser).Clone()
		on := weekly.Toggle(body.Day, body.Slot)
		set = &on
		weekly = weekly.Normalize()
	}

	if err := s.backend.UpdateAvailability(r.Context(), auth, tutorID, weekly, s.opts.SaveShape); err != nil {
		s.writeBackendError(w, err, "failed to save availability")
		return
	}
	metrics.IncAvailabilityUpdate()
	s.recordAvailability(r, tutorID, weekly)

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		TutorID:      tutorID,
		Availability: weekly,
		Total:        weekly.Total(),
		Set:          set,
	})
}

func (s *HTTPServer) recordAvailability(r *http.Request, tutorID string, weekly availability.Weekly) {
	if s.journal == nil {
		return
	}
	encoded, err := weekly.Encode(s.opts.SaveShape)
	if err != nil {
		s.logger.Error().Err(err).Str("tutor_id", tutorID).Msg("failed to encode availability")
		return
	}
	if err := s.journal.RecordAvailabilityUpdate(r.Context(), tutorID, encoded); err != nil {
		s.logger.Error().Err(err).Str("tutor_id", tutorID).Msg("failed to journal availability")
	}
}

var _ Backend = (*marketplace.Client)(nil)
