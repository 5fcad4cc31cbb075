package api

import (
	"errors"
	"net/http"
	"strconv"

	"tutorbook/internal/marketplace"
	"tutorbook/internal/metrics"
	"tutorbook/internal/slots"
)

// SlotsResponse is the response for GET /api/tutors/{id}/slots.
type SlotsResponse struct {
	TutorID string      `json:"tutorId"`
	Date    string      `json:"date"`
	Weekday string      `json:"weekday"`
	Slots   []string    `json:"slots"`
	Ranges  []RangeView `json:"ranges"`
}

// RangeView is a run of back-to-back slots.
type RangeView struct {
	Start    string `json:"start"`
	End      string `json:"end"`
	Minutes  int    `json:"minutes"`
	Duration string `json:"duration"`
}

func rangeViews(offered []string) []RangeView {
	merged := slots.Consecutive(offered)
	out := make([]RangeView, 0, len(merged))
	for _, iv := range merged {
		minutes := int(iv.Duration().Minutes())
		out = append(out, RangeView{
			Start:    iv.Start,
			End:      iv.End,
			Minutes:  minutes,
			Duration: slots.FormatDuration(minutes),
		})
	}
	return out
}

// handleTutorSlots returns the slots a tutor offers on a date.
// GET /api/tutors/{id}/slots?date=YYYY-MM-DD
func (s *HTTPServer) handleTutorSlots(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("tutor_slots")

	tutorID := r.PathValue("id")
	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required; expected YYYY-MM-DD")
		return
	}
	weekday, err := slots.WeekdayOf(date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tutor, err := s.backend.GetTutor(r.Context(), tutorID)
	if err != nil {
		s.writeBackendError(w, err, "failed to fetch tutor")
		return
	}

	weekly := tutor.Availability.Weekly(s.parser)
	offered, _ := slots.ForDateString(date, weekly)
	writeJSON(w, http.StatusOK, SlotsResponse{
		TutorID: tutorID,
		Date:    date,
		Weekday: weekday,
		Slots:   offered,
		Ranges:  rangeViews(offered),
	})
}

// handleListTutors relays the tutor search.
// GET /api/tutors?categoryId=&minRate=&maxRate=&minRating=&search=&sortBy=&sortOrder=&page=&limit=
func (s *HTTPServer) handleListTutors(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_tutors")

	q := r.URL.Query()
	filters := marketplace.TutorFilters{
		CategoryID: q.Get("categoryId"),
		Search:     q.Get("search"),
		SortBy:     q.Get("sortBy"),
		SortOrder:  q.Get("sortOrder"),
	}
	var err error
	if filters.MinRate, err = floatParam(q.Get("minRate")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid minRate")
		return
	}
	if filters.MaxRate, err = floatParam(q.Get("maxRate")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid maxRate")
		return
	}
	if filters.MinRating, err = floatParam(q.Get("minRating")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid minRating")
		return
	}
	if filters.Page, err = intParam(q.Get("page")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	if filters.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	switch filters.SortBy {
	case "", "rating", "price", "experience":
	default:
		writeError(w, http.StatusBadRequest, "sortBy must be rating, price or experience")
		return
	}

	page, err := s.backend.ListTutors(r.Context(), filters)
	if err != nil {
		s.writeBackendError(w, err, "failed to fetch tutors")
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleFeaturedTutors relays the home page's featured tutors.
// GET /api/tutors/featured
func (s *HTTPServer) handleFeaturedTutors(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("featured_tutors")

	tutors, err := s.backend.FeaturedTutors(r.Context())
	if err != nil {
		s.writeBackendError(w, err, "failed to fetch featured tutors")
		return
	}
	if tutors == nil {
		tutors = []marketplace.TutorProfile{}
	}
	writeJSON(w, http.StatusOK, tutors)
}

// handleCategories relays the category list.
// GET /api/categories
func (s *HTTPServer) handleCategories(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("categories")

	cats, err := s.backend.Categories(r.Context())
	if err != nil {
		s.writeBackendError(w, err, "failed to fetch categories")
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

// writeBackendError maps backend failures: client errors pass through, the rest become 502.
func (s *HTTPServer) writeBackendError(w http.ResponseWriter, err error, msg string) {
	var apiErr *marketplace.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		if apiErr.Message != "" {
			msg = apiErr.Message
		}
		writeError(w, apiErr.Status, msg)
		return
	}
	s.logger.Error().Err(err).Msg(msg)
	writeError(w, http.StatusBadGateway, msg)
}

func floatParam(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
