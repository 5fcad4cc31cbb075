package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tutorbook/internal/availability"
	"tutorbook/internal/booking"
	"tutorbook/internal/config"
	"tutorbook/internal/journal"
	"tutorbook/internal/marketplace"
	"tutorbook/internal/slots"
)

const testAPIKey = "valid-key"

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) ListTutors(ctx context.Context, f marketplace.TutorFilters) (*marketplace.TutorPage, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.TutorPage), args.Error(1)
}

func (m *mockBackend) GetTutor(ctx context.Context, id string) (*marketplace.TutorProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.TutorProfile), args.Error(1)
}

func (m *mockBackend) Categories(ctx context.Context) ([]marketplace.Category, error) {
	args := m.Called(ctx)
	return args.Get(0).([]marketplace.Category), args.Error(1)
}

func (m *mockBackend) MyTutorProfile(ctx context.Context, auth string) (*marketplace.TutorProfile, error) {
	args := m.Called(ctx, auth)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.TutorProfile), args.Error(1)
}

func (m *mockBackend) UpdateAvailability(ctx context.Context, auth, tutorID string, w availability.Weekly, shape availability.Shape) error {
	return m.Called(ctx, auth, tutorID, w, shape).Error(0)
}

func (m *mockBackend) CreateBooking(ctx context.Context, auth string, req booking.Request) (*marketplace.Booking, error) {
	args := m.Called(ctx, auth, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Booking), args.Error(1)
}

func (m *mockBackend) FeaturedTutors(ctx context.Context) ([]marketplace.TutorProfile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketplace.TutorProfile), args.Error(1)
}

func (m *mockBackend) MyBookings(ctx context.Context, auth string, f marketplace.BookingFilters) ([]marketplace.Booking, error) {
	args := m.Called(ctx, auth, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]marketplace.Booking), args.Error(1)
}

func (m *mockBackend) CancelBooking(ctx context.Context, auth, id string) (*marketplace.Booking, error) {
	args := m.Called(ctx, auth, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Booking), args.Error(1)
}

func (m *mockBackend) CompleteSession(ctx context.Context, auth, id string) (*marketplace.Booking, error) {
	args := m.Called(ctx, auth, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Booking), args.Error(1)
}

func (m *mockBackend) CreateReview(ctx context.Context, auth string, req marketplace.ReviewRequest) (*marketplace.Review, error) {
	args := m.Called(ctx, auth, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*marketplace.Review), args.Error(1)
}

type testEnv struct {
	server  *HTTPServer
	handler http.Handler
	backend *mockBackend
	db      *journal.DB
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	db, err := journal.NewDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	if opts.Location == nil {
		opts.Location = time.FixedZone("UTC+3", 3*60*60)
	}
	backend := &mockBackend{}
	server := NewHTTPServer(backend, db, opts, nil)
	return &testEnv{server: server, handler: server.Handler(), backend: backend, db: db}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, data any) response {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Message string          `json:"message"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return response{Success: raw.Success, Message: raw.Message}
}

func tutorWith(id, stored string) *marketplace.TutorProfile {
	return &marketplace.TutorProfile{ID: marketplace.ID(id), Availability: marketplace.NewStoredAvailability(stored)}
}

func TestHandleTutorSlots(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.backend.On("GetTutor", mock.Anything, "t1").
		Return(tutorWith("t1", `[{"Thursday":["14:00-15:00","09:00-10:00","10:00-11:00"]}]`), nil)

	rec := env.do(t, http.MethodGet, "/api/tutors/t1/slots?date=2026-02-05", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got SlotsResponse
	resp := decodeResponse(t, rec, &got)
	assert.True(t, resp.Success)
	assert.Equal(t, "thursday", got.Weekday)
	assert.Equal(t, []string{"14:00-15:00", "09:00-10:00", "10:00-11:00"}, got.Slots)
	require.Len(t, got.Ranges, 2)
	assert.Equal(t, RangeView{Start: "09:00", End: "11:00", Minutes: 120, Duration: "2 hours"}, got.Ranges[0])
	assert.Equal(t, RangeView{Start: "14:00", End: "15:00", Minutes: 60, Duration: "1 hour"}, got.Ranges[1])

	// a day with nothing stored yields an empty list
	rec = env.do(t, http.MethodGet, "/api/tutors/t1/slots?date=2026-02-06", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got = SlotsResponse{}
	decodeResponse(t, rec, &got)
	assert.Equal(t, "friday", got.Weekday)
	assert.Empty(t, got.Slots)
	assert.NotNil(t, got.Slots)
	assert.Empty(t, got.Ranges)
}

func TestHandleTutorSlots_HalfHourRange(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.backend.On("GetTutor", mock.Anything, "t1").
		Return(tutorWith("t1", `{"thursday":["09:00-10:00","10:00-10:30"]}`), nil)

	rec := env.do(t, http.MethodGet, "/api/tutors/t1/slots?date=2026-02-05", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got SlotsResponse
	decodeResponse(t, rec, &got)
	require.Len(t, got.Ranges, 1)
	assert.Equal(t, 90, got.Ranges[0].Minutes)
	assert.Equal(t, "1 h 30 min", got.Ranges[0].Duration)
}

func TestHandleTutorSlots_Validation(t *testing.T) {
	env := newTestEnv(t, Options{})

	tests := []struct {
		name string
		path string
	}{
		{"missing date", "/api/tutors/t1/slots"},
		{"bad date", "/api/tutors/t1/slots?date=05-02-2026"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, nil, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeResponse(t, rec, nil)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
	env.backend.AssertNotCalled(t, "GetTutor", mock.Anything, mock.Anything)
}

func TestHandleCreateBooking_FromSlot(t *testing.T) {
	env := newTestEnv(t, Options{StrictManualOrder: true})
	env.backend.On("GetTutor", mock.Anything, "t1").
		Return(tutorWith("t1", `{"thursday":["09:00-10:00"]}`), nil)

	want := booking.Request{
		TutorID:   "t1",
		StartTime: "2026-02-05T06:00:00.000Z",
		EndTime:   "2026-02-05T07:00:00.000Z",
	}
	env.backend.On("CreateBooking", mock.Anything, "Bearer student", want).
		Return(&marketplace.Booking{ID: "b1", TutorID: "t1", Status: "confirmed"}, nil)

	rec := env.do(t, http.MethodPost, "/api/bookings", CreateBookingRequest{
		TutorID: "t1",
		Date:    "2026-02-05",
		Slot:    "09:00-10:00",
	}, map[string]string{"Authorization": "Bearer student", sessionHeader: "s1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got BookingResponse
	decodeResponse(t, rec, &got)
	assert.Equal(t, want, got.Request)
	assert.Equal(t, "confirmed", got.Booking.Status)
	env.backend.AssertExpectations(t)

	recent, err := env.db.RecentBookings(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "submitted", recent[0].Status)
	assert.Equal(t, "s1", recent[0].SessionID)
	assert.Equal(t, want.StartTime, recent[0].StartTime)
}

func TestHandleCreateBooking_Rejections(t *testing.T) {
	env := newTestEnv(t, Options{StrictManualOrder: true})
	env.backend.On("GetTutor", mock.Anything, "t1").
		Return(tutorWith("t1", `{"thursday":["09:00-10:00"]}`), nil)

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing tutor",
			body:       CreateBookingRequest{Date: "2026-02-05", Slot: "09:00-10:00"},
			wantStatus: http.StatusBadRequest,
			wantError:  "tutorId is required",
		},
		{
			name:       "incomplete slot",
			body:       CreateBookingRequest{TutorID: "t1", Date: "2026-02-05", Slot: "09:00"},
			wantStatus: http.StatusBadRequest,
			wantError:  slots.MsgSelectSlot,
		},
		{
			name:       "no date",
			body:       CreateBookingRequest{TutorID: "t1", Slot: "09:00-10:00"},
			wantStatus: http.StatusBadRequest,
			wantError:  slots.MsgSelectSlot,
		},
		{
			name:       "slot not offered that day",
			body:       CreateBookingRequest{TutorID: "t1", Date: "2026-02-06", Slot: "09:00-10:00"},
			wantStatus: http.StatusConflict,
			wantError:  booking.ErrSlotNotOffered.Error(),
		},
		{
			name:       "manual without start",
			body:       CreateBookingRequest{TutorID: "t1", Date: "2026-02-05", EndTime: "10:00"},
			wantStatus: http.StatusBadRequest,
			wantError:  slots.MsgSelectSlot,
		},
		{
			name:       "manual end before start",
			body:       CreateBookingRequest{TutorID: "t1", Date: "2026-02-05", StartTime: "11:00", EndTime: "10:00"},
			wantStatus: http.StatusBadRequest,
			wantError:  slots.ErrInvalidTimeRange.Error(),
		},
		{
			name:       "unknown field",
			body:       map[string]string{"tutorId": "t1", "when": "now"},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/bookings", tt.body, nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeResponse(t, rec, nil)
			assert.Equal(t, tt.wantError, resp.Message)
		})
	}
	env.backend.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCreateBooking_LenientManualOrder(t *testing.T) {
	env := newTestEnv(t, Options{StrictManualOrder: false, Location: time.UTC})

	want := booking.Request{
		TutorID:   "t1",
		StartTime: "2026-02-05T11:00:00.000Z",
		EndTime:   "2026-02-05T10:00:00.000Z",
	}
	env.backend.On("CreateBooking", mock.Anything, "", want).
		Return(nil, &marketplace.APIError{Status: http.StatusBadRequest, Message: "end time must be after start time"})

	rec := env.do(t, http.MethodPost, "/api/bookings", CreateBookingRequest{
		TutorID:   "t1",
		Date:      "2026-02-05",
		StartTime: "11:00",
		EndTime:   "10:00",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec, nil)
	assert.Equal(t, "end time must be after start time", resp.Message)
	env.backend.AssertExpectations(t)

	recent, err := env.db.RecentBookings(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "rejected", recent[0].Status)
}

func TestHandleCreateBooking_BackendDown(t *testing.T) {
	env := newTestEnv(t, Options{Location: time.UTC})
	env.backend.On("CreateBooking", mock.Anything, "", mock.Anything).
		Return(nil, &marketplace.APIError{Status: http.StatusInternalServerError})

	rec := env.do(t, http.MethodPost, "/api/bookings", CreateBookingRequest{
		TutorID:   "t1",
		Date:      "2026-02-05",
		StartTime: "09:00",
		EndTime:   "10:00",
	}, nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	recent, err := env.db.RecentBookings(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "failed", recent[0].Status)
}

func TestDraftFlow(t *testing.T) {
	env := newTestEnv(t, Options{StrictManualOrder: true, Location: time.UTC})
	env.backend.On("GetTutor", mock.Anything, "t1").
		Return(tutorWith("t1", `{"thursday":["09:00-10:00","10:00-11:00"],"friday":["15:00-16:00"]}`), nil)
	headers := map[string]string{sessionHeader: "s1"}

	date := "2026-02-05"
	rec := env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{Date: &date}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var view booking.View
	decodeResponse(t, rec, &view)
	assert.Equal(t, booking.StateDateSelected, view.State)
	assert.Equal(t, []string{"09:00-10:00", "10:00-11:00"}, view.Slots)

	slot := "10:00-11:00"
	rec = env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{Slot: &slot}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	view = booking.View{}
	decodeResponse(t, rec, &view)
	assert.Equal(t, "10:00", view.StartTime)
	assert.Equal(t, "11:00", view.EndTime)

	// switching the date drops the chosen slot
	other := "2026-02-06"
	rec = env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{Date: &other}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	view = booking.View{}
	decodeResponse(t, rec, &view)
	assert.Empty(t, view.StartTime)
	assert.Empty(t, view.EndTime)
	assert.Equal(t, []string{"15:00-16:00"}, view.Slots)

	rec = env.do(t, http.MethodPost, "/api/tutors/t1/draft/submit", nil, headers)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, slots.MsgSelectSlot, decodeResponse(t, rec, nil).Message)

	rec = env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{Slot: &slot}, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)

	friday := "15:00-16:00"
	rec = env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{Slot: &friday}, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	want := booking.Request{TutorID: "t1", StartTime: "2026-02-06T15:00:00.000Z", EndTime: "2026-02-06T16:00:00.000Z"}
	env.backend.On("CreateBooking", mock.Anything, "", want).
		Return(&marketplace.Booking{ID: "b2", Status: "confirmed"}, nil)

	rec = env.do(t, http.MethodPost, "/api/tutors/t1/draft/submit", nil, headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, booking.StateSubmitted, env.server.Drafts().Get("s1", "t1").Snapshot().State)
}

func TestDraft_PicksUpFreshAvailability(t *testing.T) {
	env := newTestEnv(t, Options{StrictManualOrder: true, Location: time.UTC})
	env.backend.On("GetTutor", mock.Anything, "t1").
		Return(tutorWith("t1", `{"thursday":["09:00-10:00"]}`), nil).Once()
	env.backend.On("GetTutor", mock.Anything, "t1").
		Return(tutorWith("t1", `{"thursday":["09:00-10:00","16:00-17:00"]}`), nil)
	headers := map[string]string{sessionHeader: "s1"}

	date := "2026-02-05"
	rec := env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{Date: &date}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var view booking.View
	decodeResponse(t, rec, &view)
	assert.Equal(t, []string{"09:00-10:00"}, view.Slots)

	// the tutor opened 16:00 since; a slot-only update sees it
	late := "16:00-17:00"
	rec = env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{Slot: &late}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	view = booking.View{}
	decodeResponse(t, rec, &view)
	assert.Equal(t, []string{"09:00-10:00", "16:00-17:00"}, view.Slots)
	assert.Equal(t, "16:00", view.StartTime)
	assert.Equal(t, "17:00", view.EndTime)
	env.backend.AssertNumberOfCalls(t, "GetTutor", 2)
}

func TestDraft_SlotWithdrawnClearsSelection(t *testing.T) {
	env := newTestEnv(t, Options{StrictManualOrder: true, Location: time.UTC})
	env.backend.On("GetTutor", mock.Anything, "t1").
		Return(tutorWith("t1", `{"thursday":["09:00-10:00","10:00-11:00"]}`), nil).Twice()
	env.backend.On("GetTutor", mock.Anything, "t1").
		Return(tutorWith("t1", `{"thursday":["09:00-10:00"]}`), nil)
	headers := map[string]string{sessionHeader: "s1"}

	date := "2026-02-05"
	slot := "10:00-11:00"
	rec := env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{Date: &date, Slot: &slot}, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	var view booking.View
	decodeResponse(t, rec, &view)
	assert.Equal(t, "10:00", view.StartTime)

	rec = env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{}, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	view = booking.View{}
	decodeResponse(t, rec, &view)
	assert.Equal(t, booking.StateDateSelected, view.State)
	assert.Empty(t, view.StartTime)
	assert.Equal(t, []string{"09:00-10:00"}, view.Slots)
}

func TestDraft_RequiresSession(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodPut, "/api/tutors/t1/draft", DraftUpdate{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/tutors/t1/draft/submit", nil, map[string]string{sessionHeader: "nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleUpdateAvailability_Toggle(t *testing.T) {
	env := newTestEnv(t, Options{SaveShape: availability.ShapeLegacyArray})
	auth := map[string]string{"Authorization": "Bearer tutor"}
	env.backend.On("MyTutorProfile", mock.Anything, "Bearer tutor").
		Return(tutorWith("t9", `{"Monday":["10:00-11:00"]}`), nil)

	expected := availability.Weekly{"monday": {"09:00-10:00", "10:00-11:00"}}
	env.backend.On("UpdateAvailability", mock.Anything, "Bearer tutor", "t9", expected, availability.ShapeLegacyArray).
		Return(nil)

	rec := env.do(t, http.MethodPut, "/api/tutor/availability", AvailabilityUpdate{Day: "Monday", Slot: "09:00-10:00"}, auth)
	require.Equal(t, http.StatusOK, rec.Code)

	var got AvailabilityResponse
	decodeResponse(t, rec, &got)
	assert.Equal(t, expected, got.Availability)
	assert.Equal(t, 2, got.Total)
	require.NotNil(t, got.Set)
	assert.True(t, *got.Set)
	env.backend.AssertExpectations(t)

	last, ok, err := env.db.LastAvailability(context.Background(), "t9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"monday":["09:00-10:00","10:00-11:00"]}]`, last)
}

func TestHandleUpdateAvailability_ToggleOffLeavesEmptyDay(t *testing.T) {
	env := newTestEnv(t, Options{SaveShape: availability.ShapeObject})
	auth := map[string]string{"Authorization": "Bearer tutor"}
	env.backend.On("MyTutorProfile", mock.Anything, "Bearer tutor").
		Return(tutorWith("t9", `[{"tuesday":["12:00-13:00"]}]`), nil)
	env.backend.On("UpdateAvailability", mock.Anything, "Bearer tutor", "t9",
		availability.Weekly{"tuesday": {}}, availability.ShapeObject).Return(nil)

	rec := env.do(t, http.MethodPut, "/api/tutor/availability", AvailabilityUpdate{Day: "tuesday", Slot: "12:00-13:00"}, auth)
	require.Equal(t, http.StatusOK, rec.Code)

	last, _, err := env.db.LastAvailability(context.Background(), "t9")
	require.NoError(t, err)
	assert.Equal(t, `{"tuesday":[]}`, last)
}

func TestHandleUpdateAvailability_Validation(t *testing.T) {
	env := newTestEnv(t, Options{})
	auth := map[string]string{"Authorization": "Bearer tutor"}

	tests := []struct {
		name       string
		body       AvailabilityUpdate
		headers    map[string]string
		wantStatus int
	}{
		{"no auth", AvailabilityUpdate{Day: "monday", Slot: "09:00-10:00"}, nil, http.StatusUnauthorized},
		{"unknown day", AvailabilityUpdate{Day: "someday", Slot: "09:00-10:00"}, auth, http.StatusBadRequest},
		{"slot outside catalog", AvailabilityUpdate{Day: "monday", Slot: "07:00-08:00"}, auth, http.StatusBadRequest},
		{"replace with bad day", AvailabilityUpdate{Availability: availability.Weekly{"funday": {"09:00-10:00"}}}, auth, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPut, "/api/tutor/availability", tt.body, tt.headers)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
	env.backend.AssertNotCalled(t, "UpdateAvailability", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleMyAvailability(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.backend.On("MyTutorProfile", mock.Anything, "Bearer tutor").
		Return(tutorWith("t9", `not json`), nil)

	rec := env.do(t, http.MethodGet, "/api/tutor/availability", nil, map[string]string{"Authorization": "Bearer tutor"})
	require.Equal(t, http.StatusOK, rec.Code)

	var got AvailabilityResponse
	decodeResponse(t, rec, &got)
	assert.Equal(t, "t9", got.TutorID)
	assert.Empty(t, got.Availability)
	assert.Equal(t, 0, got.Total)
}

func TestHandleCatalog(t *testing.T) {
	env := newTestEnv(t, Options{})

	rec := env.do(t, http.MethodGet, "/api/availability/catalog", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got CatalogResponse
	decodeResponse(t, rec, &got)
	assert.Len(t, got.Slots, 12)
	assert.Equal(t, "09:00-10:00", got.Slots[0])
	assert.Equal(t, availability.Days, got.Days)

	env.server.SetCatalog(&config.Catalog{Slots: []string{"08:00-08:30"}})
	rec = env.do(t, http.MethodGet, "/api/availability/catalog", nil, nil)
	got = CatalogResponse{}
	decodeResponse(t, rec, &got)
	assert.Equal(t, []string{"08:00-08:30"}, got.Slots)
}

func TestHandleListTutors(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.backend.On("ListTutors", mock.Anything, marketplace.TutorFilters{CategoryID: "c1", MinRate: 10, SortBy: "rating", Page: 2}).
		Return(&marketplace.TutorPage{Data: []marketplace.TutorProfile{{ID: "a"}}, Total: 1, Page: 2}, nil)
	env.backend.On("Categories", mock.Anything).
		Return([]marketplace.Category{{ID: "c1", Name: "Maths"}}, nil)

	rec := env.do(t, http.MethodGet, "/api/tutors?categoryId=c1&minRate=10&sortBy=rating&page=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page marketplace.TutorPage
	decodeResponse(t, rec, &page)
	assert.Equal(t, 1, page.Total)

	rec = env.do(t, http.MethodGet, "/api/tutors?sortBy=name", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/tutors?minRate=cheap", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/categories", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cats []marketplace.Category
	decodeResponse(t, rec, &cats)
	require.Len(t, cats, 1)
	assert.Equal(t, "Maths", cats[0].Name)
}

func TestAPIKey(t *testing.T) {
	env := newTestEnv(t, Options{APIKey: testAPIKey})

	rec := env.do(t, http.MethodGet, "/api/availability/catalog", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/availability/catalog", nil, map[string]string{"x-api-key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/availability/catalog", nil, map[string]string{"x-api-key": testAPIKey})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandleFeaturedTutors(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.backend.On("FeaturedTutors", mock.Anything).
		Return([]marketplace.TutorProfile{{ID: "a", Bio: "maths"}}, nil).Once()
	env.backend.On("FeaturedTutors", mock.Anything).Return(nil, nil).Once()

	rec := env.do(t, http.MethodGet, "/api/tutors/featured", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []marketplace.TutorProfile
	decodeResponse(t, rec, &got)
	require.Len(t, got, 1)
	assert.Equal(t, marketplace.ID("a"), got[0].ID)

	rec = env.do(t, http.MethodGet, "/api/tutors/featured", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())
	env.backend.AssertNotCalled(t, "GetTutor", mock.Anything, mock.Anything)
}

func TestHandleMyBookings(t *testing.T) {
	env := newTestEnv(t, Options{})
	auth := map[string]string{"Authorization": "Bearer student"}
	env.backend.On("MyBookings", mock.Anything, "Bearer student",
		marketplace.BookingFilters{Status: "confirmed", SortBy: "startTime", Order: "asc"}).
		Return([]marketplace.Booking{{ID: "b1", Status: "confirmed"}}, nil)

	rec := env.do(t, http.MethodGet, "/api/bookings?status=confirmed&sortBy=startTime&order=asc", nil, auth)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []marketplace.Booking
	decodeResponse(t, rec, &got)
	require.Len(t, got, 1)
	assert.Equal(t, marketplace.ID("b1"), got[0].ID)
	env.backend.AssertExpectations(t)

	tests := []struct {
		name       string
		path       string
		headers    map[string]string
		wantStatus int
		wantError  string
	}{
		{"no auth", "/api/bookings", nil, http.StatusUnauthorized, "authorization required"},
		{"unknown status", "/api/bookings?status=pending", auth, http.StatusBadRequest, "status must be confirmed, completed or cancelled"},
		{"bad order", "/api/bookings?order=sideways", auth, http.StatusBadRequest, "order must be asc or desc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, nil, tt.headers)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeResponse(t, rec, nil).Message)
		})
	}
	env.backend.AssertNumberOfCalls(t, "MyBookings", 1)
}

func TestHandleCancelAndComplete(t *testing.T) {
	env := newTestEnv(t, Options{})
	env.backend.On("CancelBooking", mock.Anything, "Bearer student", "b1").
		Return(&marketplace.Booking{ID: "b1", Status: "cancelled"}, nil)
	env.backend.On("CompleteSession", mock.Anything, "Bearer tutor", "b2").
		Return(&marketplace.Booking{ID: "b2", Status: "completed"}, nil)
	env.backend.On("CancelBooking", mock.Anything, "Bearer student", "gone").
		Return(nil, &marketplace.APIError{Status: http.StatusNotFound, Message: "booking not found"})

	rec := env.do(t, http.MethodPatch, "/api/bookings/b1/cancel", nil, map[string]string{"Authorization": "Bearer student"})
	require.Equal(t, http.StatusOK, rec.Code)
	var got marketplace.Booking
	decodeResponse(t, rec, &got)
	assert.Equal(t, "cancelled", got.Status)

	rec = env.do(t, http.MethodPatch, "/api/tutor/sessions/b2/complete", nil, map[string]string{"Authorization": "Bearer tutor"})
	require.Equal(t, http.StatusOK, rec.Code)
	got = marketplace.Booking{}
	decodeResponse(t, rec, &got)
	assert.Equal(t, "completed", got.Status)

	rec = env.do(t, http.MethodPatch, "/api/bookings/gone/cancel", nil, map[string]string{"Authorization": "Bearer student"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "booking not found", decodeResponse(t, rec, nil).Message)

	rec = env.do(t, http.MethodPatch, "/api/bookings/b1/cancel", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = env.do(t, http.MethodPatch, "/api/tutor/sessions/b2/complete", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	env.backend.AssertNumberOfCalls(t, "CancelBooking", 2)
	env.backend.AssertNumberOfCalls(t, "CompleteSession", 1)
}

func TestHandleCreateReview(t *testing.T) {
	env := newTestEnv(t, Options{})
	auth := map[string]string{"Authorization": "Bearer student"}
	env.backend.On("CreateReview", mock.Anything, "Bearer student",
		marketplace.ReviewRequest{TutorID: "t1", Rating: 5, Comment: "clear explanations"}).
		Return(&marketplace.Review{ID: "r1", Rating: 5, Comment: "clear explanations"}, nil)

	rec := env.do(t, http.MethodPost, "/api/reviews",
		marketplace.ReviewRequest{TutorID: "t1", Rating: 5, Comment: "  clear explanations "}, auth)
	require.Equal(t, http.StatusCreated, rec.Code)
	var got marketplace.Review
	decodeResponse(t, rec, &got)
	assert.Equal(t, marketplace.ID("r1"), got.ID)
	env.backend.AssertExpectations(t)

	tests := []struct {
		name       string
		body       any
		headers    map[string]string
		wantStatus int
		wantError  string
	}{
		{"no auth", marketplace.ReviewRequest{TutorID: "t1", Rating: 5, Comment: "ok"}, nil, http.StatusUnauthorized, "authorization required"},
		{"blank comment", marketplace.ReviewRequest{TutorID: "t1", Rating: 5, Comment: "   "}, auth, http.StatusBadRequest, "invalid review: please write a comment"},
		{"rating out of range", marketplace.ReviewRequest{TutorID: "t1", Rating: 6, Comment: "ok"}, auth, http.StatusBadRequest, "invalid review: rating must be between 1 and 5"},
		{"unknown field", map[string]any{"tutorId": "t1", "stars": 5}, auth, http.StatusBadRequest, "invalid json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/reviews", tt.body, tt.headers)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantError, decodeResponse(t, rec, nil).Message)
		})
	}
	env.backend.AssertNumberOfCalls(t, "CreateReview", 1)
}
