package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"tutorbook/internal/availability"
	"tutorbook/internal/booking"
)

// Client calls the marketplace REST backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	limiter    *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// APIError is a non-2xx reply from the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message,omitempty"`
}

// NewClient constructs a client for baseURL (e.g. http://localhost:5000/api).
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UseRedisCache configures optional Redis caching for GET endpoints.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// UseRateLimit throttles outgoing requests. A non-positive rps disables it.
func (c *Client) UseRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// ListTutors returns a page of tutors matching filters.
func (c *Client) ListTutors(ctx context.Context, filters TutorFilters) (*TutorPage, error) {
	endpoint := c.baseURL + "/tutors"
	if q := filters.Query().Encode(); q != "" {
		endpoint += "?" + q
	}

	var page TutorPage
	if err := c.getCached(ctx, tutorListCachePrefix+filters.Query().Encode(), endpoint, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FeaturedTutors returns the featured tutors shown on the home page.
func (c *Client) FeaturedTutors(ctx context.Context) ([]TutorProfile, error) {
	var tutors []TutorProfile
	if err := c.getCached(ctx, tutorListCachePrefix+"featured", c.baseURL+"/tutors?featured=true&limit=6", &tutors); err != nil {
		return nil, err
	}
	return tutors, nil
}

// GetTutor fetches a single tutor profile.
func (c *Client) GetTutor(ctx context.Context, id string) (*TutorProfile, error) {
	endpoint := fmt.Sprintf("%s/tutors/%s", c.baseURL, url.PathEscape(id))
	var tutor TutorProfile
	if err := c.getCached(ctx, tutorCacheKey(id), endpoint, &tutor); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// Categories returns all subject categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.getCached(ctx, "categories", c.baseURL+"/categories", &cats); err != nil {
		return nil, err
	}
	return cats, nil
}

// MyTutorProfile returns the calling tutor's own profile. Never cached.
func (c *Client) MyTutorProfile(ctx context.Context, auth string) (*TutorProfile, error) {
	var tutor TutorProfile
	if err := c.call(ctx, http.MethodGet, c.baseURL+"/tutor/profile", auth, nil, nil, &tutor); err != nil {
		return nil, err
	}
	return &tutor, nil
}

// UpdateAvailability saves the tutor's availability and drops cached views of it.
func (c *Client) UpdateAvailability(ctx context.Context, auth, tutorID string, weekly availability.Weekly, shape availability.Shape) error {
	var body any = map[string]any{"availability": weekly}
	if shape == availability.ShapeLegacyArray {
		body = map[string]any{"availability": []availability.Weekly{weekly}}
	}
	if err := c.call(ctx, http.MethodPut, c.baseURL+"/tutor/availability", auth, nil, body, nil); err != nil {
		return err
	}
	c.dropTutorCaches(ctx, tutorID)
	return nil
}

// CreateBooking submits a booking request.
func (c *Client) CreateBooking(ctx context.Context, auth string, req booking.Request) (*Booking, error) {
	headers := map[string]string{"Idempotency-Key": uuid.New().String()}
	var out Booking
	if err := c.call(ctx, http.MethodPost, c.baseURL+"/bookings", auth, headers, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyBookings lists the caller's bookings.
func (c *Client) MyBookings(ctx context.Context, auth string, filters BookingFilters) ([]Booking, error) {
	endpoint := c.baseURL + "/bookings"
	if q := filters.Query().Encode(); q != "" {
		endpoint += "?" + q
	}
	var out []Booking
	if err := c.call(ctx, http.MethodGet, endpoint, auth, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelBooking cancels one of the caller's bookings.
func (c *Client) CancelBooking(ctx context.Context, auth, id string) (*Booking, error) {
	endpoint := fmt.Sprintf("%s/bookings/%s/cancel", c.baseURL, url.PathEscape(id))
	var out Booking
	if err := c.call(ctx, http.MethodPatch, endpoint, auth, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompleteSession marks a tutor's session as completed.
func (c *Client) CompleteSession(ctx context.Context, auth, id string) (*Booking, error) {
	endpoint := fmt.Sprintf("%s/tutor/sessions/%s/complete", c.baseURL, url.PathEscape(id))
	var out Booking
	if err := c.call(ctx, http.MethodPatch, endpoint, auth, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateReview posts a review for a tutor.
func (c *Client) CreateReview(ctx context.Context, auth string, req ReviewRequest) (*Review, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var out Review
	if err := c.call(ctx, http.MethodPost, c.baseURL+"/reviews", auth, nil, req, &out); err != nil {
		return nil, err
	}
	c.dropTutorCaches(ctx, req.TutorID)
	return &out, nil
}

// HealthCheck checks the backend is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/categories", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

const tutorListCachePrefix = "tutors:"

func tutorCacheKey(id string) string {
	return "tutor:" + id
}

// dropTutorCaches forgets the tutor's profile and every cached tutor listing,
// since listings embed availability and ratings.
func (c *Client) dropTutorCaches(ctx context.Context, tutorID string) {
	if c.redis == nil {
		return
	}
	if tutorID != "" {
		c.dropCache(ctx, tutorCacheKey(tutorID))
	}
	iter := c.redis.Scan(ctx, 0, tutorListCachePrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		_ = c.redis.Del(ctx, keys...).Err()
	}
}

func (c *Client) getCached(ctx context.Context, cacheKey, endpoint string, out any) error {
	if c.readCache(ctx, cacheKey, out) {
		return nil
	}
	if err := c.call(ctx, http.MethodGet, endpoint, "", nil, nil, out); err != nil {
		return err
	}
	c.writeCache(ctx, cacheKey, out)
	return nil
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.cacheTTL).Err()
}

func (c *Client) dropCache(ctx context.Context, key string) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, key).Err()
}

// call performs a request and unwraps the {success,data,message} envelope into out.
func (c *Client) call(ctx context.Context, method, endpoint, auth string, headers map[string]string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.addHeaders(req, auth)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if decodeErr != nil {
		if decodeErr == io.EOF && out == nil {
			return nil
		}
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// addHeaders forwards the caller's credentials, falling back to the service token.
func (c *Client) addHeaders(req *http.Request, auth string) {
	switch {
	case auth != "":
		req.Header.Set("Authorization", auth)
	case c.token != "":
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// TutorFilters mirrors the backend's tutor search parameters.
type TutorFilters struct {
	CategoryID string
	MinRate    float64
	MaxRate    float64
	MinRating  float64
	Search     string
	SortBy     string // rating, price, experience
	SortOrder  string // asc, desc
	Page       int
	Limit      int
}

// Query encodes the non-zero filters.
func (f TutorFilters) Query() url.Values {
	q := url.Values{}
	if f.CategoryID != "" {
		q.Set("categoryId", f.CategoryID)
	}
	if f.MinRate > 0 {
		q.Set("minRate", strconv.FormatFloat(f.MinRate, 'f', -1, 64))
	}
	if f.MaxRate > 0 {
		q.Set("maxRate", strconv.FormatFloat(f.MaxRate, 'f', -1, 64))
	}
	if f.MinRating > 0 {
		q.Set("minRating", strconv.FormatFloat(f.MinRating, 'f', -1, 64))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.SortBy != "" {
		q.Set("sortBy", f.SortBy)
	}
	if f.SortOrder != "" {
		q.Set("sortOrder", f.SortOrder)
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// BookingFilters mirrors the backend's booking list parameters.
type BookingFilters struct {
	Status string
	SortBy string
	Order  string
}

func (f BookingFilters) Query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.SortBy != "" {
		q.Set("sortBy", f.SortBy)
	}
	if f.Order != "" {
		q.Set("order", f.Order)
	}
	return q
}
