// Package apiclient is the authenticated HTTP client for the classbook backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"classbook/internal/apperr"
	"classbook/internal/models"
)

// TokenSource supplies the current bearer token, or "" when signed out.
type TokenSource interface {
	Token() string
}

// UnauthorizedFunc is called when an authenticated request is rejected with 401.
type UnauthorizedFunc func(ctx context.Context, err error)

const (
	cacheKeyClassrooms      = "classbook:classrooms"
	cacheKeyClassroomPrefix = "classbook:classroom:"
)

// HTTPError is the decoded body of a non-2xx response.
type HTTPError struct {
	Status  int    `json:"-"`
	Code    string `json:"error"`
	Message string `json:"message"`
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("http %d", e.Status)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     zerolog.Logger

	onUnauthorized UnauthorizedFunc

	redis    *redis.Client
	cacheTTL time.Duration

	mu sync.Mutex
	// verified is the last token the backend accepted; cached reads require it.
	verified string
}

func New(baseURL string, timeout time.Duration, tokens TokenSource, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger.With().Str("component", "apiclient").Logger(),
	}
}

// SetTokenSource replaces the token source. The session and the client reference each other.
func (c *Client) SetTokenSource(tokens TokenSource) {
	c.tokens = tokens
}

// OnUnauthorized registers the handler invoked on 401 responses to authenticated calls.
func (c *Client) OnUnauthorized(fn UnauthorizedFunc) {
	c.onUnauthorized = fn
}

// UseRedisCache enables Redis caching of classroom reads. A cached read is served only once the
// current token was accepted by the backend in this process, so the first read of every session
// reaches the server. After that, a token that expires is noticed at most ttl later.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	body := models.SignInRequest{Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/auth/signin", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SignUp(ctx context.Context, name, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	body := models.SignUpRequest{Name: name, Email: email, Password: password}
	if err := c.call(ctx, http.MethodPost, "/auth/signup", body, &out, false); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CurrentUser(ctx context.Context) (*models.Identity, error) {
	var out models.Identity
	if err := c.call(ctx, http.MethodGet, "/users/me", nil, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.Identity, error) {
	var out models.Identity
	if err := c.call(ctx, http.MethodPut, "/users/"+url.PathEscape(id), upd, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListClassrooms(ctx context.Context) ([]models.Classroom, error) {
	var out []models.Classroom
	if c.readCache(ctx, cacheKeyClassrooms, &out) {
		return out, nil
	}
	if err := c.call(ctx, http.MethodGet, "/classrooms", nil, &out, true); err != nil {
		return nil, err
	}
	c.writeCache(ctx, cacheKeyClassrooms, out)
	return out, nil
}

func (c *Client) GetClassroom(ctx context.Context, id string) (*models.Classroom, error) {
	key := cacheKeyClassroomPrefix + id
	var out models.Classroom
	if c.readCache(ctx, key, &out) {
		return &out, nil
	}
	if err := c.call(ctx, http.MethodGet, "/classrooms/"+url.PathEscape(id), nil, &out, true); err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, out)
	return &out, nil
}

func (c *Client) CreateClassroom(ctx context.Context, in models.NewClassroom) (*models.Classroom, error) {
	var out models.Classroom
	if err := c.call(ctx, http.MethodPost, "/classrooms", in, &out, true); err != nil {
		return nil, err
	}
	c.dropCache(ctx, cacheKeyClassrooms)
	return &out, nil
}

func (c *Client) ClassroomReservations(ctx context.Context, classroomID string) ([]models.Reservation, error) {
	var out []models.Reservation
	path := "/reservations/classroom/" + url.PathEscape(classroomID)
	if err := c.call(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) MyReservations(ctx context.Context) ([]models.Reservation, error) {
	var out []models.Reservation
	if err := c.call(ctx, http.MethodGet, "/reservations/me", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateReservation(ctx context.Context, req models.ReservationRequest) (*models.Reservation, error) {
	var out models.Reservation
	if err := c.call(ctx, http.MethodPost, "/reservations", req, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteReservation(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, "/reservations/"+url.PathEscape(id), nil, nil, true)
}

// HealthCheck checks that the backend answers /healthz.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.New(apperr.KindNetworkFailure, "GET /healthz", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) token() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.Token()
}

func (c *Client) setVerified(token string) {
	c.mu.Lock()
	c.verified = token
	c.mu.Unlock()
}

// sessionVerified reports whether the current token already passed the backend's auth check.
func (c *Client) sessionVerified() bool {
	token := c.token()
	c.mu.Lock()
	defer c.mu.Unlock()
	return token != "" && token == c.verified
}

// call sends one request. authed marks routes behind the auth middleware, whose 401s end the session.
func (c *Client) call(ctx context.Context, method, path string, body, out any, authed bool) error {
	op := method + " " + path

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apperr.New(apperr.KindInternal, op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperr.New(apperr.KindInternal, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	token := c.token()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.New(apperr.KindNetworkFailure, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		httpErr := decodeHTTPError(resp)
		appErr := apperr.New(kindFor(httpErr), op, httpErr)
		if resp.StatusCode == http.StatusUnauthorized && authed {
			c.setVerified("")
			if c.onUnauthorized != nil {
				c.onUnauthorized(ctx, appErr)
			}
		}
		return appErr
	}
	if authed && token != "" {
		c.setVerified(token)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.New(apperr.KindInternal, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func decodeHTTPError(resp *http.Response) *HTTPError {
	httpErr := &HTTPError{Status: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && len(data) > 0 {
		if jsonErr := json.Unmarshal(data, httpErr); jsonErr != nil {
			httpErr.Message = strings.TrimSpace(string(data))
		}
	}
	httpErr.Status = resp.StatusCode
	return httpErr
}

func kindFor(e *HTTPError) apperr.Kind {
	switch e.Status {
	case http.StatusUnauthorized:
		if e.Code == "authentication_required" {
			return apperr.KindAuthenticationMissing
		}
		return apperr.KindAuthenticationInvalid
	case http.StatusForbidden:
		return apperr.KindForbidden
	case http.StatusNotFound:
		return apperr.KindNotFound
	case http.StatusConflict:
		return apperr.KindConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.KindValidationFailed
	}
	return apperr.KindInternal
}
