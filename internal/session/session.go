// Package session owns the signed-in identity and its bearer token.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"classbook/internal/apperr"
	"classbook/internal/events"
	"classbook/internal/models"
)

// AuthAPI is the slice of the backend the session talks to.
type AuthAPI interface {
	SignIn(ctx context.Context, email, password string) (*models.AuthResponse, error)
	SignUp(ctx context.Context, name, email, password string) (*models.AuthResponse, error)
	CurrentUser(ctx context.Context) (*models.Identity, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (*models.Identity, error)
}

// Session is the single source of truth for who is signed in.
// Identity is non-nil only while a token is held.
type Session struct {
	mu       sync.Mutex
	token    string
	identity *models.Identity

	store  TokenStore
	api    AuthAPI
	bus    *events.Bus
	logger zerolog.Logger
}

func New(store TokenStore, api AuthAPI, logger *zerolog.Logger, bus *events.Bus) *Session {
	return &Session{
		store:  store,
		api:    api,
		bus:    bus,
		logger: logger.With().Str("component", "session").Logger(),
	}
}

// Token implements apiclient.TokenSource.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Identity returns the current identity, if any.
func (s *Session) Identity() (models.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return models.Identity{}, false
	}
	return *s.identity, true
}

// RequireIdentity fails with AuthenticationMissing when nobody is signed in.
func (s *Session) RequireIdentity() (models.Identity, error) {
	id, ok := s.Identity()
	if !ok {
		return models.Identity{}, apperr.New(apperr.KindAuthenticationMissing, "session", errors.New("not signed in"))
	}
	return id, nil
}

// Restore resumes a persisted session. Failures leave the session signed out and are only logged.
func (s *Session) Restore(ctx context.Context) {
	token, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read stored token")
		return
	}
	if token == "" {
		return
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	me, err := s.api.CurrentUser(ctx)
	if err != nil {
		s.mu.Lock()
		s.token = ""
		s.identity = nil
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("Failed to restore session")
		return
	}

	s.mu.Lock()
	if s.token == token {
		s.identity = me
	}
	s.mu.Unlock()
	s.logger.Debug().Str("user_id", me.ID).Msg("Session restored")
}

func (s *Session) SignIn(ctx context.Context, email, password string) (models.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return models.Identity{}, apperr.Validation("sign in", errors.New("email and password are required"))
	}
	resp, err := s.api.SignIn(ctx, email, password)
	if err != nil {
		return models.Identity{}, err
	}
	return s.establish(ctx, resp)
}

func (s *Session) SignUp(ctx context.Context, name, email, password string) (models.Identity, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return models.Identity{}, apperr.Validation("sign up", errors.New("name, email and password are required"))
	}
	resp, err := s.api.SignUp(ctx, name, email, password)
	if err != nil {
		return models.Identity{}, err
	}
	return s.establish(ctx, resp)
}

// establish persists the token before exposing the identity.
func (s *Session) establish(ctx context.Context, resp *models.AuthResponse) (models.Identity, error) {
	if resp.Token == "" {
		return models.Identity{}, apperr.New(apperr.KindInternal, "sign in", errors.New("empty token in response"))
	}
	if err := s.store.Set(ctx, resp.Token); err != nil {
		return models.Identity{}, apperr.New(apperr.KindInternal, "store token", err)
	}

	user := resp.User
	s.mu.Lock()
	s.token = resp.Token
	s.identity = &user
	s.mu.Unlock()

	s.publish(events.SessionSignedIn, user)
	s.logger.Info().Str("user_id", user.ID).Msg("Signed in")
	return user, nil
}

// SignOut clears the identity, then the persisted token, then notifies subscribers.
func (s *Session) SignOut(ctx context.Context) error {
	s.mu.Lock()
	var userID string
	if s.identity != nil {
		userID = s.identity.ID
	}
	s.identity = nil
	s.token = ""
	s.mu.Unlock()

	err := s.store.Remove(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to remove stored token")
	}

	s.publish(events.SessionSignedOut, map[string]string{"userId": userID})
	return err
}

// Invalidate ends the session after the backend rejected the token.
func (s *Session) Invalidate(ctx context.Context, cause error) {
	s.logger.Warn().Err(cause).Msg("Session invalidated by backend")
	_ = s.SignOut(ctx)
}

// UpdateProfile changes the signed-in user's name and email.
func (s *Session) UpdateProfile(ctx context.Context, name, email string) (models.Identity, error) {
	me, err := s.RequireIdentity()
	if err != nil {
		return models.Identity{}, err
	}
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return models.Identity{}, apperr.Validation("update profile", errors.New("name and email are required"))
	}

	updated, err := s.api.UpdateUser(ctx, me.ID, models.UserUpdate{Name: &name, Email: &email})
	if err != nil {
		return models.Identity{}, err
	}

	s.mu.Lock()
	if s.identity != nil && s.identity.ID == updated.ID {
		s.identity = updated
	}
	s.mu.Unlock()
	return *updated, nil
}

func (s *Session) publish(eventType string, payload any) {
	if err := s.bus.PublishJSON(eventType, payload); err != nil {
		s.logger.Warn().Err(err).Str("event", eventType).Msg("Event handler failed")
	}
}
