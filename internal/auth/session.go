// Package auth maintains the Bose cloud session: a bearer/refresh token pair
// with a server-asserted expiry, refreshed proactively by a background loop.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"bosebridge/internal/clock"
)

// Bose id service. The client id is the public one the Bose app uses for the
// password grant; there is no client secret.
const (
	tokenURL      = "https://id.api.bose.io/id-jwt-core/token"
	defaultScope  = "openid"
	defaultClient = "bose-control-client"
)

// Token is one issued credential set.
type Token struct {
	AccessToken  string
	RefreshToken string
	BosePersonID string
	Expiry       time.Time
}

// Session holds the current cloud credentials. It is read by every
// request-issuing component and written only by Refresh.
type Session struct {
	conf   *oauth2.Config
	clk    clock.Clock
	logger *zap.Logger

	mu    sync.RWMutex
	token Token
}

// NewSession creates a session seeded with an existing token (typically from
// config or a previous run). The token may already be expired; the refresher
// or the first 401 will renew it.
func NewSession(seed Token, clk clock.Clock, logger *zap.Logger) *Session {
	return &Session{
		conf: &oauth2.Config{
			ClientID: defaultClient,
			Endpoint: oauth2.Endpoint{TokenURL: tokenURL},
			Scopes:   []string{defaultScope},
		},
		clk:    clk,
		logger: logger,
		token:  seed,
	}
}

// AccessToken returns the current bearer token.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.AccessToken
}

// PersonID returns the Bose account person id tied to the token.
func (s *Session) PersonID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token.BosePersonID
}

// Valid reports whether the token has at least margin of validity left.
// Requests must not be issued against a token inside the margin.
func (s *Session) Valid(margin time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token.AccessToken == "" {
		return false
	}
	return s.token.Expiry.Sub(s.clk.Now()) > margin
}

// TimeUntilExpiry returns the remaining token validity, which may be
// negative once expired.
func (s *Session) TimeUntilExpiry() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token.AccessToken == "" {
		return 0
	}
	return s.token.Expiry.Sub(s.clk.Now())
}

// SetToken replaces the credential set. Exposed for tests and for callers
// that obtain tokens out of band.
func (s *Session) SetToken(t Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = t
}

// Refresh exchanges the refresh token for a new credential set. The previous
// token stays in place on failure so readers never observe a torn state.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.token.RefreshToken
	personID := s.token.BosePersonID
	s.mu.RUnlock()

	if refreshToken == "" {
		return fmt.Errorf("no refresh token available")
	}

	src := s.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return fmt.Errorf("token refresh failed: %w", err)
	}

	next := Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		BosePersonID: personID,
		Expiry:       tok.Expiry,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}
	if id, ok := tok.Extra("bose_person_id").(string); ok && id != "" {
		next.BosePersonID = id
	}

	s.mu.Lock()
	s.token = next
	s.mu.Unlock()

	s.logger.Info("Refreshed cloud token",
		zap.Time("expiry", next.Expiry),
		zap.Duration("validity", next.Expiry.Sub(s.clk.Now())))
	return nil
}

// authTransport stamps the session bearer token on outgoing cloud requests.
type authTransport struct {
	session *Session
	base    http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.session.AccessToken())
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}
