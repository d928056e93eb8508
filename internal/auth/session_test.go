package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bosebridge/internal/clock"
)

func testToken(expiry time.Time) Token {
	return Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		BosePersonID: "person-1",
		Expiry:       expiry,
	}
}

func TestSession_Valid(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(start)

	session := NewSession(testToken(start.Add(time.Hour)), clk, zap.NewNop())

	assert.True(t, session.Valid(5*time.Minute))

	// Inside the safety margin the token counts as invalid even though it
	// has not technically expired.
	clk.Advance(56 * time.Minute)
	assert.False(t, session.Valid(5*time.Minute))
}

func TestSession_ValidWithoutToken(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	session := NewSession(Token{}, clk, zap.NewNop())

	assert.False(t, session.Valid(0))
	assert.Equal(t, time.Duration(0), session.TimeUntilExpiry())
}

func TestSession_TimeUntilExpiry(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(start)

	session := NewSession(testToken(start.Add(30*time.Minute)), clk, zap.NewNop())
	assert.Equal(t, 30*time.Minute, session.TimeUntilExpiry())

	clk.Advance(time.Hour)
	assert.Equal(t, -30*time.Minute, session.TimeUntilExpiry())
}

func TestSession_SetToken(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(start)
	session := NewSession(Token{}, clk, zap.NewNop())

	session.SetToken(testToken(start.Add(time.Hour)))

	assert.Equal(t, "access-1", session.AccessToken())
	assert.Equal(t, "person-1", session.PersonID())
	assert.True(t, session.Valid(5*time.Minute))
}

func TestAuthTransport_StampsBearerToken(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	session := NewSession(testToken(start.Add(time.Hour)), clock.NewMockClock(start), zap.NewNop())

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	client := &http.Client{Transport: &authTransport{session: session}}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer access-1", got)
}

func TestSession_RefreshWithoutRefreshToken(t *testing.T) {
	clk := clock.NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	session := NewSession(Token{AccessToken: "only-access"}, clk, zap.NewNop())

	err := session.Refresh(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no refresh token")
}
