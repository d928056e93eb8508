package projection

import (
	"go.uber.org/zap"
)

// AuthValidity is a diagnostic entity exposing how long the cloud access
// token stays valid. The value is computed on read, so it needs no push
// subscription.
type AuthValidity struct {
	base
	remaining func() float64
}

// NewAuthValidity builds the sensor. remaining returns the seconds until the
// token expires (negative when already expired).
func NewAuthValidity(deviceID string, remaining func() float64, notify NotifyFunc, logger *zap.Logger) *AuthValidity {
	a := &AuthValidity{
		base:      newBase(deviceID, "auth-validity", "Token Validity", notify, logger),
		remaining: remaining,
	}
	a.available = true
	return a
}

// ValidSeconds returns the seconds of validity left, floored at zero.
func (a *AuthValidity) ValidSeconds() int {
	secs := a.remaining()
	if secs < 0 {
		secs = 0
	}
	return int(secs)
}

func (a *AuthValidity) Snapshot() Snapshot {
	valid := a.ValidSeconds()
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot(map[string]any{
		"valid_seconds": valid,
	})
}
