package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bosebridge/internal/clock"
)

// Refresh cadence. CheckInterval is how often validity is re-examined,
// RetryInterval how soon a failed refresh is retried.
const (
	DefaultCheckInterval = time.Hour
	DefaultRetryInterval = 2 * time.Minute
	DefaultMargin        = 5 * time.Minute
)

// refreshable is the slice of Session the refresher needs; tests substitute
// a fake.
type refreshable interface {
	Valid(margin time.Duration) bool
	Refresh(ctx context.Context) error
}

// Refresher proactively renews the session before expiry. It runs for the
// lifetime of the daemon and never fails terminally: refresh errors back off
// to RetryInterval and try again.
type Refresher struct {
	session refreshable
	clk     clock.Clock
	logger  *zap.Logger

	CheckInterval time.Duration
	RetryInterval time.Duration
	Margin        time.Duration

	nudge chan struct{}
}

// NewRefresher creates a refresher with the default cadence.
func NewRefresher(session refreshable, clk clock.Clock, logger *zap.Logger) *Refresher {
	return &Refresher{
		session:       session,
		clk:           clk,
		logger:        logger,
		CheckInterval: DefaultCheckInterval,
		RetryInterval: DefaultRetryInterval,
		Margin:        DefaultMargin,
		nudge:         make(chan struct{}, 1),
	}
}

// Nudge requests an immediate refresh, used when a device request observes a
// 401. The server may have revoked the token ahead of its stated expiry, so
// the nudged refresh skips the validity check. Non-blocking; concurrent
// nudges coalesce.
func (r *Refresher) Nudge() {
	select {
	case r.nudge <- struct{}{}:
	default:
	}
}

// Run loops until ctx is cancelled. Call it in its own goroutine.
func (r *Refresher) Run(ctx context.Context) {
	nudged := false
	for {
		wait := r.CheckInterval

		if nudged || !r.session.Valid(r.Margin) {
			if err := r.session.Refresh(ctx); err != nil {
				r.logger.Warn("Token refresh failed, will retry",
					zap.Duration("retry_in", r.RetryInterval),
					zap.Error(err))
				wait = r.RetryInterval
			}
		}
		nudged = false

		select {
		case <-ctx.Done():
			return
		case <-r.nudge:
			nudged = true
		case <-r.clk.After(wait):
		}
	}
}
