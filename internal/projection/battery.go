package projection

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"bosebridge/internal/bose"
	"bosebridge/internal/router"
)

// batterySentinel is the firmware's "no estimate" marker for the minutes
// fields.
const batterySentinel = 65535

// Battery projects the battery surface of portable speakers: charge percent,
// charging flag and the time estimates with the sentinel filtered out.
type Battery struct {
	base
	speaker bose.Controller

	percent          *int
	minutesToEmpty   *int
	minutesToFull    *int
	charging         bool
	chargerConnected bool
}

func NewBattery(speaker bose.Controller, notify NotifyFunc, logger *zap.Logger) *Battery {
	return &Battery{
		base:    newBase(speaker.DeviceID(), "battery", "Battery", notify, logger),
		speaker: speaker,
	}
}

func (b *Battery) Register(r *router.Router) {
	r.Register(bose.TopicBattery, b.entityID, b.handleBattery)
}

func (b *Battery) Seed(ctx context.Context) error {
	batt, err := bose.GetBattery(ctx, b.speaker)
	if err != nil {
		return err
	}
	b.apply(batt)
	b.changed()
	return nil
}

func (b *Battery) handleBattery(body json.RawMessage) {
	var batt bose.Battery
	if err := bose.Decode(body, &batt); err != nil {
		b.logger.Warn("Bad battery payload", zap.Error(err))
		return
	}
	b.apply(batt)
	b.changed()
}

func (b *Battery) apply(batt bose.Battery) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.percent = batt.Percent
	b.charging = batt.ChargeStatus == "CHARGING"
	b.chargerConnected = batt.ChargerConnected == "CONNECTED"
	b.minutesToFull = sanitizeMinutes(batt.MinutesToFull, batt.Percent, 100)
	b.minutesToEmpty = sanitizeMinutes(batt.MinutesToEmpty, batt.Percent, 0)
	b.available = true
}

// sanitizeMinutes filters the sentinel. At the matching charge bound the
// sentinel genuinely means zero minutes remain, so it maps to 0 instead of
// "unknown".
func sanitizeMinutes(v, percent *int, bound int) *int {
	if v == nil {
		return nil
	}
	if *v != batterySentinel {
		return v
	}
	if percent != nil && *percent == bound {
		zero := 0
		return &zero
	}
	return nil
}

func (b *Battery) Percent() *int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.percent
}

func (b *Battery) MinutesToEmpty() *int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.minutesToEmpty
}

func (b *Battery) MinutesToFull() *int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.minutesToFull
}

func (b *Battery) Charging() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.charging
}

func (b *Battery) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	state := map[string]any{
		"charging":          b.charging,
		"charger_connected": b.chargerConnected,
	}
	if b.percent != nil {
		state["percent"] = *b.percent
	}
	if b.minutesToEmpty != nil {
		state["minutes_to_empty"] = *b.minutesToEmpty
	}
	if b.minutesToFull != nil {
		state["minutes_to_full"] = *b.minutesToFull
	}
	return b.snapshot(state)
}
