package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"bosebridge/internal/bose"
	"bosebridge/internal/router"
)

// Accessory classes the soundbars report.
const (
	AccessorySubs  = "subs"
	AccessoryRears = "rears"
)

// AccessorySwitch projects the enable flag of one accessory class (wireless
// subwoofers or rear surrounds). Writes are partial updates naming only the
// flipped class.
type AccessorySwitch struct {
	base
	speaker bose.Controller
	class   string

	enabled      bool
	controllable bool
}

// NewAccessorySwitch builds the switch for class (AccessorySubs or
// AccessoryRears).
func NewAccessorySwitch(speaker bose.Controller, class, name string, notify NotifyFunc, logger *zap.Logger) *AccessorySwitch {
	return &AccessorySwitch{
		base:    newBase(speaker.DeviceID(), "accessory-"+class, name, notify, logger),
		speaker: speaker,
		class:   class,
	}
}

func (s *AccessorySwitch) Register(r *router.Router) {
	r.Register(bose.TopicAccessories, s.entityID, s.handleAccessories)
}

func (s *AccessorySwitch) Seed(ctx context.Context) error {
	acc, err := bose.GetAccessories(ctx, s.speaker)
	if err != nil {
		return err
	}
	s.apply(acc)
	s.changed()
	return nil
}

func (s *AccessorySwitch) handleAccessories(body json.RawMessage) {
	var acc bose.Accessories
	if err := bose.Decode(body, &acc); err != nil {
		s.logger.Warn("Bad accessories payload", zap.Error(err))
		return
	}
	s.apply(acc)
	s.changed()
}

func (s *AccessorySwitch) apply(acc bose.Accessories) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.class {
	case AccessorySubs:
		s.enabled = acc.Enabled.Subs
		s.controllable = acc.Controllable.Subs
	case AccessoryRears:
		s.enabled = acc.Enabled.Rears
		s.controllable = acc.Controllable.Rears
	}
	s.available = true
}

func (s *AccessorySwitch) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// Controllable reports whether the device accepts writes for this class.
func (s *AccessorySwitch) Controllable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.controllable
}

// SetEnabled writes the flag. The update names only this class so the other
// class keeps its setting.
func (s *AccessorySwitch) SetEnabled(ctx context.Context, enabled bool) error {
	s.mu.RLock()
	controllable := s.controllable
	s.mu.RUnlock()
	if !controllable {
		return fmt.Errorf("accessory class %s is not controllable", s.class)
	}
	if err := bose.SetAccessoryEnabled(ctx, s.speaker, s.class, enabled); err != nil {
		return err
	}
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	s.changed()
	return nil
}

func (s *AccessorySwitch) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(map[string]any{
		"enabled":      s.enabled,
		"controllable": s.controllable,
	})
}
