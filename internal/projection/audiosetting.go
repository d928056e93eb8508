package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"bosebridge/internal/bose"
	"bosebridge/internal/router"
)

// SliderParams describes one tunable audio path and its default bounds. The
// device may override the bounds in its payloads.
type SliderParams struct {
	Key  string
	Path string
	Name string
	Min  int
	Max  int
	Step int
}

// SliderParameters lists every tunable audio path a device may expose. The
// manager creates a slider for each path the device advertises.
func SliderParameters() []SliderParams {
	return []SliderParams{
		{Key: "bass", Path: "/audio/bass", Name: "Bass", Min: -100, Max: 100, Step: 10},
		{Key: "treble", Path: "/audio/treble", Name: "Treble", Min: -100, Max: 100, Step: 10},
		{Key: "center", Path: "/audio/center", Name: "Center", Min: -100, Max: 100, Step: 10},
		{Key: "subwoofer-gain", Path: "/audio/subwooferGain", Name: "Subwoofer Gain", Min: -100, Max: 100, Step: 10},
		{Key: "height", Path: "/audio/height", Name: "Height", Min: -100, Max: 100, Step: 10},
		{Key: "av-sync", Path: "/audio/avSync", Name: "AV Sync", Min: 0, Max: 200, Step: 10},
	}
}

// AudioSlider projects one tunable audio value (bass, treble and friends).
type AudioSlider struct {
	base
	speaker bose.Controller
	path    string

	value    int
	hasValue bool
	min      int
	max      int
	step     int
}

func NewAudioSlider(speaker bose.Controller, params SliderParams, notify NotifyFunc, logger *zap.Logger) *AudioSlider {
	return &AudioSlider{
		base:    newBase(speaker.DeviceID(), params.Key, params.Name, notify, logger),
		speaker: speaker,
		path:    params.Path,
		min:     params.Min,
		max:     params.Max,
		step:    params.Step,
	}
}

func (s *AudioSlider) Register(r *router.Router) {
	r.Register(s.path, s.entityID, s.handleSetting)
}

func (s *AudioSlider) Seed(ctx context.Context) error {
	setting, err := bose.GetAudioSetting(ctx, s.speaker, s.path)
	if err != nil {
		return err
	}
	s.apply(setting)
	s.changed()
	return nil
}

func (s *AudioSlider) handleSetting(body json.RawMessage) {
	var setting bose.AudioSetting
	if err := bose.Decode(body, &setting); err != nil {
		s.logger.Warn("Bad audio setting payload", zap.Error(err), zap.String("path", s.path))
		return
	}
	s.apply(setting)
	s.changed()
}

func (s *AudioSlider) apply(setting bose.AudioSetting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if setting.Value != nil {
		s.value = *setting.Value
		s.hasValue = true
		s.available = true
	}
	// Devices that report bounds win over the defaults.
	if setting.Properties.Min != 0 || setting.Properties.Max != 0 {
		s.min = setting.Properties.Min
		s.max = setting.Properties.Max
	}
	if setting.Properties.Step != 0 {
		s.step = setting.Properties.Step
	}
}

// Value returns the current setting and whether one has been learned.
func (s *AudioSlider) Value() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value, s.hasValue
}

func (s *AudioSlider) Bounds() (min, max, step int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.min, s.max, s.step
}

// SetValue writes the setting after a bounds check.
func (s *AudioSlider) SetValue(ctx context.Context, value int) error {
	s.mu.RLock()
	min, max := s.min, s.max
	s.mu.RUnlock()
	if value < min || value > max {
		return fmt.Errorf("value %d out of range [%d, %d] for %s", value, min, max, s.path)
	}
	if err := bose.SetAudioSetting(ctx, s.speaker, s.path, value); err != nil {
		return err
	}
	s.mu.Lock()
	s.value = value
	s.hasValue = true
	s.mu.Unlock()
	s.changed()
	return nil
}

func (s *AudioSlider) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := map[string]any{
		"min":  s.min,
		"max":  s.max,
		"step": s.step,
	}
	if s.hasValue {
		state["value"] = s.value
	}
	return s.snapshot(state)
}
