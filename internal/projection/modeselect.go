package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bosebridge/internal/bose"
	"bosebridge/internal/router"
)

// ModeParams describes one enumerated setting. ValueKey names the payload
// field carrying the current option; the topics disagree on it.
type ModeParams struct {
	Key      string
	Path     string
	Name     string
	ValueKey string
}

// ModeParameters lists the enumerated settings a device may expose.
func ModeParameters() []ModeParams {
	return []ModeParams{
		{Key: "audio-mode", Path: bose.TopicAudioMode, Name: "Audio Mode", ValueKey: "value"},
		{Key: "dual-mono", Path: bose.TopicDualMono, Name: "Dual Mono", ValueKey: "value"},
		{Key: "rebroadcast-latency", Path: bose.TopicRebroadcastLatency, Name: "Rebroadcast Latency", ValueKey: "mode"},
		{Key: "cec", Path: bose.TopicCec, Name: "CEC", ValueKey: "mode"},
	}
}

// ModeSelect projects one enumerated setting: a current option plus the set
// of supported options, shown with friendly casing.
type ModeSelect struct {
	base
	speaker  bose.Controller
	path     string
	valueKey string

	current    string
	options    []string
	rawByHuman map[string]string
}

func NewModeSelect(speaker bose.Controller, params ModeParams, notify NotifyFunc, logger *zap.Logger) *ModeSelect {
	return &ModeSelect{
		base:       newBase(speaker.DeviceID(), params.Key, params.Name, notify, logger),
		speaker:    speaker,
		path:       params.Path,
		valueKey:   params.ValueKey,
		rawByHuman: make(map[string]string),
	}
}

func (s *ModeSelect) Register(r *router.Router) {
	r.Register(s.path, s.entityID, s.handleSetting)
}

func (s *ModeSelect) Seed(ctx context.Context) error {
	setting, err := bose.GetModeSetting(ctx, s.speaker, s.path)
	if err != nil {
		return err
	}
	s.apply(setting)
	s.changed()
	return nil
}

func (s *ModeSelect) handleSetting(body json.RawMessage) {
	var setting bose.ModeSetting
	if err := bose.Decode(body, &setting); err != nil {
		s.logger.Warn("Bad mode setting payload", zap.Error(err), zap.String("path", s.path))
		return
	}
	s.apply(setting)
	s.changed()
}

func (s *ModeSelect) apply(setting bose.ModeSetting) {
	current := setting.Value
	supported := setting.Properties.SupportedValues
	if s.valueKey == "mode" {
		current = setting.Mode
		supported = setting.Properties.SupportedModes
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(supported) > 0 {
		s.options = make([]string, 0, len(supported))
		for _, raw := range supported {
			human := humanizeOption(raw)
			s.options = append(s.options, human)
			s.rawByHuman[human] = raw
		}
	}
	if current != "" {
		s.current = humanizeOption(current)
		s.rawByHuman[s.current] = current
		s.available = true
	}
}

func (s *ModeSelect) Current() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *ModeSelect) Options() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.options...)
}

// SelectOption writes an option by its friendly name.
func (s *ModeSelect) SelectOption(ctx context.Context, option string) error {
	s.mu.RLock()
	raw, ok := s.rawByHuman[option]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown option %q for %s", option, s.path)
	}
	if err := bose.SetModeSetting(ctx, s.speaker, s.path, s.valueKey, raw); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = option
	s.mu.Unlock()
	s.changed()
	return nil
}

func (s *ModeSelect) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(map[string]any{
		"current": s.current,
		"options": append([]string(nil), s.options...),
	})
}

// humanizeOption turns a wire option like "DIALOGUE_MODE" into "Dialogue
// Mode". Already friendly strings pass through with their first letter
// capitalized.
func humanizeOption(raw string) string {
	words := strings.Split(raw, "_")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}
