package projection

import (
	"context"
	"reflect"
	"sort"
	"time"

	"go.uber.org/zap"

	"bosebridge/internal/bose"
	"bosebridge/internal/clock"
)

// presetPollInterval paces the cloud reconcile loop. Presets change rarely
// and the cloud endpoint is rate-limited, so the interval is generous.
const presetPollInterval = 5 * time.Minute

// PresetSource fetches the cloud-managed preset slots of one device. The
// person id identifies the account in playback requests.
type PresetSource interface {
	ProductPresets(ctx context.Context, deviceID string) (map[int]bose.Preset, error)
	PersonID() string
}

// PresetSet projects the device's cloud preset slots. Slots live in the
// cloud, not on the device, so there is no push topic: a reconcile loop
// polls and diffs.
type PresetSet struct {
	base
	speaker bose.Controller
	source  PresetSource
	clk     clock.Clock

	presets map[int]bose.Preset
}

func NewPresetSet(speaker bose.Controller, source PresetSource, clk clock.Clock, notify NotifyFunc, logger *zap.Logger) *PresetSet {
	return &PresetSet{
		base:    newBase(speaker.DeviceID(), "presets", "Presets", notify, logger),
		speaker: speaker,
		source:  source,
		clk:     clk,
		presets: make(map[int]bose.Preset),
	}
}

// Run reconciles immediately and then on every poll tick until ctx is
// cancelled.
func (p *PresetSet) Run(ctx context.Context) {
	for {
		p.Reconcile(ctx)
		select {
		case <-ctx.Done():
			return
		case <-p.clk.After(presetPollInterval):
		}
	}
}

// Reconcile fetches the current slots and applies any difference. Fetch
// errors keep the previous slots; presets degrade gracefully when the cloud
// is unreachable.
func (p *PresetSet) Reconcile(ctx context.Context) {
	fresh, err := p.source.ProductPresets(ctx, p.deviceID)
	if err != nil {
		p.logger.Warn("Preset fetch failed", zap.Error(err))
		return
	}

	p.mu.Lock()
	diff := diffPresets(p.presets, fresh)
	first := !p.available
	if !diff.Empty() {
		p.presets = fresh
	}
	p.available = true
	p.mu.Unlock()

	if diff.Empty() {
		if first {
			p.changed()
		}
		return
	}
	p.logger.Info("Preset slots changed",
		zap.Ints("added", diff.Added),
		zap.Ints("updated", diff.Updated),
		zap.Ints("removed", diff.Removed))
	p.changed()
}

// Play starts playback of the preset in slot on the speaker.
func (p *PresetSet) Play(ctx context.Context, slot int) error {
	p.mu.RLock()
	preset, ok := p.presets[slot]
	p.mu.RUnlock()
	if !ok {
		return &bose.Error{Status: 404, Message: "no such preset slot", Resource: bose.TopicPlaybackRequest}
	}
	return bose.RequestPlaybackPreset(ctx, p.speaker, preset, p.source.PersonID())
}

// Presets returns a copy of the current slots.
func (p *PresetSet) Presets() map[int]bose.Preset {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[int]bose.Preset, len(p.presets))
	for slot, preset := range p.presets {
		out[slot] = preset
	}
	return out
}

func (p *PresetSet) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	slots := make([]int, 0, len(p.presets))
	for slot := range p.presets {
		slots = append(slots, slot)
	}
	sort.Ints(slots)

	entries := make([]map[string]any, 0, len(slots))
	for _, slot := range slots {
		preset := p.presets[slot]
		entry := map[string]any{"slot": slot, "name": preset.Name()}
		if url := preset.ImageURL(); url != "" {
			entry["image_url"] = url
		}
		entries = append(entries, entry)
	}
	return p.snapshot(map[string]any{"presets": entries})
}

// PresetDiff lists the slots that changed between two reconciles.
type PresetDiff struct {
	Added   []int
	Updated []int
	Removed []int
}

func (d PresetDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Updated) == 0 && len(d.Removed) == 0
}

func diffPresets(old, fresh map[int]bose.Preset) PresetDiff {
	var d PresetDiff
	for slot, preset := range fresh {
		prev, ok := old[slot]
		switch {
		case !ok:
			d.Added = append(d.Added, slot)
		case !reflect.DeepEqual(prev, preset):
			d.Updated = append(d.Updated, slot)
		}
	}
	for slot := range old {
		if _, ok := fresh[slot]; !ok {
			d.Removed = append(d.Removed, slot)
		}
	}
	sort.Ints(d.Added)
	sort.Ints(d.Updated)
	sort.Ints(d.Removed)
	return d
}
