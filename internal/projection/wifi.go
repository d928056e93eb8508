package projection

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"bosebridge/internal/bose"
	"bosebridge/internal/router"
)

// WifiSignal projects the wifi diagnostics: signal strength, band and SSID.
type WifiSignal struct {
	base
	speaker bose.Controller

	signalDbm    *int
	signalLevel  string
	frequencyKhz int
	ssid         string
	linkState    string
}

func NewWifiSignal(speaker bose.Controller, notify NotifyFunc, logger *zap.Logger) *WifiSignal {
	return &WifiSignal{
		base:    newBase(speaker.DeviceID(), "wifi", "Wifi Signal", notify, logger),
		speaker: speaker,
	}
}

func (w *WifiSignal) Register(r *router.Router) {
	r.Register(bose.TopicWifiStatus, w.entityID, w.handleStatus)
}

func (w *WifiSignal) Seed(ctx context.Context) error {
	status, err := bose.GetWifiStatus(ctx, w.speaker)
	if err != nil {
		return err
	}
	w.apply(status)
	w.changed()
	return nil
}

func (w *WifiSignal) handleStatus(body json.RawMessage) {
	var status bose.WifiStatus
	if err := bose.Decode(body, &status); err != nil {
		w.logger.Warn("Bad wifi status payload", zap.Error(err))
		return
	}
	w.apply(status)
	w.changed()
}

func (w *WifiSignal) apply(status bose.WifiStatus) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.signalDbm = status.SignalDbm
	w.signalLevel = status.SignalDbmLevel
	w.frequencyKhz = status.FrequencyKhz
	w.ssid = status.SSID
	w.linkState = status.State
	w.available = true
}

func (w *WifiSignal) SignalDbm() *int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.signalDbm
}

func (w *WifiSignal) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	state := map[string]any{
		"ssid":          w.ssid,
		"state":         w.linkState,
		"signal_level":  w.signalLevel,
		"frequency_khz": w.frequencyKhz,
	}
	if w.signalDbm != nil {
		state["signal_dbm"] = *w.signalDbm
	}
	return w.snapshot(state)
}
