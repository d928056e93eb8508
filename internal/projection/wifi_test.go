package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bosebridge/internal/bose"
)

func TestWifiSignalAppliesPush(t *testing.T) {
	wifi := NewWifiSignal(bose.NewMockSpeaker("guid-1"), nil, zap.NewNop())

	wifi.handleStatus(raw(t, map[string]any{
		"signalDbm":      -52,
		"signalDbmLevel": "GOOD",
		"frequencyKhz":   5200000,
		"ssid":           "home",
		"state":          "WIFI_STATION_CONNECTED",
	}))

	require.NotNil(t, wifi.SignalDbm())
	assert.Equal(t, -52, *wifi.SignalDbm())
	assert.True(t, wifi.Available())

	snap := wifi.Snapshot()
	assert.Equal(t, "home", snap.State["ssid"])
	assert.Equal(t, "GOOD", snap.State["signal_level"])
}

func TestAuthValidityFloorsAtZero(t *testing.T) {
	remaining := 3600.0
	sensor := NewAuthValidity("guid-1", func() float64 { return remaining }, nil, zap.NewNop())

	assert.Equal(t, 3600, sensor.ValidSeconds())
	assert.True(t, sensor.Available())

	remaining = -30
	assert.Equal(t, 0, sensor.ValidSeconds())
	assert.Equal(t, 0, sensor.Snapshot().State["valid_seconds"])
}
