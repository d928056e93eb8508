package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bosebridge/internal/bose"
)

func newTestBattery(t *testing.T) *Battery {
	t.Helper()
	return NewBattery(bose.NewMockSpeaker("guid-1"), nil, zap.NewNop())
}

func TestBatteryAppliesPush(t *testing.T) {
	batt := newTestBattery(t)

	batt.handleBattery(raw(t, map[string]any{
		"chargeStatus":     "CHARGING",
		"chargerConnected": "CONNECTED",
		"percent":          55,
		"minutesToFull":    90,
		"minutesToEmpty":   65535,
	}))

	require.NotNil(t, batt.Percent())
	assert.Equal(t, 55, *batt.Percent())
	assert.True(t, batt.Charging())
	require.NotNil(t, batt.MinutesToFull())
	assert.Equal(t, 90, *batt.MinutesToFull())
	// Mid-charge the sentinel means "no estimate".
	assert.Nil(t, batt.MinutesToEmpty())
	assert.True(t, batt.Available())
}

func TestBatterySentinelAtBounds(t *testing.T) {
	batt := newTestBattery(t)

	// Fully charged: the sentinel on minutesToFull reads as zero minutes.
	batt.handleBattery(raw(t, map[string]any{
		"chargeStatus":  "CHARGING",
		"percent":       100,
		"minutesToFull": 65535,
	}))
	require.NotNil(t, batt.MinutesToFull())
	assert.Equal(t, 0, *batt.MinutesToFull())

	// Fully drained: same for minutesToEmpty.
	batt.handleBattery(raw(t, map[string]any{
		"chargeStatus":   "DISCHARGING",
		"percent":        0,
		"minutesToEmpty": 65535,
	}))
	require.NotNil(t, batt.MinutesToEmpty())
	assert.Equal(t, 0, *batt.MinutesToEmpty())
	assert.False(t, batt.Charging())
}

func TestBatteryAbsentFieldsStayNil(t *testing.T) {
	batt := newTestBattery(t)

	batt.handleBattery(raw(t, map[string]any{"chargeStatus": "DISCHARGING"}))

	assert.Nil(t, batt.Percent())
	assert.Nil(t, batt.MinutesToEmpty())
	assert.Nil(t, batt.MinutesToFull())
}
