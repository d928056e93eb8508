package projection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bosebridge/internal/bose"
)

func TestAccessorySwitchTracksOwnClass(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	subs := NewAccessorySwitch(speaker, AccessorySubs, "Subwoofer", nil, zap.NewNop())
	rears := NewAccessorySwitch(speaker, AccessoryRears, "Rear Speakers", nil, zap.NewNop())

	payload := raw(t, map[string]any{
		"controllable": map[string]any{"subs": true, "rears": true},
		"enabled":      map[string]any{"subs": true, "rears": false},
	})
	subs.handleAccessories(payload)
	rears.handleAccessories(payload)

	assert.True(t, subs.Enabled())
	assert.False(t, rears.Enabled())
	assert.True(t, subs.Available())
	assert.True(t, rears.Available())
}

func TestAccessorySwitchSetEnabledPartialUpdate(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	subs := NewAccessorySwitch(speaker, AccessorySubs, "Subwoofer", nil, zap.NewNop())
	subs.handleAccessories(raw(t, map[string]any{
		"controllable": map[string]any{"subs": true},
		"enabled":      map[string]any{"subs": false},
	}))

	require.NoError(t, subs.SetEnabled(context.Background(), true))

	req, ok := speaker.LastRequest()
	require.True(t, ok)
	assert.Equal(t, bose.TopicAccessories, req.Resource)
	// Only the flipped class appears in the body.
	enabled, ok := req.Body["enabled"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"subs": true}, enabled)
	assert.True(t, subs.Enabled())
}

func TestAccessorySwitchRejectsUncontrollableWrite(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	rears := NewAccessorySwitch(speaker, AccessoryRears, "Rear Speakers", nil, zap.NewNop())
	rears.handleAccessories(raw(t, map[string]any{
		"controllable": map[string]any{"rears": false},
		"enabled":      map[string]any{"rears": false},
	}))

	assert.Error(t, rears.SetEnabled(context.Background(), true))
	_, ok := speaker.LastRequest()
	assert.False(t, ok)
}

func TestAccessorySwitchSeedError(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	speaker.FailWith("GET", bose.TopicAccessories, assert.AnError)
	subs := NewAccessorySwitch(speaker, AccessorySubs, "Subwoofer", nil, zap.NewNop())

	assert.Error(t, subs.Seed(context.Background()))
	assert.False(t, subs.Available())
}
