package projection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bosebridge/internal/bose"
)

func TestHumanizeOption(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"DIALOG", "Dialog"},
		{"NORMAL", "Normal"},
		{"DUAL_MONO_LEFT", "Dual Mono Left"},
		{"SYNC_TO_ROOM", "Sync To Room"},
		{"", ""},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, humanizeOption(tc.raw))
	}
}

func TestModeSelectValueVariant(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	sel := NewModeSelect(speaker, ModeParameters()[0], nil, zap.NewNop()) // audio mode

	sel.handleSetting(raw(t, map[string]any{
		"value": "DIALOG",
		"properties": map[string]any{
			"supportedValues": []string{"NORMAL", "DIALOG"},
		},
	}))

	assert.Equal(t, "Dialog", sel.Current())
	assert.Equal(t, []string{"Normal", "Dialog"}, sel.Options())
	assert.True(t, sel.Available())
}

func TestModeSelectModeVariant(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	sel := NewModeSelect(speaker, ModeParameters()[2], nil, zap.NewNop()) // rebroadcast latency

	sel.handleSetting(raw(t, map[string]any{
		"mode": "SYNC_TO_ROOM",
		"properties": map[string]any{
			"supportedModes": []string{"SYNC_TO_ROOM", "SYNC_TO_ZONE"},
		},
	}))

	assert.Equal(t, "Sync To Room", sel.Current())
	assert.Equal(t, []string{"Sync To Room", "Sync To Zone"}, sel.Options())
}

func TestModeSelectSelectOptionWritesRawValue(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	sel := NewModeSelect(speaker, ModeParameters()[0], nil, zap.NewNop())
	sel.handleSetting(raw(t, map[string]any{
		"value": "NORMAL",
		"properties": map[string]any{
			"supportedValues": []string{"NORMAL", "DIALOG"},
		},
	}))

	require.NoError(t, sel.SelectOption(context.Background(), "Dialog"))

	req, ok := speaker.LastRequest()
	require.True(t, ok)
	assert.Equal(t, bose.TopicAudioMode, req.Resource)
	assert.Equal(t, "DIALOG", req.Body["value"])
	assert.Equal(t, "Dialog", sel.Current())
}

func TestModeSelectRejectsUnknownOption(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	sel := NewModeSelect(speaker, ModeParameters()[0], nil, zap.NewNop())

	assert.Error(t, sel.SelectOption(context.Background(), "Concert Hall"))
	_, ok := speaker.LastRequest()
	assert.False(t, ok)
}

func TestModeSelectModeVariantWritesModeKey(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	sel := NewModeSelect(speaker, ModeParameters()[3], nil, zap.NewNop()) // cec
	sel.handleSetting(raw(t, map[string]any{
		"mode": "ON",
		"properties": map[string]any{
			"supportedModes": []string{"ON", "OFF"},
		},
	}))

	require.NoError(t, sel.SelectOption(context.Background(), "Off"))

	req, ok := speaker.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "OFF", req.Body["mode"])
	assert.NotContains(t, req.Body, "value")
}
