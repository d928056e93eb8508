package bose

import (
	"context"
	"net/http"
)

// Transport states accepted by /content/transportControl.
const (
	TransportPlay         = "PLAY"
	TransportPause        = "PAUSE"
	TransportSkipNext     = "SKIPNEXT"
	TransportSkipPrevious = "SKIPPREVIOUS"
)

// Typed request helpers. They are package functions over Controller so both
// the real Speaker and test doubles get them for free.

func GetNowPlaying(ctx context.Context, c Controller) (NowPlaying, error) {
	var out NowPlaying
	err := c.Request(ctx, http.MethodGet, TopicNowPlaying, nil, &out)
	return out, err
}

func GetAudioVolume(ctx context.Context, c Controller) (AudioVolume, error) {
	var out AudioVolume
	err := c.Request(ctx, http.MethodGet, TopicAudioVolume, nil, &out)
	return out, err
}

// SetAudioVolume sets the volume as a vendor percentage (0-100).
func SetAudioVolume(ctx context.Context, c Controller, value int) error {
	return c.Request(ctx, http.MethodPut, TopicAudioVolume, map[string]any{"value": value}, nil)
}

// SetMuted sets the explicit mute flag. Mute is independent of the volume
// value; a muted speaker keeps its level.
func SetMuted(ctx context.Context, c Controller, muted bool) error {
	return c.Request(ctx, http.MethodPut, TopicAudioVolume, map[string]any{"muted": muted}, nil)
}

// SetPower turns the speaker on or off.
func SetPower(ctx context.Context, c Controller, on bool) error {
	power := "OFF"
	if on {
		power = "ON"
	}
	return c.Request(ctx, http.MethodPost, TopicPowerControl, map[string]any{"power": power}, nil)
}

// Transport issues a transport control command (TransportPlay etc.).
func Transport(ctx context.Context, c Controller, state string) error {
	return c.Request(ctx, http.MethodPut, TopicTransportControl, map[string]any{"state": state}, nil)
}

// Seek moves playback to position (seconds into the track).
func Seek(ctx context.Context, c Controller, position int) error {
	body := map[string]any{"state": "SEEK", "position": position}
	return c.Request(ctx, http.MethodPut, TopicTransportControl, body, nil)
}

// SetSource switches playback to the given source/account pair. The response
// body is a now-playing snapshot for the new source.
func SetSource(ctx context.Context, c Controller, source, sourceAccount string) (NowPlaying, error) {
	body := map[string]any{"source": source, "sourceAccount": sourceAccount}
	var out NowPlaying
	err := c.Request(ctx, http.MethodPost, TopicPlaybackRequest, body, &out)
	return out, err
}

func GetAudioSetting(ctx context.Context, c Controller, path string) (AudioSetting, error) {
	var out AudioSetting
	err := c.Request(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func SetAudioSetting(ctx context.Context, c Controller, path string, value int) error {
	return c.Request(ctx, http.MethodPut, path, map[string]any{"value": value}, nil)
}

func GetModeSetting(ctx context.Context, c Controller, path string) (ModeSetting, error) {
	var out ModeSetting
	err := c.Request(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// SetModeSetting writes an enumerated setting. valueKey is "value" or "mode"
// depending on the resource's payload variant.
func SetModeSetting(ctx context.Context, c Controller, path, valueKey, option string) error {
	return c.Request(ctx, http.MethodPut, path, map[string]any{valueKey: option}, nil)
}

func GetAccessories(ctx context.Context, c Controller) (Accessories, error) {
	var out Accessories
	err := c.Request(ctx, http.MethodGet, TopicAccessories, nil, &out)
	return out, err
}

// SetAccessoryEnabled issues a partial update naming only the changed flag
// ("subs" or "rears").
func SetAccessoryEnabled(ctx context.Context, c Controller, class string, enabled bool) error {
	body := map[string]any{"enabled": map[string]bool{class: enabled}}
	return c.Request(ctx, http.MethodPut, TopicAccessories, body, nil)
}

func GetActiveGroups(ctx context.Context, c Controller) (ActiveGroups, error) {
	var out ActiveGroups
	err := c.Request(ctx, http.MethodGet, TopicActiveGroups, nil, &out)
	return out, err
}

func groupProducts(guids []string) []GroupProduct {
	products := make([]GroupProduct, 0, len(guids))
	for _, guid := range guids {
		products = append(products, GroupProduct{ProductID: guid, Role: "NORMAL"})
	}
	return products
}

// SetActiveGroup creates a new group with this speaker as master and the
// given GUIDs as members.
func SetActiveGroup(ctx context.Context, c Controller, guids []string) error {
	body := map[string]any{"products": groupProducts(guids)}
	return c.Request(ctx, http.MethodPost, TopicActiveGroups, body, nil)
}

// AddToActiveGroup adds members to an existing group. Group mutation is
// master-directed: c must be the group master's connection.
func AddToActiveGroup(ctx context.Context, c Controller, groupID string, guids []string) error {
	body := map[string]any{"activeGroupId": groupID, "addProducts": groupProducts(guids)}
	return c.Request(ctx, http.MethodPost, TopicActiveGroups, body, nil)
}

// RemoveFromActiveGroup removes members from an existing group, addressed to
// the master's connection.
func RemoveFromActiveGroup(ctx context.Context, c Controller, groupID string, guids []string) error {
	body := map[string]any{"activeGroupId": groupID, "removeProducts": groupProducts(guids)}
	return c.Request(ctx, http.MethodPost, TopicActiveGroups, body, nil)
}

// StopActiveGroups dissolves every group this speaker masters.
func StopActiveGroups(ctx context.Context, c Controller) error {
	return c.Request(ctx, http.MethodDelete, TopicActiveGroups, nil, nil)
}

func GetBluetoothSinkList(ctx context.Context, c Controller) (BluetoothSinkList, error) {
	var out BluetoothSinkList
	err := c.Request(ctx, http.MethodGet, TopicBluetoothSinkList, nil, &out)
	return out, err
}

func GetBluetoothSinkStatus(ctx context.Context, c Controller) (BluetoothSinkStatus, error) {
	var out BluetoothSinkStatus
	err := c.Request(ctx, http.MethodGet, TopicBluetoothSinkStatus, nil, &out)
	return out, err
}

func GetBluetoothSourceStatus(ctx context.Context, c Controller) (BluetoothSourceStatus, error) {
	var out BluetoothSourceStatus
	err := c.Request(ctx, http.MethodGet, TopicBluetoothSourceStatus, nil, &out)
	return out, err
}

// ConnectBluetoothSink connects the paired sink device with the given MAC.
func ConnectBluetoothSink(ctx context.Context, c Controller, mac string) error {
	return c.Request(ctx, http.MethodPost, TopicBluetoothSinkConnect, map[string]any{"mac": mac}, nil)
}

func GetSources(ctx context.Context, c Controller) (SourceList, error) {
	var out SourceList
	err := c.Request(ctx, http.MethodGet, TopicSources, nil, &out)
	return out, err
}

func GetBattery(ctx context.Context, c Controller) (Battery, error) {
	var out Battery
	err := c.Request(ctx, http.MethodGet, TopicBattery, nil, &out)
	return out, err
}

func GetWifiStatus(ctx context.Context, c Controller) (WifiStatus, error) {
	var out WifiStatus
	err := c.Request(ctx, http.MethodGet, TopicWifiStatus, nil, &out)
	return out, err
}

func GetSystemInfo(ctx context.Context, c Controller) (SystemInfo, error) {
	var out SystemInfo
	err := c.Request(ctx, http.MethodGet, TopicSystemInfo, nil, &out)
	return out, err
}

// RequestPlaybackPreset starts playback of a cloud preset on the speaker.
func RequestPlaybackPreset(ctx context.Context, c Controller, preset Preset, initiatorID string) error {
	body := map[string]any{"preset": preset, "initiatorID": initiatorID}
	return c.Request(ctx, http.MethodPost, TopicPlaybackRequest, body, nil)
}
