package projection

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bosebridge/internal/bose"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

type fakePeer struct {
	mu       sync.Mutex
	entityID string
	added    [][]string
	removed  [][]string
}

func (f *fakePeer) EntityID() string { return f.entityID }

func (f *fakePeer) AddToGroup(_ context.Context, groupID string, deviceIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, append([]string{groupID}, deviceIDs...))
	return nil
}

func (f *fakePeer) RemoveFromGroup(_ context.Context, groupID string, deviceIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, append([]string{groupID}, deviceIDs...))
	return nil
}

type fakeResolver struct {
	peers map[string]GroupPeer
}

func (f *fakeResolver) Peer(deviceID string) (GroupPeer, bool) {
	p, ok := f.peers[deviceID]
	return p, ok
}

func newTestPlayer(t *testing.T) (*MediaPlayer, *bose.MockSpeaker) {
	t.Helper()
	speaker := bose.NewMockSpeaker("guid-1")
	player := NewMediaPlayer(speaker, nil, "Soundbar", nil, nil, zap.NewNop())
	return player, speaker
}

func nowPlayingPayload(status, source, account, track, artist string) map[string]any {
	payload := map[string]any{
		"source": map[string]any{"sourceID": source, "sourceDisplayName": ""},
		"container": map[string]any{
			"contentItem": map[string]any{"source": source, "sourceAccount": account},
		},
	}
	if status != "" {
		payload["state"] = map[string]any{"status": status}
	}
	if track != "" {
		payload["metadata"] = map[string]any{"trackName": track, "artist": artist}
	}
	return payload
}

func TestMediaPlayerStateMapping(t *testing.T) {
	tests := []struct {
		status string
		want   PlayState
	}{
		{"PLAY", StatePlaying},
		{"PAUSED", StatePaused},
		{"BUFFERING", StateBuffering},
		{"STOPPED", StateIdle},
		{"", StateStandby},
		{"SOMETHING_NEW", StateOn},
	}
	for _, tc := range tests {
		t.Run("status "+tc.status, func(t *testing.T) {
			player, _ := newTestPlayer(t)
			player.handleNowPlaying(raw(t, nowPlayingPayload(tc.status, "SPOTIFY", "acct", "Song", "Band")))
			assert.Equal(t, tc.want, player.State())
		})
	}
}

func TestMediaPlayerNowPlayingIsIdempotent(t *testing.T) {
	player, _ := newTestPlayer(t)
	payload := raw(t, nowPlayingPayload("PLAY", "SPOTIFY", "acct", "Song", "Band"))

	player.handleNowPlaying(payload)
	first := player.Snapshot()
	player.handleNowPlaying(payload)
	second := player.Snapshot()

	assert.Equal(t, first.State["state"], second.State["state"])
	assert.Equal(t, first.State["media_title"], second.State["media_title"])
	assert.Equal(t, first.State["source"], second.State["source"])
}

func TestMediaPlayerNowPlayingFullReplace(t *testing.T) {
	player, _ := newTestPlayer(t)

	player.handleNowPlaying(raw(t, nowPlayingPayload("PLAY", "SPOTIFY", "acct", "Song", "Band")))
	snap := player.Snapshot()
	assert.Equal(t, "Song", snap.State["media_title"])
	assert.Equal(t, "Band", snap.State["media_artist"])

	// Metadata absent from the next push clears, it does not carry over.
	player.handleNowPlaying(raw(t, nowPlayingPayload("PLAY", "SPOTIFY", "acct", "", "")))
	snap = player.Snapshot()
	assert.NotContains(t, snap.State, "media_title")
	assert.NotContains(t, snap.State, "media_artist")
}

func TestMediaPlayerTVPassthrough(t *testing.T) {
	player, _ := newTestPlayer(t)

	payload := nowPlayingPayload("PLAY", "PRODUCT", "TV", "Channel 4 News", "Nobody")
	payload["metadata"].(map[string]any)["duration"] = 3600
	player.handleNowPlaying(raw(t, payload))

	snap := player.Snapshot()
	assert.Equal(t, "TV", snap.State["source"])
	assert.Equal(t, "TV", snap.State["media_title"])
	assert.NotContains(t, snap.State, "media_artist")
	assert.NotContains(t, snap.State, "media_duration")
	assert.NotContains(t, snap.State, "media_position")
	assert.Equal(t, StatePlaying, player.State())
}

func TestMediaPlayerSourceLabelFallback(t *testing.T) {
	player, _ := newTestPlayer(t)

	player.handleNowPlaying(raw(t, nowPlayingPayload("PLAY", "AIRPLAY", "user@example.com", "Song", "Band")))
	assert.Equal(t, "Airplay", player.Source())
}

func TestMediaPlayerSourceLabelFromTable(t *testing.T) {
	player, _ := newTestPlayer(t)

	player.handleNowPlaying(raw(t, nowPlayingPayload("PLAY", "PRODUCT", "AUX_DIGITAL", "", "")))
	assert.Equal(t, "Optical", player.Source())
}

func TestMediaPlayerMultiAccountSourceMatchesOnAccountID(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	extra := []LabeledSource{{
		Label:     "Spotify: alice",
		SourceRef: SourceRef{Source: "SPOTIFY", SourceAccount: "alice", AccountID: "acct-123"},
	}}
	player := NewMediaPlayer(speaker, nil, "Soundbar", extra, nil, zap.NewNop())

	// The push carries the account id, not the account name.
	player.handleNowPlaying(raw(t, nowPlayingPayload("PLAY", "SPOTIFY", "acct-123", "Song", "Band")))
	assert.Equal(t, "Spotify: alice", player.Source())
}

func TestMediaPlayerVolumePartialMerge(t *testing.T) {
	player, _ := newTestPlayer(t)

	player.handleVolume(raw(t, map[string]any{"value": 62, "muted": false}))
	vol, known := player.Volume()
	require.True(t, known)
	assert.InDelta(t, 0.62, vol, 0.001)
	assert.False(t, player.Muted())

	// A mute-only push keeps the volume level.
	player.handleVolume(raw(t, map[string]any{"muted": true}))
	vol, known = player.Volume()
	require.True(t, known)
	assert.InDelta(t, 0.62, vol, 0.001)
	assert.True(t, player.Muted())
}

func TestMediaPlayerSetVolumeScales(t *testing.T) {
	player, speaker := newTestPlayer(t)

	require.NoError(t, player.SetVolume(context.Background(), 0.62))

	req, ok := speaker.LastRequest()
	require.True(t, ok)
	assert.Equal(t, bose.TopicAudioVolume, req.Resource)
	assert.Equal(t, float64(62), req.Body["value"])

	vol, known := player.Volume()
	require.True(t, known)
	assert.InDelta(t, 0.62, vol, 0.001)
}

func TestMediaPlayerPowerTransitions(t *testing.T) {
	player, _ := newTestPlayer(t)

	player.handlePower(raw(t, map[string]any{"power": "ON"}))
	assert.Equal(t, StateIdle, player.State())

	player.handleNowPlaying(raw(t, nowPlayingPayload("PLAY", "SPOTIFY", "acct", "Song", "Band")))
	assert.Equal(t, StatePlaying, player.State())

	player.handlePower(raw(t, map[string]any{"power": "OFF"}))
	assert.Equal(t, StateOff, player.State())
}

func TestMediaPlayerGroupOrderingMasterFirst(t *testing.T) {
	master := &fakePeer{entityID: "guid-2-media"}
	self := &fakePeer{entityID: "guid-1-media"}
	resolver := &fakeResolver{peers: map[string]GroupPeer{"guid-1": self, "guid-2": master}}

	speaker := bose.NewMockSpeaker("guid-1")
	player := NewMediaPlayer(speaker, resolver, "Soundbar", nil, nil, zap.NewNop())

	player.handleActiveGroups(raw(t, map[string]any{
		"activeGroups": []map[string]any{{
			"activeGroupId": "group-9",
			"groupMasterId": "guid-2",
			"products": []map[string]any{
				{"productId": "guid-1", "role": "NORMAL"},
				{"productId": "guid-2", "role": "NORMAL"},
			},
		}},
	}))

	assert.Equal(t, []string{"guid-2-media", "guid-1-media"}, player.GroupMembers())
	assert.Equal(t, []string{"guid-2", "guid-1"}, player.GroupDeviceIDs())
}

func TestMediaPlayerGroupSkipsUnresolvedMembers(t *testing.T) {
	self := &fakePeer{entityID: "guid-1-media"}
	resolver := &fakeResolver{peers: map[string]GroupPeer{"guid-1": self}}

	speaker := bose.NewMockSpeaker("guid-1")
	player := NewMediaPlayer(speaker, resolver, "Soundbar", nil, nil, zap.NewNop())

	player.handleActiveGroups(raw(t, map[string]any{
		"activeGroups": []map[string]any{{
			"activeGroupId": "group-9",
			"groupMasterId": "guid-1",
			"products": []map[string]any{
				{"productId": "guid-1"},
				{"productId": "guid-unknown"},
			},
		}},
	}))

	assert.Equal(t, []string{"guid-1-media"}, player.GroupMembers())
	// The GUID list still carries the unmanaged member.
	assert.Equal(t, []string{"guid-1", "guid-unknown"}, player.GroupDeviceIDs())
}

func TestMediaPlayerEmptyGroupReportUngroups(t *testing.T) {
	player, _ := newTestPlayer(t)

	player.handleActiveGroups(raw(t, map[string]any{
		"activeGroups": []map[string]any{{
			"activeGroupId": "group-9",
			"groupMasterId": "guid-1",
			"products": []map[string]any{
				{"productId": "guid-1"},
				{"productId": "guid-2"},
			},
		}},
	}))
	require.NotEmpty(t, player.GroupDeviceIDs())

	player.handleActiveGroups(raw(t, map[string]any{"activeGroups": []map[string]any{}}))
	assert.Empty(t, player.GroupDeviceIDs())
	assert.Empty(t, player.GroupMembers())
}

func TestMediaPlayerJoinDelegatesToMaster(t *testing.T) {
	master := &fakePeer{entityID: "guid-2-media"}
	resolver := &fakeResolver{peers: map[string]GroupPeer{"guid-2": master}}

	speaker := bose.NewMockSpeaker("guid-1")
	player := NewMediaPlayer(speaker, resolver, "Soundbar", nil, nil, zap.NewNop())

	player.handleActiveGroups(raw(t, map[string]any{
		"activeGroups": []map[string]any{{
			"activeGroupId": "group-9",
			"groupMasterId": "guid-2",
			"products": []map[string]any{
				{"productId": "guid-1"},
				{"productId": "guid-2"},
			},
		}},
	}))

	require.NoError(t, player.Join(context.Background(), []string{"guid-3"}))

	// The request went to the master, not this player's speaker.
	require.Len(t, master.added, 1)
	assert.Equal(t, []string{"group-9", "guid-3"}, master.added[0])
	_, ok := speaker.LastRequest()
	assert.False(t, ok)
}

func TestMediaPlayerJoinAsMasterUsesOwnConnection(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	player := NewMediaPlayer(speaker, &fakeResolver{}, "Soundbar", nil, nil, zap.NewNop())

	player.handleActiveGroups(raw(t, map[string]any{
		"activeGroups": []map[string]any{{
			"activeGroupId": "group-9",
			"groupMasterId": "guid-1",
			"products":      []map[string]any{{"productId": "guid-1"}},
		}},
	}))

	require.NoError(t, player.Join(context.Background(), []string{"guid-3"}))

	req, ok := speaker.LastRequest()
	require.True(t, ok)
	assert.Equal(t, bose.TopicActiveGroups, req.Resource)
	assert.Equal(t, "group-9", req.Body["activeGroupId"])
}

func TestMediaPlayerUnjoinDelegatesToMaster(t *testing.T) {
	master := &fakePeer{entityID: "guid-2-media"}
	resolver := &fakeResolver{peers: map[string]GroupPeer{"guid-2": master}}

	speaker := bose.NewMockSpeaker("guid-1")
	player := NewMediaPlayer(speaker, resolver, "Soundbar", nil, nil, zap.NewNop())

	player.handleActiveGroups(raw(t, map[string]any{
		"activeGroups": []map[string]any{{
			"activeGroupId": "group-9",
			"groupMasterId": "guid-2",
			"products": []map[string]any{
				{"productId": "guid-1"},
				{"productId": "guid-2"},
			},
		}},
	}))

	require.NoError(t, player.Unjoin(context.Background()))

	require.Len(t, master.removed, 1)
	assert.Equal(t, []string{"group-9", "guid-1"}, master.removed[0])
}

func TestMediaPlayerUnjoinWithoutGroupIsNoop(t *testing.T) {
	player, speaker := newTestPlayer(t)

	require.NoError(t, player.Unjoin(context.Background()))
	_, ok := speaker.LastRequest()
	assert.False(t, ok)
}

func TestMediaPlayerBluetoothSourceListRebuild(t *testing.T) {
	player, _ := newTestPlayer(t)

	player.handleBluetoothSinkList(raw(t, map[string]any{
		"devices": []map[string]any{
			{"mac": "aa:bb", "name": "Old Phone"},
		},
	}))
	assert.Contains(t, player.SourceList(), "Bluetooth: Old Phone")

	// A renamed device replaces its old entry instead of accumulating.
	player.handleBluetoothSinkStatus(raw(t, map[string]any{
		"activeDevice": "aa:bb",
		"devices": []map[string]any{
			{"mac": "aa:bb", "name": "New Phone"},
		},
	}))

	list := player.SourceList()
	assert.Contains(t, list, "Bluetooth: New Phone")
	assert.NotContains(t, list, "Bluetooth: Old Phone")
	assert.Equal(t, "Bluetooth: New Phone", player.Source())
}

func TestMediaPlayerBluetoothActiveOnlyFromSinkStatus(t *testing.T) {
	player, _ := newTestPlayer(t)

	player.handleBluetoothSinkList(raw(t, map[string]any{
		"devices": []map[string]any{{"mac": "aa:bb", "name": "Phone"}},
	}))
	player.mu.RLock()
	active := player.activeBtLocked()
	player.mu.RUnlock()
	assert.Nil(t, active)

	player.handleBluetoothSinkStatus(raw(t, map[string]any{
		"activeDevice": "aa:bb",
		"devices":      []map[string]any{{"mac": "aa:bb", "name": "Phone"}},
	}))
	player.mu.RLock()
	active = player.activeBtLocked()
	player.mu.RUnlock()
	require.NotNil(t, active)
	assert.Equal(t, "Phone", active.name)
}

func TestMediaPlayerNewerPushWinsOverBluetoothFetch(t *testing.T) {
	player, speaker := newTestPlayer(t)
	speaker.SetResponse("GET", bose.TopicBluetoothSinkStatus, map[string]any{
		"activeDevice": "aa:bb",
		"devices":      []map[string]any{{"mac": "aa:bb", "name": "Phone"}},
	})

	// The generation a bluetooth push would hand its follow-up fetch.
	player.mu.RLock()
	gen := player.btGen
	player.mu.RUnlock()

	// A TV push lands while that fetch is still in flight.
	player.handleNowPlaying(raw(t, nowPlayingPayload("PLAY", "PRODUCT", "TV", "", "")))
	require.Equal(t, "TV", player.Source())

	// The stale fetch result must not undo the newer push.
	player.fetchActiveBluetooth(gen)
	assert.Equal(t, "TV", player.Source())
	assert.NotContains(t, player.SourceList(), "Bluetooth: Phone")
}

func TestMediaPlayerSelectBluetoothSource(t *testing.T) {
	player, speaker := newTestPlayer(t)

	player.handleBluetoothSinkList(raw(t, map[string]any{
		"devices": []map[string]any{{"mac": "aa:bb", "name": "Phone"}},
	}))

	require.NoError(t, player.SelectSource(context.Background(), "Bluetooth: Phone"))

	req, ok := speaker.LastRequest()
	require.True(t, ok)
	assert.Equal(t, bose.TopicBluetoothSinkConnect, req.Resource)
	assert.Equal(t, "aa:bb", req.Body["mac"])
	assert.Equal(t, "Bluetooth: Phone", player.Source())
}

func TestMediaPlayerSelectUnknownSourceFails(t *testing.T) {
	player, _ := newTestPlayer(t)
	assert.Error(t, player.SelectSource(context.Background(), "Gramophone"))
	assert.Error(t, player.SelectSource(context.Background(), "Bluetooth: Nobody"))
}

func TestMediaPlayerSelectTableSourceAppliesResponse(t *testing.T) {
	player, speaker := newTestPlayer(t)
	speaker.SetResponse("POST", bose.TopicPlaybackRequest, nowPlayingPayload("PLAY", "PRODUCT", "AUX_DIGITAL", "", ""))

	require.NoError(t, player.SelectSource(context.Background(), "Optical"))

	req, ok := speaker.LastRequest()
	require.True(t, ok)
	assert.Equal(t, bose.TopicPlaybackRequest, req.Resource)
	assert.Equal(t, "PRODUCT", req.Body["source"])
	assert.Equal(t, "AUX_DIGITAL", req.Body["sourceAccount"])
	assert.Equal(t, "Optical", player.Source())
	assert.Equal(t, StatePlaying, player.State())
}

func TestMediaPlayerUnavailableUntilFirstData(t *testing.T) {
	player, _ := newTestPlayer(t)
	assert.False(t, player.Available())

	player.handleVolume(raw(t, map[string]any{"value": 30}))
	assert.True(t, player.Available())
}

func TestMediaPlayerSeedSurvivesFetchFailures(t *testing.T) {
	speaker := bose.NewMockSpeaker("guid-1")
	speaker.FailWith("GET", bose.TopicNowPlaying, assert.AnError)
	speaker.SetResponse("GET", bose.TopicAudioVolume, map[string]any{"value": 40, "muted": false})

	player := NewMediaPlayer(speaker, nil, "Soundbar", nil, nil, zap.NewNop())
	player.Seed(context.Background())

	vol, known := player.Volume()
	require.True(t, known)
	assert.InDelta(t, 0.40, vol, 0.001)
	assert.True(t, player.Available())
}

func TestMediaPlayerNotifyOnChange(t *testing.T) {
	var mu sync.Mutex
	var notified []string
	notify := func(entityID string) {
		mu.Lock()
		defer mu.Unlock()
		notified = append(notified, entityID)
	}

	speaker := bose.NewMockSpeaker("guid-1")
	player := NewMediaPlayer(speaker, nil, "Soundbar", nil, notify, zap.NewNop())

	player.handleVolume(raw(t, map[string]any{"value": 10}))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, notified)
	assert.Equal(t, "guid-1-media", notified[0])
}
