package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"bosebridge/internal/bose"
	"bosebridge/internal/router"
)

// PlayState is the derived playback state of a media player.
type PlayState string

const (
	StateOff       PlayState = "off"
	StateOn        PlayState = "on"
	StateIdle      PlayState = "idle"
	StatePlaying   PlayState = "playing"
	StatePaused    PlayState = "paused"
	StateBuffering PlayState = "buffering"
	StateStandby   PlayState = "standby"
)

const bluetoothLabelPrefix = "Bluetooth: "

const fetchTimeout = 10 * time.Second

type btDevice struct {
	name   string
	class  string
	sink   bool
	active bool
}

// MediaPlayer projects the playback surface of one speaker: transport state,
// track metadata, volume, source selection, bluetooth pairing and group
// membership. It is the device's primary entity.
type MediaPlayer struct {
	base
	speaker  bose.Controller
	resolver PeerResolver

	state       PlayState
	poweredOn   bool
	volume      float64
	volumeKnown bool
	muted       bool

	title             string
	artist            string
	album             string
	duration          *int
	position          *int
	positionUpdatedAt time.Time
	imageURL          string
	playback          bose.PlaybackState

	source           string
	sourceList       []string
	baseSources      []string
	availableSources map[string]SourceRef
	sourceOrder      []string

	btDevices map[string]*btDevice
	// btGen invalidates in-flight bluetooth follow-up fetches: a push that
	// arrives after the fetch started must win.
	btGen int

	activeGroupID string
	memberGUIDs   []string
	groupMembers  []string
}

// NewMediaPlayer builds the projection for one speaker. extraSources extends
// the built-in source label table. resolver may be nil when the device runs
// standalone; group membership then lists no peer entities.
func NewMediaPlayer(speaker bose.Controller, resolver PeerResolver, name string, extraSources []LabeledSource, notify NotifyFunc, logger *zap.Logger) *MediaPlayer {
	p := &MediaPlayer{
		base:             newBase(speaker.DeviceID(), "media", name, notify, logger),
		speaker:          speaker,
		resolver:         resolver,
		state:            StateOff,
		availableSources: make(map[string]SourceRef),
		btDevices:        make(map[string]*btDevice),
	}
	for _, s := range DefaultSources() {
		p.addSourceLocked(s.Label, s.SourceRef)
	}
	for _, s := range extraSources {
		p.addSourceLocked(s.Label, s.SourceRef)
	}
	p.rebuildSourceListLocked()
	return p
}

// Register subscribes the projection to its push topics.
func (p *MediaPlayer) Register(r *router.Router) {
	r.Register(bose.TopicNowPlaying, p.entityID, p.handleNowPlaying)
	r.Register(bose.TopicAudioVolume, p.entityID, p.handleVolume)
	r.Register(bose.TopicPowerControl, p.entityID, p.handlePower)
	r.Register(bose.TopicActiveGroups, p.entityID, p.handleActiveGroups)
	r.Register(bose.TopicBluetoothSinkList, p.entityID, p.handleBluetoothSinkList)
	r.Register(bose.TopicBluetoothSinkStatus, p.entityID, p.handleBluetoothSinkStatus)
	r.Register(bose.TopicBluetoothSourceStatus, p.entityID, p.handleBluetoothSourceStatus)
}

// Seed pulls the initial state. Individual fetch failures leave the affected
// slice at its zero value; the entity stays unavailable until something
// succeeds, and later pushes fill the gaps.
func (p *MediaPlayer) Seed(ctx context.Context) {
	if np, err := bose.GetNowPlaying(ctx, p.speaker); err != nil {
		p.logger.Debug("Initial nowPlaying fetch failed", zap.Error(err))
	} else {
		p.applyNowPlaying(np)
	}

	if vol, err := bose.GetAudioVolume(ctx, p.speaker); err != nil {
		p.logger.Debug("Initial volume fetch failed", zap.Error(err))
	} else {
		p.applyVolume(vol)
	}

	if p.speaker.HasCapability(bose.TopicSources) {
		if err := p.refreshSources(ctx); err != nil {
			p.logger.Debug("Source list fetch failed", zap.Error(err))
		}
	}

	if p.speaker.HasCapability(bose.TopicActiveGroups) {
		if groups, err := bose.GetActiveGroups(ctx, p.speaker); err != nil {
			p.logger.Debug("Initial group fetch failed", zap.Error(err))
		} else {
			p.applyActiveGroups(groups)
		}
	}

	if p.speaker.HasCapability(bose.TopicBluetoothSinkList) {
		if list, err := bose.GetBluetoothSinkList(ctx, p.speaker); err != nil {
			p.logger.Debug("Bluetooth sink list fetch failed", zap.Error(err))
		} else {
			p.applySinkList(list)
		}
		if status, err := bose.GetBluetoothSinkStatus(ctx, p.speaker); err != nil {
			p.logger.Debug("Bluetooth sink status fetch failed", zap.Error(err))
		} else {
			p.applySinkStatus(status)
		}
	}

	p.changed()
}

func (p *MediaPlayer) handleNowPlaying(body json.RawMessage) {
	var np bose.NowPlaying
	if err := bose.Decode(body, &np); err != nil {
		p.logger.Warn("Bad nowPlaying payload", zap.Error(err))
		return
	}
	p.applyNowPlaying(np)
	p.changed()
}

// applyNowPlaying replaces the playback slice wholesale. Absent fields clear
// their projection, they never carry over the previous track's values.
func (p *MediaPlayer) applyNowPlaying(np bose.NowPlaying) {
	p.mu.Lock()
	p.btGen++

	status := ""
	if np.State != nil {
		status = np.State.Status
		p.playback = *np.State
	} else {
		p.playback = bose.PlaybackState{}
	}
	switch status {
	case "PLAY":
		p.state = StatePlaying
	case "PAUSED":
		p.state = StatePaused
	case "BUFFERING":
		p.state = StateBuffering
	case "STOPPED":
		p.state = StateIdle
	case "":
		p.state = StateStandby
	default:
		p.logger.Warn("Unhandled playback status", zap.String("status", status))
		p.state = StateOn
	}

	p.title = ""
	p.artist = ""
	p.album = ""
	p.duration = nil
	p.position = nil
	if np.Metadata != nil {
		p.title = np.Metadata.TrackName
		p.artist = np.Metadata.Artist
		p.album = np.Metadata.Album
		p.duration = np.Metadata.Duration
	}
	if p.title == "" {
		p.title = np.Track.ContentItem.Name
	}
	if np.State != nil && np.State.TimeIntoTrack != nil {
		p.position = np.State.TimeIntoTrack
		p.positionUpdatedAt = time.Now()
	}
	p.imageURL = np.Track.ContentItem.ContainerArt

	raw := np.Container.ContentItem
	p.source = p.resolveSourceLocked(np.Source.SourceDisplayName, raw)

	if raw.Source == "PRODUCT" && raw.SourceAccount == "TV" {
		p.source = "TV"
		p.title = "TV"
		p.artist = ""
		p.album = ""
		p.duration = nil
		p.position = nil
	}

	followUp := false
	gen := p.btGen
	if np.Source.SourceID == "BLUETOOTH" {
		if d := p.activeBtLocked(); d != nil {
			p.source = bluetoothLabelPrefix + d.name
		} else {
			followUp = true
		}
	}

	p.available = true
	p.mu.Unlock()

	if followUp {
		go p.fetchActiveBluetooth(gen)
	}
}

// resolveSourceLocked maps the raw source/account pair to a label from the
// table. Multi-account providers match on account id, everything else on the
// source/account pair. With no match the display name wins, then the
// capitalized raw identifier.
func (p *MediaPlayer) resolveSourceLocked(displayName string, raw bose.ContentItem) string {
	for _, label := range p.sourceOrder {
		ref := p.availableSources[label]
		if ref.Source != raw.Source {
			continue
		}
		if multiAccountProviders[raw.Source] {
			if ref.AccountID != "" && ref.AccountID == raw.SourceAccount {
				return label
			}
			continue
		}
		if ref.SourceAccount == raw.SourceAccount {
			return label
		}
	}
	if displayName != "" {
		return displayName
	}
	return capitalize(raw.Source)
}

func (p *MediaPlayer) handleVolume(body json.RawMessage) {
	var vol bose.AudioVolume
	if err := bose.Decode(body, &vol); err != nil {
		p.logger.Warn("Bad volume payload", zap.Error(err))
		return
	}
	p.applyVolume(vol)
	p.changed()
}

// applyVolume merges: volume pushes are partial, an absent field keeps the
// previous value.
func (p *MediaPlayer) applyVolume(vol bose.AudioVolume) {
	p.mu.Lock()
	if vol.Value != nil {
		p.volume = float64(*vol.Value) / 100
		p.volumeKnown = true
	}
	if vol.Muted != nil {
		p.muted = *vol.Muted
	}
	p.available = true
	p.mu.Unlock()
}

func (p *MediaPlayer) handlePower(body json.RawMessage) {
	var ps bose.PowerState
	if err := bose.Decode(body, &ps); err != nil {
		p.logger.Warn("Bad power payload", zap.Error(err))
		return
	}
	p.mu.Lock()
	p.poweredOn = ps.Power == "ON"
	if !p.poweredOn {
		p.state = StateOff
	} else if p.state == StateOff {
		p.state = StateIdle
	}
	p.available = true
	p.mu.Unlock()
	p.changed()
}

func (p *MediaPlayer) handleActiveGroups(body json.RawMessage) {
	var groups bose.ActiveGroups
	if err := bose.Decode(body, &groups); err != nil {
		p.logger.Warn("Bad activeGroups payload", zap.Error(err))
		return
	}
	p.applyActiveGroups(groups)
	p.changed()
}

// applyActiveGroups projects the first active group. Devices report at most
// one; an empty or member-less report means ungrouped.
func (p *MediaPlayer) applyActiveGroups(groups bose.ActiveGroups) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(groups.ActiveGroups) == 0 {
		p.activeGroupID = ""
		p.memberGUIDs = nil
		p.groupMembers = nil
		return
	}

	g := groups.ActiveGroups[0]
	guids := make([]string, 0, len(g.Products))
	for _, prod := range g.Products {
		if prod.ProductID != "" {
			guids = append(guids, prod.ProductID)
		}
	}
	if len(guids) == 0 {
		p.activeGroupID = ""
		p.memberGUIDs = nil
		p.groupMembers = nil
		return
	}

	ordered := orderMembers(guids, g.GroupMasterID)
	entities := make([]string, 0, len(ordered))
	for _, guid := range ordered {
		if p.resolver == nil {
			continue
		}
		peer, ok := p.resolver.Peer(guid)
		if !ok {
			p.logger.Debug("Group member not managed", zap.String("guid", guid))
			continue
		}
		entities = append(entities, peer.EntityID())
	}

	p.activeGroupID = g.ActiveGroupID
	p.memberGUIDs = ordered
	p.groupMembers = entities
}

func (p *MediaPlayer) handleBluetoothSinkList(body json.RawMessage) {
	var list bose.BluetoothSinkList
	if err := bose.Decode(body, &list); err != nil {
		p.logger.Warn("Bad bluetooth sink list payload", zap.Error(err))
		return
	}
	p.applySinkList(list)
	p.changed()
}

func (p *MediaPlayer) applySinkList(list bose.BluetoothSinkList) {
	p.mu.Lock()
	for _, d := range list.Devices {
		p.upsertBtLocked(d, true)
	}
	p.rebuildSourceListLocked()
	p.mu.Unlock()
}

func (p *MediaPlayer) handleBluetoothSinkStatus(body json.RawMessage) {
	var status bose.BluetoothSinkStatus
	if err := bose.Decode(body, &status); err != nil {
		p.logger.Warn("Bad bluetooth sink status payload", zap.Error(err))
		return
	}
	p.applySinkStatus(status)
	p.changed()
}

// applySinkStatus is the only path that asserts the active flag. List and
// source pushes describe pairing, not connection.
func (p *MediaPlayer) applySinkStatus(status bose.BluetoothSinkStatus) {
	p.mu.Lock()
	p.btGen++
	for _, d := range status.Devices {
		p.upsertBtLocked(d, true)
	}
	for mac, d := range p.btDevices {
		d.active = d.sink && mac == status.ActiveDevice
	}
	if status.ActiveDevice != "" {
		if d, ok := p.btDevices[status.ActiveDevice]; ok {
			p.source = bluetoothLabelPrefix + d.name
		}
	}
	p.rebuildSourceListLocked()
	p.mu.Unlock()
}

func (p *MediaPlayer) handleBluetoothSourceStatus(body json.RawMessage) {
	var status bose.BluetoothSourceStatus
	if err := bose.Decode(body, &status); err != nil {
		p.logger.Warn("Bad bluetooth source status payload", zap.Error(err))
		return
	}
	p.mu.Lock()
	for _, d := range status.Devices {
		p.upsertBtLocked(d, false)
	}
	p.rebuildSourceListLocked()
	p.mu.Unlock()
	p.changed()
}

func (p *MediaPlayer) upsertBtLocked(d bose.BluetoothDevice, sink bool) {
	if d.Mac == "" {
		return
	}
	existing, ok := p.btDevices[d.Mac]
	if !ok {
		p.btDevices[d.Mac] = &btDevice{name: d.Name, class: d.DeviceClass, sink: sink}
		return
	}
	if d.Name != "" {
		existing.name = d.Name
	}
	if d.DeviceClass != "" {
		existing.class = d.DeviceClass
	}
	existing.sink = existing.sink || sink
}

func (p *MediaPlayer) activeBtLocked() *btDevice {
	for _, d := range p.btDevices {
		if d.active {
			return d
		}
	}
	return nil
}

// rebuildSourceListLocked recomputes the visible source list from scratch:
// the label table entries followed by one "Bluetooth: <name>" entry per
// paired sink. Rebuilding instead of patching keeps renamed or unpaired
// devices from leaving stale entries behind.
func (p *MediaPlayer) rebuildSourceListLocked() {
	list := make([]string, 0, len(p.baseSources)+len(p.btDevices))
	list = append(list, p.baseSources...)
	names := make([]string, 0, len(p.btDevices))
	for _, d := range p.btDevices {
		if d.sink && d.name != "" {
			names = append(names, bluetoothLabelPrefix+d.name)
		}
	}
	sort.Strings(names)
	p.sourceList = append(list, names...)
}

// fetchActiveBluetooth resolves the friendly name after a bluetooth
// now-playing push arrived before any sink status did. gen guards against
// any newer push overtaking the fetch: the push wins.
func (p *MediaPlayer) fetchActiveBluetooth(gen int) {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	status, err := bose.GetBluetoothSinkStatus(ctx, p.speaker)
	if err != nil {
		p.logger.Debug("Bluetooth follow-up fetch failed", zap.Error(err))
		return
	}

	p.mu.Lock()
	if gen != p.btGen {
		p.mu.Unlock()
		return
	}
	for _, d := range status.Devices {
		p.upsertBtLocked(d, true)
	}
	if status.ActiveDevice != "" {
		if d, ok := p.btDevices[status.ActiveDevice]; ok {
			d.active = true
			p.source = bluetoothLabelPrefix + d.name
		}
	}
	p.rebuildSourceListLocked()
	p.mu.Unlock()
	p.changed()
}

func (p *MediaPlayer) addSourceLocked(label string, ref SourceRef) {
	if _, ok := p.availableSources[label]; !ok {
		p.sourceOrder = append(p.sourceOrder, label)
		p.baseSources = append(p.baseSources, label)
	}
	p.availableSources[label] = ref
}

// refreshSources learns the runtime provider accounts (Spotify, Amazon,
// Deezer) and extends the label table with them.
func (p *MediaPlayer) refreshSources(ctx context.Context) error {
	list, err := bose.GetSources(ctx, p.speaker)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, src := range list.Sources {
		if src.SourceName == "" || src.SourceAccountName == "" {
			continue
		}
		if !multiAccountProviders[src.SourceName] {
			continue
		}
		if placeholderAccounts[src.SourceAccountName] {
			continue
		}
		label := capitalize(src.SourceName) + ": " + src.SourceAccountName
		p.addSourceLocked(label, SourceRef{
			Source:        src.SourceName,
			SourceAccount: src.SourceAccountName,
			AccountID:     src.AccountID,
		})
	}
	p.rebuildSourceListLocked()
	return nil
}

// TurnOn powers the speaker on. The projection moves optimistically; the
// power push confirms or corrects it.
func (p *MediaPlayer) TurnOn(ctx context.Context) error {
	if err := bose.SetPower(ctx, p.speaker, true); err != nil {
		return err
	}
	p.mu.Lock()
	p.poweredOn = true
	if p.state == StateOff {
		p.state = StateIdle
	}
	p.mu.Unlock()
	p.changed()
	return nil
}

func (p *MediaPlayer) TurnOff(ctx context.Context) error {
	if err := bose.SetPower(ctx, p.speaker, false); err != nil {
		return err
	}
	p.mu.Lock()
	p.poweredOn = false
	p.state = StateOff
	p.mu.Unlock()
	p.changed()
	return nil
}

func (p *MediaPlayer) Play(ctx context.Context) error {
	return p.transport(ctx, bose.TransportPlay, StatePlaying)
}

func (p *MediaPlayer) Pause(ctx context.Context) error {
	return p.transport(ctx, bose.TransportPause, StatePaused)
}

// Stop pauses the stream; the transport has no distinct stop and the
// projection settles on idle.
func (p *MediaPlayer) Stop(ctx context.Context) error {
	return p.transport(ctx, bose.TransportPause, StateIdle)
}

func (p *MediaPlayer) NextTrack(ctx context.Context) error {
	return bose.Transport(ctx, p.speaker, bose.TransportSkipNext)
}

func (p *MediaPlayer) PreviousTrack(ctx context.Context) error {
	return bose.Transport(ctx, p.speaker, bose.TransportSkipPrevious)
}

func (p *MediaPlayer) transport(ctx context.Context, command string, next PlayState) error {
	if err := bose.Transport(ctx, p.speaker, command); err != nil {
		return err
	}
	p.mu.Lock()
	p.state = next
	p.mu.Unlock()
	p.changed()
	return nil
}

// SeekTo moves playback to position seconds into the track.
func (p *MediaPlayer) SeekTo(ctx context.Context, position int) error {
	if err := bose.Seek(ctx, p.speaker, position); err != nil {
		return err
	}
	p.mu.Lock()
	pos := position
	p.position = &pos
	p.positionUpdatedAt = time.Now()
	p.mu.Unlock()
	p.changed()
	return nil
}

// SetVolume takes the fractional level (0.0-1.0) and writes the vendor
// percentage (0-100).
func (p *MediaPlayer) SetVolume(ctx context.Context, level float64) error {
	pct := int(math.Round(level * 100))
	if pct < 0 {
		pct = 0
	} else if pct > 100 {
		pct = 100
	}
	if err := bose.SetAudioVolume(ctx, p.speaker, pct); err != nil {
		return err
	}
	p.mu.Lock()
	p.volume = float64(pct) / 100
	p.volumeKnown = true
	p.mu.Unlock()
	p.changed()
	return nil
}

// SetMuted flips the explicit mute flag. Volume level is untouched.
func (p *MediaPlayer) SetMuted(ctx context.Context, muted bool) error {
	if err := bose.SetMuted(ctx, p.speaker, muted); err != nil {
		return err
	}
	p.mu.Lock()
	p.muted = muted
	p.mu.Unlock()
	p.changed()
	return nil
}

// SelectSource switches to a source by its visible label. "Bluetooth: X"
// labels connect the named paired sink; everything else resolves through the
// label table.
func (p *MediaPlayer) SelectSource(ctx context.Context, label string) error {
	if strings.HasPrefix(label, bluetoothLabelPrefix) {
		name := strings.TrimPrefix(label, bluetoothLabelPrefix)
		p.mu.RLock()
		mac := ""
		for m, d := range p.btDevices {
			if d.name == name {
				mac = m
				break
			}
		}
		p.mu.RUnlock()
		if mac == "" {
			return fmt.Errorf("unknown bluetooth device %q", name)
		}
		if err := bose.ConnectBluetoothSink(ctx, p.speaker, mac); err != nil {
			return err
		}
		p.mu.Lock()
		p.source = label
		p.mu.Unlock()
		p.changed()
		return nil
	}

	p.mu.RLock()
	ref, ok := p.availableSources[label]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown source %q", label)
	}
	account := ref.SourceAccount
	if multiAccountProviders[ref.Source] && ref.AccountID != "" {
		account = ref.AccountID
	}
	np, err := bose.SetSource(ctx, p.speaker, ref.Source, account)
	if err != nil {
		return err
	}
	p.applyNowPlaying(np)
	p.changed()
	return nil
}

// Join pulls the given devices into this player's group. If the player sits
// in a group it does not master, the request is delegated to the master:
// group mutation is master-directed.
func (p *MediaPlayer) Join(ctx context.Context, deviceIDs []string) error {
	p.mu.RLock()
	groupID := p.activeGroupID
	masterID := ""
	if len(p.memberGUIDs) > 0 {
		masterID = p.memberGUIDs[0]
	}
	p.mu.RUnlock()

	if groupID == "" {
		return bose.SetActiveGroup(ctx, p.speaker, deviceIDs)
	}
	if masterID != "" && masterID != p.deviceID {
		if p.resolver != nil {
			if peer, ok := p.resolver.Peer(masterID); ok {
				p.logger.Warn("Delegating group join to master", zap.String("master", masterID))
				return peer.AddToGroup(ctx, groupID, deviceIDs)
			}
		}
		return fmt.Errorf("group master %s is not managed", masterID)
	}
	return bose.AddToActiveGroup(ctx, p.speaker, groupID, deviceIDs)
}

// Unjoin removes this player from its group. A member asks the master to
// drop it; the master dissolves the whole group.
func (p *MediaPlayer) Unjoin(ctx context.Context) error {
	p.mu.RLock()
	groupID := p.activeGroupID
	masterID := ""
	if len(p.memberGUIDs) > 0 {
		masterID = p.memberGUIDs[0]
	}
	p.mu.RUnlock()

	if groupID == "" {
		return nil
	}
	if masterID == "" || masterID == p.deviceID {
		return bose.StopActiveGroups(ctx, p.speaker)
	}
	if p.resolver != nil {
		if peer, ok := p.resolver.Peer(masterID); ok {
			p.logger.Warn("Delegating group unjoin to master", zap.String("master", masterID))
			return peer.RemoveFromGroup(ctx, groupID, []string{p.deviceID})
		}
	}
	return fmt.Errorf("group master %s is not managed", masterID)
}

// AddToGroup and RemoveFromGroup are the master-side halves of delegation.

func (p *MediaPlayer) AddToGroup(ctx context.Context, groupID string, deviceIDs []string) error {
	return bose.AddToActiveGroup(ctx, p.speaker, groupID, deviceIDs)
}

func (p *MediaPlayer) RemoveFromGroup(ctx context.Context, groupID string, deviceIDs []string) error {
	return bose.RemoveFromActiveGroup(ctx, p.speaker, groupID, deviceIDs)
}

func (p *MediaPlayer) State() PlayState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Volume returns the fractional level and whether one has been learned.
func (p *MediaPlayer) Volume() (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.volume, p.volumeKnown
}

func (p *MediaPlayer) Muted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.muted
}

func (p *MediaPlayer) Source() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.source
}

func (p *MediaPlayer) SourceList() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.sourceList...)
}

// GroupMembers lists the member entity ids, master first.
func (p *MediaPlayer) GroupMembers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.groupMembers...)
}

// GroupDeviceIDs lists the member GUIDs, master first, including members this
// process does not manage.
func (p *MediaPlayer) GroupDeviceIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.memberGUIDs...)
}

func (p *MediaPlayer) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	state := map[string]any{
		"state":         string(p.state),
		"muted":         p.muted,
		"source":        p.source,
		"source_list":   append([]string(nil), p.sourceList...),
		"group_members": append([]string(nil), p.groupMembers...),
	}
	if p.volumeKnown {
		state["volume_level"] = p.volume
	}
	if p.title != "" {
		state["media_title"] = p.title
	}
	if p.artist != "" {
		state["media_artist"] = p.artist
	}
	if p.album != "" {
		state["media_album"] = p.album
	}
	if p.duration != nil {
		state["media_duration"] = *p.duration
	}
	if p.position != nil {
		state["media_position"] = *p.position
		if !p.positionUpdatedAt.IsZero() {
			state["media_position_updated_at"] = p.positionUpdatedAt.UTC().Format(time.RFC3339)
		}
	}
	if p.imageURL != "" {
		state["image_url"] = p.imageURL
	}
	state["can_pause"] = p.playback.CanPause
	state["can_seek"] = p.playback.CanSeek
	state["can_skip_next"] = p.playback.CanSkipNext
	state["can_skip_previous"] = p.playback.CanSkipPrevious

	return p.snapshot(state)
}
