package bose

import (
	"encoding/json"
)

// Resource topics pushed by the speaker. Topic strings are vendor-defined
// and case-sensitive.
const (
	TopicNowPlaying            = "/content/nowPlaying"
	TopicAudioVolume           = "/audio/volume"
	TopicPowerControl          = "/system/power/control"
	TopicActiveGroups          = "/grouping/activeGroups"
	TopicBluetoothSinkList     = "/bluetooth/sink/list"
	TopicBluetoothSinkStatus   = "/bluetooth/sink/status"
	TopicBluetoothSourceStatus = "/bluetooth/source/status"
	TopicAccessories           = "/accessories"
	TopicAudioMode             = "/audio/mode"
	TopicDualMono              = "/audio/dualMonoSelect"
	TopicRebroadcastLatency    = "/audio/rebroadcastLatency/mode"
	TopicCec                   = "/cec"
	TopicBattery               = "/system/battery"
	TopicWifiStatus            = "/network/wifi/status"
	TopicSources               = "/system/sources"
	TopicTransportControl      = "/content/transportControl"
	TopicPlaybackRequest       = "/content/playbackRequest"
	TopicCapabilities          = "/system/capabilities"
	TopicSystemInfo            = "/system/info"
	TopicSubscription          = "/subscription"
	TopicBluetoothSinkConnect  = "/bluetooth/sink/connect"
)

// Header is the envelope header shared by requests, responses and pushes.
// Pushes carry method NOTIFY and no reqID; responses echo the request's reqID.
type Header struct {
	Device   string `json:"device,omitempty"`
	Resource string `json:"resource"`
	Method   string `json:"method,omitempty"`
	MsgType  string `json:"msgtype,omitempty"`
	ReqID    int    `json:"reqID,omitempty"`
	Status   int    `json:"status,omitempty"`
	Token    string `json:"token,omitempty"`
	Version  int    `json:"version,omitempty"`
}

// Message is one frame on the speaker websocket.
type Message struct {
	Header Header          `json:"header"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// IsNotification reports whether the frame is a server push rather than the
// response to one of our requests.
func (m *Message) IsNotification() bool {
	return m.Header.ReqID == 0 || m.Header.Method == "NOTIFY"
}

// ContentItem identifies a playable item and the source it came from.
type ContentItem struct {
	Source        string `json:"source,omitempty"`
	SourceAccount string `json:"sourceAccount,omitempty"`
	ContainerArt  string `json:"containerArt,omitempty"`
	Name          string `json:"name,omitempty"`
	Presetable    bool   `json:"presetable,omitempty"`
}

// PlaybackState is the transport half of a now-playing payload.
type PlaybackState struct {
	Status          string `json:"status,omitempty"`
	TimeIntoTrack   *int   `json:"timeIntoTrack,omitempty"`
	CanPause        bool   `json:"canPause,omitempty"`
	CanStop         bool   `json:"canStop,omitempty"`
	CanSeek         bool   `json:"canSeek,omitempty"`
	CanSkipNext     bool   `json:"canSkipNext,omitempty"`
	CanSkipPrevious bool   `json:"canSkipPrevious,omitempty"`
}

// Metadata is the track metadata half of a now-playing payload.
type Metadata struct {
	TrackName string `json:"trackName,omitempty"`
	Artist    string `json:"artist,omitempty"`
	Album     string `json:"album,omitempty"`
	Duration  *int   `json:"duration,omitempty"`
}

// NowPlaying is the /content/nowPlaying payload. It is a full-replace topic:
// fields absent from a push mean "no value", not "unchanged".
type NowPlaying struct {
	Source struct {
		SourceID          string `json:"sourceID,omitempty"`
		SourceDisplayName string `json:"sourceDisplayName,omitempty"`
	} `json:"source,omitempty"`
	Container struct {
		ContentItem ContentItem `json:"contentItem,omitempty"`
	} `json:"container,omitempty"`
	Track struct {
		ContentItem ContentItem `json:"contentItem,omitempty"`
	} `json:"track,omitempty"`
	Metadata *Metadata      `json:"metadata,omitempty"`
	State    *PlaybackState `json:"state,omitempty"`
}

// AudioVolume is the /audio/volume payload. Partial updates are common: a
// push may carry only the value or only the mute flag.
type AudioVolume struct {
	Value *int  `json:"value,omitempty"`
	Muted *bool `json:"muted,omitempty"`
}

// PowerState is the /system/power/control payload.
type PowerState struct {
	Power string `json:"power,omitempty"`
}

// GroupProduct is one member of an active group.
type GroupProduct struct {
	ProductID string `json:"productId,omitempty"`
	Role      string `json:"role,omitempty"`
}

// ActiveGroup describes one multi-speaker playback group.
type ActiveGroup struct {
	ActiveGroupID string         `json:"activeGroupId,omitempty"`
	GroupMasterID string         `json:"groupMasterId,omitempty"`
	Products      []GroupProduct `json:"products,omitempty"`
}

// ActiveGroups is the /grouping/activeGroups payload. An empty list means
// the device is ungrouped.
type ActiveGroups struct {
	ActiveGroups []ActiveGroup `json:"activeGroups,omitempty"`
}

// BluetoothDevice is one paired bluetooth endpoint.
type BluetoothDevice struct {
	Mac         string `json:"mac,omitempty"`
	Name        string `json:"name,omitempty"`
	DeviceClass string `json:"deviceClass,omitempty"`
}

// BluetoothSinkList is the /bluetooth/sink/list payload.
type BluetoothSinkList struct {
	Devices []BluetoothDevice `json:"devices,omitempty"`
}

// BluetoothSinkStatus is the /bluetooth/sink/status payload. Only this topic
// asserts which device is actively connected.
type BluetoothSinkStatus struct {
	ActiveDevice string            `json:"activeDevice,omitempty"`
	Devices      []BluetoothDevice `json:"devices,omitempty"`
}

// BluetoothSourceStatus is the /bluetooth/source/status payload.
type BluetoothSourceStatus struct {
	Devices []BluetoothDevice `json:"devices,omitempty"`
}

// AccessoryFlags is a per-accessory-class boolean map (subwoofers, rears).
type AccessoryFlags struct {
	Subs  bool `json:"subs,omitempty"`
	Rears bool `json:"rears,omitempty"`
}

// AccessoryUnit describes one attached accessory speaker.
type AccessoryUnit struct {
	Type      string `json:"type,omitempty"`
	SerialNum string `json:"serialnum,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Accessories is the /accessories payload.
type Accessories struct {
	Controllable AccessoryFlags  `json:"controllable,omitempty"`
	Enabled      AccessoryFlags  `json:"enabled,omitempty"`
	Subs         []AccessoryUnit `json:"subs,omitempty"`
	Rears        []AccessoryUnit `json:"rears,omitempty"`
}

// AudioSetting is the payload for the tunable audio paths (/audio/bass and
// friends).
type AudioSetting struct {
	Value      *int `json:"value,omitempty"`
	Properties struct {
		Min  int `json:"min,omitempty"`
		Max  int `json:"max,omitempty"`
		Step int `json:"step,omitempty"`
	} `json:"properties,omitempty"`
}

// ModeSetting is the payload shape shared by the enumerated settings
// (/audio/mode, /audio/dualMonoSelect, /audio/rebroadcastLatency/mode, /cec).
// Some variants report under "value"/"supportedValues", others under
// "mode"/"supportedModes".
type ModeSetting struct {
	Value      string `json:"value,omitempty"`
	Mode       string `json:"mode,omitempty"`
	Properties struct {
		SupportedValues []string `json:"supportedValues,omitempty"`
		SupportedModes  []string `json:"supportedModes,omitempty"`
	} `json:"properties,omitempty"`
}

// Battery is the /system/battery payload. MinutesToEmpty and MinutesToFull
// use 65535 as a "no estimate" sentinel.
type Battery struct {
	ChargeStatus               string `json:"chargeStatus,omitempty"`
	ChargerConnected           string `json:"chargerConnected,omitempty"`
	MinutesToEmpty             *int   `json:"minutesToEmpty,omitempty"`
	MinutesToFull              *int   `json:"minutesToFull,omitempty"`
	Percent                    *int   `json:"percent,omitempty"`
	SufficientChargerConnected bool   `json:"sufficientChargerConnected,omitempty"`
	TemperatureState           string `json:"temperatureState,omitempty"`
}

// WifiStatus is the /network/wifi/status payload.
type WifiStatus struct {
	FrequencyKhz   int    `json:"frequencyKhz,omitempty"`
	SignalDbm      *int   `json:"signalDbm,omitempty"`
	SignalDbmLevel string `json:"signalDbmLevel,omitempty"`
	SSID           string `json:"ssid,omitempty"`
	State          string `json:"state,omitempty"`
}

// SourceEntry is one provider account in the /system/sources list.
type SourceEntry struct {
	SourceName        string `json:"sourceName,omitempty"`
	SourceAccountName string `json:"sourceAccountName,omitempty"`
	AccountID         string `json:"accountId,omitempty"`
	Status            string `json:"status,omitempty"`
	Local             bool   `json:"local,omitempty"`
	MultiRoom         bool   `json:"multiroom,omitempty"`
}

// SourceList is the /system/sources payload.
type SourceList struct {
	Sources []SourceEntry `json:"sources,omitempty"`
}

// SystemInfo is the /system/info payload.
type SystemInfo struct {
	GUID            string `json:"guid,omitempty"`
	Name            string `json:"name,omitempty"`
	ProductName     string `json:"productName,omitempty"`
	ProductType     string `json:"productType,omitempty"`
	SerialNumber    string `json:"serialNumber,omitempty"`
	SoftwareVersion string `json:"softwareVersion,omitempty"`
	CountryCode     string `json:"countryCode,omitempty"`
}

// Capabilities is the /system/capabilities payload: groups of API endpoints
// the device claims to support. The report is advisory; some devices list
// endpoints they reject and omit endpoints they accept.
type Capabilities struct {
	Group []struct {
		APIGroup  string `json:"apiGroup,omitempty"`
		Version   int    `json:"version,omitempty"`
		Endpoints []struct {
			Endpoint string `json:"endpoint,omitempty"`
		} `json:"endpoints,omitempty"`
	} `json:"group,omitempty"`
}

// Endpoints flattens the capability report into a set of resource paths.
func (c Capabilities) Endpoints() map[string]struct{} {
	set := make(map[string]struct{})
	for _, g := range c.Group {
		for _, e := range g.Endpoints {
			if e.Endpoint != "" {
				set[e.Endpoint] = struct{}{}
			}
		}
	}
	return set
}

// Decode unmarshals a push or response body into dst. An empty body is not
// an error: dst keeps its defaults, matching the everything-optional payload
// contract.
func Decode(body json.RawMessage, dst any) error {
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, dst)
}
