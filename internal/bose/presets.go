package bose

// PresetContentItem is the content item inside a cloud preset action.
type PresetContentItem struct {
	Source        string `json:"source,omitempty"`
	SourceAccount string `json:"sourceAccount,omitempty"`
	Location      string `json:"location,omitempty"`
	Name          string `json:"name,omitempty"`
	ImageURL      string `json:"imageUrl,omitempty"`
	Presetable    bool   `json:"presetable,omitempty"`
}

// PresetAction is one action a preset performs when pressed.
type PresetAction struct {
	ActionType string `json:"actionType,omitempty"`
	Payload    struct {
		ContentItem PresetContentItem `json:"contentItem,omitempty"`
	} `json:"payload,omitempty"`
}

// Preset is one of the device's cloud-managed preset slots.
type Preset struct {
	Actions []PresetAction `json:"actions,omitempty"`
}

// Name returns the display name from the first action, empty when the preset
// carries none.
func (p Preset) Name() string {
	if len(p.Actions) == 0 {
		return ""
	}
	return p.Actions[0].Payload.ContentItem.Name
}

// ImageURL returns the artwork URL from the first action.
func (p Preset) ImageURL() string {
	if len(p.Actions) == 0 {
		return ""
	}
	return p.Actions[0].Payload.ContentItem.ImageURL
}
