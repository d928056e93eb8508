// Package projection contains the per-capability state projections: stateful
// views deriving UI-facing state from an initial fetch plus the push stream,
// and translating commands back into device requests.
package projection

import (
	"sync"

	"go.uber.org/zap"
)

// NotifyFunc is the host boundary's "state changed, re-render" callback,
// invoked with the entity id after every visible state change.
type NotifyFunc func(entityID string)

// Snapshot is the externally visible state of one entity, served over the
// HTTP API.
type Snapshot struct {
	EntityID  string         `json:"entity_id"`
	DeviceID  string         `json:"device_id"`
	Kind      string         `json:"kind"`
	Name      string         `json:"name,omitempty"`
	Available bool           `json:"available"`
	State     map[string]any `json:"state"`
}

// Entity is what every projection exposes to the host boundary.
type Entity interface {
	// EntityID is the stable unique identifier (device GUID + capability).
	EntityID() string

	// DeviceID is the owning device's GUID.
	DeviceID() string

	// Snapshot returns the current visible state.
	Snapshot() Snapshot
}

// base carries the identity, availability and notification plumbing shared
// by every projection. Projections embed it (composition, not inheritance)
// and guard their own derived fields with its mutex.
type base struct {
	entityID string
	deviceID string
	kind     string
	name     string
	notify   NotifyFunc
	logger   *zap.Logger

	mu        sync.RWMutex
	available bool
}

func newBase(deviceID, kind, name string, notify NotifyFunc, logger *zap.Logger) base {
	return base{
		entityID: deviceID + "-" + kind,
		deviceID: deviceID,
		kind:     kind,
		name:     name,
		notify:   notify,
		logger:   logger,
	}
}

func (b *base) EntityID() string { return b.entityID }
func (b *base) DeviceID() string { return b.deviceID }

// Available reports whether the projection has confirmed data. Until the
// first successful fetch or push it stays false and the entity reads as
// unavailable rather than showing defaults.
func (b *base) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.available
}

// changed signals the host boundary. Call with the mutex released.
func (b *base) changed() {
	if b.notify != nil {
		b.notify(b.entityID)
	}
}

func (b *base) snapshot(state map[string]any) Snapshot {
	return Snapshot{
		EntityID:  b.entityID,
		DeviceID:  b.deviceID,
		Kind:      b.kind,
		Name:      b.name,
		Available: b.available,
		State:     state,
	}
}
