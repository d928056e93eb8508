// Package device assembles one managed speaker: a control connection, the
// push router and the projections built on top, plus the registry that makes
// devices visible to each other for group coordination.
package device

import (
	"context"

	"bosebridge/internal/bose"
	"bosebridge/internal/projection"
	"bosebridge/internal/router"
)

// Connection is a speaker controller with its lifecycle attached. Speaker
// implements it for real hardware; tests wrap MockSpeaker.
type Connection interface {
	bose.Controller
	AttachReceiver(bose.Receiver)
	Disconnect() error
}

// Device is one managed speaker and its entities.
type Device struct {
	guid     string
	name     string
	conn     Connection
	router   *router.Router
	media    *projection.MediaPlayer
	presets  *projection.PresetSet
	entities []projection.Entity
	cancel   context.CancelFunc
}

func (d *Device) GUID() string { return d.guid }
func (d *Device) Name() string { return d.name }

func (d *Device) Connected() bool { return d.conn.Connected() }

// Media returns the device's primary entity.
func (d *Device) Media() *projection.MediaPlayer { return d.media }

// Presets returns the preset projection, nil when no cloud session exists.
func (d *Device) Presets() *projection.PresetSet { return d.presets }

// Entities lists every projection the device exposes, media player first.
func (d *Device) Entities() []projection.Entity {
	return append([]projection.Entity(nil), d.entities...)
}

// Entity finds one projection by its entity id.
func (d *Device) Entity(entityID string) (projection.Entity, bool) {
	for _, e := range d.entities {
		if e.EntityID() == entityID {
			return e, true
		}
	}
	return nil, false
}

// Snapshots returns the current state of every entity.
func (d *Device) Snapshots() []projection.Snapshot {
	snaps := make([]projection.Snapshot, 0, len(d.entities))
	for _, e := range d.entities {
		snaps = append(snaps, e.Snapshot())
	}
	return snaps
}

// Request passes a raw RPC through to the device, for the API's passthrough
// endpoint.
func (d *Device) Request(ctx context.Context, method, resource string, body, out any) error {
	return d.conn.Request(ctx, method, resource, body, out)
}

// Close stops the device's background loops and drops the connection.
func (d *Device) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	_ = d.conn.Disconnect()
}
