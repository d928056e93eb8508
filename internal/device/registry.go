package device

import (
	"sort"
	"sync"

	"bosebridge/internal/projection"
)

// Registry holds every managed device by GUID. It doubles as the peer
// resolver for group coordination: a media player asks it whether a group
// member GUID belongs to a device this process manages.
type Registry struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

func NewRegistry() *Registry {
	return &Registry{devices: make(map[string]*Device)}
}

func (r *Registry) Add(d *Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[d.GUID()] = d
}

func (r *Registry) Remove(guid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.devices, guid)
}

// Device looks a device up by GUID.
func (r *Registry) Device(guid string) (*Device, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[guid]
	return d, ok
}

// Devices lists every managed device, ordered by GUID for stable output.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GUID() < out[j].GUID() })
	return out
}

// Peer implements projection.PeerResolver.
func (r *Registry) Peer(deviceID string) (projection.GroupPeer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[deviceID]
	if !ok || d.media == nil {
		return nil, false
	}
	return d.media, true
}
