package projection

import "context"

// GroupPeer is the slice of a media player that group coordination needs:
// identity plus the master-side mutation requests. Join and unjoin on a
// non-master member are delegated to the master through this interface.
type GroupPeer interface {
	EntityID() string
	AddToGroup(ctx context.Context, groupID string, deviceIDs []string) error
	RemoveFromGroup(ctx context.Context, groupID string, deviceIDs []string) error
}

// PeerResolver maps a device GUID to its media player, when one is managed.
type PeerResolver interface {
	Peer(deviceID string) (GroupPeer, bool)
}

// orderMembers returns the group members with the master first and everyone
// else in their original relative order. The input is not modified.
func orderMembers(deviceIDs []string, masterID string) []string {
	ordered := make([]string, 0, len(deviceIDs))
	rest := make([]string, 0, len(deviceIDs))
	for _, id := range deviceIDs {
		if id == masterID {
			ordered = append(ordered, id)
		} else {
			rest = append(rest, id)
		}
	}
	return append(ordered, rest...)
}
