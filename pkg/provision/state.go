package provision

import "net/netip"

// ConnState is the station-side connection state. The portal/access-point
// side is tracked orthogonally by the provisioner.
type ConnState int

const (
	Idle ConnState = iota
	ConnectingSta
	StaConnected
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case ConnectingSta:
		return "connecting_sta"
	case StaConnected:
		return "sta_connected"
	default:
		return "idle"
	}
}

// EventKind identifies a network event delivered by the backend.
type EventKind int

const (
	// EventConnected carries the assigned station address.
	EventConnected EventKind = iota

	// EventDisconnected signals loss of the station link.
	EventDisconnected

	// EventConnectFailed signals a failed connection attempt. Treated
	// like a disconnect: the portal reopens so the user can retry.
	EventConnectFailed
)

// Event is a network notification from the Backend.
type Event struct {
	Kind EventKind
	IP   netip.Addr // set for EventConnected
}

// effects are the side effects a transition asks the provisioner to run.
type effects struct {
	activatePortal   bool
	deactivatePortal bool
}

// step is the pure state-transition function: (state, event) -> (state,
// effects). All event-driven behavior flows through here, independent of
// how events are delivered.
func step(s ConnState, ev Event) (ConnState, effects) {
	switch ev.Kind {
	case EventConnected:
		return StaConnected, effects{deactivatePortal: true}
	case EventDisconnected, EventConnectFailed:
		return Idle, effects{activatePortal: true}
	default:
		return s, effects{}
	}
}
