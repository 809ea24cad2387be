package domain

import "time"

// EventName identifies a domain event fanned out to subscribers.
type EventName string

const (
	EventInitialized    EventName = "initialized"
	EventError          EventName = "error"
	EventPeerDiscovered EventName = "peer_discovered"
	EventPeerConnected  EventName = "peer_connected"
	EventPeerLost       EventName = "peer_disconnected"
	EventPostReceived   EventName = "post_received"
	EventPostCreated    EventName = "post_created"
	EventSyncStarted    EventName = "sync_started"
	EventSyncCompleted  EventName = "sync_completed"
	EventSyncError      EventName = "sync_error"
	EventStatusChanged  EventName = "network_status_changed"
	EventTorStatus      EventName = "tor_status_changed"
	EventDisconnected   EventName = "disconnected"
)

// Event is a single domain event with an optional payload.
// Payload is one of: PeerInfo, Post, NetworkStatus, TorStatus, error
// string, or nil, depending on the event name.
type Event struct {
	Name    EventName   `json:"event"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload,omitempty"`
}
