package domain

import "time"

// SyncStatus tracks the post replication state machine.
// Transitions are idle → syncing → {idle, error} → idle only.
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncRunning SyncStatus = "syncing"
	SyncError   SyncStatus = "error"
)

// TorStatus tracks the Tor circuit state as reported by the transport.
type TorStatus string

const (
	TorDisconnected TorStatus = "disconnected"
	TorConnecting   TorStatus = "connecting"
	TorConnected    TorStatus = "connected"
	TorError        TorStatus = "error"
)

// NetworkStatus is the aggregate network health snapshot. It is derived
// from registry and task state, never mutated by callers.
type NetworkStatus struct {
	IsConnected    bool       `json:"is_connected"`
	ActivePeers    int        `json:"active_peers"`
	TotalPeers     int        `json:"total_peers"`
	SyncStatus     SyncStatus `json:"sync_status"`
	LastSyncTime   time.Time  `json:"last_sync_time,omitzero"`
	NetworkLatency float64    `json:"network_latency_ms"`
	TorEnabled     bool       `json:"tor_enabled"`
	TorStatus      TorStatus  `json:"tor_status"`
}
