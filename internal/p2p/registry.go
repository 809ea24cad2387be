// Package p2p implements the client-side network coordination core:
// the peer registry, the post store, the periodic discovery/heartbeat/sync
// tasks, status aggregation, and the coordinator facade that owns them.
package p2p

import (
	"sync"
	"time"

	"github.com/crumbnet/crumb/internal/domain"
)

// Registry is the authoritative in-memory table of known peers.
// All operations are synchronous over the table; no call blocks on I/O.
type Registry struct {
	mu       sync.RWMutex
	peers    map[string]*domain.PeerInfo
	maxPeers int
}

// NewRegistry creates an empty registry. maxPeers <= 0 means unbounded.
func NewRegistry(maxPeers int) *Registry {
	return &Registry{
		peers:    make(map[string]*domain.PeerInfo),
		maxPeers: maxPeers,
	}
}

// Admit inserts a newly seen peer. It reports whether the peer was truly
// new: admitting a known node ID is a no-op so overlapping discovery
// passes stay idempotent. New peers start active with quality derived
// from the supplied latency estimate.
func (r *Registry) Admit(d domain.PeerDescriptor, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[d.NodeID]; exists {
		return false
	}
	if r.maxPeers > 0 && len(r.peers) >= r.maxPeers {
		return false
	}

	r.peers[d.NodeID] = &domain.PeerInfo{
		NodeID:       d.NodeID,
		Address:      d.Address,
		Port:         d.Port,
		PublicKey:    d.PublicKey,
		Capabilities: append([]string(nil), d.Capabilities...),
		Quality:      domain.QualityFromLatency(d.Latency),
		LastSeen:     now,
		IsActive:     true,
	}
	return true
}

// MarkInactive flips a peer to inactive without removing it. Returns
// false if the peer is unknown.
func (r *Registry) MarkInactive(nodeID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[nodeID]
	if !ok {
		return false
	}
	p.IsActive = false
	return true
}

// MarkActive flips a peer back to active and refreshes its last-seen time.
func (r *Registry) MarkActive(nodeID string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[nodeID]
	if !ok {
		return false
	}
	p.IsActive = true
	p.LastSeen = now
	return true
}

// Touch refreshes a peer's last-seen time without changing liveness.
func (r *Registry) Touch(nodeID string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.peers[nodeID]; ok {
		p.LastSeen = now
	}
}

// SnapshotActive returns copies of all active peers. Iterating a snapshot
// instead of the live table keeps the periodic tasks safe against
// mutation mid-pass.
func (r *Registry) SnapshotActive() []domain.PeerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	return out
}

// SnapshotAll returns copies of every known peer, active or not.
func (r *Registry) SnapshotAll() []domain.PeerInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, *p)
	}
	return out
}

// Get returns a copy of one peer.
func (r *Registry) Get(nodeID string) (domain.PeerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[nodeID]
	if !ok {
		return domain.PeerInfo{}, false
	}
	return *p, true
}

// Len returns the number of known peers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// ActiveLen returns the number of active peers.
func (r *Registry) ActiveLen() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.peers {
		if p.IsActive {
			n++
		}
	}
	return n
}

// Clear empties the table. Used on full disconnect.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers = make(map[string]*domain.PeerInfo)
}
