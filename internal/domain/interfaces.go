package domain

import (
	"context"
	"time"
)

// PeerDescriptor is the transient description of a peer handed to the
// registry, produced by discovery or by parsing an advertisement.
type PeerDescriptor struct {
	NodeID       string
	Address      string
	Port         int
	PublicKey    string
	Capabilities []string
	// Latency is the transport's round-trip estimate for this peer.
	// Negative means not measured.
	Latency time.Duration
}

// Transport is the native networking collaborator. It owns the wire
// protocol, cryptographic identity exchange, and Tor circuit management;
// the coordination core only does bookkeeping on top of it. Every call
// may fail independently, and per-call timeouts are the transport's job.
type Transport interface {
	// Init prepares the transport on the given listen port. Must be
	// called once before Start.
	Init(ctx context.Context, port, torSocksPort int) error

	// Start brings the transport online.
	Start(ctx context.Context) error

	// NodeID returns this node's own identifier.
	NodeID() string

	// DiscoverPeers returns the peers currently reachable out of band
	// (local network announcements, cached circuits, ...).
	DiscoverPeers(ctx context.Context) ([]PeerDescriptor, error)

	// ConnectToPeer dials the given host:port endpoint. The boolean
	// reports whether the peer accepted the connection.
	ConnectToPeer(ctx context.Context, endpoint string) (bool, error)

	// SendHeartbeat probes a connected peer for liveness.
	SendHeartbeat(ctx context.Context, nodeID string) error

	// SyncWithPeer pulls the peer's current post set.
	SyncWithPeer(ctx context.Context, nodeID string) ([]Post, error)

	// BroadcastPost pushes one post to one peer.
	BroadcastPost(ctx context.Context, nodeID string, post Post) error

	// EnableTor and DisableTor toggle circuit routing. The definitive
	// connected/error state arrives later via OnTorStatus.
	EnableTor(ctx context.Context) error
	DisableTor(ctx context.Context) error

	// OnTorStatus registers the callback invoked when the Tor circuit
	// state settles.
	OnTorStatus(fn func(TorStatus))
}

// PostArchive persists posts across restarts. The in-memory store writes
// through to it and reloads from it on initialize.
type PostArchive interface {
	SavePost(post Post) error
	LoadPosts() ([]Post, error)
}
