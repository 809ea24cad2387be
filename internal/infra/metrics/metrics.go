// Package metrics provides Prometheus metrics for crumb: peers, posts,
// sync passes, heartbeats, and Tor state. Exposed on /metrics when
// telemetry is enabled in the config.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Peers ──────────────────────────────────────────────────────────────────

// ActivePeers tracks the number of currently active peers.
var ActivePeers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crumb",
	Name:      "peers_active",
	Help:      "Number of currently active peers.",
})

// KnownPeers tracks the total registry size, active or not.
var KnownPeers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crumb",
	Name:      "peers_known",
	Help:      "Total number of known peers.",
})

// PeersDiscovered counts peers admitted via discovery or advertisement.
var PeersDiscovered = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crumb",
	Name:      "peers_discovered_total",
	Help:      "Total peers admitted into the registry.",
}, []string{"source"})

// HeartbeatFailures counts liveness probes that demoted a peer.
var HeartbeatFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crumb",
	Name:      "heartbeat_failures_total",
	Help:      "Total heartbeat probes that marked a peer inactive.",
})

// NetworkLatency tracks the estimated mean latency over active peers.
var NetworkLatency = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crumb",
	Name:      "network_latency_ms",
	Help:      "Estimated mean network latency in milliseconds.",
})

// ─── Posts ──────────────────────────────────────────────────────────────────

// PostsCreated counts posts authored locally.
var PostsCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crumb",
	Name:      "posts_created_total",
	Help:      "Total posts created on this node.",
})

// PostsReceived counts posts merged in from peers during sync.
var PostsReceived = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crumb",
	Name:      "posts_received_total",
	Help:      "Total posts merged from peers.",
})

// BroadcastFailures counts per-peer broadcast deliveries that failed.
var BroadcastFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crumb",
	Name:      "broadcast_failures_total",
	Help:      "Total failed per-peer post broadcasts.",
})

// ─── Sync ───────────────────────────────────────────────────────────────────

// SyncPasses counts sync passes by outcome (completed, error, dropped).
var SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "crumb",
	Name:      "sync_passes_total",
	Help:      "Total sync passes by outcome.",
}, []string{"outcome"})

// SyncPeerFailures counts per-peer sync failures inside a pass.
var SyncPeerFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "crumb",
	Name:      "sync_peer_failures_total",
	Help:      "Total per-peer sync failures.",
})

// SyncDuration tracks how long a full sync pass takes.
var SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "crumb",
	Name:      "sync_duration_seconds",
	Help:      "Duration of a full sync pass in seconds.",
	Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
})

// ─── Tor ────────────────────────────────────────────────────────────────────

// TorEnabled reports whether Tor routing is currently requested (0/1).
var TorEnabled = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "crumb",
	Name:      "tor_enabled",
	Help:      "Whether Tor routing is enabled (1) or not (0).",
})
