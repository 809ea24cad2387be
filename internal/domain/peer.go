// Package domain holds the core crumb types.
// A Peer is a remote feed participant identified by its node ID.
package domain

import (
	"net"
	"strconv"
	"time"
)

// ConnectionQuality is a coarse four-level latency classification.
type ConnectionQuality string

const (
	QualityExcellent ConnectionQuality = "excellent"
	QualityGood      ConnectionQuality = "good"
	QualityFair      ConnectionQuality = "fair"
	QualityPoor      ConnectionQuality = "poor"
)

// QualityFromLatency maps a measured round-trip latency onto a quality
// level. A negative latency means "not measured" and defaults to good.
func QualityFromLatency(latency time.Duration) ConnectionQuality {
	switch {
	case latency < 0:
		return QualityGood
	case latency < 100*time.Millisecond:
		return QualityExcellent
	case latency < 200*time.Millisecond:
		return QualityGood
	case latency < 500*time.Millisecond:
		return QualityFair
	default:
		return QualityPoor
	}
}

// LatencyEstimate returns the representative latency in milliseconds for
// a quality bucket, used when aggregating network status.
func (q ConnectionQuality) LatencyEstimate() float64 {
	switch q {
	case QualityExcellent:
		return 50
	case QualityGood:
		return 100
	case QualityFair:
		return 200
	default:
		return 500
	}
}

// PeerInfo describes a known peer and its liveness state.
// Entries are owned by the peer registry; everything else reads copies.
type PeerInfo struct {
	NodeID       string            `json:"node_id"`
	Address      string            `json:"address"`
	Port         int               `json:"port"`
	PublicKey    string            `json:"public_key"`
	Capabilities []string          `json:"capabilities"`
	Quality      ConnectionQuality `json:"connection_quality"`
	LastSeen     time.Time         `json:"last_seen"`
	IsActive     bool              `json:"is_active"`
}

// Endpoint returns the dialable host:port form of the peer address.
func (p *PeerInfo) Endpoint() string {
	return net.JoinHostPort(p.Address, strconv.Itoa(p.Port))
}
