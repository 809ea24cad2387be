package p2p

import (
	"time"

	"github.com/crumbnet/crumb/internal/domain"
	"github.com/crumbnet/crumb/internal/infra/metrics"
)

// computeStatus derives a fresh network status snapshot from registry
// cardinalities and the coordinator's task state. It is a pure function
// of its inputs.
func computeStatus(reg *Registry, sync domain.SyncStatus, lastSync time.Time, torEnabled bool, torStatus domain.TorStatus) domain.NetworkStatus {
	active := reg.SnapshotActive()

	latency := 0.0
	if len(active) > 0 {
		sum := 0.0
		for _, p := range active {
			sum += p.Quality.LatencyEstimate()
		}
		latency = sum / float64(len(active))
	}

	return domain.NetworkStatus{
		IsConnected:    len(active) > 0,
		ActivePeers:    len(active),
		TotalPeers:     reg.Len(),
		SyncStatus:     sync,
		LastSyncTime:   lastSync,
		NetworkLatency: latency,
		TorEnabled:     torEnabled,
		TorStatus:      torStatus,
	}
}

// publishStatus recomputes the snapshot, updates the gauges, and always
// emits network_status_changed even when nothing moved. Consumers that
// care de-duplicate; recomputing is cheaper than proving staleness.
func (c *Coordinator) publishStatus() {
	c.mu.Lock()
	status := computeStatus(c.registry, c.syncStatus, c.lastSyncTime, c.torEnabled, c.torStatus)
	c.lastStatus = status
	c.mu.Unlock()

	metrics.ActivePeers.Set(float64(status.ActivePeers))
	metrics.KnownPeers.Set(float64(status.TotalPeers))
	metrics.NetworkLatency.Set(status.NetworkLatency)

	c.bus.Publish(domain.EventStatusChanged, status)
}
