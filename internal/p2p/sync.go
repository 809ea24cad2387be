package p2p

import (
	"context"
	"fmt"
	"log"

	"github.com/crumbnet/crumb/internal/domain"
	"github.com/crumbnet/crumb/internal/infra/metrics"
)

// SynchronizePosts runs one sync pass immediately, subject to the same
// mutual exclusion as the scheduled task.
func (c *Coordinator) SynchronizePosts(ctx context.Context) error {
	if !c.isInitialized() {
		return domain.ErrNotInitialized
	}
	c.runSync(ctx)
	return nil
}

// runSync is one post-replication pass over all active peers.
//
// Overlap policy is drop, don't queue: a tick that lands while a pass is
// in flight is a logged no-op. It does not change syncStatus, emits
// nothing and is not retried; the next scheduled tick starts fresh.
// The guard matters because the pass suspends on per-peer network calls
// between snapshotting the active set and mutating the store; a second
// overlapping pass could double-merge inside that window.
func (c *Coordinator) runSync(ctx context.Context) {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	if c.syncing {
		c.mu.Unlock()
		log.Printf("[sync] pass already in progress, dropping tick")
		metrics.SyncPasses.WithLabelValues("dropped").Inc()
		return
	}
	c.syncing = true
	c.syncStatus = domain.SyncRunning
	c.mu.Unlock()

	started := c.clk.Now()
	c.bus.Publish(domain.EventSyncStarted, nil)

	merged, err := c.syncAllPeers(ctx)

	if err != nil {
		c.mu.Lock()
		if !c.initialized {
			c.mu.Unlock()
			return
		}
		c.syncing = false
		c.syncStatus = domain.SyncError
		c.mu.Unlock()

		log.Printf("[sync] pass failed: %v", err)
		metrics.SyncPasses.WithLabelValues("error").Inc()
		c.bus.Publish(domain.EventSyncError, err.Error())
		c.publishStatus()
		return
	}

	c.mu.Lock()
	if !c.initialized {
		// Torn down while the pass was in flight; nothing left to report.
		c.mu.Unlock()
		return
	}
	c.syncing = false
	c.syncStatus = domain.SyncIdle
	c.lastSyncTime = c.clk.Now()
	c.mu.Unlock()

	if merged > 0 {
		log.Printf("[sync] pass merged %d posts", merged)
	}
	metrics.SyncPasses.WithLabelValues("completed").Inc()
	metrics.SyncDuration.Observe(c.clk.Since(started).Seconds())
	c.bus.Publish(domain.EventSyncCompleted, nil)
	c.publishStatus()
}

// syncAllPeers pulls posts from every active peer. A failure against one
// peer is isolated: it is logged and counted and the pass moves on. Only
// a panic escaping the routine fails the pass as a whole.
func (c *Coordinator) syncAllPeers(ctx context.Context) (merged int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sync pass panicked: %v", r)
		}
	}()

	for _, peer := range c.registry.SnapshotActive() {
		posts, perr := c.transport.SyncWithPeer(ctx, peer.NodeID)
		if !c.isInitialized() {
			return merged, nil // torn down mid-pass; discard
		}
		if perr != nil {
			log.Printf("[sync] peer %s failed: %v", shortID(peer.NodeID), perr)
			metrics.SyncPeerFailures.Inc()
			continue
		}

		for _, post := range posts {
			if post.ID == "" || c.store.Contains(post.ID) {
				continue
			}
			if c.store.Insert(post) {
				merged++
				metrics.PostsReceived.Inc()
				c.bus.Publish(domain.EventPostReceived, post)
			}
		}
	}
	return merged, nil
}
