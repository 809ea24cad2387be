package p2p

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/crumbnet/crumb/internal/advert"
	"github.com/crumbnet/crumb/internal/bus"
	"github.com/crumbnet/crumb/internal/domain"
	"github.com/crumbnet/crumb/internal/infra/metrics"
)

// Coordinator owns the registry, the post store, and the periodic tasks,
// and is the single facade the presentation layer talks to. It holds no
// hidden globals: the transport collaborator, the event bus, and the
// post archive are all injected.
type Coordinator struct {
	transport domain.Transport
	bus       *bus.Bus
	store     *Store
	history   *advert.History

	// clk drives every periodic task. Tests swap in a mock clock and
	// step time instead of sleeping.
	clk clock.Clock

	mu           sync.Mutex
	cfg          Config
	initialized  bool
	nodeID       string
	registry     *Registry
	syncing      bool
	syncStatus   domain.SyncStatus
	lastSyncTime time.Time
	torEnabled   bool
	torStatus    domain.TorStatus
	lastStatus   domain.NetworkStatus

	cancel  context.CancelFunc
	tickers []*clock.Ticker
}

// New creates a coordinator wired to the given collaborator and event
// bus. archive may be nil for a purely in-memory feed. The coordinator
// does nothing until Initialize.
func New(transport domain.Transport, archive domain.PostArchive, eventBus *bus.Bus) *Coordinator {
	return &Coordinator{
		transport:  transport,
		bus:        eventBus,
		store:      NewStore(archive),
		history:    advert.NewHistory(),
		clk:        clock.New(),
		registry:   NewRegistry(0),
		syncStatus: domain.SyncIdle,
		torStatus:  domain.TorDisconnected,
	}
}

// Initialize brings the network up: transport init and start, archive
// replay, Tor bring-up if configured, and the three periodic tasks.
// Any transport failure is fatal and leaves the coordinator
// uninitialized; no partial state survives.
func (c *Coordinator) Initialize(ctx context.Context, cfg Config) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return domain.ErrAlreadyInitialized
	}
	cfg = cfg.withDefaults()
	c.mu.Unlock()

	if err := c.transport.Init(ctx, cfg.ListenPort, cfg.TorSocksPort); err != nil {
		return fmt.Errorf("init transport: %w", err)
	}
	if err := c.transport.Start(ctx); err != nil {
		return fmt.Errorf("start transport: %w", err)
	}

	if n, err := c.store.LoadArchive(); err != nil {
		log.Printf("[coordinator] archive replay failed: %v", err)
	} else if n > 0 {
		log.Printf("[coordinator] restored %d posts from archive", n)
	}

	taskCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.cfg = cfg
	c.nodeID = c.transport.NodeID()
	c.registry = NewRegistry(cfg.MaxPeers)
	c.syncing = false
	c.syncStatus = domain.SyncIdle
	c.torEnabled = false
	c.torStatus = domain.TorDisconnected
	c.cancel = cancel
	c.initialized = true
	c.mu.Unlock()

	c.transport.OnTorStatus(c.handleTorStatus)

	if cfg.EnableTor {
		// Best effort at startup; a failure here downgrades to clearnet
		// rather than aborting initialization.
		if err := c.SetTorEnabled(ctx, true); err != nil {
			log.Printf("[coordinator] tor bring-up failed: %v", err)
		}
	}

	c.startTasks(taskCtx, cfg)

	log.Printf("[coordinator] initialized as %s (port %d, auto-discovery %v)",
		shortID(c.nodeID), cfg.ListenPort, cfg.AutoDiscovery)
	c.bus.Publish(domain.EventInitialized, nil)
	c.publishStatus()

	if cfg.AutoDiscovery {
		// Kick off one pass right away instead of waiting a full period.
		go c.runDiscovery(taskCtx)
	}
	return nil
}

// startTasks launches the periodic loops. Ticker handles are retained so
// Disconnect can stop the schedule.
func (c *Coordinator) startTasks(ctx context.Context, cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.tickers = nil
	if cfg.AutoDiscovery {
		c.tickers = append(c.tickers, c.loop(ctx, cfg.DiscoveryInterval, c.runDiscovery))
	}
	c.tickers = append(c.tickers, c.loop(ctx, cfg.HeartbeatInterval, c.runHeartbeat))
	c.tickers = append(c.tickers, c.loop(ctx, cfg.SyncInterval, func(ctx context.Context) {
		c.runSync(ctx)
	}))
}

// loop runs fn on every tick until the context is cancelled.
func (c *Coordinator) loop(ctx context.Context, interval time.Duration, fn func(context.Context)) *clock.Ticker {
	ticker := c.clk.Ticker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	return ticker
}

// isInitialized is re-checked by every task before it applies results,
// so responses landing after Disconnect are discarded.
func (c *Coordinator) isInitialized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialized
}

// NodeID returns this node's identity, empty before Initialize.
func (c *Coordinator) NodeID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodeID
}

// ─── Discovery ──────────────────────────────────────────────────────────────

// DiscoverPeers runs one discovery pass immediately and returns the
// registry contents afterwards.
func (c *Coordinator) DiscoverPeers(ctx context.Context) ([]domain.PeerInfo, error) {
	if !c.isInitialized() {
		return nil, domain.ErrNotInitialized
	}
	c.runDiscovery(ctx)
	return c.registry.SnapshotAll(), nil
}

// runDiscovery asks the transport for reachable peers and admits the new
// ones. A failed discovery call is logged and the schedule continues.
func (c *Coordinator) runDiscovery(ctx context.Context) {
	if !c.isInitialized() {
		return
	}

	descriptors, err := c.transport.DiscoverPeers(ctx)
	if err != nil {
		log.Printf("[discovery] pass failed: %v", err)
		return
	}
	if !c.isInitialized() {
		return // torn down while the call was in flight
	}

	admitted := 0
	now := c.clk.Now()
	for _, d := range descriptors {
		if d.NodeID == "" || d.NodeID == c.NodeID() {
			continue
		}
		if c.registry.Admit(d, now) {
			admitted++
			metrics.PeersDiscovered.WithLabelValues("discovery").Inc()
			peer, _ := c.registry.Get(d.NodeID)
			c.bus.Publish(domain.EventPeerDiscovered, peer)
		} else {
			c.registry.Touch(d.NodeID, now)
		}
	}

	if admitted > 0 {
		log.Printf("[discovery] admitted %d new peers (%d known)", admitted, c.registry.Len())
		c.publishStatus()
	}
}

// ─── Heartbeat ──────────────────────────────────────────────────────────────

// runHeartbeat probes every active peer once. The snapshot is taken at
// pass start; probe failures are isolated per peer and demote only the
// peer that failed.
func (c *Coordinator) runHeartbeat(ctx context.Context) {
	if !c.isInitialized() {
		return
	}

	now := c.clk.Now()
	for _, peer := range c.registry.SnapshotActive() {
		err := c.transport.SendHeartbeat(ctx, peer.NodeID)
		if !c.isInitialized() {
			return
		}
		if err != nil {
			log.Printf("[heartbeat] peer %s unresponsive: %v", shortID(peer.NodeID), err)
			metrics.HeartbeatFailures.Inc()
			if c.registry.MarkInactive(peer.NodeID) {
				lost, _ := c.registry.Get(peer.NodeID)
				c.bus.Publish(domain.EventPeerLost, lost)
			}
			continue
		}
		c.registry.Touch(peer.NodeID, now)
	}

	c.publishStatus()
}

// ─── Connect ────────────────────────────────────────────────────────────────

// ConnectToPeer dials an endpoint known only by address. The registry
// entry is keyed by the address, matching how the URI advertisement form
// treats a bare host as identity.
func (c *Coordinator) ConnectToPeer(ctx context.Context, address string, port int) (bool, error) {
	return c.connect(ctx, domain.PeerDescriptor{
		NodeID:  address,
		Address: address,
		Port:    port,
		Latency: -1,
	})
}

// ConnectToCode parses a scanned or pasted advertisement, records it in
// the scan history, and attempts the connection. Parse failures carry
// either ErrMalformedAdvertisement or ErrStaleAdvertisement so the UI
// can phrase its guidance.
func (c *Coordinator) ConnectToCode(ctx context.Context, raw string) (domain.PeerInfo, error) {
	if !c.isInitialized() {
		return domain.PeerInfo{}, domain.ErrNotInitialized
	}

	ad, err := advert.Parse(raw)
	if err != nil {
		return domain.PeerInfo{}, err
	}
	if ad.NodeID == c.NodeID() {
		return domain.PeerInfo{}, domain.ErrSelfAdvertised
	}
	c.history.Record(ad)

	ok, err := c.connect(ctx, ad.Descriptor())
	if err != nil {
		return domain.PeerInfo{}, err
	}
	if !ok {
		return domain.PeerInfo{}, domain.ErrConnectFailed
	}
	peer, _ := c.registry.Get(ad.NodeID)
	return peer, nil
}

func (c *Coordinator) connect(ctx context.Context, d domain.PeerDescriptor) (bool, error) {
	if !c.isInitialized() {
		return false, domain.ErrNotInitialized
	}

	endpoint := net.JoinHostPort(d.Address, strconv.Itoa(d.Port))
	accepted, err := c.transport.ConnectToPeer(ctx, endpoint)
	if err != nil {
		return false, fmt.Errorf("connect to %s: %w", endpoint, err)
	}
	if !accepted || !c.isInitialized() {
		return false, nil
	}

	now := c.clk.Now()
	if c.registry.Admit(d, now) {
		metrics.PeersDiscovered.WithLabelValues("connect").Inc()
	} else {
		c.registry.MarkActive(d.NodeID, now)
	}
	peer, _ := c.registry.Get(d.NodeID)
	c.bus.Publish(domain.EventPeerConnected, peer)
	c.publishStatus()
	return true, nil
}

// ─── Posts ──────────────────────────────────────────────────────────────────

// CreatePost writes a post locally first, then broadcasts it best effort
// to every active peer. Broadcast failures never roll back the local
// insert or fail the call; the post reaches those peers on their next
// sync pass instead.
func (c *Coordinator) CreatePost(ctx context.Context, content, pseudonym string) (domain.Post, error) {
	if !c.isInitialized() {
		return domain.Post{}, domain.ErrNotInitialized
	}
	if strings.TrimSpace(content) == "" {
		return domain.Post{}, domain.ErrEmptyContent
	}
	if pseudonym == "" {
		pseudonym = "anon"
	}

	now := c.clk.Now()
	post := domain.Post{
		ID:        domain.NewPostID(now),
		Content:   content,
		Pseudonym: pseudonym,
		Timestamp: now,
		NodeID:    c.NodeID(),
	}

	c.store.Insert(post)
	metrics.PostsCreated.Inc()
	c.bus.Publish(domain.EventPostCreated, post)

	for _, peer := range c.registry.SnapshotActive() {
		if err := c.transport.BroadcastPost(ctx, peer.NodeID, post); err != nil {
			log.Printf("[coordinator] broadcast to %s failed: %v", shortID(peer.NodeID), err)
			metrics.BroadcastFailures.Inc()
		}
	}
	return post, nil
}

// GetPosts returns the feed, newest first.
func (c *Coordinator) GetPosts() []domain.Post {
	return c.store.Posts()
}

// ─── Status & Peers ─────────────────────────────────────────────────────────

// NetworkStatus returns a freshly computed snapshot without emitting an
// event.
func (c *Coordinator) NetworkStatus() domain.NetworkStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return computeStatus(c.registry, c.syncStatus, c.lastSyncTime, c.torEnabled, c.torStatus)
}

// Peers returns every known peer.
func (c *Coordinator) Peers() []domain.PeerInfo {
	return c.registry.SnapshotAll()
}

// ActivePeers returns only the peers currently considered alive.
func (c *Coordinator) ActivePeers() []domain.PeerInfo {
	return c.registry.SnapshotActive()
}

// ScanHistory returns the recent advertisement scans, newest first.
func (c *Coordinator) ScanHistory() []*advert.Advertisement {
	return c.history.Recent()
}

// ─── Tor ────────────────────────────────────────────────────────────────────

// SetTorEnabled toggles Tor routing through the collaborator. Enabling
// is optimistic: status goes to connecting and the definitive state
// arrives later through the transport's Tor callback. Collaborator
// failures propagate to the caller unchanged.
func (c *Coordinator) SetTorEnabled(ctx context.Context, enabled bool) error {
	if !c.isInitialized() {
		return domain.ErrNotInitialized
	}

	if enabled {
		if err := c.transport.EnableTor(ctx); err != nil {
			return fmt.Errorf("enable tor: %w", err)
		}
		c.mu.Lock()
		c.torEnabled = true
		c.torStatus = domain.TorConnecting
		c.mu.Unlock()
		metrics.TorEnabled.Set(1)
	} else {
		if err := c.transport.DisableTor(ctx); err != nil {
			return fmt.Errorf("disable tor: %w", err)
		}
		c.mu.Lock()
		c.torEnabled = false
		c.torStatus = domain.TorDisconnected
		c.mu.Unlock()
		metrics.TorEnabled.Set(0)
	}

	c.publishStatus()
	return nil
}

// TorStatus returns the current Tor circuit state.
func (c *Coordinator) TorStatus() domain.TorStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torStatus
}

// handleTorStatus re-emits the collaborator's definitive Tor state.
func (c *Coordinator) handleTorStatus(st domain.TorStatus) {
	if !c.isInitialized() {
		return
	}
	c.mu.Lock()
	c.torStatus = st
	c.mu.Unlock()

	log.Printf("[coordinator] tor status: %s", st)
	c.bus.Publish(domain.EventTorStatus, st)
	c.publishStatus()
}

// ─── Teardown ───────────────────────────────────────────────────────────────

// Disconnect stops the periodic schedule and clears all peer and post
// bookkeeping. In-flight collaborator calls are not awaited; their late
// results are discarded by the initialized check.
func (c *Coordinator) Disconnect() {
	c.mu.Lock()
	if !c.initialized {
		c.mu.Unlock()
		return
	}
	c.initialized = false
	cancel := c.cancel
	tickers := c.tickers
	c.tickers = nil
	c.syncing = false
	c.syncStatus = domain.SyncIdle
	c.torEnabled = false
	c.torStatus = domain.TorDisconnected
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, t := range tickers {
		t.Stop()
	}

	c.registry.Clear()
	c.store.Clear()

	log.Printf("[coordinator] disconnected")
	c.bus.Publish(domain.EventDisconnected, nil)
}

// shortID trims a node ID for logging.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
