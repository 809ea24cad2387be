package p2p

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/crumbnet/crumb/internal/bus"
	"github.com/crumbnet/crumb/internal/domain"
)

// ─── Test Doubles ───────────────────────────────────────────────────────────

// fakeTransport is a scriptable collaborator double.
type fakeTransport struct {
	mu           sync.Mutex
	nodeID       string
	initErr      error
	startErr     error
	descriptors  []domain.PeerDescriptor
	discoverErr  error
	heartbeatErr map[string]error
	syncPosts    map[string][]domain.Post
	syncErr      map[string]error
	syncPanic    bool
	syncEntered  chan struct{} // signalled when SyncWithPeer is entered
	syncRelease  chan struct{} // when set, SyncWithPeer blocks until closed
	broadcastErr error
	broadcasts   []string
	connectOK    bool
	connectErr   error
	torErr       error
	torCb        func(domain.TorStatus)
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		nodeID:       "self",
		connectOK:    true,
		heartbeatErr: make(map[string]error),
		syncPosts:    make(map[string][]domain.Post),
		syncErr:      make(map[string]error),
	}
}

func (f *fakeTransport) Init(ctx context.Context, port, torSocksPort int) error { return f.initErr }
func (f *fakeTransport) Start(ctx context.Context) error                        { return f.startErr }
func (f *fakeTransport) NodeID() string                                         { return f.nodeID }

func (f *fakeTransport) DiscoverPeers(ctx context.Context) ([]domain.PeerDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return append([]domain.PeerDescriptor(nil), f.descriptors...), nil
}

func (f *fakeTransport) ConnectToPeer(ctx context.Context, endpoint string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectOK, f.connectErr
}

func (f *fakeTransport) SendHeartbeat(ctx context.Context, nodeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeatErr[nodeID]
}

func (f *fakeTransport) SyncWithPeer(ctx context.Context, nodeID string) ([]domain.Post, error) {
	f.mu.Lock()
	entered := f.syncEntered
	release := f.syncRelease
	panicNow := f.syncPanic
	err := f.syncErr[nodeID]
	posts := append([]domain.Post(nil), f.syncPosts[nodeID]...)
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if release != nil {
		<-release
	}
	if panicNow {
		panic("transport wedged")
	}
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func (f *fakeTransport) BroadcastPost(ctx context.Context, nodeID string, post domain.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, nodeID)
	return f.broadcastErr
}

func (f *fakeTransport) EnableTor(ctx context.Context) error  { return f.torErr }
func (f *fakeTransport) DisableTor(ctx context.Context) error { return f.torErr }

func (f *fakeTransport) OnTorStatus(fn func(domain.TorStatus)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torCb = fn
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recorder) record(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) count(name domain.EventName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func (r *recorder) last(name domain.EventName) (domain.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Name == name {
			return r.events[i], true
		}
	}
	return domain.Event{}, false
}

// newTestCoordinator builds an initialized coordinator on a mock clock
// with auto-discovery off, so nothing runs until the test says so.
func newTestCoordinator(t *testing.T, tr *fakeTransport) (*Coordinator, *clock.Mock, *recorder) {
	t.Helper()

	rec := &recorder{}
	b := bus.New()
	b.Subscribe(rec.record)

	c := New(tr, nil, b)
	mck := clock.NewMock()
	c.clk = mck

	cfg := DefaultConfig()
	cfg.AutoDiscovery = false
	if err := c.Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	t.Cleanup(c.Disconnect)
	return c, mck, rec
}

func admitPeers(c *Coordinator, ids ...string) {
	for _, id := range ids {
		c.registry.Admit(domain.PeerDescriptor{
			NodeID: id, Address: "10.0.0.1", Port: 8888, Latency: -1,
		}, c.clk.Now())
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

func TestCoordinator_InitializeFailureLeavesUninitialized(t *testing.T) {
	tr := newFakeTransport()
	tr.initErr = errors.New("port in use")

	c := New(tr, nil, bus.New())
	if err := c.Initialize(context.Background(), DefaultConfig()); err == nil {
		t.Fatal("Initialize() should fail when the transport does")
	}

	if _, err := c.CreatePost(context.Background(), "x", "y"); !errors.Is(err, domain.ErrNotInitialized) {
		t.Errorf("CreatePost after failed init: error = %v, want ErrNotInitialized", err)
	}
}

func TestCoordinator_InitializeTwice(t *testing.T) {
	c, _, _ := newTestCoordinator(t, newFakeTransport())

	err := c.Initialize(context.Background(), DefaultConfig())
	if !errors.Is(err, domain.ErrAlreadyInitialized) {
		t.Errorf("second Initialize() error = %v, want ErrAlreadyInitialized", err)
	}
}

func TestCoordinator_Disconnect(t *testing.T) {
	tr := newFakeTransport()
	c, _, rec := newTestCoordinator(t, tr)
	admitPeers(c, "n1", "n2")
	c.store.Insert(domain.Post{ID: "p1", Timestamp: c.clk.Now()})

	c.Disconnect()

	if len(c.Peers()) != 0 {
		t.Error("registry not cleared on disconnect")
	}
	if len(c.GetPosts()) != 0 {
		t.Error("post store not cleared on disconnect")
	}
	if rec.count(domain.EventDisconnected) != 1 {
		t.Errorf("disconnected events = %d, want 1", rec.count(domain.EventDisconnected))
	}

	// Idempotent.
	c.Disconnect()
	if rec.count(domain.EventDisconnected) != 1 {
		t.Error("second Disconnect() emitted again")
	}
}

func TestCoordinator_LateResultsIgnoredAfterDisconnect(t *testing.T) {
	tr := newFakeTransport()
	c, _, rec := newTestCoordinator(t, tr)
	c.Disconnect()

	// Simulate callbacks and passes landing after teardown.
	c.runHeartbeat(context.Background())
	c.runDiscovery(context.Background())
	if tr.torCb != nil {
		tr.torCb(domain.TorConnected)
	}

	if rec.count(domain.EventTorStatus) != 0 {
		t.Error("tor callback applied after disconnect")
	}
	if len(c.Peers()) != 0 {
		t.Error("state mutated after disconnect")
	}
}

// ─── Discovery ──────────────────────────────────────────────────────────────

func TestCoordinator_DiscoveryAdmitsNewPeers(t *testing.T) {
	tr := newFakeTransport()
	c, _, rec := newTestCoordinator(t, tr)

	tr.descriptors = []domain.PeerDescriptor{
		{NodeID: "n1", Address: "10.0.0.1", Port: 8888, Latency: -1},
		{NodeID: "n2", Address: "10.0.0.2", Port: 8888, Latency: -1},
		{NodeID: "self", Address: "127.0.0.1", Port: 8888, Latency: -1}, // own echo
	}

	peers, err := c.DiscoverPeers(context.Background())
	if err != nil {
		t.Fatalf("DiscoverPeers() error: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("peers = %d, want 2 (self filtered)", len(peers))
	}
	if rec.count(domain.EventPeerDiscovered) != 2 {
		t.Errorf("peer_discovered = %d, want 2", rec.count(domain.EventPeerDiscovered))
	}

	// Re-discovery of the same peers is silent.
	if _, err := c.DiscoverPeers(context.Background()); err != nil {
		t.Fatalf("second DiscoverPeers() error: %v", err)
	}
	if rec.count(domain.EventPeerDiscovered) != 2 {
		t.Error("rediscovered peers re-announced")
	}
}

func TestCoordinator_DiscoveryFailureIsNonFatal(t *testing.T) {
	tr := newFakeTransport()
	c, _, _ := newTestCoordinator(t, tr)
	tr.discoverErr = errors.New("radio silence")

	if _, err := c.DiscoverPeers(context.Background()); err != nil {
		t.Fatalf("DiscoverPeers() error: %v (discovery failure must not escape)", err)
	}

	// Next pass succeeds once the transport recovers.
	tr.mu.Lock()
	tr.discoverErr = nil
	tr.descriptors = []domain.PeerDescriptor{{NodeID: "n1", Address: "a", Port: 1, Latency: -1}}
	tr.mu.Unlock()

	peers, _ := c.DiscoverPeers(context.Background())
	if len(peers) != 1 {
		t.Errorf("peers after recovery = %d, want 1", len(peers))
	}
}

func TestCoordinator_ScheduledDiscoveryTicks(t *testing.T) {
	tr := newFakeTransport()
	rec := &recorder{}
	b := bus.New()
	b.Subscribe(rec.record)

	c := New(tr, nil, b)
	mck := clock.NewMock()
	c.clk = mck

	tr.descriptors = []domain.PeerDescriptor{{NodeID: "n1", Address: "a", Port: 1, Latency: -1}}

	cfg := DefaultConfig()
	if err := c.Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	t.Cleanup(c.Disconnect)

	// The initial pass runs immediately; a tick later the next one finds
	// a second peer.
	waitFor(t, "initial discovery", func() bool { return c.registry.Len() == 1 })

	tr.mu.Lock()
	tr.descriptors = append(tr.descriptors, domain.PeerDescriptor{NodeID: "n2", Address: "b", Port: 1, Latency: -1})
	tr.mu.Unlock()

	mck.Add(cfg.DiscoveryInterval)
	waitFor(t, "scheduled discovery", func() bool { return c.registry.Len() == 2 })
}

// ─── Heartbeat ──────────────────────────────────────────────────────────────

// One failing probe out of three demotes exactly that peer.
func TestCoordinator_HeartbeatIsolatesFailure(t *testing.T) {
	tr := newFakeTransport()
	c, _, rec := newTestCoordinator(t, tr)
	admitPeers(c, "n1", "n2", "n3")
	tr.heartbeatErr["n2"] = errors.New("timeout")

	c.runHeartbeat(context.Background())

	for _, id := range []string{"n1", "n3"} {
		p, _ := c.registry.Get(id)
		if !p.IsActive {
			t.Errorf("peer %s demoted by another peer's failure", id)
		}
	}
	p, _ := c.registry.Get("n2")
	if p.IsActive {
		t.Error("failing peer n2 still active")
	}

	if rec.count(domain.EventPeerLost) != 1 {
		t.Errorf("peer_disconnected = %d, want 1", rec.count(domain.EventPeerLost))
	}

	status := c.NetworkStatus()
	if status.ActivePeers != 2 || status.TotalPeers != 3 {
		t.Errorf("status = %d/%d active/total, want 2/3", status.ActivePeers, status.TotalPeers)
	}
}

func TestCoordinator_HeartbeatEmitsStatus(t *testing.T) {
	tr := newFakeTransport()
	c, _, rec := newTestCoordinator(t, tr)
	admitPeers(c, "n1")

	before := rec.count(domain.EventStatusChanged)
	c.runHeartbeat(context.Background())
	if rec.count(domain.EventStatusChanged) != before+1 {
		t.Error("heartbeat pass did not recompute status")
	}
}

// ─── Connect ────────────────────────────────────────────────────────────────

func TestCoordinator_ConnectToCode(t *testing.T) {
	tr := newFakeTransport()
	c, _, rec := newTestCoordinator(t, tr)

	peer, err := c.ConnectToCode(context.Background(), "n9|10.0.0.9|9009|pk9|post_sync")
	if err != nil {
		t.Fatalf("ConnectToCode() error: %v", err)
	}
	if peer.NodeID != "n9" || !peer.IsActive {
		t.Errorf("connected peer = %+v", peer)
	}
	if rec.count(domain.EventPeerConnected) != 1 {
		t.Errorf("peer_connected = %d, want 1", rec.count(domain.EventPeerConnected))
	}
	if len(c.ScanHistory()) != 1 {
		t.Errorf("scan history = %d entries, want 1", len(c.ScanHistory()))
	}
}

func TestCoordinator_ConnectToCodeRejectsBadInput(t *testing.T) {
	tr := newFakeTransport()
	c, _, _ := newTestCoordinator(t, tr)

	if _, err := c.ConnectToCode(context.Background(), "garbage"); !errors.Is(err, domain.ErrMalformedAdvertisement) {
		t.Errorf("malformed: error = %v", err)
	}

	stale := fmt.Sprintf("n1|10.0.0.1|8888|pk|post_sync|%d", time.Now().Add(-2*time.Hour).Unix())
	if _, err := c.ConnectToCode(context.Background(), stale); !errors.Is(err, domain.ErrStaleAdvertisement) {
		t.Errorf("stale: error = %v", err)
	}

	self := "self|10.0.0.1|8888|pk"
	if _, err := c.ConnectToCode(context.Background(), self); !errors.Is(err, domain.ErrSelfAdvertised) {
		t.Errorf("self: error = %v", err)
	}
}

func TestCoordinator_ConnectRefused(t *testing.T) {
	tr := newFakeTransport()
	c, _, _ := newTestCoordinator(t, tr)
	tr.connectOK = false

	ok, err := c.ConnectToPeer(context.Background(), "10.0.0.1", 8888)
	if err != nil || ok {
		t.Errorf("ConnectToPeer() = %v, %v; want false, nil", ok, err)
	}
	if c.registry.Len() != 0 {
		t.Error("refused peer admitted anyway")
	}
}

// ─── Posts ──────────────────────────────────────────────────────────────────

// The post is visible locally even when every broadcast fails.
func TestCoordinator_CreatePostSurvivesBroadcastFailure(t *testing.T) {
	tr := newFakeTransport()
	c, _, rec := newTestCoordinator(t, tr)
	admitPeers(c, "n1", "n2")
	tr.broadcastErr = errors.New("all peers down")

	post, err := c.CreatePost(context.Background(), "hello", "alice")
	if err != nil {
		t.Fatalf("CreatePost() error: %v", err)
	}

	posts := c.GetPosts()
	if len(posts) != 1 || posts[0].ID != post.ID {
		t.Fatalf("GetPosts() = %v, want the created post", posts)
	}
	if posts[0].Content != "hello" || posts[0].Pseudonym != "alice" {
		t.Errorf("post = %+v", posts[0])
	}
	if rec.count(domain.EventPostCreated) != 1 {
		t.Errorf("post_created = %d, want 1", rec.count(domain.EventPostCreated))
	}
	if len(tr.broadcasts) != 2 {
		t.Errorf("broadcast attempts = %d, want 2 (one per active peer)", len(tr.broadcasts))
	}
}

func TestCoordinator_CreatePostValidation(t *testing.T) {
	tr := newFakeTransport()
	c, _, _ := newTestCoordinator(t, tr)

	if _, err := c.CreatePost(context.Background(), "   ", "x"); !errors.Is(err, domain.ErrEmptyContent) {
		t.Errorf("blank content: error = %v, want ErrEmptyContent", err)
	}
}

func TestCoordinator_GetPostsNewestFirst(t *testing.T) {
	tr := newFakeTransport()
	c, mck, _ := newTestCoordinator(t, tr)

	for i := 0; i < 3; i++ {
		if _, err := c.CreatePost(context.Background(), fmt.Sprintf("post %d", i), "a"); err != nil {
			t.Fatalf("CreatePost() error: %v", err)
		}
		mck.Add(time.Minute)
	}

	posts := c.GetPosts()
	for i := 1; i < len(posts); i++ {
		if posts[i].Timestamp.After(posts[i-1].Timestamp) {
			t.Fatalf("posts out of order: %v before %v", posts[i-1].Timestamp, posts[i].Timestamp)
		}
	}
}

// ─── Status ─────────────────────────────────────────────────────────────────

func TestCoordinator_StatusAggregation(t *testing.T) {
	tr := newFakeTransport()
	c, _, _ := newTestCoordinator(t, tr)

	status := c.NetworkStatus()
	if status.IsConnected || status.ActivePeers != 0 || status.NetworkLatency != 0 {
		t.Errorf("empty status = %+v", status)
	}

	// One excellent (50ms) and one poor (600ms) peer: mean of 50 and 500.
	c.registry.Admit(domain.PeerDescriptor{NodeID: "a", Address: "x", Port: 1, Latency: 50 * time.Millisecond}, c.clk.Now())
	c.registry.Admit(domain.PeerDescriptor{NodeID: "b", Address: "x", Port: 1, Latency: 600 * time.Millisecond}, c.clk.Now())

	status = c.NetworkStatus()
	if !status.IsConnected || status.ActivePeers != 2 {
		t.Errorf("status = %+v", status)
	}
	if status.NetworkLatency != 275 {
		t.Errorf("NetworkLatency = %v, want 275", status.NetworkLatency)
	}

	// Inactive peers drop out of the latency estimate.
	c.registry.MarkInactive("b")
	status = c.NetworkStatus()
	if status.NetworkLatency != 50 {
		t.Errorf("NetworkLatency = %v, want 50", status.NetworkLatency)
	}
	if status.ActivePeers != 1 || status.TotalPeers != 2 {
		t.Errorf("counts = %d/%d, want 1/2", status.ActivePeers, status.TotalPeers)
	}
}

// ─── Tor ────────────────────────────────────────────────────────────────────

func TestCoordinator_TorEnableOptimistic(t *testing.T) {
	tr := newFakeTransport()
	c, _, rec := newTestCoordinator(t, tr)

	if err := c.SetTorEnabled(context.Background(), true); err != nil {
		t.Fatalf("SetTorEnabled(true) error: %v", err)
	}
	if c.TorStatus() != domain.TorConnecting {
		t.Errorf("TorStatus = %q, want connecting", c.TorStatus())
	}

	// The collaborator later reports the definitive state.
	tr.torCb(domain.TorConnected)
	if c.TorStatus() != domain.TorConnected {
		t.Errorf("TorStatus = %q, want connected", c.TorStatus())
	}
	if rec.count(domain.EventTorStatus) != 1 {
		t.Errorf("tor_status_changed = %d, want 1", rec.count(domain.EventTorStatus))
	}

	if err := c.SetTorEnabled(context.Background(), false); err != nil {
		t.Fatalf("SetTorEnabled(false) error: %v", err)
	}
	if c.TorStatus() != domain.TorDisconnected {
		t.Errorf("TorStatus = %q, want disconnected", c.TorStatus())
	}
}

func TestCoordinator_TorToggleFailurePropagates(t *testing.T) {
	tr := newFakeTransport()
	c, _, _ := newTestCoordinator(t, tr)
	tr.torErr = errors.New("no tor binary")

	if err := c.SetTorEnabled(context.Background(), true); err == nil {
		t.Fatal("SetTorEnabled() should propagate the collaborator failure")
	}
	status := c.NetworkStatus()
	if status.TorEnabled {
		t.Error("TorEnabled set despite collaborator failure")
	}
}
