// Package transport provides an in-process implementation of the
// network collaborator. It stands in for the native transport backend
// the same way the engine mock stands in for a missing inference binary:
// the daemon and the tests get a fully working network without sockets,
// crypto circuits, or Tor.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/crumbnet/crumb/internal/domain"
)

// Network is an in-process fabric connecting Local transports. All nodes
// created from one Network can discover and talk to each other.
type Network struct {
	mu    sync.RWMutex
	nodes map[string]*Local // by node ID
}

// NewNetwork creates an empty loopback fabric.
func NewNetwork() *Network {
	return &Network{nodes: make(map[string]*Local)}
}

// NewNode creates a transport endpoint on this fabric.
func (n *Network) NewNode(nodeID, publicKey string) *Local {
	l := &Local{
		net:       n,
		nodeID:    nodeID,
		publicKey: publicKey,
	}
	n.mu.Lock()
	n.nodes[nodeID] = l
	n.mu.Unlock()
	return l
}

func (n *Network) byNodeID(id string) (*Local, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	l, ok := n.nodes[id]
	return l, ok
}

func (n *Network) byEndpoint(endpoint string) (*Local, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, l := range n.nodes {
		if l.endpoint() == endpoint {
			return l, true
		}
	}
	return nil, false
}

// Local implements domain.Transport over the in-process fabric.
type Local struct {
	net       *Network
	nodeID    string
	publicKey string

	mu      sync.Mutex
	port    int
	started bool
	torOn   bool
	torCb   func(domain.TorStatus)

	// feed serves this node's posts to syncing peers. The daemon points
	// it at the coordinator's post list.
	feed func() []domain.Post

	// inbox receives posts broadcast to this node.
	inbox []domain.Post
}

var _ domain.Transport = (*Local)(nil)

// SetFeed wires the post source served to peers that sync with this node.
func (l *Local) SetFeed(fn func() []domain.Post) {
	l.mu.Lock()
	l.feed = fn
	l.mu.Unlock()
}

// Inbox returns posts broadcast to this node, oldest first.
func (l *Local) Inbox() []domain.Post {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Post(nil), l.inbox...)
}

func (l *Local) endpoint() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(l.port))
}

// ─── domain.Transport ───────────────────────────────────────────────────────

func (l *Local) Init(ctx context.Context, port, torSocksPort int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.port = port
	return nil
}

func (l *Local) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	return nil
}

func (l *Local) NodeID() string { return l.nodeID }

func (l *Local) DiscoverPeers(ctx context.Context) ([]domain.PeerDescriptor, error) {
	l.net.mu.RLock()
	defer l.net.mu.RUnlock()

	var out []domain.PeerDescriptor
	for id, peer := range l.net.nodes {
		if id == l.nodeID || !peer.isStarted() {
			continue
		}
		out = append(out, domain.PeerDescriptor{
			NodeID:       id,
			Address:      "127.0.0.1",
			Port:         peer.listenPort(),
			PublicKey:    peer.publicKey,
			Capabilities: []string{"post_sync"},
			Latency:      -1,
		})
	}
	return out, nil
}

func (l *Local) ConnectToPeer(ctx context.Context, endpoint string) (bool, error) {
	peer, ok := l.net.byEndpoint(endpoint)
	if !ok || !peer.isStarted() {
		return false, nil
	}
	return true, nil
}

func (l *Local) SendHeartbeat(ctx context.Context, nodeID string) error {
	peer, ok := l.net.byNodeID(nodeID)
	if !ok || !peer.isStarted() {
		return fmt.Errorf("peer %s unreachable", nodeID)
	}
	return nil
}

func (l *Local) SyncWithPeer(ctx context.Context, nodeID string) ([]domain.Post, error) {
	peer, ok := l.net.byNodeID(nodeID)
	if !ok || !peer.isStarted() {
		return nil, fmt.Errorf("peer %s unreachable", nodeID)
	}

	peer.mu.Lock()
	defer peer.mu.Unlock()
	if peer.feed != nil {
		return peer.feed(), nil
	}
	return append([]domain.Post(nil), peer.inbox...), nil
}

func (l *Local) BroadcastPost(ctx context.Context, nodeID string, post domain.Post) error {
	peer, ok := l.net.byNodeID(nodeID)
	if !ok || !peer.isStarted() {
		return fmt.Errorf("peer %s unreachable", nodeID)
	}

	peer.mu.Lock()
	peer.inbox = append(peer.inbox, post)
	peer.mu.Unlock()
	return nil
}

// EnableTor settles asynchronously like the real backend: the optimistic
// connecting state is the caller's, the connected report arrives through
// the callback.
func (l *Local) EnableTor(ctx context.Context) error {
	l.mu.Lock()
	l.torOn = true
	cb := l.torCb
	l.mu.Unlock()

	if cb != nil {
		go cb(domain.TorConnected)
	}
	return nil
}

func (l *Local) DisableTor(ctx context.Context) error {
	l.mu.Lock()
	l.torOn = false
	l.mu.Unlock()
	return nil
}

func (l *Local) OnTorStatus(fn func(domain.TorStatus)) {
	l.mu.Lock()
	l.torCb = fn
	l.mu.Unlock()
}

// Stop marks the node unreachable, simulating a crash or shutdown.
func (l *Local) Stop() {
	l.mu.Lock()
	l.started = false
	l.mu.Unlock()
}

func (l *Local) isStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started
}

func (l *Local) listenPort() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.port
}
