package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crumbnet/crumb/internal/bus"
	"github.com/crumbnet/crumb/internal/p2p"
	"github.com/crumbnet/crumb/internal/transport"
)

// newTestServer stands up an initialized coordinator on a loopback
// fabric with one reachable peer at 127.0.0.1:9001.
func newTestServer(t *testing.T) (*httptest.Server, *p2p.Coordinator) {
	t.Helper()

	fabric := transport.NewNetwork()
	self := fabric.NewNode("node-self", "pk-self")

	peer := fabric.NewNode("node-peer", "pk-peer")
	if err := peer.Init(context.Background(), 9001, 0); err != nil {
		t.Fatalf("peer Init() error: %v", err)
	}
	if err := peer.Start(context.Background()); err != nil {
		t.Fatalf("peer Start() error: %v", err)
	}

	eventBus := bus.New()
	coordinator := p2p.New(self, nil, eventBus)

	cfg := p2p.DefaultConfig()
	cfg.AutoDiscovery = false
	if err := coordinator.Initialize(context.Background(), cfg); err != nil {
		t.Fatalf("Initialize() error: %v", err)
	}
	t.Cleanup(coordinator.Disconnect)

	srv := httptest.NewServer(NewServer(coordinator, eventBus).Handler())
	t.Cleanup(srv.Close)
	return srv, coordinator
}

func getJSON(t *testing.T, url string, wantStatus int) map[string]interface{} {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	return decodeBody(t, resp)
}

func postJSON(t *testing.T, url string, body interface{}, wantStatus int) map[string]interface{} {
	t.Helper()
	raw, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s error: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("POST %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	return decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

// ─── Status & Health ────────────────────────────────────────────────────────

func TestAPI_Health(t *testing.T) {
	srv, _ := newTestServer(t)
	body := getJSON(t, srv.URL+"/health", http.StatusOK)
	if body["status"] != "ok" {
		t.Errorf("health body = %v", body)
	}
}

func TestAPI_Status(t *testing.T) {
	srv, _ := newTestServer(t)
	body := getJSON(t, srv.URL+"/api/status", http.StatusOK)

	if body["sync_status"] != "idle" {
		t.Errorf("sync_status = %v, want idle", body["sync_status"])
	}
	if body["is_connected"] != false {
		t.Errorf("is_connected = %v, want false before any peer", body["is_connected"])
	}
}

// ─── Feed ───────────────────────────────────────────────────────────────────

func TestAPI_CreateAndListPosts(t *testing.T) {
	srv, _ := newTestServer(t)

	created := postJSON(t, srv.URL+"/api/posts",
		createPostRequest{Content: "hello feed", Pseudonym: "alice"},
		http.StatusCreated)
	if id, ok := created["id"].(string); !ok || id == "" || created["content"] != "hello feed" {
		t.Errorf("created post = %v", created)
	}

	body := getJSON(t, srv.URL+"/api/posts", http.StatusOK)
	posts, ok := body["posts"].([]interface{})
	if !ok || len(posts) != 1 {
		t.Fatalf("posts = %v, want one post", body["posts"])
	}
}

func TestAPI_CreatePostEmptyContent(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/posts",
		createPostRequest{Content: "   "},
		http.StatusBadRequest)
}

func TestAPI_ListPostsEmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t)
	body := getJSON(t, srv.URL+"/api/posts", http.StatusOK)
	if _, ok := body["posts"].([]interface{}); !ok {
		t.Errorf("posts should be an empty array, got %v", body["posts"])
	}
}

// ─── Peers & Connect ────────────────────────────────────────────────────────

func TestAPI_PeersEmptyIsArray(t *testing.T) {
	srv, _ := newTestServer(t)
	body := getJSON(t, srv.URL+"/api/peers", http.StatusOK)
	if _, ok := body["peers"].([]interface{}); !ok {
		t.Errorf("peers should be an empty array, got %v", body["peers"])
	}
}

func TestAPI_ConnectWithCode(t *testing.T) {
	srv, c := newTestServer(t)

	peer := postJSON(t, srv.URL+"/api/connect",
		connectRequest{Code: "node-peer|127.0.0.1|9001|pk-peer|post_sync"},
		http.StatusOK)
	if peer["node_id"] != "node-peer" {
		t.Errorf("connected peer = %v", peer)
	}
	if len(c.ActivePeers()) != 1 {
		t.Errorf("active peers = %d, want 1", len(c.ActivePeers()))
	}

	history := getJSON(t, srv.URL+"/api/history", http.StatusOK)
	if entries, ok := history["history"].([]interface{}); !ok || len(entries) != 1 {
		t.Errorf("history = %v, want one scan", history["history"])
	}
}

func TestAPI_ConnectRejectsMalformedCode(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/connect",
		connectRequest{Code: "not an advertisement"},
		http.StatusBadRequest)
}

func TestAPI_ConnectRequiresTarget(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/connect", connectRequest{}, http.StatusBadRequest)
}

func TestAPI_Discover(t *testing.T) {
	srv, _ := newTestServer(t)
	body := postJSON(t, srv.URL+"/api/discover", struct{}{}, http.StatusOK)

	peers, ok := body["peers"].([]interface{})
	if !ok || len(peers) != 1 {
		t.Fatalf("discovered peers = %v, want the loopback peer", body["peers"])
	}
}

// ─── Sync & Tor ─────────────────────────────────────────────────────────────

func TestAPI_Sync(t *testing.T) {
	srv, _ := newTestServer(t)
	postJSON(t, srv.URL+"/api/sync", struct{}{}, http.StatusAccepted)
}

func TestAPI_TorToggle(t *testing.T) {
	srv, _ := newTestServer(t)

	body := getJSON(t, srv.URL+"/api/tor", http.StatusOK)
	if body["enabled"] != false {
		t.Errorf("tor enabled = %v, want false initially", body["enabled"])
	}

	raw, _ := json.Marshal(torToggleRequest{Enabled: true})
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/tor", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("PUT /api/tor error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT /api/tor status = %d, want 200", resp.StatusCode)
	}
	out := decodeBody(t, resp)
	if out["enabled"] != true {
		t.Errorf("tor enabled = %v after toggle, want true", out["enabled"])
	}
}
