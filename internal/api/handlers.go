package api

import (
	"encoding/json"
	"net/http"

	"github.com/crumbnet/crumb/internal/domain"
)

// ─── Health & Status ────────────────────────────────────────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	status := http.StatusOK
	if !s.checker.IsHealthy() {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]interface{}{
		"healthy": s.checker.IsHealthy(),
		"checks":  s.checker.Statuses(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.coordinator.NetworkStatus())
}

// ─── Feed ───────────────────────────────────────────────────────────────────

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	posts := s.coordinator.GetPosts()
	if posts == nil {
		posts = []domain.Post{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"posts": posts})
}

type createPostRequest struct {
	Content   string `json:"content"`
	Pseudonym string `json:"pseudonym"`
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	post, err := s.coordinator.CreatePost(r.Context(), req.Content, req.Pseudonym)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

// ─── Peers ──────────────────────────────────────────────────────────────────

func (s *Server) handleListPeers(w http.ResponseWriter, r *http.Request) {
	peers := s.coordinator.Peers()
	if peers == nil {
		peers = []domain.PeerInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"peers": peers})
}

func (s *Server) handleActivePeers(w http.ResponseWriter, r *http.Request) {
	peers := s.coordinator.ActivePeers()
	if peers == nil {
		peers = []domain.PeerInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"peers": peers})
}

func (s *Server) handleScanHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"history": s.coordinator.ScanHistory(),
	})
}

// ─── Network Controls ───────────────────────────────────────────────────────

type connectRequest struct {
	// Code is a scanned or pasted advertisement in any supported form.
	// When absent, Address and Port dial a bare endpoint instead.
	Code    string `json:"code"`
	Address string `json:"address"`
	Port    int    `json:"port"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Code != "" {
		peer, err := s.coordinator.ConnectToCode(r.Context(), req.Code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, peer)
		return
	}

	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "code or address required")
		return
	}
	ok, err := s.coordinator.ConnectToPeer(r.Context(), req.Address, req.Port)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadGateway, "peer refused connection")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": true})
}

func (s *Server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	peers, err := s.coordinator.DiscoverPeers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if peers == nil {
		peers = []domain.PeerInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"peers": peers})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.SynchronizePosts(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sync requested"})
}

// ─── Tor ────────────────────────────────────────────────────────────────────

func (s *Server) handleTorStatus(w http.ResponseWriter, r *http.Request) {
	status := s.coordinator.NetworkStatus()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": status.TorEnabled,
		"status":  status.TorStatus,
	})
}

type torToggleRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleTorToggle(w http.ResponseWriter, r *http.Request) {
	var req torToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.coordinator.SetTorEnabled(r.Context(), req.Enabled); err != nil {
		writeDomainError(w, err)
		return
	}
	s.handleTorStatus(w, r)
}
