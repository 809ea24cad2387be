package api

import (
	"encoding/json"
	"net/http"

	"github.com/crumbnet/crumb/internal/domain"
)

// handleEvents streams domain events over SSE. Every event the bus
// publishes is forwarded as one message; a slow consumer loses events
// rather than backing up the bus.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events := make(chan domain.Event, 64)
	cancel := s.bus.Subscribe(func(ev domain.Event) {
		select {
		case events <- ev:
		default: // consumer too slow, drop
		}
	})
	defer cancel()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-events:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := w.Write([]byte("event: " + string(ev.Name) + "\ndata: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
