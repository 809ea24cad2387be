package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Post is a single feed entry. Posts are immutable once created and are
// deduplicated across the network by ID.
type Post struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Pseudonym string    `json:"pseudonym"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id,omitempty"`
}

// NewPostID generates a unique post identifier: creation time in unix
// milliseconds plus a random suffix so two posts in the same millisecond
// never collide.
func NewPostID(now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])
}
