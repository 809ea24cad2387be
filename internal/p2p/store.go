package p2p

import (
	"log"
	"sort"
	"sync"

	"github.com/crumbnet/crumb/internal/domain"
)

// Store is the in-memory post table, keyed by post ID. Insertion is
// idempotent, which is what makes the at-least-once sync protocol safe
// to re-run against any peer. When an archive is attached, accepted
// posts are written through to it.
type Store struct {
	mu      sync.RWMutex
	posts   map[string]domain.Post
	archive domain.PostArchive
}

// NewStore creates an empty post store. archive may be nil.
func NewStore(archive domain.PostArchive) *Store {
	return &Store{
		posts:   make(map[string]domain.Post),
		archive: archive,
	}
}

// Insert adds a post if its ID is unseen. It reports whether the post
// was accepted; a duplicate ID is a no-op returning false.
func (s *Store) Insert(post domain.Post) bool {
	s.mu.Lock()
	if _, exists := s.posts[post.ID]; exists {
		s.mu.Unlock()
		return false
	}
	s.posts[post.ID] = post
	s.mu.Unlock()

	if s.archive != nil {
		if err := s.archive.SavePost(post); err != nil {
			// The post stays visible in memory; archival is best effort.
			log.Printf("[store] archive post %s: %v", post.ID, err)
		}
	}
	return true
}

// Contains reports whether a post ID is known.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.posts[id]
	return ok
}

// Posts returns all posts sorted newest first. Ties on timestamp order
// by ID so the result is deterministic.
func (s *Store) Posts() []domain.Post {
	s.mu.RLock()
	out := make([]domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		out = append(out, p)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Len returns the number of stored posts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// LoadArchive replays persisted posts into memory, skipping duplicates.
// Called once during initialize, before any sync pass runs.
func (s *Store) LoadArchive() (int, error) {
	if s.archive == nil {
		return 0, nil
	}
	posts, err := s.archive.LoadPosts()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	loaded := 0
	for _, p := range posts {
		if _, exists := s.posts[p.ID]; !exists {
			s.posts[p.ID] = p
			loaded++
		}
	}
	return loaded, nil
}

// Clear empties the in-memory table. The archive is left untouched so a
// re-initialize can restore the feed.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = make(map[string]domain.Post)
}
