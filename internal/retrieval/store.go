package retrieval

import "sync"

// Store holds one VideoContext per video id.
type Store interface {
	Get(videoID string) (*VideoContext, bool)
	Put(videoID string, vc *VideoContext)
	Delete(videoID string)
	Len() int
}

// MemoryStore keeps contexts in process memory with no eviction. Entries are
// swapped whole under the lock, so readers see either the old or the new
// context, never a mix.
type MemoryStore struct {
	mu       sync.RWMutex
	contexts map[string]*VideoContext
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contexts: make(map[string]*VideoContext),
	}
}

// Get returns the context for a video id, if one is ready.
func (s *MemoryStore) Get(videoID string) (*VideoContext, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vc, ok := s.contexts[videoID]
	return vc, ok
}

// Put replaces any existing context for the video id.
func (s *MemoryStore) Put(videoID string, vc *VideoContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[videoID] = vc
}

// Delete removes a video id.
func (s *MemoryStore) Delete(videoID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, videoID)
}

// Len returns the number of stored contexts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}
