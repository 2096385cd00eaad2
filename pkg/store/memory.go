package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and embedded use. Safe
// for concurrent use.
type MemoryStore struct {
	mu            sync.Mutex
	dedup         map[string]DedupRecord
	relationships map[[2]string]string
	outbox        []OutboxEntry
	deadLetters   []DeadLetter
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dedup:         make(map[string]DedupRecord),
		relationships: make(map[[2]string]string),
	}
}

func (s *MemoryStore) MarkSeen(ctx context.Context, rec DedupRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.dedup[rec.ActivityID]; seen {
		return true, nil
	}
	s.dedup[rec.ActivityID] = rec
	return false, nil
}

func (s *MemoryStore) EvictBefore(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, rec := range s.dedup {
		if rec.FirstSeenAt.Before(cutoff) {
			delete(s.dedup, id)
			evicted++
		}
	}
	return evicted, nil
}

func (s *MemoryStore) GetRelationship(ctx context.Context, follower, followee string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relationships[[2]string{follower, followee}], nil
}

func (s *MemoryStore) SetRelationship(ctx context.Context, follower, followee, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relationships[[2]string{follower, followee}] = state
	return nil
}

func (s *MemoryStore) DeleteRelationship(ctx context.Context, follower, followee string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.relationships, [2]string{follower, followee})
	return nil
}

func (s *MemoryStore) AppendOutbox(ctx context.Context, entry OutboxEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, entry)
	return nil
}

func (s *MemoryStore) OutboxPage(ctx context.Context, actorURI string, page, pageSize int) ([]OutboxEntry, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Newest first.
	var matching []OutboxEntry
	for i := len(s.outbox) - 1; i >= 0; i-- {
		if s.outbox[i].ActorURI == actorURI {
			matching = append(matching, s.outbox[i])
		}
	}

	total := len(matching)
	start := (page - 1) * pageSize
	if start < 0 || start >= total {
		return nil, total, nil
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return matching[start:end], total, nil
}

func (s *MemoryStore) AddDeadLetter(ctx context.Context, dl DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadLetters = append(s.deadLetters, dl)
	return nil
}

func (s *MemoryStore) ListDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.deadLetters) {
		limit = len(s.deadLetters)
	}
	out := make([]DeadLetter, limit)
	copy(out, s.deadLetters[len(s.deadLetters)-limit:])
	return out, nil
}
