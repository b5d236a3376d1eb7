package moderation

import (
	"context"
	"sync"
	"time"
)

type memStore struct {
	mu         sync.Mutex
	window     time.Duration
	byReported map[string][]Report
	now        func() time.Time // swappable in tests
}

func NewMemoryStore(window time.Duration) Store {
	return &memStore{
		window:     window,
		byReported: make(map[string][]Report),
		now:        time.Now,
	}
}

func (s *memStore) Record(ctx context.Context, reporter, reported, reason string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-s.window)

	// drop expired records on the way through
	kept := s.byReported[reported][:0]
	for _, r := range s.byReported[reported] {
		if r.At.After(cutoff) {
			kept = append(kept, r)
		}
	}

	for _, r := range kept {
		if r.Reporter == reporter {
			s.byReported[reported] = kept
			return len(kept), true, nil
		}
	}

	kept = append(kept, Report{Reporter: reporter, Reported: reported, Reason: reason, At: now})
	s.byReported[reported] = kept
	return len(kept), false, nil
}
