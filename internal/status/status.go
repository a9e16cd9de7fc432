package status

import (
	"sync"
	"time"

	"github.com/plotwatch/plotwatch/internal/notifier"
	"github.com/plotwatch/plotwatch/internal/util"
)

// Snapshot is the monitoring state published after each processed batch.
type Snapshot struct {
	Source           string    `json:"source"`
	Lines            int64     `json:"lines"`
	Messages         int64     `json:"messages"`
	LastActivity     time.Time `json:"lastActivity"`
	TotalPlots       int       `json:"totalPlots"`
	LastIncreaseTime time.Time `json:"lastIncreaseTime"`
}

// Store holds the latest snapshot and a ring of recently delivered
// envelopes for readers on other goroutines.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	recent   []*notifier.Envelope
	next     int
	full     bool
}

func NewStore(size int) *Store {
	if size <= 0 {
		size = 1
	}
	return &Store{recent: make([]*notifier.Envelope, size)}
}

func (s *Store) Publish(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Record adds an envelope, evicting the oldest once the ring is full.
func (s *Store) Record(envelope *notifier.Envelope) {
	util.Assert(envelope != nil, "recorded envelope must not be nil")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recent[s.next] = envelope
	s.next = (s.next + 1) % len(s.recent)
	if s.next == 0 {
		s.full = true
	}
}

// Recent returns up to limit envelopes, newest first. A limit <= 0 returns
// everything held.
func (s *Store) Recent(limit int) []*notifier.Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.next
	if s.full {
		n = len(s.recent)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	result := make([]*notifier.Envelope, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (s.next - i + len(s.recent)) % len(s.recent)
		result = append(result, s.recent[idx])
	}
	return result
}
