// Package storage defines the sink port the pipeline writes through. The
// crawler never reads records back; dedup is the sink's responsibility using
// the identity fields each record kind carries.
package storage

import (
	"context"
	"sync"

	"github.com/david/civic-crawler/internal/models"
)

// Sink accepts validated records. Write must be safe for concurrent callers
// and at-least-once; each write is record-atomic.
type Sink interface {
	Write(ctx context.Context, kind models.RecordKind, record any) error
	Close(ctx context.Context) error
}

// Written is one entry in a MemorySink's log.
type Written struct {
	Kind   models.RecordKind
	Record any
}

// MemorySink keeps writes in order. It backs --dry-run and the tests, which
// assert on write ordering (artifact before extracted records).
type MemorySink struct {
	mu     sync.Mutex
	writes []Written
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(_ context.Context, kind models.RecordKind, record any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, Written{Kind: kind, Record: record})
	return nil
}

func (s *MemorySink) Close(context.Context) error { return nil }

// Writes returns a copy of the write log in order.
func (s *MemorySink) Writes() []Written {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Written, len(s.writes))
	copy(out, s.writes)
	return out
}

// CountKind returns how many records of a kind have been written.
func (s *MemorySink) CountKind(kind models.RecordKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.writes {
		if w.Kind == kind {
			n++
		}
	}
	return n
}
