package state

import (
	"context"
	"sync"

	"hempies/coasync/internal/domain"
)

// MemoryStore is an in-process Store with the same semantics as the
// Redis store. Used for one-shot CLI runs without Redis and in tests.
type MemoryStore struct {
	mu        sync.Mutex
	running   bool
	queue     []domain.CatalogItem
	total     int
	processed int
	log       []domain.LogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) TryStart(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false, nil
	}
	s.running = true
	return true, nil
}

func (s *MemoryStore) SetRunning(ctx context.Context, running bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
	return nil
}

func (s *MemoryStore) Running(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running, nil
}

func (s *MemoryStore) ReplaceQueue(ctx context.Context, items []domain.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append([]domain.CatalogItem(nil), items...)
	return nil
}

func (s *MemoryStore) PopBatch(ctx context.Context, n int) ([]domain.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.queue) {
		n = len(s.queue)
	}
	if n == 0 {
		return nil, nil
	}
	batch := append([]domain.CatalogItem(nil), s.queue[:n]...)
	s.queue = s.queue[n:]
	return batch, nil
}

func (s *MemoryStore) QueueLen(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), nil
}

func (s *MemoryStore) ClearQueue(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	return nil
}

func (s *MemoryStore) SetTotal(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = n
	return nil
}

func (s *MemoryStore) Total(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, nil
}

func (s *MemoryStore) SetProcessed(ctx context.Context, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed = n
	return nil
}

func (s *MemoryStore) IncrProcessed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	return nil
}

func (s *MemoryStore) Processed(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processed, nil
}

func (s *MemoryStore) AppendLog(ctx context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, newLogEntry(message))
	if len(s.log) > MaxLogEntries {
		s.log = s.log[len(s.log)-MaxLogEntries:]
	}
	return nil
}

func (s *MemoryStore) Log(ctx context.Context) ([]domain.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LogEntry(nil), s.log...), nil
}

func (s *MemoryStore) ResetLog(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
	return nil
}
