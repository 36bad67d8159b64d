package events

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and single-node setups
// that do not need crash durability.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[uuid.UUID]*Record{}}
}

func (s *MemoryStore) Append(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) ClaimPending(_ context.Context, limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*Record
	for _, rec := range s.records {
		if rec.Status == StatusPending {
			pending = append(pending, rec)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}

	now := time.Now()
	claimed := make([]*Record, 0, len(pending))
	for _, rec := range pending {
		rec.Status = StatusProcessing
		claimedAt := now
		rec.ClaimedAt = &claimedAt
		cp := *rec
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (s *MemoryStore) ReclaimStale(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var reclaimed int64
	for _, rec := range s.records {
		if rec.Status == StatusProcessing && rec.ClaimedAt != nil && rec.ClaimedAt.Before(cutoff) {
			rec.Status = StatusPending
			rec.ClaimedAt = nil
			reclaimed++
		}
	}
	return reclaimed, nil
}

func (s *MemoryStore) MarkProcessed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Status != StatusProcessing {
		return nil
	}
	now := time.Now()
	rec.Status = StatusProcessed
	rec.ProcessedAt = &now
	rec.LastError = ""
	return nil
}

func (s *MemoryStore) MarkFailed(_ context.Context, id uuid.UUID, lastError string, retryAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Status != StatusProcessing {
		return nil
	}
	rec.Status = StatusFailed
	rec.LastError = lastError
	rec.NextAttemptAt = &retryAt
	return nil
}

func (s *MemoryStore) RequeueFailed(_ context.Context, limit int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var failed []*Record
	for _, rec := range s.records {
		if rec.Status != StatusFailed || rec.RetryCount >= rec.MaxRetries {
			continue
		}
		if rec.NextAttemptAt != nil && rec.NextAttemptAt.After(now) {
			continue
		}
		failed = append(failed, rec)
	}
	sort.Slice(failed, func(i, j int) bool {
		return failed[i].CreatedAt.Before(failed[j].CreatedAt)
	})
	if len(failed) > limit {
		failed = failed[:limit]
	}

	for _, rec := range failed {
		rec.Status = StatusPending
		rec.LastError = ""
		rec.NextAttemptAt = nil
		rec.RetryCount++
	}
	return int64(len(failed)), nil
}

func (s *MemoryStore) Requeue(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok {
		return ErrNotFound
	}
	if rec.Status != StatusFailed {
		return ErrNotRetryable
	}
	rec.Status = StatusPending
	rec.LastError = ""
	rec.NextAttemptAt = nil
	rec.RetryCount++
	return nil
}

func (s *MemoryStore) CountsByStatus(_ context.Context) (map[Status]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := map[Status]int64{}
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) DeleteProcessedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, rec := range s.records {
		if rec.Status == StatusProcessed && rec.ProcessedAt != nil && rec.ProcessedAt.Before(cutoff) {
			delete(s.records, id)
			deleted++
		}
	}
	return deleted, nil
}
