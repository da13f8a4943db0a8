// Package memory provides an in-process Store for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/regjobs/scraper/internal/jobs"
)

// Store keeps records in a map. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records map[string]jobs.Record
}

// New builds an empty Store.
func New() *Store {
	return &Store{records: make(map[string]jobs.Record)}
}

// Get implements jobs.Store.
func (s *Store) Get(_ context.Context, id string) (jobs.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return jobs.Record{}, jobs.ErrNotFound
	}
	return record, nil
}

// BatchUpsert implements jobs.Store. Every record is written; the memory
// store has no partial-failure mode.
func (s *Store) BatchUpsert(_ context.Context, records []jobs.Record) ([]jobs.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	results := make([]jobs.UpsertResult, len(records))
	for i, record := range records {
		s.records[record.ID] = record
		results[i] = jobs.UpsertResult{ID: record.ID}
	}
	return results, nil
}

// Len reports how many records are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
