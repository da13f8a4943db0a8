package writer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/jobs"
	"github.com/regjobs/scraper/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

// batchingStore records batch sizes and fails selected IDs a configured
// number of times.
type batchingStore struct {
	mu         sync.Mutex
	batchSizes []int
	failures   map[string]int
	stored     map[string]jobs.Record
}

func newBatchingStore() *batchingStore {
	return &batchingStore{
		failures: make(map[string]int),
		stored:   make(map[string]jobs.Record),
	}
}

func (s *batchingStore) failTimes(id string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[id] = n
}

func (s *batchingStore) Get(_ context.Context, id string) (jobs.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.stored[id]
	if !ok {
		return jobs.Record{}, jobs.ErrNotFound
	}
	return record, nil
}

func (s *batchingStore) BatchUpsert(_ context.Context, records []jobs.Record) ([]jobs.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchSizes = append(s.batchSizes, len(records))
	results := make([]jobs.UpsertResult, len(records))
	for i, record := range records {
		results[i] = jobs.UpsertResult{ID: record.ID}
		if left := s.failures[record.ID]; left > 0 {
			s.failures[record.ID] = left - 1
			results[i].Err = errors.New("throughput exceeded")
			continue
		}
		s.stored[record.ID] = record
	}
	return results, nil
}

func makeRecords(n int) []jobs.Record {
	records := make([]jobs.Record, n)
	for i := range records {
		records[i] = jobs.Record{
			ID:     string(rune('a'+i/26)) + string(rune('a'+i%26)),
			Source: jobs.SourceLinkedIn,
		}
	}
	return records
}

func TestWriteSplitsIntoBatchesOf25(t *testing.T) {
	t.Parallel()

	store := newBatchingStore()
	w := New(store, zap.NewNop())

	result := w.Write(context.Background(), makeRecords(57))
	require.Equal(t, 57, result.Written)
	require.Empty(t, result.Failed)
	require.Equal(t, []int{25, 25, 7}, store.batchSizes)
}

func TestWriteEmptySliceIsNoop(t *testing.T) {
	t.Parallel()

	store := newBatchingStore()
	w := New(store, zap.NewNop())

	result := w.Write(context.Background(), nil)
	require.Zero(t, result.Written)
	require.Empty(t, result.Failed)
	require.Empty(t, store.batchSizes)
}

func TestWriteRetriesFailedItemAlone(t *testing.T) {
	t.Parallel()

	store := newBatchingStore()
	store.failTimes("ab", 1)
	w := New(store, zap.NewNop())

	result := w.Write(context.Background(), makeRecords(3))
	require.Equal(t, 3, result.Written)
	require.Empty(t, result.Failed)
	// One batch of three plus one solo retry for the failed item.
	require.Equal(t, []int{3, 1}, store.batchSizes)
}

func TestWriteReportsItemThatKeepsFailing(t *testing.T) {
	t.Parallel()

	store := newBatchingStore()
	store.failTimes("ab", 10)
	w := New(store, zap.NewNop())

	result := w.Write(context.Background(), makeRecords(3))
	require.Equal(t, 2, result.Written)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "ab", result.Failed[0].ID)
	require.ErrorContains(t, result.Failed[0].Err, "throughput exceeded")
}

func TestWriteIsIdempotent(t *testing.T) {
	t.Parallel()

	store := newBatchingStore()
	w := New(store, zap.NewNop())

	records := makeRecords(5)
	first := w.Write(context.Background(), records)
	second := w.Write(context.Background(), records)
	require.Equal(t, 5, first.Written)
	require.Equal(t, 5, second.Written)
	require.Len(t, store.stored, 5)
}
