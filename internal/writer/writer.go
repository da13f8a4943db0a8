// Package writer flushes resolved records to the store in bounded batches.
package writer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/jobs"
	"github.com/regjobs/scraper/internal/metrics"
)

// maxBatchSize is the store's batch write limit.
const maxBatchSize = 25

// itemRetries is how many extra attempts a failed record gets before it
// is reported as failed.
const itemRetries = 2

// Result reports the outcome of one Write call.
type Result struct {
	Written int
	Failed  []*jobs.WriteError
}

// Writer splits record slices into store-sized batches and retries
// per-item failures individually.
type Writer struct {
	store  jobs.Store
	logger *zap.Logger
}

// New builds a Writer.
func New(store jobs.Store, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, logger: logger}
}

// Write persists the records in sequential batches of at most 25. Items
// that still fail after retries are returned in Result.Failed, never
// silently dropped.
func (w *Writer) Write(ctx context.Context, records []jobs.Record) Result {
	var result Result
	for start := 0; start < len(records); start += maxBatchSize {
		end := min(start+maxBatchSize, len(records))
		w.writeBatch(ctx, records[start:end], &result)
	}
	return result
}

func (w *Writer) writeBatch(ctx context.Context, batch []jobs.Record, result *Result) {
	results, err := w.store.BatchUpsert(ctx, batch)
	if err != nil {
		// The whole batch failed before per-item outcomes existed.
		for _, record := range batch {
			w.retryItem(ctx, record, err, result)
		}
		return
	}
	for i, r := range results {
		if r.Err == nil {
			result.Written++
			metrics.ObserveWrite(string(batch[i].Source), "ok")
			continue
		}
		w.retryItem(ctx, batch[i], r.Err, result)
	}
}

// retryItem gives one record extra solo attempts after its batch outcome
// came back failed.
func (w *Writer) retryItem(ctx context.Context, record jobs.Record, cause error, result *Result) {
	for attempt := 0; attempt < itemRetries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		results, err := w.store.BatchUpsert(ctx, []jobs.Record{record})
		if err != nil {
			cause = err
			continue
		}
		if len(results) == 1 && results[0].Err == nil {
			result.Written++
			metrics.ObserveWrite(string(record.Source), "retried")
			return
		}
		if len(results) == 1 {
			cause = results[0].Err
		}
	}
	w.logger.Error("record write failed",
		zap.String("id", record.ID),
		zap.String("source", string(record.Source)),
		zap.Error(cause),
	)
	metrics.ObserveWrite(string(record.Source), "failed")
	result.Failed = append(result.Failed, &jobs.WriteError{
		ID:  record.ID,
		Err: fmt.Errorf("after %d retries: %w", itemRetries, cause),
	})
}
