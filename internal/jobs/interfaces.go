package jobs

import (
	"context"
	"time"
)

// Fetcher issues one HTTP request and returns the body plus metadata.
// Implementations decide their own retry behavior; callers treat any
// returned *FetchError as final.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Collector receives the per-posting outcomes a Source produces during
// one run.
type Collector interface {
	// Emit hands over one successfully parsed candidate.
	Emit(candidate Candidate)
	// Skip records a posting that was fetched but could not be parsed.
	Skip(url string, err error)
}

// Source collects candidates from one external site. Collect reports each
// posting as it is processed; the sequence is finite and not restartable
// within a run. A returned error means the source as a whole failed.
type Source interface {
	Name() SourceName
	Collect(ctx context.Context, out Collector) error
}

// Store is the key-value boundary the pipeline persists into.
type Store interface {
	// Get returns the record for id, or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// BatchUpsert writes records (insert-or-overwrite by ID) and reports
	// per-item success or failure. len(results) == len(records).
	BatchUpsert(ctx context.Context, records []Record) ([]UpsertResult, error)
}

// Publisher pushes run summaries to an external sink (Pub/Sub or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Archiver optionally persists raw fetched pages for debugging.
type Archiver interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
