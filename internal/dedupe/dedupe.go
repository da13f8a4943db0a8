// Package dedupe decides whether an incoming record is new, changed, or
// already stored as-is. Identity is the canonical link digest, so the
// same posting re-scraped under a different title or source is still one
// record.
package dedupe

import (
	"context"
	"errors"
	"fmt"

	"github.com/regjobs/scraper/internal/jobs"
)

// Decision classifies one resolved record.
type Decision int

const (
	// Insert means no stored record exists for the identity.
	Insert Decision = iota
	// Update means a stored record exists and a mutable field changed.
	Update
	// Unchanged means the stored record already matches; nothing to write.
	Unchanged
)

func (d Decision) String() string {
	switch d {
	case Insert:
		return "insert"
	case Update:
		return "update"
	case Unchanged:
		return "unchanged"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Resolver compares incoming records against the persistent store.
type Resolver struct {
	store jobs.Store
	clock jobs.Clock
}

// New builds a Resolver.
func New(store jobs.Store, clock jobs.Clock) *Resolver {
	return &Resolver{store: store, clock: clock}
}

// Resolve looks the record up by identity and returns the decision plus
// the record as it should be written. For Unchanged the returned record
// is the stored one, untouched; an unchanged re-scrape does not refresh
// updated_at.
func (r *Resolver) Resolve(ctx context.Context, record jobs.Record) (Decision, jobs.Record, error) {
	existing, err := r.store.Get(ctx, record.ID)
	if errors.Is(err, jobs.ErrNotFound) {
		now := r.clock.Now()
		record.CreatedAt = now
		record.UpdatedAt = now
		return Insert, record, nil
	}
	if err != nil {
		return Insert, jobs.Record{}, fmt.Errorf("lookup %s: %w", record.ID, err)
	}

	if existing.MutableEquals(record) {
		return Unchanged, existing, nil
	}

	record.CreatedAt = existing.CreatedAt
	record.UpdatedAt = r.clock.Now()
	return Update, record, nil
}
