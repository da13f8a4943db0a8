package fetcher

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/regjobs/scraper/internal/jobs"
)

// Limits bounds concurrent in-flight requests: a global cap across all
// sources plus a smaller per-source cap. The per-source slot is taken
// first so a source already at its own cap never occupies global capacity
// that unrelated sources could use.
type Limits struct {
	global    *semaphore.Weighted
	perSource int64

	mu      sync.Mutex
	sources map[jobs.SourceName]*semaphore.Weighted
}

// NewLimits builds a Limits with the given caps.
func NewLimits(global, perSource int) *Limits {
	if global <= 0 {
		global = 1
	}
	if perSource <= 0 || perSource > global {
		perSource = global
	}
	return &Limits{
		global:    semaphore.NewWeighted(int64(global)),
		perSource: int64(perSource),
		sources:   make(map[jobs.SourceName]*semaphore.Weighted),
	}
}

func (l *Limits) sourceSem(source jobs.SourceName) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.sources[source]
	if !ok {
		sem = semaphore.NewWeighted(l.perSource)
		l.sources[source] = sem
	}
	return sem
}

// Acquire blocks until both a per-source and a global slot are free, or the
// context finishes. On context cancellation no slot is leaked.
func (l *Limits) Acquire(ctx context.Context, source jobs.SourceName) error {
	sem := l.sourceSem(source)
	if err := sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire source slot: %w", err)
	}
	if err := l.global.Acquire(ctx, 1); err != nil {
		sem.Release(1)
		return fmt.Errorf("acquire global slot: %w", err)
	}
	return nil
}

// Release frees the slots taken by a successful Acquire.
func (l *Limits) Release(source jobs.SourceName) {
	l.global.Release(1)
	l.sourceSem(source).Release(1)
}
