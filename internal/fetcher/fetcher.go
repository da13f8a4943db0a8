// Package fetcher wraps a single-attempt HTTP fetcher with concurrency
// limits, per-source courtesy delays, and retry with backoff.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/regjobs/scraper/internal/jobs"
	"github.com/regjobs/scraper/internal/metrics"
)

// Config controls the retrying fetcher.
type Config struct {
	MaxRetries  int
	BackoffBase time.Duration
	BackoffMax  time.Duration
	MinDelay    time.Duration
	ArchivePath string
	ContentType string
}

// Fetcher implements jobs.Fetcher by decorating an inner fetcher with the
// shared Limits, a per-source minimum inter-request delay, and the retry
// policy. It is safe for concurrent use.
type Fetcher struct {
	inner    jobs.Fetcher
	limits   *Limits
	policy   *RetryPolicy
	archiver jobs.Archiver
	cfg      Config
	logger   *zap.Logger

	mu       sync.Mutex
	courtesy map[jobs.SourceName]*rate.Limiter
}

// New builds a retrying Fetcher around inner.
func New(inner jobs.Fetcher, limits *Limits, archiver jobs.Archiver, cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContentType == "" {
		cfg.ContentType = "text/html; charset=utf-8"
	}
	return &Fetcher{
		inner:    inner,
		limits:   limits,
		policy:   NewRetryPolicy(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffMax),
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
		courtesy: make(map[jobs.SourceName]*rate.Limiter),
	}
}

func (f *Fetcher) courtesyLimiter(source jobs.SourceName) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.courtesy[source]
	if !ok {
		every := rate.Inf
		if f.cfg.MinDelay > 0 {
			every = rate.Every(f.cfg.MinDelay)
		}
		lim = rate.NewLimiter(every, 1)
		f.courtesy[source] = lim
	}
	return lim
}

// Fetch acquires concurrency slots, waits out the courtesy delay, then
// attempts the request up to the retry budget. The returned error is
// always a *jobs.FetchError once retries are exhausted.
func (f *Fetcher) Fetch(ctx context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
	if err := f.limits.Acquire(ctx, req.Source); err != nil {
		return jobs.FetchResponse{}, &jobs.FetchError{URL: req.URL, Err: err}
	}
	defer f.limits.Release(req.Source)

	if err := f.courtesyLimiter(req.Source).Wait(ctx); err != nil {
		return jobs.FetchResponse{}, &jobs.FetchError{URL: req.URL, Err: err}
	}

	start := time.Now()
	var lastErr *jobs.FetchError
	for attempt := 0; attempt < f.policy.MaxAttempts(); attempt++ {
		metrics.IncInFlightFetches()
		resp, err := f.inner.Fetch(ctx, req)
		metrics.DecInFlightFetches()

		if err == nil {
			f.archive(ctx, req, resp)
			metrics.ObserveFetch(string(req.Source), "ok", time.Since(start))
			return resp, nil
		}

		lastErr = asFetchError(err, req.URL)
		lastErr.Attempts = attempt + 1

		if !f.policy.ShouldRetry(lastErr, attempt) {
			break
		}
		metrics.ObserveFetchRetry(string(req.Source))
		f.logger.Debug("fetch retry",
			zap.String("source", string(req.Source)),
			zap.String("url", req.URL),
			zap.Int("attempt", attempt+1),
			zap.Int("status", lastErr.StatusCode),
		)
		if err := sleep(ctx, f.policy.Backoff(lastErr, attempt)); err != nil {
			lastErr = &jobs.FetchError{URL: req.URL, Attempts: attempt + 1, Err: err}
			break
		}
	}

	metrics.ObserveFetch(string(req.Source), "failed", time.Since(start))
	return jobs.FetchResponse{}, lastErr
}

func (f *Fetcher) archive(ctx context.Context, req jobs.FetchRequest, resp jobs.FetchResponse) {
	if f.archiver == nil || len(resp.Body) == 0 {
		return
	}
	path := fmt.Sprintf("%s/%s.html", req.Source, jobs.RecordID(resp.URL))
	if f.cfg.ArchivePath != "" {
		path = f.cfg.ArchivePath + "/" + path
	}
	if _, err := f.archiver.PutObject(ctx, path, f.cfg.ContentType, resp.Body); err != nil {
		f.logger.Warn("page archive failed",
			zap.String("source", string(req.Source)),
			zap.String("url", resp.URL),
			zap.Error(err),
		)
	}
}

func asFetchError(err error, url string) *jobs.FetchError {
	var fetchErr *jobs.FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr
	}
	return &jobs.FetchError{URL: url, Err: err}
}

func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
