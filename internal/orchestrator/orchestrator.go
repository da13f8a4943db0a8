// Package orchestrator runs the full ingestion cycle: every enabled
// source is collected, normalized, deduplicated, and written, under one
// global time budget with per-source isolation.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/dedupe"
	"github.com/regjobs/scraper/internal/jobs"
	"github.com/regjobs/scraper/internal/metrics"
	"github.com/regjobs/scraper/internal/normalize"
	"github.com/regjobs/scraper/internal/writer"
)

// ErrRunInProgress is returned when a run is requested while one is
// already executing.
var ErrRunInProgress = fmt.Errorf("a run is already in progress")

// State is the lifecycle of one ingestion run.
type State int32

const (
	// StateIdle means no run has started yet.
	StateIdle State = iota
	// StateRunning means sources are being collected.
	StateRunning
	// StateDraining means the global budget expired and in-flight work is
	// being flushed.
	StateDraining
	// StateCompleted means the last run finished.
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type idGenerator interface {
	NewID() string
}

// Config bounds one run.
type Config struct {
	Budget        time.Duration
	SourceTimeout time.Duration
	DrainGrace    time.Duration
	SummaryTopic  string
}

// Orchestrator coordinates the per-source pipelines.
type Orchestrator struct {
	sources    []jobs.Source
	normalizer *normalize.Normalizer
	resolver   *dedupe.Resolver
	writer     *writer.Writer
	publisher  jobs.Publisher
	clock      jobs.Clock
	ids        idGenerator
	cfg        Config
	logger     *zap.Logger

	mu      sync.Mutex
	state   State
	running bool
	latest  *jobs.RunSummary
}

// New builds an Orchestrator.
func New(
	sources []jobs.Source,
	normalizer *normalize.Normalizer,
	resolver *dedupe.Resolver,
	w *writer.Writer,
	publisher jobs.Publisher,
	clock jobs.Clock,
	ids idGenerator,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 10 * time.Minute
	}
	if cfg.SourceTimeout <= 0 || cfg.SourceTimeout > cfg.Budget {
		cfg.SourceTimeout = cfg.Budget
	}
	if cfg.DrainGrace <= 0 {
		cfg.DrainGrace = 30 * time.Second
	}
	return &Orchestrator{
		sources:    sources,
		normalizer: normalizer,
		resolver:   resolver,
		writer:     w,
		publisher:  publisher,
		clock:      clock,
		ids:        ids,
		cfg:        cfg,
		logger:     logger,
	}
}

// State reports the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Latest returns the most recent run summary, or nil before the first run.
func (o *Orchestrator) Latest() *jobs.RunSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.latest
}

// Run executes one full ingestion cycle over the given source subset, or
// all sources when only is empty. A second concurrent call returns
// ErrRunInProgress.
func (o *Orchestrator) Run(ctx context.Context, only []jobs.SourceName) (jobs.RunSummary, error) {
	selected, err := o.selectSources(only)
	if err != nil {
		return jobs.RunSummary{}, err
	}
	if err := o.begin(); err != nil {
		return jobs.RunSummary{}, err
	}
	return o.execute(ctx, selected), nil
}

// Start claims the run slot and launches Run in the background, so the
// caller learns synchronously whether a run began. The summary is
// available via Latest once the run completes.
func (o *Orchestrator) Start(ctx context.Context, only []jobs.SourceName) error {
	selected, err := o.selectSources(only)
	if err != nil {
		return err
	}
	if err := o.begin(); err != nil {
		return err
	}
	go o.execute(ctx, selected)
	return nil
}

// begin claims the single run slot.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrRunInProgress
	}
	o.running = true
	o.state = StateRunning
	return nil
}

// execute runs the cycle over the already-selected sources. The caller
// must hold the run slot via begin; execute releases it on return.
func (o *Orchestrator) execute(ctx context.Context, selected []jobs.Source) jobs.RunSummary {
	defer func() {
		o.mu.Lock()
		o.running = false
		o.state = StateCompleted
		o.mu.Unlock()
	}()

	summary := jobs.RunSummary{
		RunID:     o.ids.NewID(),
		StartedAt: o.clock.Now(),
	}
	logger := o.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("run started", zap.Int("sources", len(selected)))

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.Budget)
	defer cancel()

	// Flip to Draining the moment the budget expires while work remains.
	drainWatch := context.AfterFunc(runCtx, func() {
		o.mu.Lock()
		if o.running {
			o.state = StateDraining
		}
		o.mu.Unlock()
	})
	defer drainWatch()

	reports := make([]jobs.SourceReport, len(selected))
	var wg sync.WaitGroup
	for i, source := range selected {
		wg.Add(1)
		go func(i int, source jobs.Source) {
			defer wg.Done()
			reports[i] = o.runSource(ctx, runCtx, source, logger)
		}(i, source)
	}
	wg.Wait()

	summary.Sources = reports
	summary.Duration = o.clock.Now().Sub(summary.StartedAt)

	o.mu.Lock()
	o.latest = &summary
	o.mu.Unlock()

	o.finish(ctx, summary, logger)
	return summary
}

func (o *Orchestrator) selectSources(only []jobs.SourceName) ([]jobs.Source, error) {
	if len(only) == 0 {
		return o.sources, nil
	}
	byName := make(map[jobs.SourceName]jobs.Source, len(o.sources))
	for _, source := range o.sources {
		byName[source.Name()] = source
	}
	selected := make([]jobs.Source, 0, len(only))
	for _, name := range only {
		source, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("source %q is not enabled", name)
		}
		selected = append(selected, source)
	}
	return selected, nil
}

// runSource executes the collect → normalize → dedupe → write pipeline
// for one source. Failures stay inside the returned report; nothing a
// single source does can affect its siblings.
func (o *Orchestrator) runSource(parent, runCtx context.Context, source jobs.Source, logger *zap.Logger) (report jobs.SourceReport) {
	report.Source = source.Name()
	slog := logger.With(zap.String("source", string(source.Name())))

	defer func() {
		if r := recover(); r != nil {
			report.Error = fmt.Sprintf("panic: %v", r)
			slog.Error("source panicked", zap.Any("panic", r))
		}
	}()

	sourceCtx, cancel := context.WithTimeout(runCtx, o.cfg.SourceTimeout)
	defer cancel()

	out := &sourceCollector{o: o, ctx: sourceCtx, report: &report, logger: slog}
	collectErr := source.Collect(sourceCtx, out)

	if collectErr != nil {
		report.Error = collectErr.Error()
		if sourceCtx.Err() != nil {
			report.Incomplete = true
		}
		slog.Warn("source collection ended early", zap.Error(collectErr))
	}

	// Flush whatever was resolved, even when the budget cut the source
	// short: the drain grace keeps partial progress from being lost.
	flushCtx := sourceCtx
	if sourceCtx.Err() != nil {
		var cancelFlush context.CancelFunc
		flushCtx, cancelFlush = context.WithTimeout(context.WithoutCancel(parent), o.cfg.DrainGrace)
		defer cancelFlush()
	}
	result := o.writer.Write(flushCtx, out.pending)
	report.Written = result.Written
	report.WriteFailed += len(result.Failed)

	slog.Info("source finished",
		zap.Int("fetched", report.Fetched),
		zap.Int("parse_failed", report.ParseFailed),
		zap.Int("validated", report.Validated),
		zap.Int("rejected", report.RejectedTotal()),
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Int("written", report.Written),
		zap.Int("write_failed", report.WriteFailed),
		zap.Bool("incomplete", report.Incomplete),
	)
	return report
}

// sourceCollector feeds one source's postings through normalize → dedupe
// and accumulates the per-source report. Each source has its own
// collector, so no locking is needed.
type sourceCollector struct {
	o       *Orchestrator
	ctx     context.Context
	report  *jobs.SourceReport
	logger  *zap.Logger
	pending []jobs.Record
}

// Emit implements jobs.Collector for parsed candidates.
func (c *sourceCollector) Emit(candidate jobs.Candidate) {
	c.report.Fetched++
	c.report.Parsed++
	metrics.ObserveCandidate(string(c.report.Source))

	record, err := c.o.normalizer.Normalize(candidate)
	if err != nil {
		reason := rejectionReason(err)
		c.report.Reject(reason)
		metrics.ObserveRejection(string(c.report.Source), reason)
		c.logger.Debug("candidate rejected",
			zap.String("url", candidate.SourceURL),
			zap.String("reason", reason),
		)
		return
	}
	c.report.Validated++

	decision, resolved, err := c.o.resolver.Resolve(c.ctx, record)
	if err != nil {
		c.report.WriteFailed++
		c.logger.Warn("dedupe lookup failed", zap.String("id", record.ID), zap.Error(err))
		return
	}
	switch decision {
	case dedupe.Insert:
		c.report.Inserted++
		c.pending = append(c.pending, resolved)
	case dedupe.Update:
		c.report.Updated++
		c.pending = append(c.pending, resolved)
	case dedupe.Unchanged:
		c.report.Unchanged++
	}
}

// Skip implements jobs.Collector for postings the adapter fetched but
// could not parse. They count toward Fetched, never toward Parsed.
func (c *sourceCollector) Skip(url string, err error) {
	c.report.Fetched++
	c.report.ParseFailed++
	metrics.ObserveParseFailure(string(c.report.Source))
	c.logger.Debug("posting skipped", zap.String("url", url), zap.Error(err))
}

func (o *Orchestrator) finish(ctx context.Context, summary jobs.RunSummary, logger *zap.Logger) {
	outcome := "ok"
	for _, report := range summary.Sources {
		if report.Error != "" || report.Incomplete {
			outcome = "partial"
			break
		}
	}
	metrics.ObserveRun(outcome, summary.Duration)

	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.DrainGrace)
	defer cancel()
	if _, err := o.publisher.Publish(publishCtx, o.cfg.SummaryTopic, summary.Flat()); err != nil {
		logger.Error("summary publish failed", zap.Error(err))
	}

	totals := summary.Totals()
	logger.Info("run completed",
		zap.String("outcome", outcome),
		zap.Duration("duration", summary.Duration),
		zap.Int("fetched", totals.Fetched),
		zap.Int("parse_failed", totals.ParseFailed),
		zap.Int("validated", totals.Validated),
		zap.Int("rejected", totals.RejectedTotal()),
		zap.Int("inserted", totals.Inserted),
		zap.Int("updated", totals.Updated),
		zap.Int("unchanged", totals.Unchanged),
		zap.Int("written", totals.Written),
		zap.Int("write_failed", totals.WriteFailed),
		zap.Int("source_failures", len(summary.Failures())),
	)
}

func rejectionReason(err error) string {
	if verr, ok := err.(*jobs.ValidationError); ok {
		return verr.Reason
	}
	return "invalid"
}
