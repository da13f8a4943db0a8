package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/dedupe"
	"github.com/regjobs/scraper/internal/jobs"
	"github.com/regjobs/scraper/internal/metrics"
	"github.com/regjobs/scraper/internal/normalize"
	"github.com/regjobs/scraper/internal/publisher/memory"
	memstore "github.com/regjobs/scraper/internal/store/memory"
	"github.com/regjobs/scraper/internal/writer"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type tickClock struct {
	mu sync.Mutex
	at time.Time
}

func newTickClock() *tickClock {
	return &tickClock{at: time.Date(2026, time.March, 15, 6, 0, 0, 0, time.UTC)}
}

func (c *tickClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(time.Second)
	return c.at
}

type stubIDs struct{ n int }

func (s *stubIDs) NewID() string {
	s.n++
	return fmt.Sprintf("run-%d", s.n)
}

// fakeSource emits a fixed candidate list, optionally reporting some
// unparseable postings first, then blocks until the context expires or
// fails outright.
type fakeSource struct {
	name       jobs.SourceName
	candidates []jobs.Candidate
	unparsed   int
	err        error
	block      bool
	panicValue any
}

func (s *fakeSource) Name() jobs.SourceName { return s.name }

func (s *fakeSource) Collect(ctx context.Context, out jobs.Collector) error {
	if s.panicValue != nil {
		panic(s.panicValue)
	}
	for i := 0; i < s.unparsed; i++ {
		out.Skip(fmt.Sprintf("https://%s.example/broken/%d", s.name, i), fmt.Errorf("no job title found"))
	}
	for _, c := range s.candidates {
		out.Emit(c)
	}
	if s.block {
		<-ctx.Done()
		return &jobs.SourceFailure{Source: s.name, Err: ctx.Err()}
	}
	return s.err
}

func candidate(source jobs.SourceName, n int) jobs.Candidate {
	return jobs.Candidate{
		RawTitle:       fmt.Sprintf("Regulatory Specialist %d", n),
		RawCompany:     "Acme Medical",
		RawLocation:    "Paris, France",
		RawDescription: "3 ans d'expérience",
		RawPublished:   "2026-03-01",
		Source:         source,
		SourceURL:      fmt.Sprintf("https://%s.example/job/%d", source, n),
	}
}

func candidates(source jobs.SourceName, n int) []jobs.Candidate {
	out := make([]jobs.Candidate, n)
	for i := range out {
		out[i] = candidate(source, i)
	}
	return out
}

type fixture struct {
	orchestrator *Orchestrator
	store        *memstore.Store
	publisher    *memory.Publisher
}

func newFixture(t *testing.T, cfg Config, sources ...jobs.Source) *fixture {
	t.Helper()
	clock := newTickClock()
	store := memstore.New()
	pub := memory.New()
	logger := zap.NewNop()
	orch := New(
		sources,
		normalize.New(clock),
		dedupe.New(store, clock),
		writer.New(store, logger),
		pub,
		clock,
		&stubIDs{},
		cfg,
		logger,
	)
	return &fixture{orchestrator: orch, store: store, publisher: pub}
}

func TestRunHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{},
		&fakeSource{name: jobs.SourceLinkedIn, candidates: candidates(jobs.SourceLinkedIn, 4)},
		&fakeSource{name: jobs.SourceLeem, candidates: candidates(jobs.SourceLeem, 3)},
	)

	summary, err := f.orchestrator.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "run-1", summary.RunID)
	require.Len(t, summary.Sources, 2)

	totals := summary.Totals()
	require.Equal(t, 7, totals.Fetched)
	require.Equal(t, 7, totals.Validated)
	require.Equal(t, 7, totals.Inserted)
	require.Equal(t, 7, totals.Written)
	require.Zero(t, totals.WriteFailed)
	require.Empty(t, summary.Failures())
	require.Equal(t, 7, f.store.Len())
	require.Len(t, f.publisher.Messages(), 1)
	require.Equal(t, StateCompleted, f.orchestrator.State())
}

func TestRunSourceFailureIsIsolated(t *testing.T) {
	t.Parallel()

	failing := &fakeSource{
		name: jobs.SourceLinkedIn,
		err:  &jobs.SourceFailure{Source: jobs.SourceLinkedIn, Err: fmt.Errorf("listing fetch: status 503")},
	}
	healthy := &fakeSource{name: jobs.SourceLeem, candidates: candidates(jobs.SourceLeem, 5)}

	f := newFixture(t, Config{}, failing, healthy)

	summary, err := f.orchestrator.Run(context.Background(), nil)
	require.NoError(t, err)

	failures := summary.Failures()
	require.Len(t, failures, 1)
	require.Equal(t, jobs.SourceLinkedIn, failures[0].Source)
	require.Contains(t, failures[0].Error, "503")

	require.Equal(t, 5, summary.Totals().Written)
	require.Equal(t, 5, f.store.Len())
}

func TestRunPartialFailureEmitsSummaryWithFailures(t *testing.T) {
	t.Parallel()

	failing := &fakeSource{
		name: jobs.SourceAdzuna,
		err:  &jobs.SourceFailure{Source: jobs.SourceAdzuna, Err: fmt.Errorf("api down")},
	}
	f := newFixture(t, Config{}, failing)

	_, err := f.orchestrator.Run(context.Background(), nil)
	require.NoError(t, err)

	messages := f.publisher.Messages()
	require.Len(t, messages, 1)
	payload, ok := messages[0].Payload.(map[string]any)
	require.True(t, ok)
	require.Contains(t, payload, "source_failures")
}

func TestRunRejectionsDoNotBlockValidCandidates(t *testing.T) {
	t.Parallel()

	mixed := candidates(jobs.SourceLinkedIn, 7)
	for i := 0; i < 3; i++ {
		bad := candidate(jobs.SourceLinkedIn, 100+i)
		bad.RawLocation = "Lyon, France"
		mixed = append(mixed, bad)
	}

	f := newFixture(t, Config{}, &fakeSource{name: jobs.SourceLinkedIn, candidates: mixed})

	summary, err := f.orchestrator.Run(context.Background(), nil)
	require.NoError(t, err)

	report := summary.Sources[0]
	require.Equal(t, 10, report.Fetched)
	require.Equal(t, 7, report.Validated)
	require.Equal(t, 3, report.Rejected[jobs.ReasonInvalidCity])
	require.Equal(t, 7, report.Written)
	require.Empty(t, report.Error)
}

func TestRunCountsUnparseablePostings(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, &fakeSource{
		name:       jobs.SourceLeem,
		candidates: candidates(jobs.SourceLeem, 3),
		unparsed:   2,
	})

	summary, err := f.orchestrator.Run(context.Background(), nil)
	require.NoError(t, err)

	report := summary.Sources[0]
	require.Equal(t, 5, report.Fetched)
	require.Equal(t, 3, report.Parsed)
	require.Equal(t, 2, report.ParseFailed)
	require.Equal(t, 3, report.Written)
	require.Empty(t, report.Error)

	messages := f.publisher.Messages()
	require.Len(t, messages, 1)
	payload, ok := messages[0].Payload.(map[string]any)
	require.True(t, ok)
	require.Equal(t, 5, payload["fetched"])
	require.Equal(t, 3, payload["parsed"])
	require.Equal(t, 2, payload["parse_failed"])
}

func TestStartClaimsRunSlotSynchronously(t *testing.T) {
	t.Parallel()

	blocker := &fakeSource{name: jobs.SourceLinkedIn, block: true}
	cfg := Config{
		Budget:        200 * time.Millisecond,
		SourceTimeout: 150 * time.Millisecond,
		DrainGrace:    50 * time.Millisecond,
	}
	f := newFixture(t, cfg, blocker)

	require.NoError(t, f.orchestrator.Start(context.Background(), nil))
	// The slot is held before Start returns, so a second Start or Run
	// fails immediately.
	require.ErrorIs(t, f.orchestrator.Start(context.Background(), nil), ErrRunInProgress)
	_, err := f.orchestrator.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrRunInProgress)

	require.Eventually(t, func() bool {
		return f.orchestrator.State() == StateCompleted
	}, 2*time.Second, 5*time.Millisecond)
	require.NotNil(t, f.orchestrator.Latest())
}

func TestStartRejectsUnknownSubsetBeforeClaiming(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, &fakeSource{name: jobs.SourceLinkedIn})

	err := f.orchestrator.Start(context.Background(), []jobs.SourceName{"glassdoor"})
	require.ErrorContains(t, err, "not enabled")
	require.Equal(t, StateIdle, f.orchestrator.State())
}

func TestRunPanicInAdapterIsRecovered(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{},
		&fakeSource{name: jobs.SourceLinkedIn, panicValue: "selector blew up"},
		&fakeSource{name: jobs.SourceLeem, candidates: candidates(jobs.SourceLeem, 2)},
	)

	summary, err := f.orchestrator.Run(context.Background(), nil)
	require.NoError(t, err)

	failures := summary.Failures()
	require.Len(t, failures, 1)
	require.Contains(t, failures[0].Error, "panic")
	require.Equal(t, 2, summary.Totals().Written)
}

func TestRunSecondCycleIsIdempotent(t *testing.T) {
	t.Parallel()

	source := &fakeSource{name: jobs.SourceLinkedIn, candidates: candidates(jobs.SourceLinkedIn, 5)}
	f := newFixture(t, Config{}, source)
	ctx := context.Background()

	first, err := f.orchestrator.Run(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 5, first.Totals().Inserted)

	stored, err := f.store.Get(ctx, jobs.RecordID("https://linkedin.example/job/0"))
	require.NoError(t, err)

	second, err := f.orchestrator.Run(ctx, nil)
	require.NoError(t, err)
	require.Zero(t, second.Totals().Inserted)
	require.Equal(t, 5, second.Totals().Unchanged)
	require.Zero(t, second.Totals().Written)
	require.Equal(t, 5, f.store.Len())

	// Unchanged records keep their original timestamps.
	after, err := f.store.Get(ctx, stored.ID)
	require.NoError(t, err)
	require.Equal(t, stored.UpdatedAt, after.UpdatedAt)
	require.Equal(t, stored.CreatedAt, after.CreatedAt)
}

func TestRunChangedPostingIsUpdated(t *testing.T) {
	t.Parallel()

	source := &fakeSource{name: jobs.SourceLinkedIn, candidates: candidates(jobs.SourceLinkedIn, 1)}
	f := newFixture(t, Config{}, source)
	ctx := context.Background()

	_, err := f.orchestrator.Run(ctx, nil)
	require.NoError(t, err)

	before, err := f.store.Get(ctx, jobs.RecordID("https://linkedin.example/job/0"))
	require.NoError(t, err)

	changed := candidate(jobs.SourceLinkedIn, 0)
	changed.RawTitle = "Senior Regulatory Specialist"
	source.candidates = []jobs.Candidate{changed}

	summary, err := f.orchestrator.Run(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Totals().Updated)

	after, err := f.store.Get(ctx, before.ID)
	require.NoError(t, err)
	require.Equal(t, "Senior Regulatory Specialist", after.JobTitle)
	require.Equal(t, before.CreatedAt, after.CreatedAt)
	require.True(t, after.UpdatedAt.After(before.UpdatedAt))
}

func TestRunBudgetMarksBlockedSourceIncomplete(t *testing.T) {
	t.Parallel()

	blocker := &fakeSource{
		name:       jobs.SourceLinkedIn,
		candidates: candidates(jobs.SourceLinkedIn, 2),
		block:      true,
	}
	cfg := Config{
		Budget:        150 * time.Millisecond,
		SourceTimeout: 100 * time.Millisecond,
		DrainGrace:    time.Second,
	}
	f := newFixture(t, cfg, blocker)

	summary, err := f.orchestrator.Run(context.Background(), nil)
	require.NoError(t, err)

	report := summary.Sources[0]
	require.True(t, report.Incomplete)
	require.NotEmpty(t, report.Error)
	// Work resolved before the cutoff is still flushed during the drain.
	require.Equal(t, 2, report.Written)
	require.Equal(t, 2, f.store.Len())
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	blocker := &fakeSource{name: jobs.SourceLinkedIn, block: true}
	cfg := Config{
		Budget:        200 * time.Millisecond,
		SourceTimeout: 150 * time.Millisecond,
		DrainGrace:    50 * time.Millisecond,
	}
	f := newFixture(t, cfg, blocker)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.orchestrator.Run(context.Background(), nil)
	}()

	require.Eventually(t, func() bool {
		return f.orchestrator.State() == StateRunning
	}, time.Second, 5*time.Millisecond)

	_, err := f.orchestrator.Run(context.Background(), nil)
	require.ErrorIs(t, err, ErrRunInProgress)
	<-done
}

func TestRunSourceSubset(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{},
		&fakeSource{name: jobs.SourceLinkedIn, candidates: candidates(jobs.SourceLinkedIn, 2)},
		&fakeSource{name: jobs.SourceLeem, candidates: candidates(jobs.SourceLeem, 3)},
	)

	summary, err := f.orchestrator.Run(context.Background(), []jobs.SourceName{jobs.SourceLeem})
	require.NoError(t, err)
	require.Len(t, summary.Sources, 1)
	require.Equal(t, jobs.SourceLeem, summary.Sources[0].Source)
	require.Equal(t, 3, f.store.Len())
}

func TestRunUnknownSubsetNameFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, &fakeSource{name: jobs.SourceLinkedIn})
	_, err := f.orchestrator.Run(context.Background(), []jobs.SourceName{"glassdoor"})
	require.ErrorContains(t, err, "not enabled")
}

func TestStateBeforeFirstRunIsIdle(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{}, &fakeSource{name: jobs.SourceLinkedIn})
	require.Equal(t, StateIdle, f.orchestrator.State())
	require.Nil(t, f.orchestrator.Latest())
}
