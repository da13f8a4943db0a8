// Package jobs defines core types shared across the ingestion pipeline.
package jobs

import (
	"net/http"
	"net/url"
	"time"
)

// SourceName identifies an external job source.
type SourceName string

// Known sources. Adapters register under these names.
const (
	SourceLinkedIn SourceName = "linkedin"
	SourceAdzuna   SourceName = "adzuna"
	SourceLeem     SourceName = "leem"
	SourceSnitem   SourceName = "snitem"
)

// Candidate is the raw, source-specific record produced by an adapter.
// Fields are untrusted free text; only SourceURL is required.
type Candidate struct {
	RawTitle       string
	RawCompany     string
	RawLocation    string
	RawExperience  string
	RawDescription string
	RawSalary      string
	RawPublished   string
	Source         SourceName
	SourceURL      string
}

// Record is the canonical job posting persisted in the store.
type Record struct {
	ID              string     `json:"id"`
	JobTitle        string     `json:"job_title"`
	CompanyName     string     `json:"company_name"`
	City            string     `json:"city"`
	YearsExperience int        `json:"year_of_experience"`
	PublishedAt     time.Time  `json:"published_date"`
	Link            string     `json:"link"`
	Source          SourceName `json:"source"`
	Description     string     `json:"description,omitempty"`
	SalaryRange     string     `json:"salary_range,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// MutableEquals reports whether every field the pipeline is allowed to
// rewrite matches the other record. Identity and timestamps are excluded.
func (r Record) MutableEquals(other Record) bool {
	return r.JobTitle == other.JobTitle &&
		r.CompanyName == other.CompanyName &&
		r.City == other.City &&
		r.YearsExperience == other.YearsExperience &&
		r.PublishedAt.Equal(other.PublishedAt) &&
		r.Description == other.Description &&
		r.SalaryRange == other.SalaryRange
}

// FetchRequest captures everything needed to issue one HTTP request.
type FetchRequest struct {
	URL     string
	Source  SourceName
	Headers http.Header
	Query   url.Values
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// SourceReport accumulates per-source counters for one run.
type SourceReport struct {
	Source      SourceName     `json:"source"`
	Fetched     int            `json:"fetched"`
	Parsed      int            `json:"parsed"`
	ParseFailed int            `json:"parse_failed"`
	Validated   int            `json:"validated"`
	Rejected    map[string]int `json:"rejected,omitempty"`
	Inserted    int            `json:"inserted"`
	Updated     int            `json:"updated"`
	Unchanged   int            `json:"unchanged"`
	Written     int            `json:"written"`
	WriteFailed int            `json:"write_failed"`
	Error       string         `json:"error,omitempty"`
	Incomplete  bool           `json:"incomplete,omitempty"`
}

// Reject counts one validation rejection under the given reason.
func (r *SourceReport) Reject(reason string) {
	if r.Rejected == nil {
		r.Rejected = make(map[string]int)
	}
	r.Rejected[reason]++
}

// RejectedTotal sums rejections across all reasons.
func (r *SourceReport) RejectedTotal() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}

// RunSummary is the single externally visible outcome of a run.
type RunSummary struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Sources   []SourceReport `json:"sources"`
}

// Totals aggregates the per-source counters.
func (s RunSummary) Totals() SourceReport {
	var t SourceReport
	for _, src := range s.Sources {
		t.Fetched += src.Fetched
		t.Parsed += src.Parsed
		t.ParseFailed += src.ParseFailed
		t.Validated += src.Validated
		t.Inserted += src.Inserted
		t.Updated += src.Updated
		t.Unchanged += src.Unchanged
		t.Written += src.Written
		t.WriteFailed += src.WriteFailed
		for reason, n := range src.Rejected {
			if t.Rejected == nil {
				t.Rejected = make(map[string]int)
			}
			t.Rejected[reason] += n
		}
	}
	return t
}

// Failures returns the source-level failures recorded in the summary.
func (s RunSummary) Failures() []SourceReport {
	var out []SourceReport
	for _, src := range s.Sources {
		if src.Error != "" {
			out = append(out, src)
		}
	}
	return out
}

// Flat renders the summary as the flat object emitted to the summary sink.
func (s RunSummary) Flat() map[string]any {
	t := s.Totals()
	out := map[string]any{
		"run_id":       s.RunID,
		"started_at":   s.StartedAt.UTC().Format(time.RFC3339),
		"duration_ms":  s.Duration.Milliseconds(),
		"fetched":      t.Fetched,
		"parsed":       t.Parsed,
		"parse_failed": t.ParseFailed,
		"validated":    t.Validated,
		"rejected":     t.RejectedTotal(),
		"inserted":     t.Inserted,
		"updated":      t.Updated,
		"unchanged":    t.Unchanged,
		"written":      t.Written,
		"write_failed": t.WriteFailed,
	}
	var failed []string
	for _, src := range s.Failures() {
		failed = append(failed, string(src.Source)+": "+src.Error)
	}
	if len(failed) > 0 {
		out["source_failures"] = failed
	}
	return out
}

// UpsertResult reports the per-item outcome of a store batch write.
type UpsertResult struct {
	ID  string
	Err error
}
