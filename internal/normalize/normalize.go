// Package normalize turns raw source candidates into validated canonical
// records.
package normalize

import (
	"strings"

	"github.com/regjobs/scraper/internal/jobs"
)

// Field length bounds. Title and company overruns reject the candidate;
// description and salary are truncated instead, losing tail text is
// preferable to losing the posting.
const (
	maxTitleLen       = 256
	maxCompanyLen     = 256
	maxSalaryLen      = 256
	maxDescriptionLen = 10000
)

// Normalizer validates candidates and produces records. It never panics
// on malformed input; every rejection is a *jobs.ValidationError.
type Normalizer struct {
	clock jobs.Clock
}

// New builds a Normalizer using the given clock for relative dates and
// date defaults.
func New(clock jobs.Clock) *Normalizer {
	return &Normalizer{clock: clock}
}

// Normalize validates one candidate and returns the canonical record.
func (n *Normalizer) Normalize(c jobs.Candidate) (jobs.Record, error) {
	title := strings.TrimSpace(c.RawTitle)
	if title == "" {
		return jobs.Record{}, &jobs.ValidationError{Field: "title", Reason: "missing_title"}
	}
	if len(title) > maxTitleLen {
		return jobs.Record{}, &jobs.ValidationError{Field: "title", Reason: "oversized_title"}
	}

	company := strings.TrimSpace(c.RawCompany)
	if company == "" {
		return jobs.Record{}, &jobs.ValidationError{Field: "company", Reason: "missing_company"}
	}
	if len(company) > maxCompanyLen {
		return jobs.Record{}, &jobs.ValidationError{Field: "company", Reason: "oversized_company"}
	}

	if c.Source == "" {
		return jobs.Record{}, &jobs.ValidationError{Field: "source", Reason: "missing_source"}
	}
	if strings.TrimSpace(c.SourceURL) == "" {
		return jobs.Record{}, &jobs.ValidationError{Field: "link", Reason: "missing_link"}
	}

	link, err := jobs.CanonicalizeLink(c.SourceURL)
	if err != nil {
		return jobs.Record{}, &jobs.ValidationError{Field: "link", Reason: jobs.ReasonInvalidLink}
	}

	city := ExtractCity(c.RawLocation)
	if city == "" {
		return jobs.Record{}, &jobs.ValidationError{Field: "city", Reason: jobs.ReasonInvalidCity}
	}

	publishedAt, err := ParseDate(c.RawPublished, n.clock.Now())
	if err != nil {
		return jobs.Record{}, &jobs.ValidationError{Field: "published_date", Reason: jobs.ReasonUnparseableDate}
	}

	experienceText := c.RawExperience
	if strings.TrimSpace(experienceText) == "" {
		experienceText = c.RawDescription
	}

	return jobs.Record{
		ID:              jobs.RecordID(link),
		JobTitle:        title,
		CompanyName:     company,
		City:            city,
		YearsExperience: ExtractExperience(experienceText),
		PublishedAt:     publishedAt,
		Link:            link,
		Source:          c.Source,
		Description:     truncate(strings.TrimSpace(c.RawDescription), maxDescriptionLen),
		SalaryRange:     truncate(strings.TrimSpace(c.RawSalary), maxSalaryLen),
	}, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Cut on a rune boundary.
	for limit > 0 && s[limit]&0xC0 == 0x80 {
		limit--
	}
	return s[:limit]
}
