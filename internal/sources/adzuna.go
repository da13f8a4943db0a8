package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/jobs"
)

const adzunaPerPage = 50

// Adzuna pulls postings from the Adzuna search API instead of scraping
// HTML. It is the only adapter that needs credentials.
type Adzuna struct {
	fetcher jobs.Fetcher
	creds   AdzunaCredentials
	logger  *zap.Logger
	baseURL string
}

// NewAdzuna builds the Adzuna adapter.
func NewAdzuna(fetcher jobs.Fetcher, creds AdzunaCredentials, logger *zap.Logger) *Adzuna {
	if logger == nil {
		logger = zap.NewNop()
	}
	if creds.Country == "" {
		creds.Country = "fr"
	}
	if creds.MaxPages <= 0 {
		creds.MaxPages = 3
	}
	return &Adzuna{
		fetcher: fetcher,
		creds:   creds,
		logger:  logger.Named("adzuna"),
		baseURL: "https://api.adzuna.com",
	}
}

// Name implements jobs.Source.
func (a *Adzuna) Name() jobs.SourceName { return jobs.SourceAdzuna }

type adzunaResult struct {
	Title   string `json:"title"`
	Company struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
	Description string  `json:"description"`
	RedirectURL string  `json:"redirect_url"`
	Created     string  `json:"created"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
}

type adzunaPage struct {
	Count   int            `json:"count"`
	Results []adzunaResult `json:"results"`
}

// Collect pages through the API until the page cap or a short page.
// Missing credentials produce a warning and zero candidates, not a
// failure, so one unset secret never takes the whole source offline in
// a way that looks like an outage.
func (a *Adzuna) Collect(ctx context.Context, out jobs.Collector) error {
	if a.creds.AppID == "" || a.creds.AppKey == "" {
		a.logger.Warn("credentials missing, skipping source")
		return nil
	}

	for page := 1; page <= a.creds.MaxPages; page++ {
		results, err := a.fetchPage(ctx, page)
		if err != nil {
			return &jobs.SourceFailure{Source: a.Name(), Err: err}
		}
		for _, r := range results {
			if r.RedirectURL == "" {
				a.logger.Warn("result without redirect url skipped", zap.String("title", r.Title))
				out.Skip("", fmt.Errorf("result %q has no redirect url", r.Title))
				continue
			}
			out.Emit(jobs.Candidate{
				RawTitle:       r.Title,
				RawCompany:     r.Company.DisplayName,
				RawLocation:    r.Location.DisplayName,
				RawDescription: r.Description,
				RawSalary:      formatSalary(r.SalaryMin, r.SalaryMax),
				RawPublished:   r.Created,
				Source:         a.Name(),
				SourceURL:      r.RedirectURL,
			})
		}
		if len(results) < adzunaPerPage {
			break
		}
	}
	return nil
}

func (a *Adzuna) fetchPage(ctx context.Context, page int) ([]adzunaResult, error) {
	resp, err := a.fetcher.Fetch(ctx, jobs.FetchRequest{
		URL:    fmt.Sprintf("%s/v1/api/jobs/%s/search/%d", a.baseURL, a.creds.Country, page),
		Source: a.Name(),
		Query: url.Values{
			"app_id":           []string{a.creds.AppID},
			"app_key":          []string{a.creds.AppKey},
			"what":             []string{"regulatory affairs medical device"},
			"where":            []string{"Île-de-France"},
			"sort_by":          []string{"date"},
			"sort_direction":   []string{"down"},
			"results_per_page": []string{strconv.Itoa(adzunaPerPage)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("page %d: %w", page, err)
	}

	var body adzunaPage
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("decode page %d: %w", page, err)
	}
	a.logger.Debug("page fetched", zap.Int("page", page), zap.Int("results", len(body.Results)))
	return body.Results, nil
}

func formatSalary(lo, hi float64) string {
	switch {
	case lo <= 0 && hi <= 0:
		return ""
	case lo > 0 && hi > 0 && lo != hi:
		return fmt.Sprintf("%.0f-%.0f EUR", lo, hi)
	case hi > 0:
		return fmt.Sprintf("%.0f EUR", hi)
	default:
		return fmt.Sprintf("%.0f EUR", lo)
	}
}
