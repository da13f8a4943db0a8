package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/jobs"
)

// leemQueries are the search terms run against the LEEM board, the French
// pharmaceutical industry's job site.
var leemQueries = []string{
	"réglementaire",
	"regulatory",
	"affaires réglementaires",
	"qualité",
}

// Leem scrapes emploi.leem.org offer listings.
type Leem struct {
	fetcher jobs.Fetcher
	logger  *zap.Logger
	baseURL string
}

// NewLeem builds the LEEM adapter.
func NewLeem(fetcher jobs.Fetcher, logger *zap.Logger) *Leem {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Leem{
		fetcher: fetcher,
		logger:  logger.Named("leem"),
		baseURL: "https://emploi.leem.org",
	}
}

// Name implements jobs.Source.
func (l *Leem) Name() jobs.SourceName { return jobs.SourceLeem }

// Collect searches each query term, then fetches and parses every offer
// page found. Offer-level failures are skipped; listing failures abort.
func (l *Leem) Collect(ctx context.Context, out jobs.Collector) error {
	base, err := url.Parse(l.baseURL)
	if err != nil {
		return &jobs.SourceFailure{Source: l.Name(), Err: err}
	}

	seen := make(map[string]struct{})
	for _, query := range leemQueries {
		resp, err := l.fetcher.Fetch(ctx, jobs.FetchRequest{
			URL:    l.baseURL + "/offres-emploi",
			Source: l.Name(),
			Query:  url.Values{"q": []string{query}},
		})
		if err != nil {
			return &jobs.SourceFailure{Source: l.Name(), Err: fmt.Errorf("search %q: %w", query, err)}
		}
		doc, err := parseDocument(resp.Body)
		if err != nil {
			return &jobs.SourceFailure{Source: l.Name(), Err: fmt.Errorf("parse search %q: %w", query, err)}
		}

		links := collectLinks(doc, base, "/offre",
			".job-item a",
			".offre-emploi a",
			`a[href*="/offre/"]`,
		)
		for _, link := range links {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}

			if err := ctx.Err(); err != nil {
				return &jobs.SourceFailure{Source: l.Name(), Err: err}
			}
			candidate, err := l.fetchOffer(ctx, link)
			if err != nil {
				l.logger.Warn("offer skipped", zap.String("url", link), zap.Error(err))
				out.Skip(link, err)
				continue
			}
			out.Emit(candidate)
		}
	}
	return nil
}

func (l *Leem) fetchOffer(ctx context.Context, link string) (jobs.Candidate, error) {
	resp, err := l.fetcher.Fetch(ctx, jobs.FetchRequest{URL: link, Source: l.Name()})
	if err != nil {
		return jobs.Candidate{}, err
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return jobs.Candidate{}, &jobs.ParseError{Source: l.Name(), URL: link, Err: err}
	}
	return l.parseOffer(doc, link)
}

func (l *Leem) parseOffer(doc *goquery.Document, link string) (jobs.Candidate, error) {
	title := firstText(doc, "h1.job-title", ".offre-titre h1", "h1")
	if title == "" {
		return jobs.Candidate{}, &jobs.ParseError{
			Source: l.Name(), URL: link, Err: fmt.Errorf("no job title found"),
		}
	}
	return jobs.Candidate{
		RawTitle:       title,
		RawCompany:     firstText(doc, ".company-name", ".offre-entreprise", ".employer"),
		RawLocation:    firstText(doc, ".job-location", ".offre-lieu", ".location"),
		RawDescription: firstText(doc, ".job-description", ".offre-description", ".description"),
		RawPublished:   firstText(doc, ".publication-date", ".offre-date", "time"),
		Source:         l.Name(),
		SourceURL:      link,
	}, nil
}
