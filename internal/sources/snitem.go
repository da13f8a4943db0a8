package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/jobs"
)

// snitemQueries are the searches run against the SNITEM board, the French
// medical device industry association's job site. The empty query covers
// the unfiltered listing page.
var snitemQueries = []string{
	"",
	"réglementaire",
	"regulatory",
	"qualité",
}

// maxSnitemPostings bounds how many offer pages one run fetches.
const maxSnitemPostings = 15

// Snitem scrapes www.snitem.fr job listings.
type Snitem struct {
	fetcher jobs.Fetcher
	logger  *zap.Logger
	baseURL string
}

// NewSnitem builds the SNITEM adapter.
func NewSnitem(fetcher jobs.Fetcher, logger *zap.Logger) *Snitem {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Snitem{
		fetcher: fetcher,
		logger:  logger.Named("snitem"),
		baseURL: "https://www.snitem.fr",
	}
}

// Name implements jobs.Source.
func (s *Snitem) Name() jobs.SourceName { return jobs.SourceSnitem }

// Collect searches each query term, then fetches and parses every offer
// page found. Offer-level failures are skipped; listing failures abort.
func (s *Snitem) Collect(ctx context.Context, out jobs.Collector) error {
	base, err := url.Parse(s.baseURL)
	if err != nil {
		return &jobs.SourceFailure{Source: s.Name(), Err: err}
	}

	seen := make(map[string]struct{})
	var links []string
	for _, query := range snitemQueries {
		req := jobs.FetchRequest{
			URL:    s.baseURL + "/emploi",
			Source: s.Name(),
		}
		if query != "" {
			req.Query = url.Values{"search": []string{query}}
		}
		resp, err := s.fetcher.Fetch(ctx, req)
		if err != nil {
			return &jobs.SourceFailure{Source: s.Name(), Err: fmt.Errorf("search %q: %w", query, err)}
		}
		doc, err := parseDocument(resp.Body)
		if err != nil {
			return &jobs.SourceFailure{Source: s.Name(), Err: fmt.Errorf("parse search %q: %w", query, err)}
		}

		for _, link := range collectLinks(doc, base, "/emploi/",
			".job-listing a",
			".emploi-item a",
			`a[href*="/emploi/"]`,
			".offre a",
		) {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
		}
	}
	if len(links) > maxSnitemPostings {
		links = links[:maxSnitemPostings]
	}
	s.logger.Info("offers discovered", zap.Int("count", len(links)))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return &jobs.SourceFailure{Source: s.Name(), Err: err}
		}
		candidate, err := s.fetchOffer(ctx, link)
		if err != nil {
			s.logger.Warn("offer skipped", zap.String("url", link), zap.Error(err))
			out.Skip(link, err)
			continue
		}
		out.Emit(candidate)
	}
	return nil
}

func (s *Snitem) fetchOffer(ctx context.Context, link string) (jobs.Candidate, error) {
	resp, err := s.fetcher.Fetch(ctx, jobs.FetchRequest{URL: link, Source: s.Name()})
	if err != nil {
		return jobs.Candidate{}, err
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return jobs.Candidate{}, &jobs.ParseError{Source: s.Name(), URL: link, Err: err}
	}
	return s.parseOffer(doc, link)
}

func (s *Snitem) parseOffer(doc *goquery.Document, link string) (jobs.Candidate, error) {
	title := firstText(doc, "h1", ".job-title", ".titre")
	if title == "" {
		return jobs.Candidate{}, &jobs.ParseError{
			Source: s.Name(), URL: link, Err: fmt.Errorf("no job title found"),
		}
	}
	location := firstText(doc, ".job-location", ".lieu", ".location")
	if location == "" {
		// SNITEM pages often omit the location; the board is Paris-based.
		location = "Paris"
	}
	return jobs.Candidate{
		RawTitle:       title,
		RawCompany:     firstText(doc, ".company", ".entreprise", ".societe"),
		RawLocation:    location,
		RawDescription: firstText(doc, ".job-description", ".description", ".contenu"),
		RawPublished:   firstText(doc, ".publication-date", ".date", "time"),
		Source:         s.Name(),
		SourceURL:      link,
	}, nil
}
