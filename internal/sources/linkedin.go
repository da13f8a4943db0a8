package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/jobs"
)

// linkedinKeywords are the regulatory-affairs searches run each cycle,
// in both English and French.
var linkedinKeywords = []string{
	"regulatory affairs medical device",
	"affaires réglementaires dispositif médical",
	"regulatory medical device",
	"réglementaire médical",
	"quality assurance medical device",
	"assurance qualité dispositif médical",
}

// maxLinkedInPostings bounds how many posting pages one run fetches.
const maxLinkedInPostings = 50

// LinkedIn scrapes the public LinkedIn job search for Île-de-France
// regulatory positions.
type LinkedIn struct {
	fetcher jobs.Fetcher
	logger  *zap.Logger
	baseURL string
}

// NewLinkedIn builds the LinkedIn adapter.
func NewLinkedIn(fetcher jobs.Fetcher, logger *zap.Logger) *LinkedIn {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkedIn{
		fetcher: fetcher,
		logger:  logger.Named("linkedin"),
		baseURL: "https://www.linkedin.com",
	}
}

// Name implements jobs.Source.
func (l *LinkedIn) Name() jobs.SourceName { return jobs.SourceLinkedIn }

// Collect runs every keyword search, then fetches each discovered posting
// page and emits a candidate per posting. A failed listing fetch aborts the
// adapter; a failed posting fetch or parse only skips that posting.
func (l *LinkedIn) Collect(ctx context.Context, out jobs.Collector) error {
	links, err := l.discover(ctx)
	if err != nil {
		return &jobs.SourceFailure{Source: l.Name(), Err: err}
	}
	if len(links) > maxLinkedInPostings {
		links = links[:maxLinkedInPostings]
	}
	l.logger.Info("postings discovered", zap.Int("count", len(links)))

	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return &jobs.SourceFailure{Source: l.Name(), Err: err}
		}
		candidate, err := l.fetchPosting(ctx, link)
		if err != nil {
			l.logger.Warn("posting skipped", zap.String("url", link), zap.Error(err))
			out.Skip(link, err)
			continue
		}
		out.Emit(candidate)
	}
	return nil
}

func (l *LinkedIn) discover(ctx context.Context) ([]string, error) {
	base, err := url.Parse(l.baseURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var links []string
	for _, keyword := range linkedinKeywords {
		resp, err := l.fetcher.Fetch(ctx, jobs.FetchRequest{
			URL:    l.baseURL + "/jobs/search",
			Source: l.Name(),
			Query: url.Values{
				"keywords": []string{keyword},
				"location": []string{"Île-de-France, France"},
				"geoId":    []string{"105015875"},
				"sortBy":   []string{"DD"},
				"f_TPR":    []string{"r86400"},
				"f_JT":     []string{"F"},
				"start":    []string{"0"},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", keyword, err)
		}
		doc, err := parseDocument(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("parse search %q: %w", keyword, err)
		}
		for _, link := range collectLinks(doc, base, "/jobs/view/",
			`a[data-tracking-control-name="public_jobs_jserp-result_search-card"]`,
			".job-search-card a",
			`a[href*="/jobs/view/"]`,
		) {
			if _, dup := seen[link]; dup {
				continue
			}
			seen[link] = struct{}{}
			links = append(links, link)
		}
	}
	return links, nil
}

func (l *LinkedIn) fetchPosting(ctx context.Context, link string) (jobs.Candidate, error) {
	resp, err := l.fetcher.Fetch(ctx, jobs.FetchRequest{URL: link, Source: l.Name()})
	if err != nil {
		return jobs.Candidate{}, err
	}
	doc, err := parseDocument(resp.Body)
	if err != nil {
		return jobs.Candidate{}, &jobs.ParseError{Source: l.Name(), URL: link, Err: err}
	}
	return l.parsePosting(doc, link)
}

func (l *LinkedIn) parsePosting(doc *goquery.Document, link string) (jobs.Candidate, error) {
	title := firstText(doc,
		"h1.top-card-layout__title",
		".topcard__title",
		`h1[data-test="job-title"]`,
	)
	if title == "" {
		return jobs.Candidate{}, &jobs.ParseError{
			Source: l.Name(), URL: link, Err: fmt.Errorf("no job title found"),
		}
	}
	return jobs.Candidate{
		RawTitle: title,
		RawCompany: firstText(doc,
			"a.topcard__org-name-link",
			".topcard__flavor--black-link",
			`a[data-test="job-company-name"]`,
		),
		RawLocation: firstText(doc,
			".topcard__flavor--bullet",
			`[data-test="job-location"]`,
		),
		RawDescription: firstText(doc,
			".show-more-less-html__markup",
			".description__text",
		),
		RawPublished: firstText(doc,
			".posted-time-ago__text",
			`[data-test="job-posted-date"]`,
		),
		Source:    l.Name(),
		SourceURL: link,
	}, nil
}
