// Package collyfetcher implements the single-attempt Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/regjobs/scraper/internal/fetcher"
	"github.com/regjobs/scraper/internal/jobs"
)

// defaultUserAgents is the rotation pool used when none is configured.
// Plain browser strings; job boards reject obvious bot agents.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:125.0) Gecko/20100101 Firefox/125.0",
}

// Config controls collector behavior.
type Config struct {
	UserAgents []string
	Timeout    time.Duration
}

// Fetcher implements jobs.Fetcher using a Colly collector. Each Fetch
// clones the base collector, so one Fetcher serves concurrent callers.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	now           func() time.Time
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = defaultUserAgents
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true

	transport := newHTTPTransport()
	c.WithTransport(transport)

	return &Fetcher{
		cfg:           cfg,
		transport:     transport,
		baseCollector: c,
		now:           time.Now,
	}
}

// Fetch executes a single HTTP GET. Non-2xx status codes are returned as
// *jobs.FetchError carrying the status and any Retry-After hint.
func (f *Fetcher) Fetch(ctx context.Context, request jobs.FetchRequest) (jobs.FetchResponse, error) {
	var (
		result   jobs.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgents[rand.IntN(len(f.cfg.UserAgents))]
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range request.Headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		result = jobs.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = f.classify(request.URL, r, err)
	})

	target := request.URL
	if len(request.Query) > 0 {
		target = request.URL + "?" + request.Query.Encode()
	}

	if err := f.runCollector(ctx, collector, target, &fetchErr); err != nil {
		return jobs.FetchResponse{}, err
	}
	return result, nil
}

func (f *Fetcher) classify(url string, r *colly.Response, err error) error {
	out := &jobs.FetchError{URL: url, Err: err}
	if r != nil && r.StatusCode != 0 {
		out.StatusCode = r.StatusCode
		if r.StatusCode == http.StatusTooManyRequests && r.Headers != nil {
			out.RetryAfter = fetcher.ParseRetryAfter(r.Headers.Get("Retry-After"), f.now())
		}
	}
	return out
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return &jobs.FetchError{URL: url, Err: ctx.Err()}
	case err := <-done:
		if *fetchErr != nil {
			return *fetchErr
		}
		if err != nil {
			return &jobs.FetchError{URL: url, Err: fmt.Errorf("colly visit: %w", err)}
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
