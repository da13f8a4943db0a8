package sources

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/jobs"
)

const leemListing = `<html><body>
<div class="liste-offres">
  <div class="job-item"><a href="/offre/chef-projet-reglementaire-123">Chef de projet</a></div>
  <div class="job-item"><a href="/offre/charge-affaires-reglementaires-456">Chargé d'affaires</a></div>
  <div class="job-item"><a href="/actualites/salon">Pas une offre</a></div>
</div>
</body></html>`

const leemOffer = `<html><body>
<h1 class="job-title">Chargé d'Affaires Réglementaires</h1>
<div class="company-name">Laboratoires Exemple</div>
<div class="job-location">Issy-les-Moulineaux</div>
<div class="job-description">3 à 5 ans d'expérience en affaires réglementaires.</div>
<div class="publication-date">il y a 3 jours</div>
</body></html>`

func TestLeemCollectEmitsCandidates(t *testing.T) {
	t.Parallel()

	fetcher := fetchFunc(func(_ context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
		if strings.Contains(req.URL, "/offres-emploi") {
			return htmlResponse(req.URL, leemListing), nil
		}
		return htmlResponse(req.URL, leemOffer), nil
	})
	adapter := NewLeem(fetcher, zap.NewNop())

	sink := &captureSink{}
	err := adapter.Collect(context.Background(), sink)
	require.NoError(t, err)

	// Two offers, deduplicated across the four query terms.
	require.Len(t, sink.candidates, 2)
	require.Empty(t, sink.skipped)
	first := sink.candidates[0]
	require.Equal(t, "Chargé d'Affaires Réglementaires", first.RawTitle)
	require.Equal(t, "Laboratoires Exemple", first.RawCompany)
	require.Equal(t, "Issy-les-Moulineaux", first.RawLocation)
	require.Equal(t, "il y a 3 jours", first.RawPublished)
	require.Equal(t, jobs.SourceLeem, first.Source)
	require.Equal(t, "https://emploi.leem.org/offre/chef-projet-reglementaire-123", first.SourceURL)
}

func TestLeemSkipsBrokenOffer(t *testing.T) {
	t.Parallel()

	fetcher := fetchFunc(func(_ context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
		switch {
		case strings.Contains(req.URL, "/offres-emploi"):
			return htmlResponse(req.URL, leemListing), nil
		case strings.Contains(req.URL, "chef-projet"):
			return jobs.FetchResponse{}, &jobs.FetchError{URL: req.URL, StatusCode: 404, Attempts: 1}
		default:
			return htmlResponse(req.URL, leemOffer), nil
		}
	})
	adapter := NewLeem(fetcher, zap.NewNop())

	sink := &captureSink{}
	err := adapter.Collect(context.Background(), sink)
	require.NoError(t, err)
	require.Len(t, sink.candidates, 1)
	require.Contains(t, sink.candidates[0].SourceURL, "charge-affaires")

	require.Len(t, sink.skipped, 1)
	require.Contains(t, sink.skipped[0], "chef-projet")
}

func TestLeemListingFailureAbortsSource(t *testing.T) {
	t.Parallel()

	fetcher := fetchFunc(func(_ context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
		return jobs.FetchResponse{}, &jobs.FetchError{URL: req.URL, StatusCode: 502, Attempts: 3}
	})
	adapter := NewLeem(fetcher, zap.NewNop())

	sink := &captureSink{}
	err := adapter.Collect(context.Background(), sink)
	require.Empty(t, sink.candidates)
	var failure *jobs.SourceFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, jobs.SourceLeem, failure.Source)
}
