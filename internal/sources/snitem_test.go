package sources

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/jobs"
)

const snitemListing = `<html><body>
<div class="job-listing">
  <a href="/emploi/ingenieur-affaires-reglementaires-12">Ingénieur AR</a>
  <a href="/emploi/responsable-qualite-34">Responsable qualité</a>
  <a href="/adherents/liste">Pas une offre</a>
</div>
</body></html>`

const snitemOffer = `<html><body>
<h1>Ingénieur Affaires Réglementaires</h1>
<div class="entreprise">MedDevice SAS</div>
<div class="description">Au moins 2 ans d'expérience en dispositifs médicaux.</div>
<time>2026-03-10</time>
</body></html>`

func TestSnitemCollectEmitsCandidates(t *testing.T) {
	t.Parallel()

	fetcher := fetchFunc(func(_ context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
		if strings.HasSuffix(req.URL, "/emploi") {
			return htmlResponse(req.URL, snitemListing), nil
		}
		return htmlResponse(req.URL, snitemOffer), nil
	})
	adapter := NewSnitem(fetcher, zap.NewNop())

	sink := &captureSink{}
	err := adapter.Collect(context.Background(), sink)
	require.NoError(t, err)

	// Two offers, deduplicated across the four searches.
	require.Len(t, sink.candidates, 2)
	require.Empty(t, sink.skipped)
	first := sink.candidates[0]
	require.Equal(t, "Ingénieur Affaires Réglementaires", first.RawTitle)
	require.Equal(t, "MedDevice SAS", first.RawCompany)
	require.Equal(t, "2026-03-10", first.RawPublished)
	require.Equal(t, jobs.SourceSnitem, first.Source)
	require.Equal(t, "https://www.snitem.fr/emploi/ingenieur-affaires-reglementaires-12", first.SourceURL)
}

func TestSnitemDefaultsLocationToParis(t *testing.T) {
	t.Parallel()

	fetcher := fetchFunc(func(_ context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
		if strings.HasSuffix(req.URL, "/emploi") {
			return htmlResponse(req.URL, snitemListing), nil
		}
		return htmlResponse(req.URL, snitemOffer), nil
	})
	adapter := NewSnitem(fetcher, zap.NewNop())

	sink := &captureSink{}
	require.NoError(t, adapter.Collect(context.Background(), sink))
	require.NotEmpty(t, sink.candidates)
	require.Equal(t, "Paris", sink.candidates[0].RawLocation)
}

func TestSnitemSkipsBrokenOffer(t *testing.T) {
	t.Parallel()

	fetcher := fetchFunc(func(_ context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
		switch {
		case strings.HasSuffix(req.URL, "/emploi"):
			return htmlResponse(req.URL, snitemListing), nil
		case strings.Contains(req.URL, "ingenieur"):
			return htmlResponse(req.URL, "<html><body><p>page déplacée</p></body></html>"), nil
		default:
			return htmlResponse(req.URL, snitemOffer), nil
		}
	})
	adapter := NewSnitem(fetcher, zap.NewNop())

	sink := &captureSink{}
	err := adapter.Collect(context.Background(), sink)
	require.NoError(t, err)
	require.Len(t, sink.candidates, 1)
	require.Len(t, sink.skipped, 1)
	require.Contains(t, sink.skipped[0], "ingenieur")
}

func TestSnitemListingFailureAbortsSource(t *testing.T) {
	t.Parallel()

	fetcher := fetchFunc(func(_ context.Context, req jobs.FetchRequest) (jobs.FetchResponse, error) {
		return jobs.FetchResponse{}, &jobs.FetchError{URL: req.URL, StatusCode: 502, Attempts: 3}
	})
	adapter := NewSnitem(fetcher, zap.NewNop())

	sink := &captureSink{}
	err := adapter.Collect(context.Background(), sink)
	require.Empty(t, sink.candidates)
	var failure *jobs.SourceFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, jobs.SourceSnitem, failure.Source)
}
