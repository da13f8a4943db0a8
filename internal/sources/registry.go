package sources

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/jobs"
)

// AdzunaCredentials configures the Adzuna API adapter.
type AdzunaCredentials struct {
	AppID    string
	AppKey   string
	Country  string
	MaxPages int
}

// Deps carries everything an adapter constructor may need.
type Deps struct {
	Fetcher jobs.Fetcher
	Logger  *zap.Logger
	Adzuna  AdzunaCredentials
}

// registry maps source names to adapter constructors. New boards register
// here and become selectable through config.
var registry = map[jobs.SourceName]func(Deps) jobs.Source{
	jobs.SourceLinkedIn: func(d Deps) jobs.Source { return NewLinkedIn(d.Fetcher, d.Logger) },
	jobs.SourceAdzuna:   func(d Deps) jobs.Source { return NewAdzuna(d.Fetcher, d.Adzuna, d.Logger) },
	jobs.SourceLeem:     func(d Deps) jobs.Source { return NewLeem(d.Fetcher, d.Logger) },
	jobs.SourceSnitem:   func(d Deps) jobs.Source { return NewSnitem(d.Fetcher, d.Logger) },
}

// Known reports whether name has a registered adapter.
func Known(name jobs.SourceName) bool {
	_, ok := registry[name]
	return ok
}

// Enabled instantiates adapters for the given names, in order.
func Enabled(names []string, deps Deps) ([]jobs.Source, error) {
	out := make([]jobs.Source, 0, len(names))
	for _, raw := range names {
		name := jobs.SourceName(raw)
		build, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", raw)
		}
		out = append(out, build(deps))
	}
	return out, nil
}
