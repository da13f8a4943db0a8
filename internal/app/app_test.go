package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/app"
	"github.com/regjobs/scraper/internal/config"
)

func testConfig() config.Config {
	var cfg config.Config
	cfg.Server.Port = 8080
	cfg.Run.GlobalConcurrency = 4
	cfg.Run.PerSourceConcurrency = 2
	cfg.Run.BudgetSeconds = 60
	cfg.Run.SourceTimeoutSeconds = 30
	cfg.Run.DrainGraceSeconds = 5
	cfg.HTTP.TimeoutSeconds = 5
	cfg.HTTP.MaxRetries = 1
	cfg.Sources.Enabled = []string{"leem"}
	cfg.Store.Provider = "memory"
	cfg.Summary.Provider = "log"
	cfg.Archive.Provider = "noop"
	return cfg
}

func TestNewWiresDefaultProviders(t *testing.T) {
	t.Parallel()

	a, err := app.New(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.Orchestrator)
	require.NotNil(t, a.Server)
	require.Nil(t, a.Scheduler)

	a.Close()
}

func TestNewWiresScheduler(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Schedule.Enabled = true
	cfg.Schedule.Spec = "0 6 * * *"

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, a.Scheduler)

	a.Close()
}

func TestNewRejectsBadProviders(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "unknown store",
			mutate:  func(c *config.Config) { c.Store.Provider = "dynamo" },
			wantErr: `unknown store provider "dynamo"`,
		},
		{
			name:    "unknown summary sink",
			mutate:  func(c *config.Config) { c.Summary.Provider = "kafka" },
			wantErr: `unknown summary provider "kafka"`,
		},
		{
			name:    "unknown archive",
			mutate:  func(c *config.Config) { c.Archive.Provider = "s3" },
			wantErr: `unknown archive provider "s3"`,
		},
		{
			name:    "unknown source",
			mutate:  func(c *config.Config) { c.Sources.Enabled = []string{"indeed"} },
			wantErr: "configure sources",
		},
		{
			name:    "bad cron spec",
			mutate:  func(c *config.Config) { c.Schedule.Enabled = true; c.Schedule.Spec = "not a spec" },
			wantErr: "parse schedule",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := testConfig()
			tc.mutate(&cfg)

			_, err := app.New(context.Background(), cfg, zap.NewNop())
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
