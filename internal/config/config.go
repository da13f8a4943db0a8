// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Run      RunConfig      `mapstructure:"run"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Sources  SourcesConfig  `mapstructure:"sources"`
	Store    StoreConfig    `mapstructure:"store"`
	Summary  SummaryConfig  `mapstructure:"summary"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// RunConfig governs orchestrator behavior for one ingestion run.
type RunConfig struct {
	GlobalConcurrency    int `mapstructure:"global_concurrency"`
	PerSourceConcurrency int `mapstructure:"per_source_concurrency"`
	BudgetSeconds        int `mapstructure:"budget_seconds"`
	SourceTimeoutSeconds int `mapstructure:"source_timeout_seconds"`
	DrainGraceSeconds    int `mapstructure:"drain_grace_seconds"`
}

// HTTPConfig configures fetch retry and courtesy behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
	MinDelayMs       int `mapstructure:"min_delay_ms"`
}

// SourcesConfig selects and configures the source adapters.
type SourcesConfig struct {
	Enabled []string     `mapstructure:"enabled"`
	Adzuna  AdzunaConfig `mapstructure:"adzuna"`
}

// AdzunaConfig holds Adzuna API credentials and paging limits.
type AdzunaConfig struct {
	AppID    string `mapstructure:"app_id"`
	AppKey   string `mapstructure:"app_key"`
	Country  string `mapstructure:"country"`
	MaxPages int    `mapstructure:"max_pages"`
}

// StoreConfig controls access to the job store.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// SummaryConfig selects the run summary sink.
type SummaryConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// ArchiveConfig controls optional raw page archival.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// ScheduleConfig controls the in-process cron trigger.
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Spec    string `mapstructure:"spec"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("run.global_concurrency", 8)
	v.SetDefault("run.per_source_concurrency", 3)
	v.SetDefault("run.budget_seconds", 600)
	v.SetDefault("run.source_timeout_seconds", 300)
	v.SetDefault("run.drain_grace_seconds", 30)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.min_delay_ms", 1000)
	v.SetDefault("sources.enabled", []string{"linkedin", "adzuna", "leem", "snitem"})
	v.SetDefault("sources.adzuna.country", "fr")
	v.SetDefault("sources.adzuna.max_pages", 3)
	v.SetDefault("store.provider", "memory")
	v.SetDefault("store.table", "jobs")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("summary.provider", "log")
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("archive.prefix", "pages")
	v.SetDefault("schedule.enabled", true)
	// Three daily runs, off-peak for the sources' timezone.
	v.SetDefault("schedule.spec", "0 6,12,18 * * *")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Run.GlobalConcurrency <= 0 {
		return fmt.Errorf("run.global_concurrency must be > 0")
	}
	if c.Run.PerSourceConcurrency <= 0 {
		return fmt.Errorf("run.per_source_concurrency must be > 0")
	}
	if c.Run.PerSourceConcurrency > c.Run.GlobalConcurrency {
		return fmt.Errorf("run.per_source_concurrency must not exceed run.global_concurrency")
	}
	if c.Run.SourceTimeoutSeconds >= c.Run.BudgetSeconds {
		return fmt.Errorf("run.source_timeout_seconds must be shorter than run.budget_seconds")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if len(c.Sources.Enabled) == 0 {
		return fmt.Errorf("sources.enabled must list at least one source")
	}
	if c.Store.Provider == "postgres" && c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required when store.provider is postgres")
	}
	if c.Summary.Provider == "pubsub" && (c.Summary.ProjectID == "" || c.Summary.TopicID == "") {
		return fmt.Errorf("summary.project_id and summary.topic_id are required when summary.provider is pubsub")
	}
	if c.Archive.Provider == "gcs" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive.provider is gcs")
	}
	return nil
}

// RunBudget returns the global wall-clock budget for a run.
func (c Config) RunBudget() time.Duration {
	return time.Duration(c.Run.BudgetSeconds) * time.Second
}

// SourceTimeout returns the per-adapter timeout.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Run.SourceTimeoutSeconds) * time.Second
}

// DrainGrace returns the bounded grace period for in-flight work.
func (c Config) DrainGrace() time.Duration {
	return time.Duration(c.Run.DrainGraceSeconds) * time.Second
}

// HTTPTimeout returns the single request timeout.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// BackoffInitial returns the first retry backoff delay.
func (c Config) BackoffInitial() time.Duration {
	return time.Duration(c.HTTP.BackoffInitialMs) * time.Millisecond
}

// BackoffMax returns the retry backoff ceiling.
func (c Config) BackoffMax() time.Duration {
	return time.Duration(c.HTTP.BackoffMaxMs) * time.Millisecond
}

// MinDelay returns the per-source courtesy delay between requests.
func (c Config) MinDelay() time.Duration {
	return time.Duration(c.HTTP.MinDelayMs) * time.Millisecond
}
