// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalfold/signalfold/internal/adapter"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Aggregate AggregateConfig `mapstructure:"aggregate"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Report    ReportConfig    `mapstructure:"report"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig governs direct retrieval, retry and fallback behavior.
type FetchConfig struct {
	RequestsPerSecond  float64  `mapstructure:"requests_per_second"`
	MaxAttempts        int      `mapstructure:"max_attempts"`
	BaseDelaySeconds   int      `mapstructure:"base_delay_seconds"`
	MaxDelaySeconds    int      `mapstructure:"max_delay_seconds"`
	TimeoutSeconds     int      `mapstructure:"timeout_seconds"`
	UserAgents         []string `mapstructure:"user_agents"`
	CacheURL           string   `mapstructure:"cache_url"`
	SearchURL          string   `mapstructure:"search_url"`
	MaxFailures        int      `mapstructure:"max_failures"`
	OpenTimeoutSeconds int      `mapstructure:"open_timeout_seconds"`
}

// BaseDelay returns the initial retry delay.
func (c FetchConfig) BaseDelay() time.Duration {
	return time.Duration(c.BaseDelaySeconds) * time.Second
}

// MaxDelay returns the retry delay ceiling.
func (c FetchConfig) MaxDelay() time.Duration {
	return time.Duration(c.MaxDelaySeconds) * time.Second
}

// Timeout returns the per-request budget.
func (c FetchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool    `mapstructure:"enabled"`
	MaxParallel   int     `mapstructure:"max_parallel"`
	NavTimeoutSec int     `mapstructure:"nav_timeout_seconds"`
	DomainQPS     float64 `mapstructure:"domain_qps"`
	UserAgent     string  `mapstructure:"user_agent"`
	MinHTMLBytes  int     `mapstructure:"min_html_bytes"`
	Selectors     string  `mapstructure:"selectors"`
}

// JobBoard names one job board to scrape directly.
type JobBoard struct {
	Label  string `mapstructure:"label"`
	URL    string `mapstructure:"url"`
	Region string `mapstructure:"region"`
}

// RegionQuery groups search queries under the region they target.
type RegionQuery struct {
	Region  string   `mapstructure:"region"`
	Queries []string `mapstructure:"queries"`
}

// SeedSourceConfig points at the curated seed list.
type SeedSourceConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// StoriesSourceConfig drives the vendor customer-stories and newsroom
// source.
type StoriesSourceConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	StoriesURL    string   `mapstructure:"stories_url"`
	NewsURL       string   `mapstructure:"news_url"`
	Origin        string   `mapstructure:"origin"`
	RegionQueries []string `mapstructure:"region_queries"`
	NewsQueries   []string `mapstructure:"news_queries"`
}

// PressSourceConfig drives the press-release search source.
type PressSourceConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	QueryPatterns []string `mapstructure:"query_patterns"`
	Regions       []string `mapstructure:"regions"`
}

// JobsSourceConfig drives the hiring-signal source.
type JobsSourceConfig struct {
	Enabled     bool              `mapstructure:"enabled"`
	Boards      []JobBoard        `mapstructure:"boards"`
	Queries     []RegionQuery     `mapstructure:"queries"`
	Roles       []adapter.RoleTag `mapstructure:"roles"`
	FallbackTag string            `mapstructure:"fallback_tag"`
}

// ProcurementSourceConfig drives the public-tender search source.
type ProcurementSourceConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Queries      []RegionQuery `mapstructure:"queries"`
	RequireTerms []string      `mapstructure:"require_terms"`
	Category     string        `mapstructure:"category"`
}

// EventsSourceConfig drives the conference-agenda search source.
type EventsSourceConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Queries []string `mapstructure:"queries"`
}

// SourcesConfig holds settings shared by all sources plus per-source
// sections. SearchURL is the shared web-search template with one %s verb
// for the escaped query.
type SourcesConfig struct {
	Vendor        string               `mapstructure:"vendor"`
	DefaultRegion string               `mapstructure:"default_region"`
	SearchURL     string               `mapstructure:"search_url"`
	Vocabulary    []string             `mapstructure:"vocabulary"`
	RegionHints   []adapter.RegionHint `mapstructure:"region_hints"`

	Seed        SeedSourceConfig        `mapstructure:"seed"`
	Stories     StoriesSourceConfig     `mapstructure:"stories"`
	Press       PressSourceConfig       `mapstructure:"press"`
	Jobs        JobsSourceConfig        `mapstructure:"jobs"`
	Procurement ProcurementSourceConfig `mapstructure:"procurement"`
	Events      EventsSourceConfig      `mapstructure:"events"`
}

// AggregateConfig tunes deduplication.
type AggregateConfig struct {
	GenericRegions []string `mapstructure:"generic_regions"`
	Exclusions     []string `mapstructure:"exclusions"`
	ExtraSuffixes  []string `mapstructure:"extra_suffixes"`
}

// ArchiveConfig selects the blob backend for fetched documents.
// Backend is one of "", "memory", "local" or "gcs"; empty disables
// archiving.
type ArchiveConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// DBConfig controls run persistence. An empty DSN disables the store.
type DBConfig struct {
	DSN           string `mapstructure:"dsn"`
	RunsTable     string `mapstructure:"runs_table"`
	EntitiesTable string `mapstructure:"entities_table"`
	MaxConns      int    `mapstructure:"max_conns"`
	MinConns      int    `mapstructure:"min_conns"`
}

// PubSubConfig holds publish-subscribe notification settings. An empty
// project disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ReportConfig controls the JSON report writer. An empty dir disables
// reports.
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SIGNALFOLD")
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
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("fetch.requests_per_second", 0.5)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.base_delay_seconds", 1)
	v.SetDefault("fetch.max_delay_seconds", 30)
	v.SetDefault("fetch.timeout_seconds", 20)
	v.SetDefault("fetch.max_failures", 3)
	v.SetDefault("fetch.open_timeout_seconds", 60)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.domain_qps", 0.5)
	v.SetDefault("headless.min_html_bytes", 2048)
	v.SetDefault("sources.default_region", "Unknown")
	v.SetDefault("sources.seed.enabled", true)
	v.SetDefault("sources.stories.enabled", true)
	v.SetDefault("sources.press.enabled", true)
	v.SetDefault("sources.jobs.enabled", true)
	v.SetDefault("sources.procurement.enabled", true)
	v.SetDefault("sources.events.enabled", true)
	v.SetDefault("db.runs_table", "runs")
	v.SetDefault("db.entities_table", "run_entities")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("report.dir", "reports")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Fetch.RequestsPerSecond <= 0 {
		return fmt.Errorf("fetch.requests_per_second must be > 0")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Sources.Vendor == "" {
		return fmt.Errorf("sources.vendor must be set")
	}
	if c.Sources.Seed.Enabled && c.Sources.Seed.Path == "" {
		return fmt.Errorf("sources.seed.path must be set when the seed source is enabled")
	}
	if c.Sources.Stories.Enabled && c.Sources.Stories.StoriesURL == "" && c.Sources.Stories.NewsURL == "" {
		return fmt.Errorf("sources.stories needs stories_url or news_url when enabled")
	}
	needsSearch := c.Sources.Press.Enabled || c.Sources.Procurement.Enabled ||
		c.Sources.Events.Enabled || (c.Sources.Jobs.Enabled && len(c.Sources.Jobs.Queries) > 0)
	if needsSearch && c.Sources.SearchURL == "" {
		return fmt.Errorf("sources.search_url must be set for search-backed sources")
	}
	switch c.Archive.Backend {
	case "", "memory":
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set for the local backend")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("archive.backend must be one of memory, local, gcs")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.Topic == "" {
		return fmt.Errorf("pubsub.topic must be set when pubsub.project_id is set")
	}
	return nil
}
