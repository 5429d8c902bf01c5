// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	Analyzer   AnalyzerConfig   `mapstructure:"analyzer"`
	OpenRouter OpenRouterConfig `mapstructure:"openrouter"`
	Enrich     EnrichConfig     `mapstructure:"enrich"`
	Categorize CategorizeConfig `mapstructure:"categorize"`
	Output     OutputConfig     `mapstructure:"output"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FetchConfig governs the page fetch pool.
type FetchConfig struct {
	Concurrency    int           `mapstructure:"concurrency"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffInitial time.Duration `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	UserAgent      string        `mapstructure:"user_agent"`
	RespectRobots  bool          `mapstructure:"respect_robots"`
	MaxBodyBytes   int           `mapstructure:"max_body_bytes"`
}

// HeadlessConfig configures the rendered-fetch fallback.
type HeadlessConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxParallel   int           `mapstructure:"max_parallel"`
	NavTimeout    time.Duration `mapstructure:"nav_timeout"`
	BodyThreshold int           `mapstructure:"body_threshold"`
}

// AnalyzerConfig bounds content extraction.
type AnalyzerConfig struct {
	MaxDescriptionLen int           `mapstructure:"max_description_len"`
	MaxSnippetLen     int           `mapstructure:"max_snippet_len"`
	ProbeMarkdown     bool          `mapstructure:"probe_markdown"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
}

// OpenRouterConfig holds completion service credentials.
type OpenRouterConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Referer string        `mapstructure:"referer"`
	Title   string        `mapstructure:"title"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// EnrichConfig governs description generation.
type EnrichConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Concurrency       int           `mapstructure:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	BackoffInitial    time.Duration `mapstructure:"backoff_initial"`
	BackoffMax        time.Duration `mapstructure:"backoff_max"`
}

// CategorizeConfig optionally replaces the stock section rules. Rules are
// evaluated in order; an empty list keeps the defaults.
type CategorizeConfig struct {
	Rules []CategoryRule `mapstructure:"rules"`
}

// CategoryRule routes pages whose URL or title contains a keyword into a
// named section.
type CategoryRule struct {
	Section  string   `mapstructure:"section"`
	Keywords []string `mapstructure:"keywords"`
}

// OutputConfig shapes the rendered document.
type OutputConfig struct {
	SiteTitle     string `mapstructure:"site_title"`
	SiteSummary   string `mapstructure:"site_summary"`
	IncludeFailed bool   `mapstructure:"include_failed"`
	GeneratorName string `mapstructure:"generator_name"`
}

// StorageConfig selects the artifact store.
type StorageConfig struct {
	// Provider is one of "local", "gcs", or "noop".
	Provider  string `mapstructure:"provider"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// DBConfig controls run-history persistence. An empty DSN disables it.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	RunsTable       string        `mapstructure:"runs_table"`
	PagesTable      string        `mapstructure:"pages_table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds run-event notification settings. An empty topic
// disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. path may be empty, in which
// case defaults and LLMSTXT_* environment variables apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LLMSTXT")
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
	v.SetDefault("fetch.concurrency", 10)
	v.SetDefault("fetch.timeout", "30s")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_initial", "250ms")
	v.SetDefault("fetch.backoff_max", "5s")
	v.SetDefault("fetch.user_agent", "llmstxt-bot/1.0")
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.max_body_bytes", 5*1024*1024)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout", "25s")
	v.SetDefault("headless.body_threshold", 2048)
	v.SetDefault("analyzer.max_description_len", 150)
	v.SetDefault("analyzer.max_snippet_len", 2000)
	v.SetDefault("analyzer.probe_markdown", true)
	v.SetDefault("analyzer.probe_timeout", "10s")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.timeout", "30s")
	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.concurrency", 4)
	v.SetDefault("enrich.requests_per_second", 2.0)
	v.SetDefault("enrich.max_attempts", 3)
	v.SetDefault("enrich.backoff_initial", "1s")
	v.SetDefault("enrich.backoff_max", "30s")
	v.SetDefault("output.include_failed", true)
	v.SetDefault("output.generator_name", "llmstxt")
	v.SetDefault("storage.provider", "noop")
	v.SetDefault("storage.local_dir", "data/artifacts")
	v.SetDefault("db.runs_table", "generation_runs")
	v.SetDefault("db.pages_table", "generation_pages")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.Concurrency <= 0 {
		return fmt.Errorf("fetch.concurrency must be > 0")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Enrich.Enabled && c.OpenRouter.APIKey != "" && c.OpenRouter.Model == "" {
		return fmt.Errorf("openrouter.model must be set when an api key is configured")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Storage.Provider {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local provider")
		}
	case "gcs":
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs provider")
		}
	case "noop", "":
	default:
		return fmt.Errorf("storage.provider must be local, gcs, or noop")
	}
	return nil
}
