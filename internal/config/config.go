// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/restaurant-pipeline/internal/frontier"
)

// Supported backend names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	StorageLocal  = "local"
	StorageGCS    = "gcs"
	StorageMemory = "memory"

	PublisherNone   = "none"
	PublisherMemory = "memory"
	PublisherPubSub = "pubsub"
)

// Config captures every knob a pipeline run reads.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Extract   ExtractConfig   `mapstructure:"extract"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig selects and reaches the frontier store.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// PipelineConfig tunes the orchestrator.
type PipelineConfig struct {
	BatchSize   int           `mapstructure:"batch_size"`
	GetTimeout  time.Duration `mapstructure:"get_timeout"`
	MaxExtract  int           `mapstructure:"max_extract"`
	Interactive bool          `mapstructure:"interactive"`
}

// BootstrapConfig points at the restaurant list and its cursor file.
type BootstrapConfig struct {
	Source   string `mapstructure:"source"`
	Progress string `mapstructure:"progress"`
}

// ScoringConfig carries the priority weights.
type ScoringConfig struct {
	Credibility float64               `mapstructure:"credibility"`
	Weights     frontier.ScoreWeights `mapstructure:"weights"`
}

// FetchConfig controls the page fetcher.
type FetchConfig struct {
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	MaxBodyBytes  int           `mapstructure:"max_body_bytes"`
}

// RateLimitConfig paces requests per host.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// PolicyConfig lists hosts that never enter the frontier.
type PolicyConfig struct {
	BlockedHosts []string `mapstructure:"blocked_hosts"`
}

// ExtractConfig lists the page fields transform pulls out.
type ExtractConfig struct {
	Selectors map[string]string `mapstructure:"selectors"`
	Keywords  []string          `mapstructure:"keywords"`
}

// StorageConfig selects where records are written.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PublisherConfig selects where load notices go.
type PublisherConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// MetricsConfig controls the end-of-run metrics export.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// ProgressConfig sizes the progress hub.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	SinkTimeout    time.Duration `mapstructure:"sink_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment. Environment variables use the
// PIPELINE_ prefix with dots replaced by underscores.
func Load(path string) (Config, error) {
	return LoadWith(viper.New(), path)
}

// LoadWith reads into an existing Viper instance so callers can bind flags
// before loading.
func LoadWith(v *viper.Viper, path string) (Config, error) {
	v.SetEnvPrefix("PIPELINE")
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
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	cfg.Publisher.Backend = strings.ToLower(strings.TrimSpace(cfg.Publisher.Backend))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	w := frontier.DefaultScoreWeights()

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.sqlite_path", "data/frontier.db")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("pipeline.batch_size", 20)
	v.SetDefault("pipeline.get_timeout", time.Second)
	v.SetDefault("pipeline.max_extract", 0)
	v.SetDefault("pipeline.interactive", false)
	v.SetDefault("bootstrap.source", "data/restaurants.json")
	v.SetDefault("bootstrap.progress", "data/progress.json")
	v.SetDefault("scoring.credibility", 0.5)
	v.SetDefault("scoring.weights.base", w.Base)
	v.SetDefault("scoring.weights.initial_search_boost", w.InitialSearchBoost)
	v.SetDefault("scoring.weights.credibility_weight", w.CredibilityWeight)
	v.SetDefault("scoring.weights.repeat_penalty", w.RepeatPenalty)
	v.SetDefault("scoring.weights.min", w.Min)
	v.SetDefault("scoring.weights.max", w.Max)
	v.SetDefault("fetch.user_agent", "restaurant-pipeline/0.1")
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.respect_robots", true)
	v.SetDefault("fetch.max_body_bytes", 5<<20)
	v.SetDefault("ratelimit.rps", 1.0)
	v.SetDefault("ratelimit.burst", 1)
	v.SetDefault("extract.keywords", []string{"menu", "reservation", "vegetarian", "opening hours"})
	v.SetDefault("storage.backend", StorageLocal)
	v.SetDefault("storage.local_dir", "data/records")
	v.SetDefault("storage.prefix", "records")
	v.SetDefault("publisher.backend", PublisherNone)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait", 250*time.Millisecond)
	v.SetDefault("progress.sink_timeout", 5*time.Second)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn must be set when database.driver is %q", DriverPostgres)
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("database.sqlite_path must be set when database.driver is %q", DriverSQLite)
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Pipeline.BatchSize <= 0 {
		return fmt.Errorf("pipeline.batch_size must be > 0")
	}
	if c.Pipeline.GetTimeout <= 0 {
		return fmt.Errorf("pipeline.get_timeout must be > 0")
	}
	if c.Pipeline.MaxExtract < 0 {
		return fmt.Errorf("pipeline.max_extract must be >= 0")
	}
	if c.Scoring.Credibility < 0 || c.Scoring.Credibility > 1 {
		return fmt.Errorf("scoring.credibility must be within [0, 1]")
	}
	if c.Scoring.Weights.Min > c.Scoring.Weights.Max {
		return fmt.Errorf("scoring.weights.min must not exceed scoring.weights.max")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("ratelimit.rps must be >= 0")
	}
	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case StorageGCS:
		if c.Storage.GCSBucket == "" {
			return fmt.Errorf("storage.gcs_bucket must be set for the gcs backend")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}
	switch c.Publisher.Backend {
	case PublisherNone, PublisherMemory:
	case PublisherPubSub:
		if c.Publisher.ProjectID == "" || c.Publisher.TopicName == "" {
			return fmt.Errorf("publisher.project_id and publisher.topic_name must be set for pubsub")
		}
	default:
		return fmt.Errorf("publisher.backend %q is not supported", c.Publisher.Backend)
	}
	return nil
}
