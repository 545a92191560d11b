package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Cache     CacheConfig     `yaml:"cache"`
	Sync      SyncConfig      `yaml:"sync"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Dedupe    DedupeConfig    `yaml:"dedupe"`
	Stores    StoresConfig    `yaml:"stores"`
	PubSub    PubSubConfig    `yaml:"pubsub"`
	API       APIConfig       `yaml:"api"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type AppConfig struct {
	InstanceID      string        `yaml:"instance_id"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type JWTConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Alg            string        `yaml:"alg"` // RS256
	PublicKeyPath  string        `yaml:"public_key_path"`
	PrivateKeyPath string        `yaml:"private_key_path"`
	Audience       string        `yaml:"audience"`
	Issuer         string        `yaml:"issuer"`
	Leeway         time.Duration `yaml:"leeway"`
}

type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	ByJWT   struct {
		RefillPerSec int `yaml:"refill_per_sec"`
		Burst        int `yaml:"burst"`
	} `yaml:"by_jwt"`
	ByIP struct {
		RefillPerSec int `yaml:"refill_per_sec"`
		Burst        int `yaml:"burst"`
	} `yaml:"by_ip"`
}

// Upstream market-data API (read-only, rate-limited on their side)
type UpstreamConfig struct {
	BaseURL      string        `yaml:"base_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxAttempts  int           `yaml:"max_attempts"`  // bounded retry, default 3
	RetryBackoff time.Duration `yaml:"retry_backoff"` // linear: backoff * attempt
}

// TTL per resource class. Resources that change every block need sub-minute
// freshness; aggregate listings tolerate staleness.
type TTLClassesConfig struct {
	Default     time.Duration `yaml:"default"`      // listings, ~20m
	CreatedSort time.Duration `yaml:"created_sort"` // /api/tokens?sort=created_time, ~30s
	Newest      time.Duration `yaml:"newest"`       // newest-tokens window, ~20s
	Older       time.Duration `yaml:"older"`        // older-recent window, ~2m
	Trades      time.Duration `yaml:"trades"`       // per-token trade feed, ~30s
	Holders     time.Duration `yaml:"holders"`      // holder snapshot, ~60s
}

type CacheConfig struct {
	Backend      string           `yaml:"backend"` // memory|redis
	Prefix       string           `yaml:"prefix"`
	TTL          TTLClassesConfig `yaml:"ttl"`
	StaleFactor  int              `yaml:"stale_factor"`  // retention = ttl * factor
	MinRetention time.Duration    `yaml:"min_retention"` // floor for stale retention
	JanitorEvery time.Duration    `yaml:"janitor_every"` // memory backend only
}

// Two overlapping poll windows over the same token feed
type SyncConfig struct {
	NewestInterval   time.Duration `yaml:"newest_interval"` // ~10-15s
	OlderInterval    time.Duration `yaml:"older_interval"`  // ~45-60s
	OlderLimit       int           `yaml:"older_limit"`     // newest window is fixed at 4 upstream
	HighlightTTL     time.Duration `yaml:"highlight_ttl"`     // newTokenIds clear delay, ~3s
	MaxConcurrent    int           `yaml:"max_concurrent"`    // creator aggregations per cycle
	SnapshotInterval time.Duration `yaml:"snapshot_interval"` // warm-start snapshot to redis
}

type ScoreWeightsConfig struct {
	Success float64 `yaml:"success"`
	Volume  float64 `yaml:"volume"`
	Holders float64 `yaml:"holders"`
	Trades  float64 `yaml:"trades"`
}

type TierThresholdsConfig struct {
	Legendary float64 `yaml:"legendary"`
	Epic      float64 `yaml:"epic"`
	Great     float64 `yaml:"great"`
	Okay      float64 `yaml:"okay"`
	Neutral   float64 `yaml:"neutral"`
	Meh       float64 `yaml:"meh"`
}

type ScoringConfig struct {
	Weights          ScoreWeightsConfig   `yaml:"weights"`
	Tiers            TierThresholdsConfig `yaml:"tiers"`
	MaxTrackedTokens int                  `yaml:"max_tracked_tokens"` // per-creator retained list, default 25
	MinActivePrice   float64              `yaml:"min_active_price"`   // sats, default 0.15
	ActivityWindow   time.Duration        `yaml:"activity_window"`    // default 8 days
}

// Restart-safe suppression of already-announced token ids
type DedupeConfig struct {
	TTL    time.Duration `yaml:"ttl"`
	Prefix string        `yaml:"prefix"`
	Bloom  BloomConfig   `yaml:"bloom"`
}

type BloomConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Key      string  `yaml:"key"`
	Capacity int64   `yaml:"capacity"`
	ErrRate  float64 `yaml:"err_rate"`
}

type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type ClickHouseWriterConfig struct {
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

type ClickHouseConfig struct {
	Enabled bool                   `yaml:"enabled"`
	DSN     string                 `yaml:"dsn"`
	Writer  ClickHouseWriterConfig `yaml:"writer"`
}

type StoresConfig struct {
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type NATSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url"`
	BroadcastPrefix string `yaml:"broadcast_prefix"`
}

type PubSubConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
	Headers []string `yaml:"headers"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORS         CORSConfig    `yaml:"cors"`
}

type APIConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

type PyroscopeConfig struct {
	Enabled    bool              `yaml:"enabled"`
	AppName    string            `yaml:"app_name"`
	ServerAddr string            `yaml:"server_addr"`
	AuthToken  string            `yaml:"auth_token"`
	Tags       map[string]string `yaml:"tags"`
}

type MetricsConfig struct {
	Pyroscope PyroscopeConfig `yaml:"pyroscope"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
