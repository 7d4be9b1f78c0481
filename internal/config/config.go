package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the vidpulse application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Worker     WorkerConfig
	Analytics  AnalyticsConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// ClickHouseConfig configures the interval snapshot store.
type ClickHouseConfig struct {
	Enabled     bool
	Addr        []string
	Database    string
	Username    string
	Password    string
	DialTimeout time.Duration
}

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled     bool
	RPS         float64
	Burst       int
	PublicRPS   float64
	PublicBurst int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool
	Path      string
	Namespace string
}

// WorkerConfig configures scheduled recomputation.
type WorkerConfig struct {
	Enabled bool
	// Schedule is a cron spec; the default runs at minute 5 of every hour,
	// after the hourly snapshot capture.
	Schedule    string
	Concurrency int
	RunTimeout  time.Duration
}

// AnalyticsConfig tunes the analytics engine.
type AnalyticsConfig struct {
	TopN int
	// PlatformTables maps platform name to its stat table.
	PlatformTables    map[string]string
	PublicCacheTTL    time.Duration
	QueryConcurrency  int
	ResponseNamespace string
}

// Load reads configuration from environment variables with sensible
// defaults. Variables from .env.local and .env are loaded first; already
// set variables win.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("VIDPULSE_HTTP_ADDR", ":8080"),
			Env:             getEnv("VIDPULSE_ENV", "development"),
			ShutdownTimeout: getDurationEnv("VIDPULSE_SHUTDOWN_TIMEOUT", 30*time.Second),
			RequestTimeout:  getDurationEnv("VIDPULSE_REQUEST_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolEnv("VIDPULSE_DB_ENABLED", true),
			Host:     getEnv("VIDPULSE_DB_HOST", "localhost"),
			Port:     getIntEnv("VIDPULSE_DB_PORT", 5432),
			User:     getEnv("VIDPULSE_DB_USER", "vidpulse"),
			Password: getEnv("VIDPULSE_DB_PASSWORD", "vidpulse_secret"),
			DBName:   getEnv("VIDPULSE_DB_NAME", "vidpulse"),
			SSLMode:  getEnv("VIDPULSE_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("VIDPULSE_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("VIDPULSE_DB_MIN_CONNS", 2),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("VIDPULSE_REDIS_ENABLED", true),
			Addr:     getEnv("VIDPULSE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("VIDPULSE_REDIS_PASSWORD", ""),
			DB:       getIntEnv("VIDPULSE_REDIS_DB", 0),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:     getBoolEnv("VIDPULSE_CLICKHOUSE_ENABLED", true),
			Addr:        getSliceEnv("VIDPULSE_CLICKHOUSE_ADDR", []string{"localhost:9000"}),
			Database:    getEnv("VIDPULSE_CLICKHOUSE_DB", "vidpulse"),
			Username:    getEnv("VIDPULSE_CLICKHOUSE_USER", "default"),
			Password:    getEnv("VIDPULSE_CLICKHOUSE_PASSWORD", ""),
			DialTimeout: getDurationEnv("VIDPULSE_CLICKHOUSE_DIAL_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("VIDPULSE_AUTH_ENABLED", true),
			MasterKey: getEnv("VIDPULSE_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("VIDPULSE_AUTH_SKIP_PATHS", []string{"/health", "/metrics", "/public/"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getBoolEnv("VIDPULSE_RATE_LIMIT_ENABLED", true),
			RPS:         getFloatEnv("VIDPULSE_RATE_LIMIT_RPS", 100),
			Burst:       getIntEnv("VIDPULSE_RATE_LIMIT_BURST", 20),
			PublicRPS:   getFloatEnv("VIDPULSE_RATE_LIMIT_PUBLIC_RPS", 5),
			PublicBurst: getIntEnv("VIDPULSE_RATE_LIMIT_PUBLIC_BURST", 10),
		},
		Log: LogConfig{
			Level:  getEnv("VIDPULSE_LOG_LEVEL", "info"),
			Format: getEnv("VIDPULSE_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled:   getBoolEnv("VIDPULSE_METRICS_ENABLED", true),
			Path:      getEnv("VIDPULSE_METRICS_PATH", "/metrics"),
			Namespace: getEnv("VIDPULSE_METRICS_NAMESPACE", "vidpulse"),
		},
		Worker: WorkerConfig{
			Enabled:     getBoolEnv("VIDPULSE_WORKER_ENABLED", true),
			Schedule:    getEnv("VIDPULSE_WORKER_SCHEDULE", "5 * * * *"),
			Concurrency: getIntEnv("VIDPULSE_WORKER_CONCURRENCY", 4),
			RunTimeout:  getDurationEnv("VIDPULSE_WORKER_RUN_TIMEOUT", 10*time.Minute),
		},
		Analytics: AnalyticsConfig{
			TopN: getIntEnv("VIDPULSE_TOP_VIDEOS", 100),
			PlatformTables: getMapEnv("VIDPULSE_PLATFORM_TABLES", map[string]string{
				"tiktok":    "tiktok_stats",
				"instagram": "instagram_stats",
				"youtube":   "youtube_stats",
			}),
			PublicCacheTTL:    getDurationEnv("VIDPULSE_PUBLIC_CACHE_TTL", 5*time.Minute),
			QueryConcurrency:  getIntEnv("VIDPULSE_QUERY_CONCURRENCY", 4),
			ResponseNamespace: getEnv("VIDPULSE_RESPONSE_CACHE_NAMESPACE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("VIDPULSE_API_KEY_MASTER is required when auth is enabled")
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("VIDPULSE_WORKER_CONCURRENCY must be >= 1, got %d", c.Worker.Concurrency)
	}
	if c.Analytics.TopN < 1 || c.Analytics.TopN > 100 {
		return fmt.Errorf("VIDPULSE_TOP_VIDEOS must be between 1 and 100, got %d", c.Analytics.TopN)
	}
	if len(c.Analytics.PlatformTables) == 0 {
		return fmt.Errorf("VIDPULSE_PLATFORM_TABLES must name at least one platform table")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// loadEnvFiles loads VIDPULSE_ENV_FILE when set, otherwise .env.local then
// .env. Missing files are ignored.
func loadEnvFiles() error {
	if f := os.Getenv("VIDPULSE_ENV_FILE"); f != "" {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load env file %s: %w", f, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}

// getMapEnv parses "k1=v1,k2=v2". Malformed pairs are skipped.
func getMapEnv(key string, def map[string]string) map[string]string {
	pairs := getSliceEnv(key, nil)
	if len(pairs) == 0 {
		return def
	}
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		result[k] = v
	}
	if len(result) == 0 {
		return def
	}
	return result
}
