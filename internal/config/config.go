package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the KPI dashboard service.
type Config struct {
	Server    ServerConfig
	Warehouse WarehouseConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Report    ReportConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// WarehouseConfig configures the ClickHouse event analytics warehouse.
type WarehouseConfig struct {
	Addr        string
	Database    string
	User        string
	Password    string
	EventsTable string
	DialTimeout time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
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

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// ReportConfig holds aggregation policy: window defaults, query
// timeouts, cache TTL, and the cost defaults applied when the cost
// source is unavailable (reports are marked degraded in that case).
type ReportConfig struct {
	DefaultMonths  int
	MaxMonths      int
	QueryTimeout   time.Duration
	CacheTTL       time.Duration
	DefaultAdSpend float64
	DefaultAICost  float64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("KPI_DASH_HTTP_ADDR", ":8080"),
			Env:             getEnv("KPI_DASH_ENV", "development"),
			ShutdownTimeout: getDurationEnv("KPI_DASH_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Warehouse: WarehouseConfig{
			Addr:        getEnv("KPI_DASH_CH_ADDR", "localhost:9000"),
			Database:    getEnv("KPI_DASH_CH_DATABASE", "analytics"),
			User:        getEnv("KPI_DASH_CH_USER", "default"),
			Password:    getEnv("KPI_DASH_CH_PASSWORD", ""),
			EventsTable: getEnv("KPI_DASH_CH_EVENTS_TABLE", "events"),
			DialTimeout: getDurationEnv("KPI_DASH_CH_DIAL_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("KPI_DASH_DB_HOST", "localhost"),
			Port:            getIntEnv("KPI_DASH_DB_PORT", 5432),
			User:            getEnv("KPI_DASH_DB_USER", "kpidash"),
			Password:        getEnv("KPI_DASH_DB_PASSWORD", ""),
			DBName:          getEnv("KPI_DASH_DB_NAME", "commerce"),
			SSLMode:         getEnv("KPI_DASH_DB_SSLMODE", "disable"),
			MaxConns:        getIntEnv("KPI_DASH_DB_MAX_CONNS", 10),
			MinConns:        getIntEnv("KPI_DASH_DB_MIN_CONNS", 2),
			MaxConnLifetime: getDurationEnv("KPI_DASH_DB_MAX_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime: getDurationEnv("KPI_DASH_DB_MAX_CONN_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getBoolEnv("KPI_DASH_REDIS_ENABLED", true),
			Addr:     getEnv("KPI_DASH_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("KPI_DASH_REDIS_PASSWORD", ""),
			DB:       getIntEnv("KPI_DASH_REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("KPI_DASH_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("KPI_DASH_RATE_LIMIT_RPS", 50),
			Burst:   getIntEnv("KPI_DASH_RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("KPI_DASH_LOG_LEVEL", "info"),
			Format: getEnv("KPI_DASH_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("KPI_DASH_METRICS_ENABLED", true),
			Path:    getEnv("KPI_DASH_METRICS_PATH", "/metrics"),
		},
		Report: ReportConfig{
			DefaultMonths:  getIntEnv("KPI_DASH_REPORT_DEFAULT_MONTHS", 6),
			MaxMonths:      getIntEnv("KPI_DASH_REPORT_MAX_MONTHS", 12),
			QueryTimeout:   getDurationEnv("KPI_DASH_REPORT_QUERY_TIMEOUT", 15*time.Second),
			CacheTTL:       getDurationEnv("KPI_DASH_REPORT_CACHE_TTL", 5*time.Minute),
			DefaultAdSpend: getFloatEnv("KPI_DASH_REPORT_DEFAULT_AD_SPEND", 0),
			DefaultAICost:  getFloatEnv("KPI_DASH_REPORT_DEFAULT_AI_COST", 0),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Report.DefaultMonths < 1 || c.Report.DefaultMonths > c.Report.MaxMonths {
		return fmt.Errorf("KPI_DASH_REPORT_DEFAULT_MONTHS must be in [1,%d]", c.Report.MaxMonths)
	}
	if c.Report.MaxMonths < 1 {
		return fmt.Errorf("KPI_DASH_REPORT_MAX_MONTHS must be positive")
	}
	if c.Report.QueryTimeout <= 0 {
		return fmt.Errorf("KPI_DASH_REPORT_QUERY_TIMEOUT must be positive")
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
