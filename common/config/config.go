package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all engine configuration
type Config struct {
	Service   ServiceConfig
	Database  DatabaseConfig
	Blob      BlobConfig
	Scheduler SchedulerConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Telemetry TelemetryConfig
}

// ServiceConfig holds service-specific settings
type ServiceConfig struct {
	Name        string
	GRPCPort    int
	AdminPort   int
	Environment string
	LogLevel    string
	LogFormat   string
}

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	MaxConns    int
	MinConns    int
	MaxIdleTime time.Duration
	MaxLifetime time.Duration
}

// BlobConfig holds blob sidecar settings
type BlobConfig struct {
	// Root directory of the content-addressed sidecar; blobs live at
	// <Dir>/<hash[0:2]>/<hash>
	Dir string

	// Outputs larger than this many bytes are claim-checked to the sidecar
	InlineThreshold int
}

// SchedulerConfig holds task queue and tick loop settings
type SchedulerConfig struct {
	LeaseTTL          time.Duration
	TickInterval      time.Duration
	MaxAttemptsEffect int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
}

// RedisConfig holds the hot-path status mirror / event channel settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
}

// CacheConfig holds the in-process IR text cache settings
type CacheConfig struct {
	Enabled    bool
	DefaultTTL time.Duration
}

// TelemetryConfig holds observability settings
type TelemetryConfig struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// Load loads configuration from environment variables
func Load(serviceName string) (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			Name:        serviceName,
			GRPCPort:    getEnvInt("GRPC_PORT", 50051),
			AdminPort:   getEnvInt("ADMIN_PORT", 8080),
			Environment: getEnv("ENVIRONMENT", "development"),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
			LogFormat:   getEnv("LOG_FORMAT", "text"), // Default to text for development
		},
		Database: DatabaseConfig{
			Host:        getEnv("POSTGRES_HOST", "localhost"),
			Port:        getEnvInt("POSTGRES_PORT", 5432),
			Database:    getEnv("POSTGRES_DB", "nexum"),
			User:        getEnv("POSTGRES_USER", "nexum"),
			Password:    getEnv("POSTGRES_PASSWORD", "nexum"),
			MaxConns:    getEnvInt("POSTGRES_MAX_CONNS", 50),
			MinConns:    getEnvInt("POSTGRES_MIN_CONNS", 10),
			MaxIdleTime: getEnvDuration("POSTGRES_MAX_IDLE_TIME", 30*time.Minute),
			MaxLifetime: getEnvDuration("POSTGRES_MAX_LIFETIME", 1*time.Hour),
		},
		Blob: BlobConfig{
			Dir:             getEnv("BLOB_DIR", ".nexum/blobs"),
			InlineThreshold: getEnvInt("BLOB_INLINE_THRESHOLD", 100*1024),
		},
		Scheduler: SchedulerConfig{
			LeaseTTL:          getEnvDuration("LEASE_TTL", 30*time.Second),
			TickInterval:      getEnvDuration("TICK_INTERVAL", 500*time.Millisecond),
			MaxAttemptsEffect: getEnvInt("MAX_ATTEMPTS_EFFECT", 3),
			BackoffBase:       getEnvDuration("RETRY_BACKOFF_BASE", 1*time.Second),
			BackoffCap:        getEnvDuration("RETRY_BACKOFF_CAP", 30*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Cache: CacheConfig{
			Enabled:    getEnvBool("CACHE_ENABLED", true),
			DefaultTTL: getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Telemetry: TelemetryConfig{
			EnablePprof:   getEnvBool("ENABLE_PPROF", true),
			PprofPort:     getEnvInt("PPROF_PORT", 6060),
			EnableMetrics: getEnvBool("ENABLE_METRICS", true),
			MetricsPort:   getEnvInt("METRICS_PORT", 9090),
		},
	}

	return cfg, cfg.Validate()
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Service.GRPCPort < 1 || c.Service.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Service.GRPCPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns must be >= min_conns")
	}

	if c.Blob.InlineThreshold <= 0 {
		return fmt.Errorf("blob inline threshold must be > 0")
	}

	if c.Scheduler.LeaseTTL <= 0 {
		return fmt.Errorf("lease TTL must be > 0")
	}

	if c.Scheduler.TickInterval <= 0 || c.Scheduler.TickInterval > time.Second {
		return fmt.Errorf("tick interval must be in (0, 1s]")
	}

	if c.Scheduler.MaxAttemptsEffect < 1 {
		return fmt.Errorf("max attempts for EFFECT must be >= 1")
	}

	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
	)
}

// RedisAddr returns the host:port address of the status mirror
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
