package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Audit         AuditConfig         `yaml:"audit"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration. Redis backs rate limiting and
// is optional; an empty address disables it.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// AuthConfig holds token and session settings.
type AuthConfig struct {
	TokenCacheSize int           `yaml:"token_cache_size"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
}

// RateLimitConfig holds rate limiter settings.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerWindow int           `yaml:"requests_per_window"`
	Window            time.Duration `yaml:"window"`
}

// AuditConfig holds audit trail settings.
type AuditConfig struct {
	// File sink; empty Dir disables file logging.
	Dir          string `yaml:"dir"`
	MaxFileBytes int64  `yaml:"max_file_bytes"`
	MaxFiles     int    `yaml:"max_files"`

	// Retention sweep.
	RetentionDays int    `yaml:"retention_days"`
	SweepSchedule string `yaml:"sweep_schedule"`

	// S3 archival of expiring events; empty bucket disables it.
	ArchiveBucket    string `yaml:"archive_bucket"`
	ArchivePrefix    string `yaml:"archive_prefix"`
	ArchiveRegion    string `yaml:"archive_region"`
	ArchiveEndpoint  string `yaml:"archive_endpoint"`
	ArchiveAccessKey string `yaml:"archive_access_key"`
	ArchiveSecretKey string `yaml:"archive_secret_key"`
}

// ObservabilityConfig holds logging, metrics, and tracing settings.
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: RedisConfig{
			PoolSize: 10,
		},
		Auth: AuthConfig{
			TokenCacheSize: 1024,
			TokenTTL:       90 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 100,
			Window:            time.Minute,
		},
		Audit: AuditConfig{
			MaxFileBytes:  64 << 20,
			MaxFiles:      10,
			RetentionDays: 365,
			SweepSchedule: "0 3 * * *",
			ArchivePrefix: "audit/",
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "chordme",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// Load resolves configuration from defaults, the optional YAML file
// named by CHORDME_CONFIG_FILE, and CHORDME_* environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CHORDME_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.mergeEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadFile resolves configuration from defaults, the given YAML file,
// and the environment.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	cfg.mergeEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) mergeEnv() {
	c.Server.Host = getEnv("CHORDME_HOST", c.Server.Host)
	c.Server.Port = getEnv("CHORDME_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("CHORDME_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("CHORDME_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("CHORDME_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("CHORDME_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.HealthPort = getEnv("CHORDME_HEALTH_PORT", c.Server.HealthPort)

	c.Database.URL = getEnv("CHORDME_POSTGRES_URL", c.Database.URL)
	c.Database.MaxOpenConns = getEnvInt("CHORDME_POSTGRES_MAX_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvInt("CHORDME_POSTGRES_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLifetime = getEnvDuration("CHORDME_POSTGRES_CONN_LIFETIME", c.Database.ConnMaxLifetime)

	c.Redis.Addr = getEnv("CHORDME_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("CHORDME_REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvInt("CHORDME_REDIS_DB", c.Redis.DB)
	c.Redis.PoolSize = getEnvInt("CHORDME_REDIS_POOL_SIZE", c.Redis.PoolSize)

	c.Auth.TokenCacheSize = getEnvInt("CHORDME_TOKEN_CACHE_SIZE", c.Auth.TokenCacheSize)
	c.Auth.TokenTTL = getEnvDuration("CHORDME_TOKEN_TTL", c.Auth.TokenTTL)

	c.RateLimit.Enabled = getEnvBool("CHORDME_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.RequestsPerWindow = getEnvInt("CHORDME_RATE_LIMIT_REQUESTS", c.RateLimit.RequestsPerWindow)
	c.RateLimit.Window = getEnvDuration("CHORDME_RATE_LIMIT_WINDOW", c.RateLimit.Window)

	c.Audit.Dir = getEnv("CHORDME_AUDIT_DIR", c.Audit.Dir)
	c.Audit.MaxFileBytes = getEnvInt64("CHORDME_AUDIT_MAX_FILE_BYTES", c.Audit.MaxFileBytes)
	c.Audit.MaxFiles = getEnvInt("CHORDME_AUDIT_MAX_FILES", c.Audit.MaxFiles)
	c.Audit.RetentionDays = getEnvInt("CHORDME_AUDIT_RETENTION_DAYS", c.Audit.RetentionDays)
	c.Audit.SweepSchedule = getEnv("CHORDME_AUDIT_SWEEP_SCHEDULE", c.Audit.SweepSchedule)
	c.Audit.ArchiveBucket = getEnv("CHORDME_AUDIT_ARCHIVE_BUCKET", c.Audit.ArchiveBucket)
	c.Audit.ArchivePrefix = getEnv("CHORDME_AUDIT_ARCHIVE_PREFIX", c.Audit.ArchivePrefix)
	c.Audit.ArchiveRegion = getEnv("CHORDME_AUDIT_ARCHIVE_REGION", c.Audit.ArchiveRegion)
	c.Audit.ArchiveEndpoint = getEnv("CHORDME_AUDIT_ARCHIVE_ENDPOINT", c.Audit.ArchiveEndpoint)
	c.Audit.ArchiveAccessKey = getEnv("CHORDME_AUDIT_ARCHIVE_ACCESS_KEY", c.Audit.ArchiveAccessKey)
	c.Audit.ArchiveSecretKey = getEnv("CHORDME_AUDIT_ARCHIVE_SECRET_KEY", c.Audit.ArchiveSecretKey)

	c.Observability.LogLevel = getEnv("CHORDME_LOG_LEVEL", c.Observability.LogLevel)
	c.Observability.MetricsEnabled = getEnvBool("CHORDME_METRICS_ENABLED", c.Observability.MetricsEnabled)
	c.Observability.OTelEnabled = getEnvBool("CHORDME_OTEL_ENABLED", c.Observability.OTelEnabled)
	c.Observability.OTelEndpoint = getEnv("CHORDME_OTEL_ENDPOINT", c.Observability.OTelEndpoint)
	c.Observability.OTelServiceName = getEnv("CHORDME_OTEL_SERVICE_NAME", c.Observability.OTelServiceName)
	c.Observability.OTelServiceVersion = getEnv("CHORDME_OTEL_SERVICE_VERSION", c.Observability.OTelServiceVersion)
	c.Observability.OTelInsecure = getEnvBool("CHORDME_OTEL_INSECURE", c.Observability.OTelInsecure)
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerWindow <= 0 {
			return fmt.Errorf("rate limit requests per window must be positive")
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive")
		}
	}

	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit retention days cannot be negative")
	}
	if c.Audit.ArchiveBucket != "" && c.Audit.ArchiveRegion == "" {
		return fmt.Errorf("audit archive region is required when archive bucket is set")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default.
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
