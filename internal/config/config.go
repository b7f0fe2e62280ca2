package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the QuickSend API.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	NATS     NATSConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
	Metrics  MetricsConfig
	Policy   PolicyConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	PublicURL    string
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// NATSConfig carries the event bus connection details.
type NATSConfig struct {
	URL           string
	UploadSubject string
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	BcryptCost         int
}

// SMTPConfig configures the optional share-notification mailer.
type SMTPConfig struct {
	Host    string
	Port    int
	From    string
	Enabled bool
}

// Address returns the SMTP server address in host:port form.
func (s SMTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// PolicyConfig holds the file-lifecycle policy constants. Components receive
// these at construction and never read ambient state.
type PolicyConfig struct {
	RetentionWindow time.Duration
	MaxDownloads    int64
	DefaultQuota    int64
	MaxUploadSize   int64
	SignedURLTTL    time.Duration
	SweepInterval   time.Duration
	ThumbnailMaxW   int
	ThumbnailMaxH   int
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("QUICKSEND_API_HOST", "0.0.0.0"),
			Port:         getInt("QUICKSEND_API_PORT", 8080),
			ReadTimeout:  getDuration("QUICKSEND_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("QUICKSEND_API_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:  getDuration("QUICKSEND_API_IDLE_TIMEOUT", 60*time.Second),
			PublicURL:    getString("QUICKSEND_PUBLIC_URL", "http://localhost:8080"),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "quicksend_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "quicksend"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "quicksend"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "quicksend"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		NATS: NATSConfig{
			URL:           getString("NATS_URL", "nats://localhost:4222"),
			UploadSubject: getString("NATS_UPLOAD_SUBJECT", "files.uploaded"),
		},
		Auth: loadAuthConfig(),
		SMTP: SMTPConfig{
			Host:    getString("SMTP_HOST", "localhost"),
			Port:    getInt("SMTP_PORT", 25),
			From:    getString("SMTP_FROM", "no-reply@quicksend.local"),
			Enabled: getBool("SMTP_ENABLED", false),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("QUICKSEND_METRICS_PATH", "/metrics"),
		},
		Policy: PolicyConfig{
			RetentionWindow: getDuration("FILE_RETENTION_WINDOW", 7*24*time.Hour),
			MaxDownloads:    int64(getInt("FILE_MAX_DOWNLOADS", 100)),
			DefaultQuota:    getInt64("USER_DEFAULT_QUOTA_BYTES", 1_000_000_000),
			MaxUploadSize:   getInt64("FILE_MAX_UPLOAD_BYTES", 10*1024*1024),
			SignedURLTTL:    getDuration("FILE_SIGNED_URL_TTL", 15*time.Minute),
			SweepInterval:   getDuration("SWEEP_INTERVAL", time.Hour),
			ThumbnailMaxW:   getInt("THUMBNAIL_MAX_WIDTH", 200),
			ThumbnailMaxH:   getInt("THUMBNAIL_MAX_HEIGHT", 200),
		},
	}

	if cfg.Policy.RetentionWindow <= 0 {
		return Config{}, fmt.Errorf("retention window must be positive")
	}
	if cfg.Policy.MaxDownloads <= 0 {
		return Config{}, fmt.Errorf("max downloads must be positive")
	}
	if cfg.Policy.MaxUploadSize <= 0 {
		return Config{}, fmt.Errorf("max upload size must be positive")
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func loadAuthConfig() AuthConfig {
	cost := getInt("QUICKSEND_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		AccessTokenSecret:  getString("QUICKSEND_JWT_SECRET", "change-me-to-a-32-byte-secret"),
		RefreshTokenSecret: getString("QUICKSEND_JWT_REFRESH_SECRET", "change-me-to-a-64-byte-secret"),
		AccessTokenTTL:     getDuration("QUICKSEND_AUTH_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getDuration("QUICKSEND_AUTH_REFRESH_TOKEN_TTL", 720*time.Hour),
		BcryptCost:         cost,
	}
}
