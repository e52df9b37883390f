package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Session   SessionConfig
	Feed      FeedConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	Required       bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SessionConfig drives the session cookie and the key used to encrypt it.
type SessionConfig struct {
	Secret        string
	CookieName    string
	MaxAgeMinutes int
}

// FeedConfig configures the external posts widget shown on the dashboard.
type FeedConfig struct {
	URL                string
	TimeoutSeconds     int
	Limit              int
	CacheTTLSeconds    int
	FailureThreshold   int
	OpenTimeoutSeconds int
}

// RateLimitConfig bounds mutating requests per client IP.
type RateLimitConfig struct {
	Max           int
	WindowSeconds int
}

// TracingConfig toggles OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	sampleRatio, err := strconv.ParseFloat(getEnv("OTEL_SAMPLER_RATIO", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_SAMPLER_RATIO: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "crm-basico"),
			Env:                   getEnv("APP_ENV", getEnv("NODE_ENV", "development")),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("PORT", getEnv("APP_PORT", "3000")),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            resolveDSN(),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 0)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			Required:       getEnvAsBool("DB_REQUIRED", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Session: SessionConfig{
			Secret:        os.Getenv("SESSION_SECRET"),
			CookieName:    getEnv("SESSION_COOKIE_NAME", "session"),
			MaxAgeMinutes: getEnvAsInt("SESSION_MAX_AGE_MINUTES", 24*60),
		},
		Feed: FeedConfig{
			URL:                getEnv("FEED_URL", "https://jsonplaceholder.typicode.com/posts"),
			TimeoutSeconds:     getEnvAsInt("FEED_TIMEOUT_SECONDS", 5),
			Limit:              getEnvAsInt("FEED_LIMIT", 3),
			CacheTTLSeconds:    getEnvAsInt("FEED_CACHE_TTL_SECONDS", 300),
			FailureThreshold:   getEnvAsInt("FEED_FAILURE_THRESHOLD", 3),
			OpenTimeoutSeconds: getEnvAsInt("FEED_OPEN_TIMEOUT_SECONDS", 60),
		},
		RateLimit: RateLimitConfig{
			Max:           getEnvAsInt("RATE_LIMIT_MAX", 60),
			WindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Endpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: sampleRatio,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the settings production deployments cannot run without.
func (c *Config) Validate() error {
	if !c.App.IsProduction() {
		return nil
	}
	var missing []string
	if c.Postgres.DSN == "" {
		missing = append(missing, "POSTGRES_DSN (or DB_HOST, DB_USER, DB_PASSWORD)")
	}
	if strings.TrimSpace(c.Session.Secret) == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if len(missing) > 0 {
		return errors.New("missing required environment variables: " + strings.Join(missing, ", "))
	}
	return nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return net.JoinHostPort(a.Host, a.Port)
}

// IsProduction reports whether the app runs with production hardening.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// MaxAge returns the session lifetime.
func (s SessionConfig) MaxAge() time.Duration {
	if s.MaxAgeMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(s.MaxAgeMinutes) * time.Minute
}

// Timeout returns the feed request timeout.
func (f FeedConfig) Timeout() time.Duration {
	return secondsOr(f.TimeoutSeconds, 5*time.Second)
}

// CacheTTL returns how long fetched posts are reused.
func (f FeedConfig) CacheTTL() time.Duration {
	return secondsOr(f.CacheTTLSeconds, 0)
}

// OpenTimeout returns how long the feed breaker stays open.
func (f FeedConfig) OpenTimeout() time.Duration {
	return secondsOr(f.OpenTimeoutSeconds, time.Minute)
}

// Window returns the rate limit window.
func (r RateLimitConfig) Window() time.Duration {
	return secondsOr(r.WindowSeconds, time.Minute)
}

// resolveDSN prefers POSTGRES_DSN and otherwise assembles one from the
// discrete DB_* variables.
func resolveDSN() string {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(getEnv("DB_USER", "postgres"), os.Getenv("DB_PASSWORD")),
		Host:   net.JoinHostPort(host, getEnv("DB_PORT", "5432")),
		Path:   "/" + getEnv("DB_NAME", "crm_basico"),
	}
	q := url.Values{}
	q.Set("sslmode", getEnv("DB_SSLMODE", "disable"))
	u.RawQuery = q.Encode()
	return u.String()
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
