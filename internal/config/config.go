package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Alerting     AlertingConfig
	Support      SupportConfig
	Ops          OpsConfig
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
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token verification parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig holds delivery channel settings.
type NotificationConfig struct {
	EmailFrom             string
	SMTPAddr              string
	SMTPUsername          string
	SMTPPassword          string
	AMQPURL               string
	AMQPExchange          string
	WebhookTimeoutSeconds int
	DispatchTimeoutSecond int
}

// AlertingConfig drives the background evaluator.
type AlertingConfig struct {
	Enabled                  bool
	IntervalSeconds          int
	TenantTimeoutSeconds     int
	ResolvedRetentionMinutes int
	SLASweepIntervalSeconds  int
}

// SupportConfig points at the business-model catalog and rate limit backend.
type SupportConfig struct {
	CatalogFile      string
	RateLimitBackend string
}

// OpsConfig configures the metrics and dashboard listener.
type OpsConfig struct {
	Addr string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:             getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPAddr:              os.Getenv("NOTIFY_SMTP_ADDR"),
			SMTPUsername:          os.Getenv("NOTIFY_SMTP_USERNAME"),
			SMTPPassword:          os.Getenv("NOTIFY_SMTP_PASSWORD"),
			AMQPURL:               os.Getenv("NOTIFY_AMQP_URL"),
			AMQPExchange:          getEnv("NOTIFY_AMQP_EXCHANGE", "support.push"),
			WebhookTimeoutSeconds: getEnvAsInt("NOTIFY_WEBHOOK_TIMEOUT_SECONDS", 10),
			DispatchTimeoutSecond: getEnvAsInt("NOTIFY_DISPATCH_TIMEOUT_SECONDS", 15),
		},
		Alerting: AlertingConfig{
			Enabled:                  getEnvAsBool("ALERT_ENGINE_ENABLED", true),
			IntervalSeconds:          getEnvAsInt("ALERT_INTERVAL_SECONDS", 300),
			TenantTimeoutSeconds:     getEnvAsInt("ALERT_TENANT_TIMEOUT_SECONDS", 30),
			ResolvedRetentionMinutes: getEnvAsInt("ALERT_RESOLVED_RETENTION_MINUTES", 60),
			SLASweepIntervalSeconds:  getEnvAsInt("SLA_SWEEP_INTERVAL_SECONDS", 60),
		},
		Support: SupportConfig{
			CatalogFile:      getEnv("SUPPORT_CONFIG_FILE", "configs/support.yaml"),
			RateLimitBackend: getEnv("RATE_LIMIT_BACKEND", "redis"),
		},
		Ops: OpsConfig{
			Addr: getEnv("OPS_ADDR", ":9090"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Interval returns the alert evaluation period.
func (a AlertingConfig) Interval() time.Duration {
	return secondsOr(a.IntervalSeconds, 5*time.Minute)
}

// TenantTimeout bounds the evaluation of a single tenant.
func (a AlertingConfig) TenantTimeout() time.Duration {
	return secondsOr(a.TenantTimeoutSeconds, 30*time.Second)
}

// ResolvedRetention is how long resolved alerts stay in the active registry.
func (a AlertingConfig) ResolvedRetention() time.Duration {
	if a.ResolvedRetentionMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(a.ResolvedRetentionMinutes) * time.Minute
}

// SLASweepInterval returns the breach sweep period.
func (a AlertingConfig) SLASweepInterval() time.Duration {
	return secondsOr(a.SLASweepIntervalSeconds, time.Minute)
}

// WebhookTimeout bounds one webhook POST.
func (n NotificationConfig) WebhookTimeout() time.Duration {
	return secondsOr(n.WebhookTimeoutSeconds, 10*time.Second)
}

// DispatchTimeout bounds one notification fan-out.
func (n NotificationConfig) DispatchTimeout() time.Duration {
	return secondsOr(n.DispatchTimeoutSecond, 15*time.Second)
}

func secondsOr(v int, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return time.Duration(v) * time.Second
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
