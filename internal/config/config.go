package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the ingestion/fan-out pipeline,
// assembled from environment variables (and a local .env file when one is
// present, via godotenv).
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	NATS         NATSConfig
	App          AppConfig
	AWS          AWSConfig
	Email        EmailConfig
	SMS          SMSConfig
	Push         PushConfig
	Validation   ValidationConfig
	Monetization MonetizationConfig
	Worker       WorkerConfig
}

// ServerConfig holds the API server's listen settings.
type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RedirectURL  string
	DiskPath     string
	APIKeys      map[string]bool
}

// DatabaseConfig holds Postgres connection settings — the Store of record.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds the optional advisory Index connection. Left with an
// empty Host, the Index is built without a Redis client and every Index
// operation is a no-op; nothing downstream requires it for correctness.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NATSConfig holds the optional low-latency worker wake-up signal.
type NATSConfig struct {
	URL           string
	MaxReconnects int
	ReconnectWait time.Duration
}

// AppConfig holds cross-cutting application settings.
type AppConfig struct {
	Environment  string
	AdminEmail   string
	SupportEmail string
}

// AWSConfig holds the AWS region and credentials used by the ops alert
// notifier's SES client. The SNS adapter reads its own from api_config.
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// EmailConfig holds settings for the email-list adapter and the ops
// alert notifier's SES leg.
type EmailConfig struct {
	SESFrom     string
	SESFromName string

	SendGridAPIKey string
	SendGridFrom   string

	MauticURL      string
	MauticUsername string
	MauticPassword string
	MauticListID   string
}

// SMSConfig holds the SMS adapter's primary (SNS) and fallback (Twilio)
// legs.
type SMSConfig struct {
	SNSFrom string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFrom       string

	EnableFailover bool
}

// PushConfig holds the ops alert notifier's optional FCM leg.
type PushConfig struct {
	FCMProjectID   string
	FCMCredentials string
	FCMOpsTopic    string
}

// ValidationConfig holds the email-validation adapter and its daily quota.
type ValidationConfig struct {
	ZeroBounceAPIKey  string
	ZeroBounceBaseURL string
	DailyLimit        int
	CacheDays         int
}

// MonetizationConfig holds the revenue-settlement adapter's endpoint.
type MonetizationConfig struct {
	APIURL string
	APIKey string
}

// WorkerConfig holds the queue-processor CLI's default shape, overridable
// per-invocation by flags.
type WorkerConfig struct {
	Workers               int
	BatchSize             int
	LeaseSeconds          int
	SleepInterval         time.Duration
	ReaperInterval        time.Duration
	StuckRecoveryAlertMin int
}

// Load reads configuration from the environment, falling back to a local
// .env file (ignored if absent — production deployments inject env vars
// directly).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8090),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			RedirectURL:  getEnv("LEAD_REDIRECT_URL", ""),
			DiskPath:     getEnv("DISK_CHECK_PATH", "/"),
			APIKeys:      parseAPIKeys(getEnv("API_KEYS", "")),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "unified_events"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		NATS: NATSConfig{
			URL:           getEnv("NATS_URL", ""),
			MaxReconnects: getEnvInt("NATS_MAX_RECONNECTS", -1),
			ReconnectWait: time.Duration(getEnvInt("NATS_RECONNECT_WAIT_SECONDS", 2)) * time.Second,
		},
		App: AppConfig{
			Environment:  getEnv("ENVIRONMENT", "development"),
			AdminEmail:   getEnv("ADMIN_EMAIL", ""),
			SupportEmail: getEnv("SUPPORT_EMAIL", ""),
		},
		AWS: AWSConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		Email: EmailConfig{
			SESFrom:        getEnv("AWS_SES_FROM", ""),
			SESFromName:    getEnv("AWS_SES_FROM_NAME", "Unified Events"),
			SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
			SendGridFrom:   getEnv("SENDGRID_FROM", ""),
			MauticURL:      getEnv("MAUTIC_URL", ""),
			MauticUsername: getEnv("MAUTIC_USERNAME", ""),
			MauticPassword: getEnv("MAUTIC_PASSWORD", ""),
			MauticListID:   getEnv("MAUTIC_LIST_ID", ""),
		},
		SMS: SMSConfig{
			SNSFrom:          getEnv("AWS_SNS_FROM", ""),
			TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
			TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
			TwilioFrom:       getEnv("TWILIO_FROM", ""),
			EnableFailover:   getEnvBool("SMS_FAILOVER_ENABLED", true),
		},
		Push: PushConfig{
			FCMProjectID:   getEnv("FCM_PROJECT_ID", ""),
			FCMCredentials: getEnv("FCM_CREDENTIALS_JSON", ""),
			FCMOpsTopic:    getEnv("FCM_OPS_TOPIC", ""),
		},
		Validation: ValidationConfig{
			ZeroBounceAPIKey:  getEnv("ZEROBOUNCE_API_KEY", ""),
			ZeroBounceBaseURL: getEnv("ZEROBOUNCE_BASE_URL", "https://api.zerobounce.net/v2"),
			DailyLimit:        getEnvInt("ZEROBOUNCE_DAILY_LIMIT", 10000),
			CacheDays:         getEnvInt("VALIDATION_CACHE_DAYS", 30),
		},
		Monetization: MonetizationConfig{
			APIURL: getEnv("MONETIZATION_API_URL", ""),
			APIKey: getEnv("MONETIZATION_API_KEY", ""),
		},
		Worker: WorkerConfig{
			Workers:               getEnvInt("WORKER_CONCURRENCY", 4),
			BatchSize:             getEnvInt("QUEUE_BATCH_SIZE", 100),
			LeaseSeconds:          getEnvInt("QUEUE_LEASE_SECONDS", 60),
			SleepInterval:         time.Duration(getEnvInt("QUEUE_SLEEP_SECONDS", 5)) * time.Second,
			ReaperInterval:        time.Duration(getEnvInt("QUEUE_REAPER_INTERVAL_SECONDS", 60)) * time.Second,
			StuckRecoveryAlertMin: getEnvInt("STUCK_RECOVERY_ALERT_THRESHOLD", 25),
		},
	}

	return cfg, nil
}

// DSN returns the Postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// Addr returns the Redis host:port pair, or "" when Redis is unconfigured.
func (c *RedisConfig) Addr() string {
	if c.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func parseAPIKeys(raw string) map[string]bool {
	keys := map[string]bool{}
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = true
		}
	}
	return keys
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
