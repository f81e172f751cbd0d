package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Billing  BillingConfig
	Gateway  GatewayConfig
	Receipts ReceiptsConfig
	Reminder ReminderConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BillingConfig holds the tuition billing policy knobs.
type BillingConfig struct {
	BatchCapacity     int
	PaymentWindowDays int
	Currency          string
	VerifyDebounceTTL time.Duration
}

// GatewayConfig configures the payment gateway verification client.
type GatewayConfig struct {
	Enabled   bool
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// ReceiptsConfig controls receipt storage and signed download links.
type ReceiptsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// ReminderConfig governs the payment reminder sweep worker.
type ReminderConfig struct {
	Enabled           bool
	Interval          time.Duration
	LeadDays          int
	WorkerConcurrency int
	WorkerRetries     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Billing = BillingConfig{
		BatchCapacity:     v.GetInt("BATCH_CAPACITY"),
		PaymentWindowDays: v.GetInt("PAYMENT_WINDOW_DAYS"),
		Currency:          v.GetString("BILLING_CURRENCY"),
		VerifyDebounceTTL: parseDuration(v.GetString("VERIFY_DEBOUNCE_TTL"), 15*time.Minute),
	}

	cfg.Gateway = GatewayConfig{
		Enabled:   v.GetBool("GATEWAY_VERIFY_ENABLED"),
		BaseURL:   v.GetString("GATEWAY_BASE_URL"),
		SecretKey: v.GetString("GATEWAY_SECRET_KEY"),
		Timeout:   parseDuration(v.GetString("GATEWAY_TIMEOUT"), 10*time.Second),
	}

	cfg.Receipts = ReceiptsConfig{
		StorageDir:      v.GetString("RECEIPTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("RECEIPTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("RECEIPTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("RECEIPTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Reminder = ReminderConfig{
		Enabled:           v.GetBool("ENABLE_REMINDERS"),
		Interval:          parseDuration(v.GetString("REMINDER_INTERVAL"), 24*time.Hour),
		LeadDays:          v.GetInt("REMINDER_LEAD_DAYS"),
		WorkerConcurrency: v.GetInt("REMINDER_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REMINDER_WORKER_RETRIES"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "academy_billing")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BATCH_CAPACITY", 20)
	v.SetDefault("PAYMENT_WINDOW_DAYS", 10)
	v.SetDefault("BILLING_CURRENCY", "NGN")
	v.SetDefault("VERIFY_DEBOUNCE_TTL", "15m")

	v.SetDefault("GATEWAY_VERIFY_ENABLED", false)
	v.SetDefault("GATEWAY_BASE_URL", "https://api.paystack.co")
	v.SetDefault("GATEWAY_SECRET_KEY", "")
	v.SetDefault("GATEWAY_TIMEOUT", "10s")

	v.SetDefault("RECEIPTS_STORAGE_DIR", "./receipts")
	v.SetDefault("RECEIPTS_SIGNED_URL_SECRET", "dev_receipts_secret")
	v.SetDefault("RECEIPTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("RECEIPTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("ENABLE_REMINDERS", false)
	v.SetDefault("REMINDER_INTERVAL", "24h")
	v.SetDefault("REMINDER_LEAD_DAYS", 10)
	v.SetDefault("REMINDER_WORKER_CONCURRENCY", 1)
	v.SetDefault("REMINDER_WORKER_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
