package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
	StoreMemory    = "memory"
)

// Ledger event publisher drivers.
const (
	EventsNone     = "none"
	EventsRabbitMQ = "rabbitmq"
	EventsKafka    = "kafka"
)

// Config holds all configuration for the application.
type Config struct {
	Port     string `mapstructure:"PORT"`
	GinMode  string `mapstructure:"GIN_MODE"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	StoreDriver                      string `mapstructure:"STORE_DRIVER"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	DatabaseURL                      string `mapstructure:"DATABASE_URL"`

	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	ClientURL           string `mapstructure:"CLIENT_URL"`
	CatalogPath         string `mapstructure:"CATALOG_PATH"`
	SignupBonusCredits  int64  `mapstructure:"SIGNUP_BONUS_CREDITS"`

	RedisAddr       string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         int           `mapstructure:"REDIS_DB"`
	BalanceCacheTTL time.Duration `mapstructure:"BALANCE_CACHE_TTL"`

	EventsDriver  string `mapstructure:"EVENTS_DRIVER"`
	RabbitMQURL   string `mapstructure:"RABBITMQ_URL"`
	RabbitMQQueue string `mapstructure:"RABBITMQ_QUEUE"`
	KafkaBrokers  string `mapstructure:"KAFKA_BROKERS"` // comma separated
	KafkaTopic    string `mapstructure:"KAFKA_TOPIC"`

	SMTPHost string `mapstructure:"SMTP_HOST"`
	SMTPPort string `mapstructure:"SMTP_PORT"`
	SMTPUser string `mapstructure:"SMTP_USER"`
	SMTPPass string `mapstructure:"SMTP_PASS"`
	MailFrom string `mapstructure:"MAIL_FROM"`
}

var envKeys = []string{
	"PORT", "GIN_MODE", "LOG_LEVEL",
	"STORE_DRIVER", "FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64", "DATABASE_URL",
	"STRIPE_WEBHOOK_SECRET", "CLIENT_URL", "CATALOG_PATH", "SIGNUP_BONUS_CREDITS",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "BALANCE_CACHE_TTL",
	"EVENTS_DRIVER", "RABBITMQ_URL", "RABBITMQ_QUEUE", "KAFKA_BROKERS", "KAFKA_TOPIC",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "MAIL_FROM",
}

// LoadConfig loads configuration from environment variables using Viper.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreFirestore)
	v.SetDefault("CATALOG_PATH", "configs/catalog.yaml")
	v.SetDefault("SIGNUP_BONUS_CREDITS", 1)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("BALANCE_CACHE_TTL", "30s")
	v.SetDefault("EVENTS_DRIVER", EventsNone)
	v.SetDefault("RABBITMQ_QUEUE", "ledger-events")
	v.SetDefault("KAFKA_TOPIC", "ledger-events")
	v.SetDefault("SMTP_PORT", "587")

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.EventsDriver = strings.ToLower(strings.TrimSpace(cfg.EventsDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the required fields for the selected drivers.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.SignupBonusCredits < 0 {
		return errors.New("SIGNUP_BONUS_CREDITS cannot be negative")
	}

	switch c.StoreDriver {
	case StoreFirestore, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.EventsDriver {
	case EventsNone:
	case EventsRabbitMQ:
		if c.RabbitMQURL == "" {
			return errors.New("RABBITMQ_URL is required when EVENTS_DRIVER=rabbitmq")
		}
	case EventsKafka:
		if len(c.KafkaBrokerList()) == 0 {
			return errors.New("KAFKA_BROKERS is required when EVENTS_DRIVER=kafka")
		}
	default:
		return fmt.Errorf("unknown EVENTS_DRIVER %q", c.EventsDriver)
	}
	return nil
}

// KafkaBrokerList splits KAFKA_BROKERS on commas and drops empty entries.
func (c *Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// IsRelease reports whether gin runs in release mode.
func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.GinMode, "release")
}

// MailEnabled reports whether enough SMTP settings are present to send mail.
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != "" && c.MailFrom != ""
}
