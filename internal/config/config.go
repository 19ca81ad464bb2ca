// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// InviteSigningSecret signs invitation tokens (HS256). Required in production.
	InviteSigningSecret string `mapstructure:"INVITE_SIGNING_SECRET"`
	// InviteIssuer is the iss claim on invitation tokens.
	InviteIssuer string `mapstructure:"INVITE_ISSUER"`
	// InviteTTLRaw is the default invitation lifetime (e.g. "168h").
	InviteTTLRaw string `mapstructure:"INVITE_TTL"`

	// TrialPeriodRaw is how long a new organization stays in trialing (e.g. "336h").
	TrialPeriodRaw string `mapstructure:"TRIAL_PERIOD"`
	// GraceWindowRaw is how long a subscription stays in grace before cancellation (e.g. "336h").
	GraceWindowRaw string `mapstructure:"GRACE_WINDOW"`
	// MaxChargeRetries is the number of failed charges in past_due before the
	// subscription moves to grace. Must be >= 1.
	MaxChargeRetries int `mapstructure:"MAX_CHARGE_RETRIES"`
	// ExpirySweepIntervalRaw is how often the worker sweeps for elapsed trial/grace windows.
	ExpirySweepIntervalRaw string `mapstructure:"EXPIRY_SWEEP_INTERVAL"`

	// ExtraRoles appends configured roles to the built-in registry.
	// Format: "name:perm|perm,name2:perm" (e.g. "auditor:activity.read|content.read").
	ExtraRoles string `mapstructure:"EXTRA_ROLES"`

	// BillingKafkaBrokers is a comma-separated list of Kafka broker addresses
	// the worker consumes billing events from (e.g. "localhost:9092").
	BillingKafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	// BillingKafkaTopic is the Kafka topic carrying billing provider events.
	BillingKafkaTopic string `mapstructure:"BILLING_KAFKA_TOPIC"`
	// KafkaGroupID is the consumer group ID for the billing worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`

	// NotifyWebhookURL is the notification sender endpoint (invitation and
	// role-change emails are delegated to it). Empty disables notifications.
	NotifyWebhookURL string `mapstructure:"NOTIFY_WEBHOOK_URL"`
	// NotifyAPIKey authenticates against the notification sender.
	NotifyAPIKey string `mapstructure:"NOTIFY_API_KEY"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint (e.g. http://localhost:4317).
	// Empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTLP_ENDPOINT"`
	// OTLPInsecure forces plaintext OTLP export even for https endpoints.
	OTLPInsecure bool `mapstructure:"OTLP_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("INVITE_SIGNING_SECRET", "")
	v.SetDefault("INVITE_ISSUER", "tenant-core")
	v.SetDefault("INVITE_TTL", "168h") // 7d
	v.SetDefault("TRIAL_PERIOD", "336h")
	v.SetDefault("GRACE_WINDOW", "336h")
	v.SetDefault("MAX_CHARGE_RETRIES", 3)
	v.SetDefault("EXPIRY_SWEEP_INTERVAL", "1h")
	v.SetDefault("EXTRA_ROLES", "")
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("BILLING_KAFKA_TOPIC", "billing-events")
	v.SetDefault("KAFKA_GROUP_ID", "billing-worker")
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")
	v.SetDefault("NOTIFY_API_KEY", "")
	v.SetDefault("OTLP_ENDPOINT", "")
	v.SetDefault("OTLP_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.MaxChargeRetries < 1 {
		return nil, errors.New("config: MAX_CHARGE_RETRIES must be >= 1")
	}

	if cfg.Env == "production" && cfg.InviteSigningSecret == "" {
		return nil, errors.New("config: INVITE_SIGNING_SECRET must be set when APP_ENV=production")
	}

	return &cfg, nil
}

// InviteTTL parses INVITE_TTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) InviteTTL() time.Duration {
	d, err := time.ParseDuration(c.InviteTTLRaw)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// TrialPeriod parses TRIAL_PERIOD as a time.Duration. Returns 336h if unset or invalid.
func (c *Config) TrialPeriod() time.Duration {
	d, err := time.ParseDuration(c.TrialPeriodRaw)
	if err != nil || d <= 0 {
		return 336 * time.Hour
	}
	return d
}

// GraceWindow parses GRACE_WINDOW as a time.Duration. Returns 336h if unset or invalid.
func (c *Config) GraceWindow() time.Duration {
	d, err := time.ParseDuration(c.GraceWindowRaw)
	if err != nil || d <= 0 {
		return 336 * time.Hour
	}
	return d
}

// ExpirySweepInterval parses EXPIRY_SWEEP_INTERVAL as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) ExpirySweepInterval() time.Duration {
	d, err := time.ParseDuration(c.ExpirySweepIntervalRaw)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// BillingKafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// Used to decide if the billing consumer is enabled (non-empty list) and to create the reader.
func (c *Config) BillingKafkaBrokersList() []string {
	if c == nil || c.BillingKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.BillingKafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
