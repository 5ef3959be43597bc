// Package config loads the process configuration from the environment
// only (no config file is read), the way cmd/api/main.go and
// internal/app/app.go consume config.Config and config.DatabaseConfig in
// the teacher repository.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds Postgres connection settings for the system database.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN builds a libpq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds the HTTP listener settings for the RPC/webhook surface.
type ServerConfig struct {
	Host string
	Port int
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// SendGridConfig holds the transactional email provider credentials.
type SendGridConfig struct {
	APIKey string
}

// WebhookConfig holds the inbound delivery-webhook verification secret
// (see internal/service/webhookevent, internal/http's webhook handler).
type WebhookConfig struct {
	SigningSecret string
}

// AWSConfig holds credentials/region for the SES provider and S3 archival
// writer (see internal/archive).
type AWSConfig struct {
	Region          string
	ArchiveBucket   string
	AccessKeyID     string
	SecretAccessKey string
}

// SMTPConfig holds settings for the alternate SMTP-relay email provider.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

// TelemetryConfig selects and configures the OpenCensus exporter.
type TelemetryConfig struct {
	// Exporter is one of: "prometheus", "jaeger", "zipkin", "stackdriver", "xray", "datadog", "" (disabled).
	Exporter       string
	ServiceName    string
	JaegerEndpoint string
	ZipkinEndpoint string
	GCPProjectID   string
	DatadogAgent   string
}

// Config is the full process configuration. It is loaded once at startup
// by Load and passed by pointer through the app wiring.
type Config struct {
	LogLevel string
	APIKey   string // loaded but not read by the RPC/webhook handlers, which check RPCAdminTokenSecret and Webhook.SigningSecret

	Server    ServerConfig
	Database  DatabaseConfig
	SendGrid  SendGridConfig
	AWS       AWSConfig
	SMTP      SMTPConfig
	Telemetry TelemetryConfig
	Webhook   WebhookConfig

	// EmailProvider selects the outbound domain.EmailProvider: "sendgrid",
	// "ses", or "smtp". Ignored (forced to the no-op provider) whenever
	// DryRun() is true.
	EmailProvider string

	// WorkerInterval is the verify+send cadence the background loop in
	// internal/app runs on, per spec.md §5 "every few minutes".
	WorkerInterval time.Duration
	// RefreshInterval is the full daily-refresh cadence, per spec.md §5
	// "once per day for full refresh".
	RefreshInterval time.Duration

	ReplyDomain       string
	UnsubscribeURL    string
	StarRatingBaseURL string
	GeocoderAPIKey    string
	GeocoderEndpoint  string

	// TimezoneMode selects pkg/tzconv's converter: "legacy" or "real".
	TimezoneMode string

	MaxEmailsPerRun       int
	MaxAccountsPerRefresh int
	PlannerBatchSize      int
	PolicyQueryBatchSize  int
	GeocoderConcurrency   int
	VerificationWindow    time.Duration
	HorizonDays           int
	DedupWindowDays       int
	ReaperThreshold       time.Duration

	// RPCAdminTokenSecret signs the short-lived "Send Now" admin token (jwt).
	RPCAdminTokenSecret string

	// InboundSMTPAddr, if non-empty, starts the reply-tracking mail server
	// (internal/service/inboundsmtp) listening for MX-routed replies to
	// sender_domain.inbound_subdomain addresses. Empty disables it.
	InboundSMTPAddr string
	InboundSMTPDomain string
}

// Load reads configuration from environment variables (prefixed ISG_) with
// sensible defaults, following the env-first convention cmd/api/main.go
// expects from config.Load().
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ISG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	cfg := &Config{
		LogLevel: v.GetString("log_level"),
		APIKey:   v.GetString("api_key"),

		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("db.host"),
			Port:            v.GetInt("db.port"),
			User:            v.GetString("db.user"),
			Password:        v.GetString("db.password"),
			DBName:          v.GetString("db.name"),
			SSLMode:         v.GetString("db.sslmode"),
			MaxOpenConns:    v.GetInt("db.max_open_conns"),
			MaxIdleConns:    v.GetInt("db.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("db.conn_max_lifetime"),
		},
		SendGrid: SendGridConfig{
			APIKey: v.GetString("sendgrid.api_key"),
		},
		AWS: AWSConfig{
			Region:          v.GetString("aws.region"),
			ArchiveBucket:   v.GetString("aws.archive_bucket"),
			AccessKeyID:     v.GetString("aws.access_key_id"),
			SecretAccessKey: v.GetString("aws.secret_access_key"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
		},
		Webhook: WebhookConfig{
			SigningSecret: v.GetString("webhook.signing_secret"),
		},
		EmailProvider:   v.GetString("email_provider"),
		WorkerInterval:  v.GetDuration("worker_interval"),
		RefreshInterval: v.GetDuration("refresh_interval"),
		Telemetry: TelemetryConfig{
			Exporter:       v.GetString("telemetry.exporter"),
			ServiceName:    v.GetString("telemetry.service_name"),
			JaegerEndpoint: v.GetString("telemetry.jaeger_endpoint"),
			ZipkinEndpoint: v.GetString("telemetry.zipkin_endpoint"),
			GCPProjectID:   v.GetString("telemetry.gcp_project_id"),
			DatadogAgent:   v.GetString("telemetry.datadog_agent"),
		},

		ReplyDomain:       v.GetString("reply_domain"),
		UnsubscribeURL:    v.GetString("unsubscribe_url"),
		StarRatingBaseURL: v.GetString("star_rating_base_url"),
		GeocoderAPIKey:    v.GetString("geocoder.api_key"),
		GeocoderEndpoint:  v.GetString("geocoder.endpoint"),

		TimezoneMode: v.GetString("timezone_mode"),

		MaxEmailsPerRun:       v.GetInt("limits.max_emails_per_run"),
		MaxAccountsPerRefresh: v.GetInt("limits.max_accounts_per_refresh"),
		PlannerBatchSize:      v.GetInt("limits.planner_batch_size"),
		PolicyQueryBatchSize:  v.GetInt("limits.policy_query_batch_size"),
		GeocoderConcurrency:   v.GetInt("limits.geocoder_concurrency"),
		VerificationWindow:    v.GetDuration("limits.verification_window"),
		HorizonDays:           v.GetInt("limits.horizon_days"),
		DedupWindowDays:       v.GetInt("limits.dedup_window_days"),
		ReaperThreshold:       v.GetDuration("limits.reaper_threshold"),

		RPCAdminTokenSecret: v.GetString("rpc_admin_token_secret"),

		InboundSMTPAddr:   v.GetString("inbound_smtp.addr"),
		InboundSMTPDomain: v.GetString("inbound_smtp.domain"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.name", "isg_automation")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 30*time.Minute)

	v.SetDefault("aws.region", "us-east-1")

	v.SetDefault("telemetry.exporter", "prometheus")
	v.SetDefault("telemetry.service_name", "automation-scheduler")

	v.SetDefault("unsubscribe_url", "https://app.example.com/unsubscribe")
	v.SetDefault("star_rating_base_url", "https://app.example.com/star-rating")
	v.SetDefault("geocoder.endpoint", "https://maps.googleapis.com/maps/api/geocode/json")

	v.SetDefault("timezone_mode", "real")
	v.SetDefault("email_provider", "sendgrid")
	v.SetDefault("worker_interval", 5*time.Minute)
	v.SetDefault("refresh_interval", 24*time.Hour)

	v.SetDefault("limits.max_emails_per_run", 200)
	v.SetDefault("limits.max_accounts_per_refresh", 1000)
	v.SetDefault("limits.planner_batch_size", 100)
	v.SetDefault("limits.policy_query_batch_size", 100)
	v.SetDefault("limits.geocoder_concurrency", 10)
	v.SetDefault("limits.verification_window", 24*time.Hour)
	v.SetDefault("limits.horizon_days", 365)
	v.SetDefault("limits.dedup_window_days", 7)
	v.SetDefault("limits.reaper_threshold", time.Hour)

	v.SetDefault("inbound_smtp.domain", "replies.example.com")
}

func (c *Config) validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("config: database host is required")
	}
	switch c.TimezoneMode {
	case "legacy", "real":
	default:
		return fmt.Errorf("config: timezone_mode must be 'legacy' or 'real', got %q", c.TimezoneMode)
	}
	return nil
}

// DryRun reports whether the sender should run without a configured
// provider (§4.5: "If no API key is configured, the sender runs in
// dry-run mode"), checking whichever provider EmailProvider selects
// rather than assuming SendGrid.
func (c *Config) DryRun() bool {
	switch c.EmailProvider {
	case "ses":
		return c.AWS.AccessKeyID == "" || c.AWS.SecretAccessKey == ""
	case "smtp":
		return c.SMTP.Host == ""
	default:
		return c.SendGrid.APIKey == ""
	}
}
