package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	LedgerBackend   string // "memory" | "redis"
	VerifiedBackend string // "memory" | "redis" | "dynamo"
	RedisURL        string

	OTPTTL           time.Duration
	OTPSweepInterval time.Duration // 0 disables the memory sweeper

	DeliveryProvider string // "interakt" | "sns" | "log"
	DeliveryTimeout  time.Duration
	DeliveryRetries  int
	InteraktAPIKey   string
	InteraktBaseURL  string
	SNSRegion        string
	SNSSenderID      string

	OTPTemplate       string
	UnlockTemplate    string
	AutoReplyTemplate string
	AutoReplyCooldown time.Duration
	TemplateLanguage  string

	WhatsAppChatNumber string
	RedirectBaseURL    string
	RedirectText       string

	PersistLeads   bool
	LeadAlertEmail string
	SMTPHost       string
	SMTPPort       string
	SMTPFrom       string
	SMTPUsername   string
	SMTPPassword   string

	WebhookSecret  string
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Leads    string
	Verified string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort:  getEnv("PORT", getEnv("APP_PORT", "5000")),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:      getEnv("AWS_REGION", "ap-south-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Leads:    getEnv("DYNAMO_TABLE_LEADS", "leads"),
			Verified: getEnv("DYNAMO_TABLE_VERIFIED_PHONES", "verified_phones"),
		},

		LedgerBackend:   getEnv("LEDGER_BACKEND", "memory"),
		VerifiedBackend: getEnv("VERIFIED_BACKEND", "memory"),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),

		OTPTTL:           getEnvDuration("OTP_TTL", 5*time.Minute),
		OTPSweepInterval: getEnvDuration("OTP_SWEEP_INTERVAL", time.Minute),

		DeliveryProvider: getEnv("DELIVERY_PROVIDER", "interakt"),
		DeliveryTimeout:  getEnvDuration("DELIVERY_TIMEOUT", 10*time.Second),
		DeliveryRetries:  getEnvInt("DELIVERY_RETRIES", 2),
		InteraktAPIKey:   getEnv("INTERAKT_API_KEY", ""),
		InteraktBaseURL:  getEnv("INTERAKT_BASE_URL", ""),
		SNSRegion:        getEnv("SNS_REGION", "ap-south-1"),
		SNSSenderID:      getEnv("SNS_SENDER_ID", ""),

		OTPTemplate:       getEnv("OTP_TEMPLATE", "otp_verification"),
		UnlockTemplate:    getEnv("UNLOCK_TEMPLATE", ""),
		AutoReplyTemplate: getEnv("AUTOREPLY_TEMPLATE", ""),
		AutoReplyCooldown: getEnvDuration("AUTOREPLY_COOLDOWN", time.Hour),
		TemplateLanguage:  getEnv("TEMPLATE_LANGUAGE", "en"),

		WhatsAppChatNumber: getEnv("WHATSAPP_CHAT_NUMBER", ""),
		RedirectBaseURL:    getEnv("REDIRECT_BASE_URL", "https://wa.me/"),
		RedirectText:       getEnv("REDIRECT_TEXT", "Hello I am verified"),

		PersistLeads:   getEnvBool("PERSIST_LEADS", false),
		LeadAlertEmail: getEnv("LEAD_ALERT_EMAIL", ""),
		SMTPHost:       getEnv("SMTP_HOST", "localhost"),
		SMTPPort:       getEnv("SMTP_PORT", "1025"),
		SMTPFrom:       getEnv("SMTP_FROM", "noreply@example.com"),
		SMTPUsername:   getEnv("SMTP_USERNAME", ""),
		SMTPPassword:   getEnv("SMTP_PASSWORD", ""),

		WebhookSecret:  getEnv("WEBHOOK_SECRET", ""),
		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 1),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 5),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
