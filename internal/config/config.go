package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const configPathEnv = "CONFIG_FILE"

// Config holds all runtime configuration loaded from environment variables,
// optionally seeded by a YAML file.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	StoreBackend   string // "dynamo" or "memory"
	DynamoTables   DynamoTables
	S3BucketName   string

	JWTPrivateKeyPath string
	JWTPublicKeyPath  string
	JWTExpiry         time.Duration

	MailBackend  string // "smtp" or "ses"
	MailFrom     string
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SESRegion    string

	SNSRegion   string
	SNSTopicARN string // lifecycle events; empty disables publishing

	AllowedOrigins []string // CORS allowed origins
	PublicBaseURL  string   // prefix for links sent by email
	WebhookSecret  string

	FunctionsBaseURL string
	FunctionsAPIKey  string
	FunctionsTimeout time.Duration

	WebScanEnabled bool
	WebScanTimeout time.Duration

	Outreach Outreach

	AttestNegativeOutcomes bool
	// TierLimits maps a subscription tier to its monthly verification quota.
	// Zero means unlimited; unknown tiers fall back to "free".
	TierLimits map[string]int
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Verifications      string
	Consents           string
	Calls              string
	EmailVerifications string
	Evidence           string
}

// Outreach holds worker pool sizing and workflow timings.
type Outreach struct {
	Workers              int
	QueueSize            int
	CallPollInterval     time.Duration
	EmailResponseTimeout time.Duration
	ConsentTokenTTL      time.Duration
	WorkEmailTokenTTL    time.Duration
	Lease                time.Duration
	SweepInterval        time.Duration
}

// fileConfig is the YAML overlay. Values set here replace the built-in
// defaults and are themselves overridden by environment variables.
type fileConfig struct {
	TierLimits map[string]int `yaml:"tierLimits"`
	Outreach   struct {
		Workers              int    `yaml:"workers"`
		QueueSize            int    `yaml:"queueSize"`
		CallPollInterval     string `yaml:"callPollInterval"`
		EmailResponseTimeout string `yaml:"emailResponseTimeout"`
		ConsentTokenTTL      string `yaml:"consentTokenTtl"`
		Lease                string `yaml:"lease"`
		SweepInterval        string `yaml:"sweepInterval"`
	} `yaml:"outreach"`
	AttestNegativeOutcomes *bool `yaml:"attestNegativeOutcomes"`
}

// Load reads all configuration from environment variables. When CONFIG_FILE
// points to a YAML file its values become the defaults.
func Load() *Config {
	var fc fileConfig
	if path := os.Getenv(configPathEnv); path != "" {
		loaded, err := readFile(path)
		if err != nil {
			slog.Warn("config file ignored", "path", path, "err", err)
		} else {
			fc = loaded
		}
	}

	tierDefault := "free:3,pro:50,enterprise:0"
	if len(fc.TierLimits) > 0 {
		tierDefault = formatTierLimits(fc.TierLimits)
	}
	attestDefault := true
	if fc.AttestNegativeOutcomes != nil {
		attestDefault = *fc.AttestNegativeOutcomes
	}

	return &Config{
		AppPort:  getEnv("APP_PORT", "3000"),
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		StoreBackend:   getEnv("STORE_BACKEND", "dynamo"),
		DynamoTables: DynamoTables{
			Verifications:      getEnv("DYNAMO_TABLE_VERIFICATIONS", "verifications"),
			Consents:           getEnv("DYNAMO_TABLE_CONSENTS", "consents"),
			Calls:              getEnv("DYNAMO_TABLE_CALLS", "calls"),
			EmailVerifications: getEnv("DYNAMO_TABLE_EMAIL_VERIFICATIONS", "employer_email_verifications"),
			Evidence:           getEnv("DYNAMO_TABLE_EVIDENCE", "evidence"),
		},
		S3BucketName: getEnv("S3_BUCKET_NAME", "employment-verify-files"),

		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTExpiry:         time.Duration(getEnvInt("JWT_EXPIRY_DAYS", 7)) * 24 * time.Hour,

		MailBackend:  getEnv("MAIL_BACKEND", "smtp"),
		MailFrom:     getEnv("MAIL_FROM", getEnv("SMTP_FROM", "noreply@example.com")),
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "1025"),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SESRegion:    getEnv("SES_REGION", getEnv("AWS_REGION", "us-east-1")),

		SNSRegion:   getEnv("SNS_REGION", "us-east-1"),
		SNSTopicARN: getEnv("SNS_TOPIC_ARN", ""),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
		PublicBaseURL:  strings.TrimSuffix(getEnv("PUBLIC_BASE_URL", "http://localhost:3000"), "/"),
		WebhookSecret:  getEnv("WEBHOOK_SECRET", ""),

		FunctionsBaseURL: strings.TrimSuffix(getEnv("FUNCTIONS_BASE_URL", ""), "/"),
		FunctionsAPIKey:  getEnv("FUNCTIONS_API_KEY", ""),
		FunctionsTimeout: getEnvDuration("FUNCTIONS_TIMEOUT", 30*time.Second),

		WebScanEnabled: getEnvBool("WEB_SCAN_ENABLED", true),
		WebScanTimeout: getEnvDuration("WEB_SCAN_TIMEOUT", 10*time.Second),

		Outreach: Outreach{
			Workers:              getEnvInt("OUTREACH_WORKERS", orInt(fc.Outreach.Workers, 4)),
			QueueSize:            getEnvInt("OUTREACH_QUEUE_SIZE", orInt(fc.Outreach.QueueSize, 256)),
			CallPollInterval:     getEnvDuration("CALL_POLL_INTERVAL", orDuration(fc.Outreach.CallPollInterval, 5*time.Second)),
			EmailResponseTimeout: getEnvDuration("EMAIL_RESPONSE_TIMEOUT", orDuration(fc.Outreach.EmailResponseTimeout, 72*time.Hour)),
			ConsentTokenTTL:      getEnvDuration("CONSENT_TOKEN_TTL", orDuration(fc.Outreach.ConsentTokenTTL, 14*24*time.Hour)),
			WorkEmailTokenTTL:    getEnvDuration("WORK_EMAIL_TOKEN_TTL", 24*time.Hour),
			Lease:                getEnvDuration("OUTREACH_LEASE", orDuration(fc.Outreach.Lease, 10*time.Minute)),
			SweepInterval:        getEnvDuration("OUTREACH_SWEEP_INTERVAL", orDuration(fc.Outreach.SweepInterval, time.Minute)),
		},

		AttestNegativeOutcomes: getEnvBool("ATTEST_NEGATIVE_OUTCOMES", attestDefault),
		TierLimits:             ParseTierLimits(getEnv("TIER_LIMITS", tierDefault)),
	}
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config: %w", err)
	}
	return fc, nil
}

// ParseTierLimits parses "tier:limit" pairs separated by commas. Malformed
// pairs are skipped.
func ParseTierLimits(s string) map[string]int {
	limits := make(map[string]int)
	for _, pair := range strings.Split(s, ",") {
		name, raw, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 0 {
			continue
		}
		limits[strings.ToLower(strings.TrimSpace(name))] = n
	}
	return limits
}

func formatTierLimits(m map[string]int) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, fmt.Sprintf("%s:%d", k, v))
	}
	return strings.Join(parts, ",")
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

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func orDuration(v string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return fallback
}
