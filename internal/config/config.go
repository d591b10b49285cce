package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/lead-intake/internal/scoring"
	"github.com/wolfman30/lead-intake/internal/spam"
)

// Backend and provider names accepted by the selector options.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendSQS      = "sqs"

	EmailSendGrid = "sendgrid"
	EmailSES      = "ses"
	EmailStub     = "stub"

	ProviderBedrock   = "bedrock"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderNone      = "none"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string
	DatabaseURL   string

	LeadStore  string
	LeadsTable string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	RateLimitBackend     string
	RateLimitMaxRequests int
	RateLimitWindow      time.Duration

	CaptchaRequired  bool
	CaptchaSecret    string
	CaptchaVerifyURL string
	CaptchaTimeout   time.Duration

	SpamThreshold           int
	SpamWeights             string
	DisposableEmailDomains  []string
	AdminNotificationEmail  string
	NotificationSignature   string
	EmailProvider           string
	EmailTimeout            time.Duration
	SendGridAPIKey          string
	SendGridFromEmail       string
	SendGridFromName        string
	SESFromEmail            string
	SESFromName             string
	QualificationProvider   string
	QualificationFallback   string
	QualificationTimeout    time.Duration
	QualificationMaxTokens  int
	BedrockModelID          string
	GeminiAPIKey            string
	GeminiModelID           string
	AnthropicAPIKey         string
	AnthropicModelID        string
	EnrichmentQueue         string
	EnrichmentQueueURL      string
	WorkerCount             int
	AdminJWTSecret          string
	CORSAllowedOrigins      []string
	TrustProxyHeaders       bool
	AWSRegion               string
	AWSAccessKeyID          string
	AWSSecretAccessKey      string
	AWSEndpointOverride     string
	ScoreBudgetWeights      string
	ScoreUrgencyWeights     string
	ScoreComplexityWeights  string
	ScorePriorityWeights    string
	ShutdownTimeout         time.Duration
	RateLimitJanitorEvery   time.Duration
	EnrichmentDispatchLimit time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first without overriding the real environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		LeadStore:  getEnvAsChoice("LEAD_STORE", BackendMemory),
		LeadsTable: getEnv("LEADS_TABLE", "leads"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		RateLimitBackend:     getEnvAsChoice("RATE_LIMIT_BACKEND", BackendMemory),
		RateLimitMaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 10),
		RateLimitWindow:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Hour),

		CaptchaRequired:  getEnvAsBool("CAPTCHA_REQUIRED", false),
		CaptchaSecret:    getEnv("CAPTCHA_SECRET", ""),
		CaptchaVerifyURL: getEnv("CAPTCHA_VERIFY_URL", ""),
		CaptchaTimeout:   getEnvAsDuration("CAPTCHA_TIMEOUT", 5*time.Second),

		SpamThreshold:           getEnvAsInt("SPAM_THRESHOLD", 5),
		SpamWeights:             getEnv("SPAM_WEIGHTS", ""),
		DisposableEmailDomains:  getEnvAsList("DISPOSABLE_EMAIL_DOMAINS"),
		AdminNotificationEmail:  getEnv("ADMIN_NOTIFICATION_EMAIL", ""),
		NotificationSignature:   getEnv("NOTIFICATION_SIGNATURE", ""),
		EmailProvider:           getEnvAsChoice("EMAIL_PROVIDER", EmailStub),
		EmailTimeout:            getEnvAsDuration("EMAIL_TIMEOUT", 10*time.Second),
		SendGridAPIKey:          getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail:       getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:        getEnv("SENDGRID_FROM_NAME", "Lead Intake"),
		SESFromEmail:            getEnv("SES_FROM_EMAIL", ""),
		SESFromName:             getEnv("SES_FROM_NAME", "Lead Intake"),
		QualificationProvider:   getEnvAsChoice("QUALIFICATION_PROVIDER", ProviderNone),
		QualificationFallback:   getEnvAsChoice("QUALIFICATION_FALLBACK_PROVIDER", ProviderNone),
		QualificationTimeout:    getEnvAsDuration("QUALIFICATION_TIMEOUT", 20*time.Second),
		QualificationMaxTokens:  getEnvAsInt("QUALIFICATION_MAX_TOKENS", 800),
		BedrockModelID:          getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:            getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:           getEnv("GEMINI_MODEL_ID", ""),
		AnthropicAPIKey:         getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModelID:        getEnv("ANTHROPIC_MODEL_ID", ""),
		EnrichmentQueue:         getEnvAsChoice("ENRICHMENT_QUEUE", BackendMemory),
		EnrichmentQueueURL:      getEnv("ENRICHMENT_QUEUE_URL", ""),
		WorkerCount:             getEnvAsInt("WORKER_COUNT", 2),
		AdminJWTSecret:          getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins:      getEnvAsList("CORS_ALLOWED_ORIGINS"),
		TrustProxyHeaders:       getEnvAsBool("TRUST_PROXY_HEADERS", false),
		AWSRegion:               getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:     getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ScoreBudgetWeights:      getEnv("SCORE_BUDGET_WEIGHTS", ""),
		ScoreUrgencyWeights:     getEnv("SCORE_URGENCY_WEIGHTS", ""),
		ScoreComplexityWeights:  getEnv("SCORE_COMPLEXITY_WEIGHTS", ""),
		ScorePriorityWeights:    getEnv("SCORE_PRIORITY_WEIGHTS", ""),
		ShutdownTimeout:         getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		RateLimitJanitorEvery:   getEnvAsDuration("RATE_LIMIT_JANITOR_INTERVAL", 5*time.Minute),
		EnrichmentDispatchLimit: getEnvAsDuration("ENRICHMENT_DISPATCH_TIMEOUT", 5*time.Second),
	}
}

// ScoreWeights overlays the SCORE_*_WEIGHTS overrides on the default tables.
// Each override replaces only the keys it names.
func (c *Config) ScoreWeights() (scoring.Weights, error) {
	w := scoring.DefaultWeights()
	if err := overlay(w.Budget, "SCORE_BUDGET_WEIGHTS", c.ScoreBudgetWeights); err != nil {
		return w, err
	}
	if err := overlay(w.Urgency, "SCORE_URGENCY_WEIGHTS", c.ScoreUrgencyWeights); err != nil {
		return w, err
	}
	if err := overlay(w.Complexity, "SCORE_COMPLEXITY_WEIGHTS", c.ScoreComplexityWeights); err != nil {
		return w, err
	}
	if err := overlay(w.Priority, "SCORE_PRIORITY_WEIGHTS", c.ScorePriorityWeights); err != nil {
		return w, err
	}
	return w, w.Validate()
}

// SpamConfig applies SPAM_THRESHOLD and then the SPAM_WEIGHTS overrides to
// the default analyzer config. SPAM_WEIGHTS uses the score table format and
// accepts category weights, threshold, min_length, max_length,
// promotional_cap and jargon_cap.
func (c *Config) SpamConfig() (spam.Config, error) {
	cfg := spam.DefaultConfig()
	if c.SpamThreshold > 0 {
		cfg.Threshold = c.SpamThreshold
	}
	if strings.TrimSpace(c.SpamWeights) == "" {
		return cfg, cfg.Validate()
	}
	overrides, err := scoring.ParseTable[string](c.SpamWeights)
	if err != nil {
		return cfg, fmt.Errorf("config: SPAM_WEIGHTS: %w", err)
	}
	if err := cfg.Apply(overrides); err != nil {
		return cfg, fmt.Errorf("config: SPAM_WEIGHTS: %w", err)
	}
	return cfg, nil
}

func overlay[K ~string](dst map[K]int, key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	table, err := scoring.ParseTable[K](raw)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	for k, v := range table {
		dst[k] = v
	}
	return nil
}

// Validate reports every inconsistent option at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("config: "+format, args...))
		}
	}

	check(oneOf(c.LeadStore, BackendMemory, BackendPostgres, BackendDynamoDB), "LEAD_STORE %q is not supported", c.LeadStore)
	check(c.LeadStore != BackendPostgres || c.DatabaseURL != "", "DATABASE_URL is required when LEAD_STORE=postgres")
	check(c.LeadStore != BackendDynamoDB || c.LeadsTable != "", "LEADS_TABLE is required when LEAD_STORE=dynamodb")

	check(oneOf(c.RateLimitBackend, BackendMemory, BackendRedis), "RATE_LIMIT_BACKEND %q is not supported", c.RateLimitBackend)
	check(c.RateLimitBackend != BackendRedis || c.RedisAddr != "", "REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
	check(c.RateLimitMaxRequests > 0, "RATE_LIMIT_MAX_REQUESTS must be positive")
	check(c.RateLimitWindow > 0, "RATE_LIMIT_WINDOW must be positive")

	check(!c.CaptchaRequired || c.CaptchaSecret != "", "CAPTCHA_SECRET is required when CAPTCHA_REQUIRED=true")
	check(c.SpamThreshold > 0, "SPAM_THRESHOLD must be positive")

	check(oneOf(c.EmailProvider, EmailSendGrid, EmailSES, EmailStub), "EMAIL_PROVIDER %q is not supported", c.EmailProvider)
	check(c.EmailProvider != EmailSendGrid || c.SendGridAPIKey != "", "SENDGRID_API_KEY is required when EMAIL_PROVIDER=sendgrid")
	check(c.EmailProvider != EmailSES || c.SESFromEmail != "", "SES_FROM_EMAIL is required when EMAIL_PROVIDER=ses")

	for _, p := range []struct{ key, value string }{
		{"QUALIFICATION_PROVIDER", c.QualificationProvider},
		{"QUALIFICATION_FALLBACK_PROVIDER", c.QualificationFallback},
	} {
		check(oneOf(p.value, ProviderBedrock, ProviderGemini, ProviderAnthropic, ProviderNone), "%s %q is not supported", p.key, p.value)
		check(p.value != ProviderBedrock || c.BedrockModelID != "", "BEDROCK_MODEL_ID is required for %s=bedrock", p.key)
		check(p.value != ProviderGemini || c.GeminiAPIKey != "", "GEMINI_API_KEY is required for %s=gemini", p.key)
		check(p.value != ProviderAnthropic || c.AnthropicAPIKey != "", "ANTHROPIC_API_KEY is required for %s=anthropic", p.key)
	}

	check(oneOf(c.EnrichmentQueue, BackendMemory, BackendSQS), "ENRICHMENT_QUEUE %q is not supported", c.EnrichmentQueue)
	check(c.EnrichmentQueue != BackendSQS || c.EnrichmentQueueURL != "", "ENRICHMENT_QUEUE_URL is required when ENRICHMENT_QUEUE=sqs")
	check(c.WorkerCount > 0, "WORKER_COUNT must be positive")

	if _, err := c.ScoreWeights(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.SpamConfig(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NeedsAWS reports whether any selected backend talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.LeadStore == BackendDynamoDB ||
		c.EnrichmentQueue == BackendSQS ||
		c.EmailProvider == EmailSES ||
		c.QualificationProvider == ProviderBedrock ||
		c.QualificationFallback == ProviderBedrock
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsChoice(key, defaultValue string) string {
	return strings.ToLower(strings.TrimSpace(getEnv(key, defaultValue)))
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
