package internal

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yuilabs/minami/internal/domain"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Public base URL (short links, Stripe redirects, local audio files)
	BaseURL string

	// LINE Messaging API
	LineChannelSecret      string
	LineChannelAccessToken string
	LineRequestTimeout     time.Duration

	// Persona and quota record. Loaded from env, optionally overridden by PERSONA_FILE.
	PersonaFile string
	Persona     domain.Persona
	Quota       domain.QuotaPolicy
	Ticket      domain.TicketPricing

	// Conversation
	HistoryLimit int

	// AI Provider Configuration
	AIProvider       string // "openai", "anthropic" or "mock"
	OpenAIAPIKey     string
	OpenAIModel      string
	AnthropicAPIKey  string
	AnthropicModel   string
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration

	// Voice (TTS)
	VoiceEnabled        bool
	NijiVoiceAPIKey     string
	VoiceRequestTimeout time.Duration
	VoiceMaxAttempts    int
	VoiceDelay          time.Duration

	// Storage Configuration
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string
	LocalStorageURL  string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicURL       string

	// Worker Configuration
	WorkerEnabled      bool
	WorkerConcurrency  int
	WorkerPollInterval time.Duration
	WorkerJobTimeout   time.Duration

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	StripeTimeout       time.Duration

	// Per-user message throttle. Disabled when RedisURL is empty.
	RedisURL               string
	UserMessagesPerMinute  int
	UserMessagesPer10Sec   int
	RedirectRatePerMinute  int
	DatabaseRequestTimeout time.Duration

	// Broadcast
	BroadcastTimezone string

	// Metrics endpoint authentication
	MetricsUsername string
	MetricsPassword string
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		LineChannelSecret:      getEnv("LINE_CHANNEL_SECRET", ""),
		LineChannelAccessToken: getEnv("LINE_CHANNEL_ACCESS_TOKEN", ""),
		LineRequestTimeout:     getEnvDuration("LINE_REQUEST_TIMEOUT", 10*time.Second),

		PersonaFile: getEnv("PERSONA_FILE", ""),
		Persona: domain.Persona{
			Name:         getEnv("PERSONA_NAME", domain.DefaultPersona.Name),
			Prompt:       getEnv("PERSONALITY_PROMPT", domain.DefaultPersona.Prompt),
			VoiceActorID: getEnv("VOICE_ACTOR_ID", domain.DefaultPersona.VoiceActorID),
			VoiceStyleID: getEnvInt("VOICE_STYLE_ID", domain.DefaultPersona.VoiceStyleID),
			VoiceSpeed:   getEnv("VOICE_SPEED", domain.DefaultPersona.VoiceSpeed),
		},
		Quota: domain.QuotaPolicy{
			FreeCharLimit: getEnvInt64("FREE_CHAR_LIMIT", domain.DefaultQuotaPolicy.FreeCharLimit),
			CharsPerBlock: getEnvInt64("CHARS_PER_BLOCK", domain.DefaultQuotaPolicy.CharsPerBlock),
			WarnThreshold: getEnvInt64("WARN_THRESHOLD", domain.DefaultQuotaPolicy.WarnThreshold),
		},
		Ticket: domain.TicketPricing{
			ProductName: getEnv("TICKET_PRODUCT_NAME", domain.DefaultTicketPricing.ProductName),
			Currency:    getEnv("TICKET_CURRENCY", domain.DefaultTicketPricing.Currency),
			UnitAmount:  getEnvInt64("TICKET_UNIT_AMOUNT", domain.DefaultTicketPricing.UnitAmount),
			MaxQuantity: getEnvInt64("TICKET_MAX_QUANTITY", domain.DefaultTicketPricing.MaxQuantity),
		},

		HistoryLimit: getEnvInt("HISTORY_LIMIT", 10),

		// AI provider defaults
		AIProvider:       getEnv("AI_PROVIDER", "mock"),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:      getEnv("OPENAI_MODEL", "gpt-4"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 2),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 30*time.Second),

		VoiceEnabled:        getEnvBool("VOICE_ENABLED", false),
		NijiVoiceAPIKey:     getEnv("NIJIVOICE_API_KEY", ""),
		VoiceRequestTimeout: getEnvDuration("VOICE_REQUEST_TIMEOUT", 60*time.Second),
		VoiceMaxAttempts:    getEnvInt("VOICE_MAX_ATTEMPTS", 2),
		VoiceDelay:          getEnvDuration("VOICE_DELAY", 1*time.Second),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),
		LocalStorageURL:  getEnv("LOCAL_STORAGE_URL", "http://localhost:8080/files"),

		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),
		R2PublicURL:       getEnv("R2_PUBLIC_URL", ""),

		WorkerEnabled:      getEnvBool("WORKER_ENABLED", true),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 2*time.Second),
		WorkerJobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 2*time.Minute),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeTimeout:       getEnvDuration("STRIPE_TIMEOUT", 15*time.Second),

		RedisURL:               getEnv("REDIS_URL", ""),
		UserMessagesPerMinute:  getEnvInt("USER_MESSAGES_PER_MINUTE", 20),
		UserMessagesPer10Sec:   getEnvInt("USER_MESSAGES_PER_10SEC", 5),
		RedirectRatePerMinute:  getEnvInt("REDIRECT_RATE_PER_MINUTE", 30),
		DatabaseRequestTimeout: getEnvDuration("DATABASE_REQUEST_TIMEOUT", 5*time.Second),

		BroadcastTimezone: getEnv("BROADCAST_TIMEZONE", "Asia/Tokyo"),

		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.LineChannelSecret == "" {
		return nil, fmt.Errorf("LINE_CHANNEL_SECRET is required")
	}
	if cfg.LineChannelAccessToken == "" {
		return nil, fmt.Errorf("LINE_CHANNEL_ACCESS_TOKEN is required")
	}

	if cfg.PersonaFile != "" {
		if err := cfg.loadPersonaFile(cfg.PersonaFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	// Validate AI provider configuration
	switch c.AIProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is 'openai'")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	case "mock":
	default:
		return fmt.Errorf("AI_PROVIDER must be one of 'openai', 'anthropic' or 'mock', got: %s", c.AIProvider)
	}

	// Validate storage configuration
	if c.StorageProvider == "r2" {
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if c.StorageProvider != "local" {
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	if c.VoiceEnabled {
		if c.NijiVoiceAPIKey == "" {
			return fmt.Errorf("NIJIVOICE_API_KEY is required when VOICE_ENABLED is true")
		}
		if c.Persona.VoiceActorID == "" {
			return fmt.Errorf("VOICE_ACTOR_ID is required when VOICE_ENABLED is true")
		}
		if !c.WorkerEnabled {
			return fmt.Errorf("WORKER_ENABLED must be true when VOICE_ENABLED is true")
		}
		if c.VoiceMaxAttempts < 1 {
			return fmt.Errorf("VOICE_MAX_ATTEMPTS must be at least 1")
		}
	}

	// Stripe is optional in development; the checkout link then degrades to an apology.
	if c.Env != "development" {
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required outside development")
		}
		if c.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required outside development")
		}
	}

	if c.HistoryLimit < 1 {
		return fmt.Errorf("HISTORY_LIMIT must be at least 1, got %d", c.HistoryLimit)
	}

	return ValidateRecord(c.Persona, c.Quota, c.Ticket)
}

// ValidateRecord checks the persona, quota and pricing record as a unit.
func ValidateRecord(persona domain.Persona, quota domain.QuotaPolicy, ticket domain.TicketPricing) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	for _, s := range []any{persona, quota, ticket} {
		if err := v.Struct(s); err != nil {
			return fmt.Errorf("invalid persona configuration: %w", err)
		}
	}
	if quota.WarnThreshold >= quota.FreeCharLimit {
		return fmt.Errorf("WARN_THRESHOLD (%d) must be below FREE_CHAR_LIMIT (%d)", quota.WarnThreshold, quota.FreeCharLimit)
	}
	return nil
}

// personaFile mirrors the YAML layout of PERSONA_FILE. Absent keys keep
// the environment values.
type personaFile struct {
	Persona struct {
		Name         *string `yaml:"name"`
		Prompt       *string `yaml:"prompt"`
		VoiceActorID *string `yaml:"voice_actor_id"`
		VoiceStyleID *int    `yaml:"voice_style_id"`
		VoiceSpeed   *string `yaml:"voice_speed"`
	} `yaml:"persona"`
	Quota struct {
		FreeCharLimit *int64 `yaml:"free_char_limit"`
		CharsPerBlock *int64 `yaml:"chars_per_block"`
		WarnThreshold *int64 `yaml:"warn_threshold"`
	} `yaml:"quota"`
	Ticket struct {
		ProductName *string `yaml:"product_name"`
		Currency    *string `yaml:"currency"`
		UnitAmount  *int64  `yaml:"unit_amount"`
		MaxQuantity *int64  `yaml:"max_quantity"`
	} `yaml:"ticket"`
}

func (c *Config) loadPersonaFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read PERSONA_FILE: %w", err)
	}
	return c.applyPersonaYAML(data)
}

func (c *Config) applyPersonaYAML(data []byte) error {
	var f personaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse PERSONA_FILE: %w", err)
	}

	setString(&c.Persona.Name, f.Persona.Name)
	setString(&c.Persona.Prompt, f.Persona.Prompt)
	setString(&c.Persona.VoiceActorID, f.Persona.VoiceActorID)
	setString(&c.Persona.VoiceSpeed, f.Persona.VoiceSpeed)
	if f.Persona.VoiceStyleID != nil {
		c.Persona.VoiceStyleID = *f.Persona.VoiceStyleID
	}

	setInt64(&c.Quota.FreeCharLimit, f.Quota.FreeCharLimit)
	setInt64(&c.Quota.CharsPerBlock, f.Quota.CharsPerBlock)
	setInt64(&c.Quota.WarnThreshold, f.Quota.WarnThreshold)

	setString(&c.Ticket.ProductName, f.Ticket.ProductName)
	setString(&c.Ticket.Currency, f.Ticket.Currency)
	setInt64(&c.Ticket.UnitAmount, f.Ticket.UnitAmount)
	setInt64(&c.Ticket.MaxQuantity, f.Ticket.MaxQuantity)

	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt64(dst *int64, src *int64) {
	if src != nil {
		*dst = *src
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
