package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	WhatsAppAPIURL           string
	WhatsAppAccessToken      string
	WhatsAppPhoneNumberID    string
	WhatsAppVerifyToken      string
	WhatsAppAppSecret        string
	WhatsAppTemplateName     string
	WhatsAppTemplateLanguage string

	PartnerAPIBaseURL string
	PartnerAPIKey     string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string

	LLMTimeout       time.Duration
	PartnerTimeout   time.Duration
	MessagingTimeout time.Duration
	DBTimeout        time.Duration

	ConfirmKeyword     string
	ReplyFooter        string
	ConversationTTL    time.Duration
	DedupRetention     time.Duration
	WebhookConcurrency int
	WebhookRateLimit   float64
	WebhookRateBurst   int

	AdminJWTSecret string

	KafkaBrokers    []string
	KafkaOrderTopic string
}

// Load reads configuration from the environment. A local .env file, when
// present, fills in variables that are not already set.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WhatsAppAPIURL:           getEnv("WHATSAPP_API_URL", "https://graph.facebook.com/v19.0"),
		WhatsAppAccessToken:      getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID:    getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppVerifyToken:      getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:        getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppTemplateName:     getEnv("WHATSAPP_TEMPLATE_NAME", ""),
		WhatsAppTemplateLanguage: getEnv("WHATSAPP_TEMPLATE_LANGUAGE", "pt_BR"),

		PartnerAPIBaseURL: strings.TrimRight(getEnv("PARTNER_API_BASE_URL", ""), "/"),
		PartnerAPIKey:     getEnv("PARTNER_API_KEY", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),

		LLMTimeout:       getEnvAsDuration("LLM_TIMEOUT", 20*time.Second),
		PartnerTimeout:   getEnvAsDuration("PARTNER_TIMEOUT", 10*time.Second),
		MessagingTimeout: getEnvAsDuration("MESSAGING_TIMEOUT", 10*time.Second),
		DBTimeout:        getEnvAsDuration("DB_TIMEOUT", 5*time.Second),

		ConfirmKeyword:     strings.ToLower(strings.TrimSpace(getEnv("CONFIRM_KEYWORD", "ok"))),
		ReplyFooter:        getEnv("REPLY_FOOTER", ""),
		ConversationTTL:    getEnvAsDuration("CONVERSATION_TTL", 72*time.Hour),
		DedupRetention:     getEnvAsDuration("DEDUP_RETENTION", 7*24*time.Hour),
		WebhookConcurrency: getEnvAsInt("WEBHOOK_CONCURRENCY", 8),
		WebhookRateLimit:   getEnvAsFloat("WEBHOOK_RATE_LIMIT", 20),
		WebhookRateBurst:   getEnvAsInt("WEBHOOK_RATE_BURST", 40),

		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		KafkaBrokers:    getEnvAsList("KAFKA_BROKERS"),
		KafkaOrderTopic: getEnv("KAFKA_ORDER_TOPIC", "pharmacy.orders"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
