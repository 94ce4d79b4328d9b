package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "CONFIRM_KEYWORD", "WHATSAPP_TEMPLATE_LANGUAGE",
		"LLM_TIMEOUT", "DB_TIMEOUT", "KAFKA_BROKERS", "WEBHOOK_CONCURRENCY", "CONVERSATION_TTL", "DEDUP_RETENTION"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ConfirmKeyword != "ok" {
		t.Fatalf("expected default confirm keyword ok, got %q", cfg.ConfirmKeyword)
	}
	if cfg.WhatsAppTemplateLanguage != "pt_BR" {
		t.Fatalf("expected pt_BR template language, got %s", cfg.WhatsAppTemplateLanguage)
	}
	if cfg.LLMTimeout != 20*time.Second {
		t.Fatalf("expected default llm timeout, got %s", cfg.LLMTimeout)
	}
	if cfg.DBTimeout != 5*time.Second {
		t.Fatalf("expected default db timeout, got %s", cfg.DBTimeout)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Fatalf("expected kafka disabled by default, got %v", cfg.KafkaBrokers)
	}
	if cfg.WebhookConcurrency != 8 {
		t.Fatalf("expected default webhook concurrency, got %d", cfg.WebhookConcurrency)
	}
	if cfg.DedupRetention != 7*24*time.Hour {
		t.Fatalf("expected default dedup retention, got %s", cfg.DedupRetention)
	}
	if cfg.ConversationTTL != 72*time.Hour {
		t.Fatalf("expected default conversation ttl, got %s", cfg.ConversationTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("PARTNER_API_BASE_URL", "https://partner.example.com/api/")
	t.Setenv("CONFIRM_KEYWORD", "  SIM ")
	t.Setenv("PARTNER_TIMEOUT", "3s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, ,kafka-2:9092")
	t.Setenv("WEBHOOK_CONCURRENCY", "2")
	t.Setenv("REDIS_TLS", "true")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected env override, got %s", cfg.Env)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected db override, got %s", cfg.DatabaseURL)
	}
	if cfg.PartnerAPIBaseURL != "https://partner.example.com/api" {
		t.Fatalf("expected trailing slash trimmed, got %s", cfg.PartnerAPIBaseURL)
	}
	if cfg.ConfirmKeyword != "sim" {
		t.Fatalf("expected normalized keyword, got %q", cfg.ConfirmKeyword)
	}
	if cfg.PartnerTimeout != 3*time.Second {
		t.Fatalf("expected partner timeout override, got %s", cfg.PartnerTimeout)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "kafka-2:9092" {
		t.Fatalf("expected two brokers, got %v", cfg.KafkaBrokers)
	}
	if cfg.WebhookConcurrency != 2 {
		t.Fatalf("expected concurrency override, got %d", cfg.WebhookConcurrency)
	}
	if !cfg.RedisTLS {
		t.Fatalf("expected redis tls enabled")
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("WEBHOOK_CONCURRENCY", "many")
	t.Setenv("MESSAGING_TIMEOUT", "soon")
	t.Setenv("WEBHOOK_RATE_LIMIT", "fast")
	cfg := Load()
	if cfg.WebhookConcurrency != 8 {
		t.Fatalf("expected fallback concurrency, got %d", cfg.WebhookConcurrency)
	}
	if cfg.MessagingTimeout != 10*time.Second {
		t.Fatalf("expected fallback messaging timeout, got %s", cfg.MessagingTimeout)
	}
	if cfg.WebhookRateLimit != 20 {
		t.Fatalf("expected fallback rate limit, got %v", cfg.WebhookRateLimit)
	}
}
