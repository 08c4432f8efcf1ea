package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	DiscogsBaseURL    string
	DiscogsToken      string
	EbayBaseURL       string
	EbayClientID      string
	EbayClientSecret  string
	EbayMarketplaceID string
	EbayCampaignID    string
	UserAgent         string
	MockProvider      bool

	VaultKeyID       string
	VaultKeyMaterial string

	SearchLimit        int
	SchedulerBatchSize int
	SchedulerJitter    time.Duration
	SchedulerRetry     time.Duration
	WorkerPollInterval time.Duration
	WorkerClaimTTL     time.Duration

	DeliveryBatchSize     int
	DeliveryMaxAttempts   int
	DeliveryRetryBase     time.Duration
	DeliveryRetryMax      time.Duration
	ImportCooldownSeconds int
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "cratewatch"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	userAgent := os.Getenv("PROVIDER_USER_AGENT")
	if userAgent == "" {
		userAgent = "cratewatch/1.0"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		DiscogsBaseURL:    os.Getenv("DISCOGS_BASE_URL"),
		DiscogsToken:      os.Getenv("DISCOGS_TOKEN"),
		EbayBaseURL:       os.Getenv("EBAY_BASE_URL"),
		EbayClientID:      os.Getenv("EBAY_CLIENT_ID"),
		EbayClientSecret:  os.Getenv("EBAY_CLIENT_SECRET"),
		EbayMarketplaceID: os.Getenv("EBAY_MARKETPLACE_ID"),
		EbayCampaignID:    os.Getenv("EBAY_CAMPAIGN_ID"),
		UserAgent:         userAgent,
		MockProvider:      envBool("ENABLE_MOCK_PROVIDER", false),

		VaultKeyID:       os.Getenv("TOKEN_VAULT_KEY_ID"),
		VaultKeyMaterial: os.Getenv("TOKEN_VAULT_KEY"),

		SearchLimit:        envInt("PROVIDER_SEARCH_LIMIT", 50),
		SchedulerBatchSize: envInt("SCHEDULER_BATCH_SIZE", 25),
		SchedulerJitter:    envDuration("SCHEDULER_JITTER", 30*time.Second),
		SchedulerRetry:     envDuration("SCHEDULER_RETRY_DELAY", 5*time.Minute),
		WorkerPollInterval: envDuration("WORKER_POLL_INTERVAL", 15*time.Second),
		WorkerClaimTTL:     envDuration("WORKER_CLAIM_TTL", 10*time.Minute),

		DeliveryBatchSize:     envInt("DELIVERY_BATCH_SIZE", 50),
		DeliveryMaxAttempts:   envInt("DELIVERY_MAX_ATTEMPTS", 5),
		DeliveryRetryBase:     envDuration("DELIVERY_RETRY_BASE", 30*time.Second),
		DeliveryRetryMax:      envDuration("DELIVERY_RETRY_MAX", 30*time.Minute),
		ImportCooldownSeconds: envInt("IMPORT_COOLDOWN_SECONDS", 6*60*60),
	}, nil
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}
