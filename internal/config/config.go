// Package config loads the environment-variable configuration shared by all
// five pipeline stages. It follows the same envOr/envIntOr/envDurationOr
// idiom used by the registry command in the reference tree: read once at
// process startup, fail fast with a wrapped ConfigError on an invalid
// BROKER_MODE, a sentinel mode without SENTINEL_HOSTS, or an invalid
// CLASSIFIER_BACKEND, never consult the environment again at runtime. A
// malformed integer or duration value (BROKER_PORT, BROKER_DB,
// REQUEST_TIMEOUT) is not reported; its default is used instead.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// BrokerMode selects how the broker connects to Redis.
type BrokerMode string

const (
	BrokerModeDirect   BrokerMode = "direct"
	BrokerModeSentinel BrokerMode = "sentinel"
)

// ClassifierBackend selects which implementation Classification uses.
type ClassifierBackend string

const (
	ClassifierBackendHTTP ClassifierBackend = "http"
	ClassifierBackendLLM  ClassifierBackend = "llm"
)

// ConfigError wraps a configuration problem detected at startup.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Config holds every environment-derived setting recognized by the pipeline.
type Config struct {
	// Broker
	BrokerMode       BrokerMode
	BrokerHost       string
	BrokerPort       int
	BrokerDB         int
	BrokerPassword   string
	SentinelHosts    []string
	SentinelMasterSet string
	SentinelPassword string

	// Platform API
	PlatformURL   string
	PlatformToken string

	// Classification
	ModelURL          string
	ClassifierBackend ClassifierBackend
	LLMProvider       string

	// Notification
	ChatWebhookURL string

	// Logging / telemetry
	LogLevel   string
	Debug      bool
	ServiceName string

	// HTTP surfaces
	IngressAddr      string
	VerificationAddr string

	// VerificationURL is the base URL Retrieval calls for per-snippet trust
	// checks (POST /verify_email), reachable at VerificationAddr on a
	// deployed verification stage.
	VerificationURL string

	// Trust lists
	VerifiedDomainsFile string
	VerifiedUsersFile   string

	// Request/retry tuning
	RequestTimeout time.Duration
}

// Load reads the process environment into a Config, applying defaults and
// validating enumerated keys. It never retries or watches for changes;
// callers that need a SIGHUP-triggered trust-list reload should layer it on
// top of the TrustList loader directly (trust lists are the only mutable
// piece of configuration, see internal/trust).
func Load() (Config, error) {
	cfg := Config{
		BrokerMode:        BrokerMode(envOr("BROKER_MODE", string(BrokerModeDirect))),
		BrokerHost:        envOr("BROKER_HOST", "localhost"),
		BrokerPort:        envIntOr("BROKER_PORT", 6379),
		BrokerDB:          envIntOr("BROKER_DB", 0),
		BrokerPassword:    os.Getenv("BROKER_PASSWORD"),
		SentinelMasterSet: envOr("SENTINEL_MASTER_SET", "mymaster"),
		SentinelPassword:  os.Getenv("SENTINEL_PASSWORD"),

		PlatformURL:   envOr("PLATFORM_URL", ""),
		PlatformToken: os.Getenv("PLATFORM_TOKEN"),

		ModelURL:          envOr("MODEL_URL", ""),
		ClassifierBackend: ClassifierBackend(envOr("CLASSIFIER_BACKEND", string(ClassifierBackendHTTP))),
		LLMProvider:       envOr("LLM_PROVIDER", "anthropic"),

		ChatWebhookURL: envOr("CHAT_WEBHOOK_URL", ""),

		LogLevel:    envOr("LOGLEVEL", "info"),
		ServiceName: envOr("SERVICE_NAME", "event-triage-pipeline"),

		IngressAddr:      envOr("INGRESS_ADDR", ":8000"),
		VerificationAddr: envOr("VERIFICATION_ADDR", ":8001"),
		VerificationURL:  envOr("VERIFICATION_URL", "http://localhost:8001"),

		VerifiedDomainsFile: envOr("VERIFIED_DOMAINS_FILE", "verified_domains.yaml"),
		VerifiedUsersFile:   envOr("VERIFIED_USERS_FILE", "verified_users.yaml"),

		RequestTimeout: envDurationOr("REQUEST_TIMEOUT", 10*time.Second),
	}
	cfg.Debug = strings.EqualFold(cfg.LogLevel, "debug")

	if hosts := os.Getenv("SENTINEL_HOSTS"); hosts != "" {
		cfg.SentinelHosts = strings.Split(hosts, ",")
	}

	switch cfg.BrokerMode {
	case BrokerModeDirect, BrokerModeSentinel:
	default:
		return Config{}, &ConfigError{Key: "BROKER_MODE", Err: fmt.Errorf("must be %q or %q, got %q", BrokerModeDirect, BrokerModeSentinel, cfg.BrokerMode)}
	}
	if cfg.BrokerMode == BrokerModeSentinel && len(cfg.SentinelHosts) == 0 {
		return Config{}, &ConfigError{Key: "SENTINEL_HOSTS", Err: fmt.Errorf("required when BROKER_MODE=sentinel")}
	}
	switch cfg.ClassifierBackend {
	case ClassifierBackendHTTP, ClassifierBackendLLM:
	default:
		return Config{}, &ConfigError{Key: "CLASSIFIER_BACKEND", Err: fmt.Errorf("must be %q or %q, got %q", ClassifierBackendHTTP, ClassifierBackendLLM, cfg.ClassifierBackend)}
	}

	return cfg, nil
}

func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDurationOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
