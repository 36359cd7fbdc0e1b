// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type EventsBackend string

const (
	EventsKafka EventsBackend = "kafka"
	EventsAMQP  EventsBackend = "amqp"
	EventsNone  EventsBackend = "none"
)

type Config struct {
	Env         string
	LogLevel    string
	Port        string
	GatewayPort string

	PostgresURL    string
	MigrationsPath string

	EventsBackend EventsBackend
	KafkaBrokers  []string
	OrderTopic    string
	AMQPURL       string
	AMQPExchange  string

	RedisURL        string
	CatalogCacheTTL time.Duration

	EmailServiceURL string
	StoreServiceURL string
	AdminToken      string

	OTLPEndpoint     string
	TraceSampleRatio float64
}

// Load reads every setting, applying defaults. Requirements that depend on
// the binary are checked by Require and ValidateEvents.
func Load() (Config, error) {
	cfg := Config{
		Env:             getEnv("APP_ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            os.Getenv("PORT"),
		GatewayPort:     getEnv("GATEWAY_PORT", "8080"),
		PostgresURL:     os.Getenv("POSTGRES_URL"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "file://migrations"),
		EventsBackend:   EventsBackend(strings.ToLower(getEnv("EVENTS_BACKEND", string(EventsKafka)))),
		KafkaBrokers:    splitList(os.Getenv("KAFKA_BROKERS")),
		OrderTopic:      getEnv("ORDER_EVENTS_TOPIC", "storefront.orders"),
		AMQPURL:         os.Getenv("AMQP_URL"),
		AMQPExchange:    getEnv("AMQP_EXCHANGE", "storefront.orders"),
		RedisURL:        os.Getenv("REDIS_URL"),
		EmailServiceURL: os.Getenv("EMAIL_SERVICE_URL"),
		StoreServiceURL: os.Getenv("STORE_SERVICE_URL"),
		AdminToken:      os.Getenv("ADMIN_TOKEN"),
		OTLPEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	ratio, err := getRatio("OTEL_TRACES_SAMPLER_ARG", 1)
	if err != nil {
		return Config{}, err
	}
	cfg.TraceSampleRatio = ratio

	ttl, err := getDuration("CATALOG_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	cfg.CatalogCacheTTL = ttl

	return cfg, nil
}

// ListenPort returns PORT, or fallback when it is unset. Each binary has
// its own default so they can run side by side locally.
func (c Config) ListenPort(fallback string) string {
	if c.Port != "" {
		return c.Port
	}
	return fallback
}

// ValidateEvents checks the settings of the selected event backend. Only
// binaries that publish or consume events call it.
func (c Config) ValidateEvents() error {
	switch c.EventsBackend {
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_BACKEND is kafka")
		}
	case EventsAMQP:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when EVENTS_BACKEND is amqp")
		}
	case EventsNone:
	default:
		return fmt.Errorf("unknown EVENTS_BACKEND %q", c.EventsBackend)
	}
	return nil
}

// Require reports a variable whose value is empty.
func Require(vars map[string]string) error {
	for name, value := range vars {
		if value == "" {
			return fmt.Errorf("%s environment variable is required", name)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	// bare integers are seconds
	secs, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return time.Duration(secs) * time.Second, nil
}

func getRatio(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 0, fmt.Errorf("invalid %s %q: want a ratio between 0 and 1", key, raw)
	}
	return ratio, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
