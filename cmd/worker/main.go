package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger("worker", cfg.Env, cfg.LogLevel)

	if err := cfg.ValidateEvents(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.EventsBackend != config.EventsKafka {
		logger.Error("the order event worker consumes from kafka", "events_backend", cfg.EventsBackend)
		os.Exit(1)
	}
	if err := config.Require(map[string]string{"EMAIL_SERVICE_URL": cfg.EmailServiceURL}); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	svc := telemetry.Service{Name: "worker", Version: "0.1.0", Env: cfg.Env}
	shutdownTracer, err := telemetry.InitTracerProvider(ctx, svc, cfg.OTLPEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	var seen *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		seen = redis.NewClient(opts)
		defer func() { _ = seen.Close() }()
	}

	consumer := messaging.NewConsumer(cfg.KafkaBrokers, cfg.OrderTopic, "order-email-worker", messaging.WithLogger(logger))
	defer func() { _ = consumer.Close() }()

	httpClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	handler := worker.NewOrderEventHandler(cfg.EmailServiceURL, httpClient, seen, logger)

	logger.Info("starting order email worker", "brokers", cfg.KafkaBrokers, "topic", cfg.OrderTopic)

	if err := consumer.Consume(ctx, handler.Handle); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			logger.Info("shutting down")
			return
		}
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
