package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/gateway"
	"github.com/joao-fontenele/storefront/internal/server"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger("gateway", cfg.Env, cfg.LogLevel)

	if err := config.Require(map[string]string{"STORE_SERVICE_URL": cfg.StoreServiceURL}); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.AdminToken == "" {
		logger.Warn("ADMIN_TOKEN not set, admin routes are disabled")
	}

	svc := telemetry.Service{Name: "gateway", Version: serviceVersion, Env: cfg.Env}
	shutdownTracer, err := telemetry.InitTracerProvider(ctx, svc, cfg.OTLPEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	storeClient := &http.Client{
		Timeout:   10 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	handler := gateway.NewHandler(gateway.NewServiceProxy(cfg.StoreServiceURL, storeClient), cfg.AdminToken, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/admin/", telemetry.WithHTTPRoute(handler.HandleAdmin))
	mux.HandleFunc("/api/", telemetry.WithHTTPRoute(handler.HandleStore))

	logger.Info("starting gateway service", "store", cfg.StoreServiceURL)
	if err := server.Run(ctx, server.New(cfg.GatewayPort, "gateway", mux), logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
