package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/email"
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

	logger := telemetry.NewLogger("email", cfg.Env, cfg.LogLevel)

	svc := telemetry.Service{Name: "email", Version: serviceVersion, Env: cfg.Env}
	shutdownTracer, err := telemetry.InitTracerProvider(ctx, svc, cfg.OTLPEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	handler := email.NewHandler(logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /send", telemetry.WithHTTPRoute(handler.HandleSend))

	if err := server.Run(ctx, server.New(cfg.ListenPort("8084"), "email", mux), logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
