package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	"github.com/joao-fontenele/storefront/internal/cart"
	"github.com/joao-fontenele/storefront/internal/catalog"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/database"
	"github.com/joao-fontenele/storefront/internal/identity"
	"github.com/joao-fontenele/storefront/internal/inventory"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/notification"
	"github.com/joao-fontenele/storefront/internal/orders"
	"github.com/joao-fontenele/storefront/internal/server"
	"github.com/joao-fontenele/storefront/internal/telemetry"
	"github.com/joao-fontenele/storefront/internal/voucher"
)

const serviceVersion = "0.1.0"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := telemetry.NewLogger("store", cfg.Env, cfg.LogLevel)

	if err := config.Require(map[string]string{"POSTGRES_URL": cfg.PostgresURL}); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateEvents(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	svc := telemetry.Service{Name: "store", Version: serviceVersion, Env: cfg.Env}

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, svc, cfg.OTLPEndpoint, cfg.TraceSampleRatio)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider(svc)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	db, err := telemetry.OpenDB(cfg.PostgresURL, telemetry.DefaultPool)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, catalog cache will miss", "error", err)
		}
	}

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize event publisher", "error", err)
		os.Exit(1)
	}
	defer closePublisher()

	tx := database.NewTxRunner(db)
	users := identity.NewRepository(db)
	ledger := inventory.NewLedger()
	carts := cart.NewRepository()
	products := catalog.NewCachedReader(catalog.NewRepository(db), redisClient, cfg.CatalogCacheTTL, logger)
	notifications := notification.NewStore(db)

	engine, err := orders.NewEngine(orders.Deps{
		Tx:        tx,
		Carts:     carts,
		Ledger:    ledger,
		Vouchers:  voucher.NewRepository(),
		Users:     users,
		Orders:    orders.NewOrderRepository(),
		Notifier:  notifications,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to build order engine", "error", err)
		os.Exit(1)
	}

	cartHandler := cart.NewHandler(cart.NewService(tx, carts, ledger, products, users), logger)
	orderHandler := orders.NewHandler(engine, logger)
	inventoryHandler := inventory.NewHandler(ledger, tx, logger)
	notificationHandler := notification.NewHandler(notifications, users, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart", telemetry.WithHTTPRoute(cartHandler.HandleGet))
	mux.HandleFunc("DELETE /cart", telemetry.WithHTTPRoute(cartHandler.HandleClear))
	mux.HandleFunc("POST /cart/items", telemetry.WithHTTPRoute(cartHandler.HandleAddItem))
	mux.HandleFunc("PUT /cart/items/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleUpdateItem))
	mux.HandleFunc("DELETE /cart/items/{productId}", telemetry.WithHTTPRoute(cartHandler.HandleRemoveItem))

	mux.HandleFunc("POST /orders/checkout", telemetry.WithHTTPRoute(orderHandler.HandleCheckout))
	mux.HandleFunc("GET /orders", telemetry.WithHTTPRoute(orderHandler.HandleList))
	mux.HandleFunc("GET /orders/{id}", telemetry.WithHTTPRoute(orderHandler.HandleGet))
	mux.HandleFunc("POST /orders/{id}/cancel", telemetry.WithHTTPRoute(orderHandler.HandleCancel))
	mux.HandleFunc("GET /products/{productId}/purchased", telemetry.WithHTTPRoute(orderHandler.HandleHasPurchased))

	mux.HandleFunc("GET /notifications", telemetry.WithHTTPRoute(notificationHandler.HandleList))
	mux.HandleFunc("GET /notifications/unread-count", telemetry.WithHTTPRoute(notificationHandler.HandleUnreadCount))
	mux.HandleFunc("POST /notifications/{id}/read", telemetry.WithHTTPRoute(notificationHandler.HandleMarkRead))

	mux.HandleFunc("GET /admin/orders", telemetry.WithHTTPRoute(orderHandler.HandleListAll))
	mux.HandleFunc("PUT /admin/orders/{id}/status", telemetry.WithHTTPRoute(orderHandler.HandleUpdateStatus))
	mux.HandleFunc("GET /admin/inventory", telemetry.WithHTTPRoute(inventoryHandler.HandleListStock))
	mux.HandleFunc("GET /admin/inventory/{productId}", telemetry.WithHTTPRoute(inventoryHandler.HandleGetStock))
	mux.HandleFunc("PUT /admin/inventory/{productId}", telemetry.WithHTTPRoute(inventoryHandler.HandleSetStock))
	mux.HandleFunc("POST /admin/inventory/{productId}/add", telemetry.WithHTTPRoute(inventoryHandler.HandleAddStock))

	mux.Handle("GET /metrics", metricsHandler)
	mux.HandleFunc("GET /healthz", healthz(db))

	logger.Info("starting store service", "events", cfg.EventsBackend)
	if err := server.Run(ctx, server.New(cfg.ListenPort("8081"), "store", mux), logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// newPublisher returns a nil Publisher when events are disabled.
func newPublisher(cfg config.Config, logger *slog.Logger) (orders.Publisher, func(), error) {
	switch cfg.EventsBackend {
	case config.EventsKafka:
		producer := messaging.NewKafkaPublisher(cfg.KafkaBrokers, cfg.OrderTopic)
		return producer, func() { _ = producer.Close() }, nil
	case config.EventsAMQP:
		publisher, err := messaging.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, nil, err
		}
		return publisher, func() { _ = publisher.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func healthz(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("database unavailable"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}
}
