package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/pharmacy-order-relay/cmd/mainconfig"
	"github.com/wolfman30/pharmacy-order-relay/internal/api/router"
	"github.com/wolfman30/pharmacy-order-relay/internal/app/bootstrap"
	"github.com/wolfman30/pharmacy-order-relay/internal/channels/whatsapp"
	appconfig "github.com/wolfman30/pharmacy-order-relay/internal/config"
	"github.com/wolfman30/pharmacy-order-relay/internal/conversation"
	"github.com/wolfman30/pharmacy-order-relay/internal/events"
	"github.com/wolfman30/pharmacy-order-relay/internal/extraction"
	"github.com/wolfman30/pharmacy-order-relay/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/pharmacy-order-relay/internal/http/middleware"
	"github.com/wolfman30/pharmacy-order-relay/internal/observability/metrics"
	"github.com/wolfman30/pharmacy-order-relay/pkg/logging"
)

const (
	shutdownTimeout    = 30 * time.Second
	healthCheckTimeout = 2 * time.Second
	dedupPruneInterval = time.Hour

	postgresPingTimeout = 5 * time.Second
)

func main() {
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting pharmacy-order-relay",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	infra, err := connectInfrastructure(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize dependencies", "error", err)
		os.Exit(1)
	}

	app, err := buildApplication(ctx, cfg, logger, infra)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		infra.close()
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	exitCode := 0
	if err := app.shutdown(shutdownCtx, srv); err != nil {
		logger.Error("unclean shutdown", "error", err)
		exitCode = 1
	}
	stop()
	infra.close()

	logger.Info("server stopped")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
	fmt.Println("Server exited gracefully")
}

// infrastructure holds the external clients. Every field is optional except
// llm, messenger and quoter.
type infrastructure struct {
	pool      *pgxpool.Pool
	sqlDB     *sql.DB
	redis     *redis.Client
	llm       extraction.LLMClient
	messenger conversation.Messenger
	quoter    conversation.Quoter
	publisher events.Publisher
	closers   []func()
}

func (i *infrastructure) close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
	i.closers = nil
}

func connectInfrastructure(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*infrastructure, error) {
	infra := &infrastructure{}
	fail := func(err error) (*infrastructure, error) {
		infra.close()
		return nil, err
	}

	pool, err := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fail(err)
	}
	if pool != nil {
		infra.pool = pool
		infra.sqlDB = stdlib.OpenDBFromPool(pool)
		infra.closers = append(infra.closers, pool.Close, func() { _ = infra.sqlDB.Close() })
	}

	if client := bootstrap.BuildRedisClient(ctx, cfg, logger, true); client != nil {
		infra.redis = client
		infra.closers = append(infra.closers, func() { _ = client.Close() })
	}

	llm, closeLLM, err := bootstrap.BuildLLMClient(ctx, cfg, mainconfig.LoadAWSConfig, logger)
	if err != nil {
		return fail(err)
	}
	infra.llm = llm
	infra.closers = append(infra.closers, func() { _ = closeLLM() })

	quoter, err := bootstrap.BuildQuoter(cfg, logger)
	if err != nil {
		return fail(err)
	}
	infra.quoter = quoter

	messenger, reason := bootstrap.BuildMessenger(cfg)
	if messenger == nil {
		return fail(fmt.Errorf("whatsapp messenger unavailable: %s", reason))
	}
	infra.messenger = messenger

	publisher, closePublisher, err := bootstrap.BuildEventPublisher(cfg, logger)
	if err != nil {
		return fail(err)
	}
	infra.publisher = publisher
	infra.closers = append(infra.closers, closePublisher)

	return infra, nil
}

// connectPostgresPool returns a nil pool only when no URL is configured; the
// service then runs on in-memory stores. A configured but unreachable
// database is an error.
func connectPostgresPool(ctx context.Context, databaseURL string, logger *logging.Logger) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, postgresPingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("connected to postgres")
	return pool, nil
}

func setupMetrics() (http.Handler, *metrics.OrderMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewOrderMetrics(reg)
}

func healthChecks(pool *pgxpool.Pool, client *redis.Client) map[string]handlers.CheckFunc {
	checks := make(map[string]handlers.CheckFunc)
	if pool != nil {
		checks["postgres"] = pool.Ping
	}
	if client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}

type application struct {
	handler http.Handler
	intake  *conversation.Intake
}

func buildApplication(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, infra *infrastructure) (*application, error) {
	metricsHandler, orderMetrics := setupMetrics()

	dispatcherCfg := conversation.DispatcherConfig{
		Extractor: bootstrap.BuildExtractor(infra.llm, cfg, logger),
		Quoter:    infra.quoter,
		Messenger: infra.messenger,
		Orders:    bootstrap.BuildOrderStore(infra.pool, logger),
		States:    bootstrap.BuildStateStore(infra.redis, cfg, logger),
		Events:    infra.publisher,
		Metrics:   orderMetrics,
		Logger:    logger,
		Timeouts: conversation.Timeouts{
			Extraction: cfg.LLMTimeout,
			Quotation:  cfg.PartnerTimeout,
			Messaging:  cfg.MessagingTimeout,
			Store:      cfg.DBTimeout,
		},
		ConfirmKeyword: cfg.ConfirmKeyword,
		ReplyFooter:    cfg.ReplyFooter,
	}
	var transcripts handlers.TranscriptLister
	if store := bootstrap.BuildTranscriptStore(infra.sqlDB); store != nil {
		dispatcherCfg.Transcript = store
		transcripts = store
	}

	dispatcher, err := conversation.NewDispatcher(dispatcherCfg)
	if err != nil {
		return nil, fmt.Errorf("build dispatcher: %w", err)
	}

	var processed conversation.ProcessedMarker
	if store := bootstrap.BuildProcessedStore(infra.pool); store != nil {
		processed = store
		go store.RunRetention(ctx, dedupPruneInterval, cfg.DedupRetention, logger)
	}

	intake := conversation.NewIntake(conversation.IntakeConfig{
		Handler:     dispatcher,
		Processed:   processed,
		Metrics:     orderMetrics,
		Logger:      logger,
		Concurrency: cfg.WebhookConcurrency,
	})

	var limiter *httpmiddleware.RateLimiter
	if cfg.WebhookRateLimit > 0 {
		limiter = httpmiddleware.NewRateLimiter(ctx, cfg.WebhookRateLimit, cfg.WebhookRateBurst)
	}
	if cfg.WhatsAppAppSecret == "" {
		logger.Warn("WHATSAPP_APP_SECRET not set; webhook signatures are not verified")
	}

	handler := router.New(&router.Config{
		Logger:          logger,
		WhatsApp:        whatsapp.NewWebhookHandler(cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret, intake, logger),
		Health:          handlers.NewHealthHandler(healthChecks(infra.pool, infra.redis), healthCheckTimeout, logger),
		AdminOrders:     handlers.NewAdminOrdersHandler(dispatcherCfg.Orders, transcripts, logger),
		AdminAuthSecret: cfg.AdminJWTSecret,
		MetricsHandler:  metricsHandler,
		WebhookLimiter:  limiter,
	})

	return &application{handler: handler, intake: intake}, nil
}

// shutdown stops accepting requests, then waits for queued turns.
func (a *application) shutdown(ctx context.Context, srv *http.Server) error {
	var errs []error
	if srv != nil {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := a.intake.Wait(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
