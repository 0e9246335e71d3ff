/**
 * @description
 * This is the main entry point for the portfolio-service. It loads configuration,
 * connects to PostgreSQL, Redis and RabbitMQ, builds the ledger provider client,
 * the aggregators and the HTTP API, starts the maintenance scheduler and serves
 * until it receives a termination signal.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Cursor checkpoints and rate limiting.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/plaidclient, pkg/credential, pkg/rabbitmq: Provider client, credential sealing, event publishing.
 */
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/transfa/portfolio-service/internal/api"
	"github.com/transfa/portfolio-service/internal/app"
	"github.com/transfa/portfolio-service/internal/config"
	"github.com/transfa/portfolio-service/internal/store"
	"github.com/transfa/portfolio-service/pkg/credential"
	"github.com/transfa/portfolio-service/pkg/plaidclient"
	"github.com/transfa/portfolio-service/pkg/rabbitmq"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil)).With("service", "portfolio-service")
	slog.SetDefault(logger)
	bootLog := logger.With("component", "bootstrap")

	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		bootLog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		bootLog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		bootLog.Error("jwt secret must be configured", "env", "JWT_SECRET")
		os.Exit(1)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		bootLog.Warn("internal api key not configured; internal routes will reject every request", "env", "INTERNAL_API_KEY")
	}
	bootLog.Info("starting portfolio-service", "port", cfg.ServerPort, "plaid_env", cfg.PlaidEnv)

	ctx := context.Background()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		bootLog.Error("database url parse failed", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		bootLog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer dbpool.Close()
	bootLog.Info("database connected")

	sealer, err := credential.NewSealer(cfg.CredentialEncryptionKey)
	if err != nil {
		bootLog.Error("credential encryption key invalid", "env", "CREDENTIAL_ENCRYPTION_KEY", "error", err)
		os.Exit(1)
	}
	if !sealer.Enabled() {
		bootLog.Warn("credential encryption disabled; access credentials are read as stored")
	}

	redisClient := connectRedis(ctx, cfg.RedisURL, bootLog)
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher rabbitmq.Publisher
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger.With("component", "rabbitmq_producer"))
	if err != nil {
		bootLog.Warn("rabbitmq producer unavailable; using fallback", "error", err)
		publisher = &rabbitmq.EventProducerFallback{Logger: logger.With("component", "rabbitmq_producer")}
	} else {
		bootLog.Info("rabbitmq producer connected")
		publisher = producer
	}
	defer publisher.Close()

	baseURL := strings.TrimSpace(cfg.PlaidBaseURL)
	if baseURL == "" {
		baseURL = plaidclient.BaseURLForEnv(cfg.PlaidEnv)
	}
	plaid := plaidclient.NewClient(baseURL, cfg.PlaidClientID, cfg.PlaidSecret, logger)

	linkedAccounts := store.NewPostgresLinkedAccountRepository(dbpool, sealer, logger)
	transfers := store.NewPostgresTransferRepository(dbpool)
	institutionCache := store.NewPostgresInstitutionCache(dbpool, logger)

	var cursors store.CursorCheckpointStore
	var limiter api.RateLimiter
	if redisClient != nil {
		cursors = store.NewRedisCursorStore(redisClient, cfg.RedisKeyPrefix, cfg.CursorCheckpointTTL())
		limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisKeyPrefix)
	}

	ledger := app.NewLedgerSyncClient(plaid, app.SyncOptions{
		MaxTransactions: cfg.SyncMaxTransactions,
		PageSize:        cfg.SyncPageSize,
		PageTimeout:     cfg.SyncPageTimeout(),
	}, logger.With("component", "ledger_sync"))

	resolver := app.NewInstitutionResolver(plaid, institutionCache, cfg.PlaidCountryCodes(), cfg.InstitutionCacheTTL(), logger.With("component", "institution_resolver"))

	accountAggregator := app.NewAccountAggregator(plaid, resolver, transfers, ledger, cursors, app.AccountAggregatorConfig{
		LookupTimeout:  cfg.LookupTimeout(),
		AccountTimeout: cfg.AccountTimeout(),
	}, logger.With("component", "account_aggregator"))

	portfolioAggregator := app.NewMultiAccountAggregator(linkedAccounts, accountAggregator, cfg.MaxConcurrentAccounts, logger.With("component", "portfolio_aggregator"))

	portfolioService := app.NewPortfolioService(
		linkedAccounts,
		portfolioAggregator,
		accountAggregator,
		cursors,
		publisher,
		cfg.EventsExchange,
		logger.With("component", "portfolio_service"),
	)

	scheduler := app.NewScheduler(
		app.NewMaintenanceJobs(institutionCache, logger.With("component", "maintenance_jobs")),
		cfg.InstitutionCacheCleanupSchedule,
		logger.With("component", "scheduler"),
	)
	if err := scheduler.Start(); err != nil {
		bootLog.Error("scheduler start failed", "error", err)
		os.Exit(1)
	}

	handlers := api.NewPortfolioHandlers(portfolioService, limiter, cfg.PortfolioRateLimitPerMinute, logger.With("component", "http"))
	router := api.NewRouter(handlers, api.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		InternalAPIKey: cfg.InternalAPIKey,
		RequestTimeout: cfg.AccountTimeout() + 30*time.Second,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "component", "http", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", "component", "http", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started", "component", "http")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "component", "http", "error", err)
	}
	<-scheduler.Stop().Done()

	logger.Info("shutdown complete", "component", "http")
}

// connectRedis returns nil when Redis is not configured or not reachable; the
// service then runs without cursor checkpoints and rate limiting.
func connectRedis(ctx context.Context, redisURL string, logger *slog.Logger) *redis.Client {
	if redisURL == "" {
		logger.Warn("redis url missing; cursor checkpoints and rate limiting disabled", "env", "REDIS_URL")
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("redis url parse failed; cursor checkpoints and rate limiting disabled", "error", err)
		return nil
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis ping failed; cursor checkpoints and rate limiting disabled", "error", err)
		client.Close()
		return nil
	}
	logger.Info("redis connected")
	return client
}
