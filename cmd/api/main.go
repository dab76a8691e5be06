package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jalpeshmakadia/secure-fund-transfer/internal/adapter/cache"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/adapter/handler"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/adapter/middleware"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/adapter/storage/memory"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/adapter/storage/postgres"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/config"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/engine"
	"github.com/jalpeshmakadia/secure-fund-transfer/internal/core/worker"
)

func main() {
	// 1. Load config
	cfg := config.Load()

	// 2. Setup logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx := context.Background()

	// 3. Pick the storage driver
	var (
		store         engine.Store
		transferQueue worker.TransferQueue
		webhookQueue  worker.WebhookQueue
		pool          *pgxpool.Pool
	)
	switch cfg.StoreDriver {
	case "memory":
		slog.Warn("using in-memory store, nothing will survive a restart")
		mem := memory.NewStore()
		store = mem
		transferQueue = mem.TransferQueue()
		webhookQueue = mem.WebhookQueue()
	default:
		var err error
		pool, err = postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "error", err)
			os.Exit(1)
		}
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			slog.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
		store = postgres.NewStore(pool, cfg.AdvisoryLocks)
		transferQueue = postgres.NewTransferQueue(pool)
		webhookQueue = postgres.NewWebhookQueue(pool)
		slog.Info("connected to postgres", "advisory_locks", cfg.AdvisoryLocks)
	}

	// 4. Optional balance cache
	engineOpts := []engine.Option{}
	var balanceCache *cache.RedisBalanceCache
	if cfg.RedisURL != "" {
		var err error
		balanceCache, err = cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("redis connection failed", "error", err)
			os.Exit(1)
		}
		engineOpts = append(engineOpts, engine.WithCache(balanceCache))
		slog.Info("balance cache enabled")
	}

	// 5. Engine, notifier, handlers
	eng := engine.New(store, engineOpts...)
	notifier := worker.NewNotifier(webhookQueue, cfg.WebhookURL)

	accountHandler := &handler.AccountHandler{Engine: eng}
	transferHandler := &handler.TransferHandler{
		Engine:   eng,
		Queue:    transferQueue,
		Notifier: notifier,
		Async:    cfg.AsyncTransfers,
	}

	// 6. Fiber app and routes
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(cors.New())

	api := app.Group("/v1")
	api.Post("/accounts", accountHandler.CreateAccount)
	api.Get("/accounts/:number/balance", accountHandler.GetBalance)
	api.Get("/accounts/:number/transactions", transferHandler.ListTransactions)
	api.Post("/transfers", middleware.IdempotencyKey(), transferHandler.CreateTransfer)
	api.Get("/transfers/:id", transferHandler.GetTransaction)

	// 7. Background workers
	executor := worker.NewTransferExecutor(transferQueue, eng, notifier)
	executor.Start()

	var dispatcher *worker.WebhookDispatcher
	if cfg.WebhookURL != "" {
		dispatcher = worker.NewWebhookDispatcher(webhookQueue, cfg.WebhookSecret)
		dispatcher.Start()
	}

	// 8. Run until told to stop
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "env", cfg.Env, "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("server stopped", "error", err)
		}
	}()

	<-stop
	slog.Info("shutting down")

	if err := app.Shutdown(); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	executor.Stop()
	if dispatcher != nil {
		dispatcher.Stop()
	}
	if balanceCache != nil {
		_ = balanceCache.Close()
	}
	if pool != nil {
		pool.Close()
		slog.Info("database connection closed")
	}

	slog.Info("server exited")
}
