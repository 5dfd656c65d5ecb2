package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/stockpilot/stockpilot/internal/app"
	"github.com/stockpilot/stockpilot/internal/audit"
	"github.com/stockpilot/stockpilot/internal/auth"
	"github.com/stockpilot/stockpilot/internal/authz"
	"github.com/stockpilot/stockpilot/internal/catalog"
	"github.com/stockpilot/stockpilot/internal/customers"
	"github.com/stockpilot/stockpilot/internal/platform/db"
	"github.com/stockpilot/stockpilot/internal/sales"
	"github.com/stockpilot/stockpilot/internal/stock"
	"github.com/stockpilot/stockpilot/internal/transfers"
	"github.com/stockpilot/stockpilot/internal/users"
	"github.com/stockpilot/stockpilot/internal/warehouses"
	"github.com/stockpilot/stockpilot/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	recorder := audit.NewPGRecorder(pool)
	authorizer := authz.NewAuthorizer()
	guard := authz.Middleware{Authorizer: authorizer, Logger: logger}

	tokens := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	resets := auth.NewResetManager(redisClient)

	usersService := users.NewService(users.NewRepository(pool), recorder)
	authHandler := auth.NewHandler(logger, usersService, tokens, resets, recorder, jobClient)

	catalogService := catalog.NewService(catalog.NewRepository(pool), recorder)
	warehousesService := warehouses.NewService(warehouses.NewRepository(pool), recorder)
	customersService := customers.NewService(customers.NewRepository(pool), authorizer, recorder)
	stockService := stock.NewService(stock.NewRepository(pool))
	salesService := sales.NewService(sales.NewRepository(pool), authorizer)
	transfersService := transfers.NewService(transfers.NewRepository(pool))
	auditService := audit.NewService(pool)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		Guard:             guard,
		AuthHandler:       authHandler,
		CatalogHandler:    catalog.NewHandler(logger, catalogService, guard),
		WarehousesHandler: warehouses.NewHandler(logger, warehousesService, guard),
		StockHandler:      stock.NewHandler(logger, stockService, guard),
		SalesHandler:      sales.NewHandler(logger, salesService, guard),
		TransfersHandler:  transfers.NewHandler(logger, transfersService, guard),
		CustomersHandler:  customers.NewHandler(logger, customersService, guard),
		UsersHandler:      users.NewHandler(logger, usersService, guard),
		AuditHandler:      audit.NewHandler(logger, auditService),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
