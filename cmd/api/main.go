package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/abarbet/shoply-backend/api/routes"
	"github.com/abarbet/shoply-backend/internal/auth"
	"github.com/abarbet/shoply-backend/internal/orders"
	"github.com/abarbet/shoply-backend/internal/payments"
	product "github.com/abarbet/shoply-backend/internal/products"
	"github.com/abarbet/shoply-backend/internal/users"
	"github.com/abarbet/shoply-backend/pkg/config"
	"github.com/abarbet/shoply-backend/pkg/db"
	"github.com/abarbet/shoply-backend/pkg/logger"
	"github.com/abarbet/shoply-backend/pkg/metrics"
	"github.com/abarbet/shoply-backend/pkg/migrate"
	"github.com/abarbet/shoply-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api exited with error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		var errs error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = multierr.Append(errs, closers[i]())
		}
		if errs != nil {
			logg.Error(context.Background(), "cleanup failed", errs)
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	closers = append(closers, dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("run dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	closers = append(closers, redisClient.Close)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	settlementMetrics := metrics.NewSettlementMetrics(registry)

	usersRepo := users.NewRepository(dbClient.DB())
	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("create auth service: %w", err)
	}

	productRepo := product.NewRepository(dbClient.DB())
	productService, err := product.NewService(productRepo, redisClient, cfg.ProductCache.TTL, logg)
	if err != nil {
		return fmt.Errorf("create product service: %w", err)
	}

	ordersRepo := orders.NewRepository(dbClient.DB())
	orderService, err := orders.NewService(ordersRepo, dbClient, orders.NewStockReserver(), cfg.Orders)
	if err != nil {
		return fmt.Errorf("create orders service: %w", err)
	}

	queue := payments.NewQueue()
	paymentsRepo := payments.NewRepository(dbClient.DB())
	paymentService, err := payments.NewService(paymentsRepo, ordersRepo, queue)
	if err != nil {
		return fmt.Errorf("create payments service: %w", err)
	}

	gateway := payments.NewSimulatedGateway(cfg.Settlement)
	var workers sync.WaitGroup
	for i := 0; i < cfg.Settlement.Workers; i++ {
		worker, err := payments.NewWorker(payments.WorkerParams{
			Queue:   queue,
			Repo:    paymentsRepo,
			Tx:      dbClient,
			Gateway: gateway,
			Logger:  logg,
			Metrics: settlementMetrics,
		})
		if err != nil {
			return fmt.Errorf("create settlement worker: %w", err)
		}
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(context.Background(), "settlement worker stopped", err)
			}
		}()
	}

	router := routes.NewRouter(routes.Deps{
		Config:         cfg,
		Logger:         logg,
		DB:             dbClient,
		Redis:          redisClient,
		Registry:       registry,
		AuthService:    authService,
		ProductService: productService,
		OrderService:   orderService,
		PaymentService: paymentService,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	startCtx := logg.WithFields(context.Background(), map[string]any{
		"env":     cfg.App.Env,
		"addr":    addr,
		"workers": cfg.Settlement.Workers,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok && err != nil {
			stop()
			workers.Wait()
			return fmt.Errorf("api server stopped unexpectedly: %w", err)
		}
	case <-ctx.Done():
	}

	logg.Info(context.Background(), "shutting down api server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(context.Background(), "server shutdown error", err)
	}

	stop()
	workers.Wait()
	logg.Info(context.Background(), "api shut down gracefully")
	return nil
}
