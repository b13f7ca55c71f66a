package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-checkout/api/routes"
	"github.com/angelmondragon/storefront-checkout/internal/address"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/catalog"
	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/payments"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/gateway"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
	"github.com/angelmondragon/storefront-checkout/pkg/migrate"
	"github.com/angelmondragon/storefront-checkout/pkg/postal"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
	"github.com/angelmondragon/storefront-checkout/pkg/resilience"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
		Console:     cfg.App.ConsoleLogs(),
	})

	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	requireResource(ctx, logg, "dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	postalClient := postal.NewClient(
		postal.WithBaseURL(cfg.Postal.BaseURL),
		postal.WithPolicy(resilience.NewPolicy(resilience.Config{
			Name:      "postal",
			Timeout:   cfg.Postal.Timeout,
			Threshold: cfg.Postal.BreakerThreshold,
			Cooldown:  cfg.Postal.BreakerCooldown,
		})),
		postal.WithCache(redisClient, cfg.Postal.CacheTTL),
		postal.WithRecorder(checkoutMetrics),
	)

	razorpay, err := gateway.NewRazorpay(gateway.Params{
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
		Policy:    resilience.NewPolicy(resilience.Config{Name: "razorpay", Timeout: cfg.Razorpay.Timeout}),
		Metrics:   checkoutMetrics,
	})
	requireResource(ctx, logg, "razorpay gateway", err)

	conn := dbClient.DB()
	couponRepo := coupons.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)

	evaluator, err := coupons.NewEvaluator(couponRepo, nil)
	requireResource(ctx, logg, "coupon evaluator", err)
	engine, err := pricing.NewEngine(evaluator)
	requireResource(ctx, logg, "pricing engine", err)
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), nil)
	requireResource(ctx, logg, "catalog service", err)

	cartStore, err := cart.NewRedisStore(redisClient, cfg.Checkout.CartTTL)
	requireResource(ctx, logg, "cart store", err)
	cartSvc, err := cart.NewService(cartStore, catalogSvc, engine)
	requireResource(ctx, logg, "cart service", err)

	couponSvc, err := coupons.NewService(couponRepo, orderRepo, dbClient, logg)
	requireResource(ctx, logg, "coupon service", err)

	addressSvc, err := address.NewService(address.NewRepository(conn), address.NewResolver(postalClient, logg), dbClient)
	requireResource(ctx, logg, "address service", err)

	assembler, err := orders.NewAssembler(orders.AssemblerParams{
		Repo:      orderRepo,
		Catalog:   catalogSvc,
		Pricing:   engine,
		Addresses: addressSvc,
		Carts:     cartSvc,
		Gateway:   razorpay,
		Metrics:   checkoutMetrics,
		Logger:    logg,
	})
	requireResource(ctx, logg, "order assembler", err)

	orderSvc, err := orders.NewService(orderRepo, logg)
	requireResource(ctx, logg, "order service", err)

	guard, err := payments.NewGuard(redisClient, cfg.Checkout.PaymentGuardTTL)
	requireResource(ctx, logg, "payment guard", err)

	reconciler, err := payments.NewReconciler(payments.Params{
		Orders:   orderRepo,
		Verifier: razorpay,
		Coupons:  couponSvc,
		Catalog:  catalogSvc,
		Carts:    cartSvc,
		Tx:       dbClient,
		Guard:    guard,
		Metrics:  checkoutMetrics,
		Logger:   logg,
	})
	requireResource(ctx, logg, "payment reconciler", err)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Dependencies{
			Config:      cfg,
			Logger:      logg,
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Gatherer:    registry,
			Carts:       cartSvc,
			Evaluator:   evaluator,
			Coupons:     couponSvc,
			Addresses:   addressSvc,
			Assembler:   assembler,
			Orders:      orderSvc,
			Reconciler:  reconciler,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-runCtx.Done():
		logg.Info(ctx, "api server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
