package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/retailhive/retailhive-backend/api/routes"
	"github.com/retailhive/retailhive-backend/internal/auth"
	"github.com/retailhive/retailhive-backend/internal/cart"
	"github.com/retailhive/retailhive-backend/internal/categories"
	"github.com/retailhive/retailhive-backend/internal/checkout"
	"github.com/retailhive/retailhive-backend/internal/orders"
	product "github.com/retailhive/retailhive-backend/internal/products"
	"github.com/retailhive/retailhive-backend/internal/users"
	"github.com/retailhive/retailhive-backend/pkg/auth/session"
	"github.com/retailhive/retailhive-backend/pkg/config"
	"github.com/retailhive/retailhive-backend/pkg/db"
	"github.com/retailhive/retailhive-backend/pkg/instance"
	"github.com/retailhive/retailhive-backend/pkg/logger"
	"github.com/retailhive/retailhive-backend/pkg/metrics"
	"github.com/retailhive/retailhive-backend/pkg/migrate"
	"github.com/retailhive/retailhive-backend/pkg/outbox"
	"github.com/retailhive/retailhive-backend/pkg/redis"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(ctx, "failed to create session manager", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := buildDependencies(cfg, logg, dbClient, sessionManager, registry)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}
	deps.DB = dbClient
	deps.Redis = redisClient
	deps.Sessions = sessionManager

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID("api"),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(logCtx, "api server shutdown failed", err)
		}
		logg.Info(logCtx, "api server stopped")
	}
}

func buildDependencies(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	sessionManager *session.Manager,
	registry *prometheus.Registry,
) (routes.Dependencies, error) {
	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	productRepo := product.NewRepository(conn)
	categoryRepo := categories.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	profileService, err := auth.NewProfileService(usersRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}

	productService, err := product.NewService(productRepo, categoryRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}
	retailerService, err := product.NewRetailerService(productRepo, productService)
	if err != nil {
		return routes.Dependencies{}, err
	}
	adminService, err := product.NewAdminService(product.AdminServiceParams{
		Repo:    productRepo,
		Users:   usersRepo,
		TX:      dbClient,
		Emitter: emitter,
		Logger:  logg,
	})
	if err != nil {
		return routes.Dependencies{}, err
	}
	categoryService, err := categories.NewService(categoryRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}

	cartService, err := cart.NewService(cartRepo, dbClient)
	if err != nil {
		return routes.Dependencies{}, err
	}
	ordersService, err := orders.NewService(ordersRepo)
	if err != nil {
		return routes.Dependencies{}, err
	}
	checkoutService, err := checkout.NewService(
		dbClient,
		cartService,
		cartRepo,
		ordersRepo,
		usersRepo,
		emitter,
		metrics.NewCheckoutMetrics(registry),
		logg,
	)
	if err != nil {
		return routes.Dependencies{}, err
	}

	return routes.Dependencies{
		Auth:     authService,
		Register: registerService,
		Profile:  profileService,
		Products: productService,
		Retailer: retailerService,
		Admin:    adminService,
		Category: categoryService,
		Cart:     cartService,
		Checkout: checkoutService,
		Orders:   ordersService,
		Metrics:  metrics.NewHTTPMetrics(registry),
		Gatherer: registry,
	}, nil
}
