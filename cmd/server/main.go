package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/xproxy/xproxy/internal/api"
	"github.com/xproxy/xproxy/internal/auth"
	"github.com/xproxy/xproxy/internal/billing"
	"github.com/xproxy/xproxy/internal/config"
	"github.com/xproxy/xproxy/internal/database"
	"github.com/xproxy/xproxy/internal/handlers"
	"github.com/xproxy/xproxy/internal/logger"
	"github.com/xproxy/xproxy/internal/middleware"
	"github.com/xproxy/xproxy/internal/pricing"
	"github.com/xproxy/xproxy/internal/registry"
	"github.com/xproxy/xproxy/internal/routing"
	"github.com/xproxy/xproxy/internal/state"
	"github.com/xproxy/xproxy/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.Initialize(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	shutdownTracing, err := telemetry.Setup(context.Background(), cfg.Telemetry)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	// Persistence is optional: without DATABASE_URL the proxy still
	// routes, but admission, billing and the management API are off.
	databaseAvailable := cfg.Database.URL != ""
	if databaseAvailable {
		err := database.Initialize(&database.Config{
			DSN:             cfg.Database.URL,
			MaxConnections:  cfg.Database.MaxConnections,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			log.Fatal("Failed to initialize database", zap.Error(err))
		}
		defer database.Close()
	} else {
		log.Warn("DATABASE_URL not set, running without persistence")
	}

	resolver, err := routing.NewResolver(&cfg.Routing, log)
	if err != nil {
		log.Fatal("Failed to build provider table", zap.Error(err))
	}

	// Pricing registry, with custom overrides when the store exists.
	var customPricing pricing.CustomPricingStore
	if databaseAvailable {
		customPricing = pricing.NewStore(database.GetDB())
	}
	pricingRegistry := pricing.NewRegistry(customPricing, log)
	if cfg.Pricing.PortkeyDir != "" {
		if err := pricingRegistry.LoadDir(cfg.Pricing.PortkeyDir); err != nil {
			log.Warn("Failed to load pricing dataset", zap.Error(err))
		}
	}

	counters := billing.NewSpendingCounters()

	deps := &api.Dependencies{
		Config: cfg,
		Logger: log,
	}

	// Conversational state backend.
	var stateStore state.Store
	if cfg.State.Backend == "postgres" && databaseAvailable {
		stateStore = state.NewRelationalStore(database.GetDB())
		log.Info("Using relational conversation state storage")
	} else {
		stateStore = state.NewMemoryStore()
		log.Info("Using in-memory conversation state storage")
	}
	stateProcessor := state.NewProcessor(stateStore, log)

	deps.Proxy = handlers.NewProxyHandler(&handlers.ProxyConfig{
		Resolver: resolver,
		State:    stateProcessor,
		Endpoint: cfg.Upstream.Endpoint,
		Timeout:  cfg.Upstream.Timeout,
		Logger:   log,
	})
	deps.Models = handlers.NewModelsHandler(resolver, log)
	deps.Health = handlers.NewHealthHandler(log)

	var (
		flusher    *billing.UsageFlusher
		calculator *billing.PriceCalculator
		checker    *billing.BudgetChecker
		keys       *registry.APIKeyRegistry
	)

	if databaseAvailable {
		db := database.GetDB()
		store := billing.NewStore(db)

		// Hydrate hot counters with today's and this month's durable
		// totals before accepting traffic.
		rows, err := store.LoadCurrentCounters(context.Background())
		if err != nil {
			log.Warn("Failed to hydrate spending counters", zap.Error(err))
		} else {
			counters.Hydrate(rows)
			log.Info("Hydrated spending counters", zap.Int("rows", len(rows)))
		}

		flusher = billing.NewUsageFlusher(&billing.FlusherConfig{
			Store:         store,
			Counters:      counters,
			Logger:        log,
			QueueSize:     cfg.Billing.QueueSize,
			FlushInterval: cfg.Billing.FlushInterval,
			BatchSize:     cfg.Billing.FlushBatchSize,
		})
		flusher.Start()
		middleware.RegisterQueueDepth(flusher.QueueDepth)

		calculator = billing.NewPriceCalculator(&billing.CalculatorConfig{
			Store:     store,
			Pricer:    pricingRegistry,
			Counters:  counters,
			Logger:    log,
			Interval:  cfg.Billing.PricingInterval,
			BatchSize: cfg.Billing.PricingBatchSize,
		})
		calculator.Start()

		checker = billing.NewBudgetChecker(&billing.CheckerConfig{
			Store:    store,
			Logger:   log,
			Interval: cfg.Billing.BudgetCheckInterval,
		})
		checker.Start()

		keys = registry.NewAPIKeyRegistry(db, log)
		if count, err := keys.Reload(context.Background()); err != nil {
			log.Warn("Initial API key registry load failed", zap.Error(err))
		} else {
			log.Info("Loaded API key registry", zap.Int("keys", count))
		}
		keys.Start(cfg.Billing.RegistryRefreshInterval)

		authCache := auth.NewCache(
			auth.NewStoreResolver(db, log),
			cfg.Auth.CacheSize,
			cfg.Auth.CacheTTL,
		)

		deps.DB = db
		deps.AuthCache = authCache
		deps.Registry = keys
		deps.JWT = auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
		deps.AuthCheck = handlers.NewAuthCheckHandler(&handlers.AuthCheckConfig{
			Cache:    authCache,
			Registry: keys,
			Limits:   store,
			Counters: counters,
			Logger:   log,
		})
		deps.UsageRecord = handlers.NewUsageRecordHandler(&handlers.UsageRecordConfig{
			Pricer:   pricingRegistry,
			Counters: counters,
			Flusher:  flusher,
			Logger:   log,
		})
		deps.BudgetBlocked = handlers.NewBudgetBlockedHandler(checker, log)
	}

	server := &http.Server{
		Addr:         cfg.Server.BindAddress,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("Starting gateway", zap.String("address", cfg.Server.BindAddress))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}

	// Workers stop after the listener so in-flight requests can still
	// enqueue usage; the flusher's Stop performs the final flush.
	if keys != nil {
		keys.Stop()
	}
	if checker != nil {
		checker.Stop()
	}
	if calculator != nil {
		calculator.Stop()
	}
	if flusher != nil {
		flusher.Stop()
	}

	if err := shutdownTracing(context.Background()); err != nil {
		log.Warn("Tracing shutdown failed", zap.Error(err))
	}

	log.Info("Shutdown complete")
}
