package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"staypricing/internal/config"
	"staypricing/internal/handlers"
	"staypricing/internal/middleware"
	"staypricing/internal/models"
	"staypricing/internal/pricing"
	"staypricing/internal/repositories/interfaces"
	"staypricing/internal/repositories/memory"
	"staypricing/internal/repositories/mongodb"
	"staypricing/internal/services"
	"staypricing/internal/utils"
	"staypricing/pkg/cache"
	"staypricing/pkg/database"
	"staypricing/pkg/logger"
	"staypricing/pkg/websocket"
	"staypricing/routes"

	"github.com/gin-gonic/gin"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:   logger.LogLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
		Output:  "stdout",
		AppName: cfg.App.Name,
		Version: cfg.App.Version,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthChecks := make(map[string]handlers.Pinger)

	// Redis backs the rule cache, the property lock and event fan-out
	var redisCache *cache.RedisCache
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCache(&cache.RedisConfig{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer redisCache.Close()
		healthChecks["redis"] = redisCache
		appLogger.Info("Connected to Redis")
	}

	// Storage
	var (
		ruleRepo    interfaces.PricingRuleRepository
		priceSource interfaces.BasePriceSource
	)
	if cfg.Database.Enabled {
		mongoDB, err := database.NewMongoDB(&database.DatabaseConfig{
			URI:            cfg.Database.URI,
			Database:       cfg.Database.Database,
			MaxPoolSize:    cfg.Database.MaxPoolSize,
			MinPoolSize:    cfg.Database.MinPoolSize,
			ConnectTimeout: cfg.Database.ConnectTimeout,
			SocketTimeout:  cfg.Database.SocketTimeout,
		})
		if err != nil {
			appLogger.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		defer mongoDB.Close()
		healthChecks["mongodb"] = mongoDB

		if cfg.Database.RunMigrations {
			if err := database.NewMigrator(mongoDB.Database, appLogger).Up(ctx); err != nil {
				appLogger.WithError(err).Fatal("Failed to run migrations")
			}
		}

		var ruleCache mongodb.CacheService
		if redisCache != nil {
			ruleCache = redisCache
		}
		ruleRepo = mongodb.NewPricingRuleRepository(mongoDB.Database, ruleCache, cfg.Pricing.RuleCacheTTL)
		priceSource = mongodb.NewPropertyRepository(mongoDB.Database)
		appLogger.Info("Using MongoDB rule store")
	} else {
		ruleRepo = memory.NewPricingRuleRepository()
		priceSource = memory.NewStaticBasePriceSource(models.NewMoney(cfg.Pricing.DefaultBasePrice, cfg.Pricing.DefaultCurrency))
		appLogger.Warn("MongoDB disabled, rules are kept in memory")
	}

	// Realtime
	hub := websocket.NewHub(appLogger)
	go hub.Run(ctx)

	var (
		locker    services.PropertyLocker
		publisher services.EventPublisher
	)
	if redisCache != nil {
		locker = services.NewRedisLocker(redisCache, cfg.Pricing.LockTTL, cfg.Pricing.LockRetryInterval)
		publisher = services.NewRedisEventPublisher(redisCache)
		go services.RelayCalendarUpdates(ctx, redisCache.Subscribe(ctx, utils.ChannelCalendarUpdates), hub, appLogger)
	} else {
		locker = services.NewLocalLocker()
		publisher = services.NewHubEventPublisher(hub)
	}

	// Pricing core
	engine := pricing.NewEngine(pricing.NewRuleMatcher())
	projector := pricing.NewCalendarProjector(ruleRepo, priceSource, engine, appLogger, pricing.ProjectorConfig{
		MaxDays:     cfg.Pricing.MaxProjectionDays,
		Concurrency: cfg.Pricing.ProjectionConcurrency,
	})

	ruleService := services.NewPricingRuleService(ruleRepo, locker, publisher, appLogger)
	bulkEditService := services.NewBulkEditService(ruleRepo, projector, locker, publisher, appLogger, cfg.Pricing.MaxBulkEditDays)

	// Initialize handlers
	ruleHandler := handlers.NewRuleHandler(ruleService)
	calendarHandler := handlers.NewCalendarHandler(projector, bulkEditService, cfg.Pricing.MaxPortfolioSize)
	selectionHandler := handlers.NewSelectionHandler(bulkEditService, appLogger)
	healthHandler := handlers.NewHealthHandler(cfg.App.Version, healthChecks)
	wsHandler := websocket.NewHandler(hub, cfg.WebSocket.ReadBufferSize, cfg.WebSocket.WriteBufferSize, cfg.WebSocket.CheckOrigin, selectionHandler.NewSession)

	// Initialize Gin router
	gin.SetMode(cfg.App.GinMode())
	router := gin.New()
	if err := router.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		appLogger.WithError(err).Fatal("Invalid trusted proxies")
	}

	// Global middleware
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))
	router.Use(middleware.RecoveryMiddleware(appLogger))
	router.Use(middleware.CORSMiddleware(cfg.Security.CORSAllowedOrigins))

	v1 := router.Group("/api/v1")
	routes.SetupPricingRoutes(v1, ruleHandler, calendarHandler)
	routes.SetupWebSocketRoutes(router, cfg.WebSocket.Path, wsHandler)
	routes.SetupHealthRoutes(router, healthHandler)

	// Start server
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port),
		Handler: router,
	}

	go func() {
		appLogger.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Server failed")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Graceful shutdown failed")
	}
}
