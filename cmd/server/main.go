package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wodgachi/rewards-api/internal/api"
	"wodgachi/rewards-api/internal/config"
	"wodgachi/rewards-api/internal/events"
	"wodgachi/rewards-api/internal/logging"
	"wodgachi/rewards-api/internal/repository/memory"
	"wodgachi/rewards-api/internal/repository/mongo"
	"wodgachi/rewards-api/internal/service"
	"wodgachi/rewards-api/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// @title WODgachi Rewards API
// @version 1.0
// @description Workout rewards: CRUSH token ledger, milestone NFTs, oracle verification and the rewards store.
// @host localhost:8080
// @BasePath /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logrus.WithError(err).Fatal("could not load config")
	}
	logger := logging.New(cfg.Log)
	logger.WithFields(logrus.Fields{"driver": cfg.Database.Driver, "address": cfg.Server.Address}).Info("configuration loaded")

	// --- Repositories ---
	var (
		repos      service.Repositories
		disconnect = func() {}
	)
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("using the in-memory store; state is lost on exit")
		store := memory.NewStore()
		repos = service.Repositories{
			Users:       store.Users(),
			Profiles:    store.Profiles(),
			Ledger:      store.Ledger(),
			Workouts:    store.Workouts(),
			Oracle:      store.Oracle(),
			NFTs:        store.NFTs(),
			Redemptions: store.Redemptions(),
		}
	default:
		dbClient, err := mongo.ConnectDB(cfg.Database.URI)
		if err != nil {
			logger.WithError(err).Fatal("could not connect to MongoDB")
		}
		disconnect = func() {
			logger.Info("disconnecting MongoDB")
			if err := mongo.DisconnectDB(dbClient); err != nil {
				logger.WithError(err).Error("failed to disconnect MongoDB")
			}
		}
		appDB := dbClient.Database(cfg.Database.Name)

		// Index creation runs in the background; the unique indexes back the
		// duplicate checks, so failures are logged loudly.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := mongo.EnsureIndexes(ctx, appDB); err != nil {
				logger.WithError(err).Error("index creation failed")
				return
			}
			logger.Info("database indexes ensured")
		}()

		repos = service.Repositories{
			Users:       mongo.NewMongoUserRepository(appDB),
			Profiles:    mongo.NewMongoProfileRepository(appDB),
			Ledger:      mongo.NewMongoLedgerRepository(appDB),
			Workouts:    mongo.NewMongoWorkoutRepository(appDB),
			Oracle:      mongo.NewMongoOracleRepository(appDB),
			NFTs:        mongo.NewMongoNFTRepository(appDB),
			Redemptions: mongo.NewMongoRedemptionRepository(appDB),
		}
	}
	defer disconnect()

	// --- Object storage and events ---
	opts := service.OptionsFromConfig(cfg)
	opts.Logger = logger
	if cfg.S3.Enabled {
		objectStorage, err := storage.NewS3Storage(cfg.S3, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to initialize S3 storage")
		}
		opts.Storage = objectStorage
	} else {
		logger.Info("S3 disabled; NFT metadata is kept in the database only")
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.WithField("topic", cfg.Kafka.Topic).Info("publishing domain events to Kafka")
	}
	opts.Publisher = publisher

	// --- Services ---
	svc := service.New(repos, opts)

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	supply, err := svc.Bootstrap(bootCtx, cfg.Game.SeedWorkouts)
	if err != nil {
		cancelBoot()
		logger.WithError(err).Fatal("bootstrap failed")
	}
	logger.WithField("totalSupply", supply.Total.String()).Info("token ledger ready")

	if cfg.Admin.Email != "" {
		admin, err := svc.Auth.EnsureAdmin(bootCtx, cfg.Admin.Name, cfg.Admin.Email, cfg.Admin.Password)
		if err != nil {
			cancelBoot()
			logger.WithError(err).Fatal("failed to seed admin account")
		}
		logger.WithField("admin", admin.Email).Info("admin account ready")
	}
	cancelBoot()

	// --- Gin Engine ---
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery(), logging.Middleware(logger))

	limiter := api.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	stopCleanup := make(chan struct{})
	limiter.StartCleanup(10*time.Minute, stopCleanup)

	api.SetupRoutes(router, svc, limiter, logger)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.WithField("address", cfg.Server.Address).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("ListenAndServe error")
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	close(stopCleanup)
	if err := publisher.Close(); err != nil {
		logger.WithError(err).Error("failed to flush event publisher")
	}

	logger.Info("server exiting")
}
