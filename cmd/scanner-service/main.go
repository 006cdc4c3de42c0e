package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"ms-scanner/internal/analytics"
	analytics_api "ms-scanner/internal/analytics/api"
	"ms-scanner/internal/config"
	"ms-scanner/internal/database"
	"ms-scanner/internal/database/migrations"
	"ms-scanner/internal/kafka"
	"ms-scanner/internal/logger"
	"ms-scanner/internal/verification"
	verification_db "ms-scanner/internal/verification/db"
	"ms-scanner/internal/verification/scan_api"
)

func main() {
	_ = godotenv.Load() // Loads .env file if present

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	bunDB, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect: %v", err))
	}
	defer bunDB.Close()
	log.Info("DATABASE", "PostgreSQL connection successful")

	if cfg.Database.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   true,
		})
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.Info("DATABASE", "Migrations up to date")
	}

	var cache *analytics.SnapshotCache
	if cfg.Redis.Enabled {
		redisClient, err := analytics.InitializeSnapshotCache(cfg.Redis.Addr, log)
		if err != nil {
			log.Warn("CACHE", fmt.Sprintf("Redis unavailable, running without snapshot cache: %v", err))
		} else {
			cache = analytics.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL, log)
			defer redisClient.Close()
		}
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic bootstrap failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		log.Info("KAFKA", fmt.Sprintf("Publishing scans to %s", cfg.Kafka.Topic))
	}

	store := &verification_db.Store{Bun: bunDB}
	verifier := verification.NewService(store, log)
	scanHandler := scan_api.NewHandler(verifier, store, producer, log)

	aggregator := analytics.NewService(bunDB, log)
	analyticsHandler := analytics_api.NewHandler(aggregator, cache, log)

	r := chi.NewRouter()
	r.Post("/api/verify-ticket", scanHandler.VerifyTicket)
	r.Get("/api/ticket/{ticketID}/qr", scanHandler.TicketQR)
	analyticsHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Scanner service on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ReadTimeout)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	log.Info("SERVER", "Scanner service shutdown complete")
}
