package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yungbote/tableside-backend/internal/clients/redis"
	"github.com/yungbote/tableside-backend/internal/db"
	"github.com/yungbote/tableside-backend/internal/logger"
	"github.com/yungbote/tableside-backend/internal/repos"
	"github.com/yungbote/tableside-backend/internal/services"
	"github.com/yungbote/tableside-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	retentionTTL := utils.GetEnvAsInt("NOTIFICATION_TTL", 86400, log)
	aggregationWindow := utils.GetEnvAsInt("NOTIFICATION_AGG_WINDOW", 10, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// KV store
	log.Info("Setting up KV store from main...")
	var kv redis.KVStore
	if os.Getenv("REDIS_ADDR") != "" {
		kv, err = redis.NewKVStore(log)
		if err != nil {
			log.Error("Could not init Redis KV store", "error", err)
			os.Exit(1)
		}
	} else {
		log.Warn("REDIS_ADDR not set, falling back to in-memory KV store")
		kv = redis.NewMemoryStore()
	}
	defer kv.Close()

	// Repos
	log.Info("Setting up Repos from main...")
	tableRepo := repos.NewTableRepo(thePG, log)
	productRepo := repos.NewProductRepo(thePG, log)
	orderRepo := repos.NewOrderRepo(thePG, log)
	orderItemRepo := repos.NewOrderItemRepo(thePG, log)

	// Services
	log.Info("Setting up Services from main...")
	notificationService := services.NewNotificationService(kv, log, services.NotificationConfig{
		RetentionTTL:      time.Duration(retentionTTL) * time.Second,
		AggregationWindow: time.Duration(aggregationWindow) * time.Second,
	})
	orderService := services.NewOrderService(thePG, log, orderRepo, orderItemRepo, productRepo, tableRepo)
	orderService.Register(services.NewOrderNotifier(log, notificationService))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := kv.Ping(ctx); err != nil {
		log.Warn("KV store health check failed", "error", err)
	}
	cancel()

	log.Info("Tableside backend is up")
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("Shutting down...")
}
