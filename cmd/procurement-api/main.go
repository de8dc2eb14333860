package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jkeevk/diploma-shop/internal/cart"
	"github.com/jkeevk/diploma-shop/internal/catalog"
	"github.com/jkeevk/diploma-shop/internal/compose"
	"github.com/jkeevk/diploma-shop/internal/coordinator"
	"github.com/jkeevk/diploma-shop/internal/httpapi"
	"github.com/jkeevk/diploma-shop/internal/notifier/publisher"
	"github.com/jkeevk/diploma-shop/internal/repository"
	"github.com/jkeevk/diploma-shop/internal/status"
	"github.com/jkeevk/diploma-shop/pkg/metrics"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log.Println("procurement-api starting...")
	var wg sync.WaitGroup

	// Configuration
	httpPort := getEnv("HTTP_PORT", "8080")
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017")
	mongoDB := getEnv("MONGO_DB", "procurement")
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	requestTimeout := 30 * time.Second

	// Database setup
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "procurement")
	migrationsPath := getEnv("MIGRATIONS_PATH", "./internal/repository/migrations")

	port, err := strconv.Atoi(dbPort)
	if err != nil {
		log.Fatalf("Invalid DB_PORT: %v", err)
	}

	creds := &repository.Credentials{
		Host:              dbHost,
		Port:              port,
		User:              dbUser,
		Password:          dbPass,
		DBName:            dbName,
		MigrationsDirPath: migrationsPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Cart storage
	mongoCtx, mongoCancel := context.WithTimeout(context.Background(), 15*time.Second)
	cartDB, err := cart.ConnectMongoDB(mongoCtx, mongoURI, mongoDB)
	mongoCancel()
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	cartRepo := cart.NewMongoRepository(cartDB)

	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer redisClient.Close()

	cartService := cart.NewService(cartRepo, cart.NewRedisCache(redisClient))

	// Catalog snapshots read from the same database as commits, cached in
	// Redis with singleflight in front.
	provider := catalog.NewCachedProvider(
		catalog.NewPostgresProvider(repo.DB()),
		catalog.NewRedisSnapshotCache(redisClient),
	)

	composer := compose.NewComposer(provider)
	committer := coordinator.NewCoordinator(repo)
	transitions := status.NewService(repo)

	// Outbox poller publishes committed notification events to Kafka.
	poller := publisher.NewOutboxPoller(repo, kafkaBrokers...)
	pollerCtx, pollerCancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		poller.Run(pollerCtx)
	}()

	serverMetrics := metrics.NewServerMetrics("api")

	router := httpapi.NewRouter(
		httpapi.NewCartHandler(cartService, requestTimeout),
		httpapi.NewCheckoutHandler(composer, committer, cartService, requestTimeout),
		httpapi.NewOrdersHandler(repo, transitions, requestTimeout),
		httpapi.NewPartnerHandler(repo, requestTimeout),
		serverMetrics,
		requestTimeout,
	)

	srv := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Procurement API listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down procurement-api...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	pollerCancel()
	doneChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(doneChan)
	}()

	select {
	case <-doneChan:
		log.Println("Outbox poller stopped cleanly")
	case <-time.After(5 * time.Second):
		log.Println("Outbox poller didn't stop in time")
	}

	if err := poller.Close(); err != nil {
		log.Printf("failed to close kafka writer: %v", err)
	}
	log.Println("procurement-api stopped")
}
