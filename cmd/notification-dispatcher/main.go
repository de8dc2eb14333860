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
	"syscall"
	"time"

	"github.com/jkeevk/diploma-shop/internal/notifier/dispatcher"
	"github.com/jkeevk/diploma-shop/internal/notifier/mail"
	"github.com/jkeevk/diploma-shop/internal/repository"
	"github.com/jkeevk/diploma-shop/pkg/metrics"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log.Println("notification-dispatcher starting...")

	// Configuration
	metricsPort := getEnv("METRICS_PORT", "9091")
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")

	smtpCfg := mail.SMTPConfig{
		Host:     getEnv("SMTP_HOST", "localhost"),
		Port:     getEnv("SMTP_PORT", "587"),
		Username: getEnv("SMTP_USER", ""),
		Password: getEnv("SMTP_PASSWORD", ""),
		From:     getEnv("SMTP_FROM", "orders@diploma-shop.local"),
	}

	// Database setup
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "procurement")

	port, err := strconv.Atoi(dbPort)
	if err != nil {
		log.Fatalf("Invalid DB_PORT: %v", err)
	}

	creds := &repository.Credentials{
		Host:     dbHost,
		Port:     port,
		User:     dbUser,
		Password: dbPass,
		DBName:   dbName,
	}

	// Migrations belong to the API service; the dispatcher only reads and
	// updates notification_events.
	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	transport := mail.NewBreakerTransport(mail.NewSMTPTransport(smtpCfg))
	dispatcherMetrics := metrics.NewDispatcherMetrics()

	d := dispatcher.New(repo, transport, dispatcherMetrics, kafkaBrokers...)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsMux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	metricsSrv := &http.Server{
		Addr:    ":" + metricsPort,
		Handler: metricsMux,
	}
	go func() {
		log.Printf("Dispatcher metrics listening on :%s", metricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics server error: %v", err)
		}
	}()

	runCtx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() {
		runErr <- d.Run(runCtx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Println("shutting down notification-dispatcher...")
		cancel()
		select {
		case err := <-runErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("dispatcher stopped with error: %v", err)
			}
		case <-time.After(10 * time.Second):
			log.Println("dispatcher didn't stop in time")
		}
	case err := <-runErr:
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("dispatcher failed: %v", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server forced to shutdown: %v", err)
	}

	log.Println("notification-dispatcher stopped")
}
