package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"

	"github.com/dhermawa/ticketgate/internal/adapter/handler"
	"github.com/dhermawa/ticketgate/internal/adapter/messaging"
	"github.com/dhermawa/ticketgate/internal/adapter/repository/postgres"
	redisrepo "github.com/dhermawa/ticketgate/internal/adapter/repository/redis"
	"github.com/dhermawa/ticketgate/internal/core/ports"
	"github.com/dhermawa/ticketgate/internal/core/services"
	"github.com/dhermawa/ticketgate/internal/core/token"
	"github.com/dhermawa/ticketgate/internal/platform/clock"
	"github.com/dhermawa/ticketgate/internal/platform/database"
)

func loadEnv(filepath string) {
	file, err := os.Open(filepath)

	if err != nil {
		log.Println(".env file not found, using OS environment variables.")
		return
	}

	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])

			os.Setenv(key, value)
		}
	}

	if err := scanner.Err(); err != nil {
		log.Printf("Failed to read .env file: %v\n", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// parseHoldTTL reads the value as whole minutes, e.g. HOLD_TTL_MINUTES=15.
func parseHoldTTL(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	minutes, err := strconv.Atoi(v)
	if err != nil || minutes <= 0 {
		log.Printf("Invalid HOLD_TTL_MINUTES %q, using %s", v, fallback)
		return fallback
	}
	return time.Duration(minutes) * time.Minute
}

func main() {
	loadEnv(".env")

	dbConfig := database.Config{
		Host:     getenv("DB_HOST", "localhost"),
		Port:     getenv("DB_PORT", "5432"),
		User:     getenv("DB_USER", "postgres"),
		Password: getenv("DB_PASSWORD", ""),
		DBName:   getenv("DB_NAME", "ticketgate"),
	}

	db, err := database.NewPostgresDB(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to db after retries: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	defer db.Close()

	signingKey := os.Getenv("TICKET_SIGNING_KEY")
	if signingKey == "" {
		log.Fatal("TICKET_SIGNING_KEY is required")
	}

	signer, err := token.NewSigner([]byte(signingKey))
	if err != nil {
		log.Fatalf("Invalid signing key: %v", err)
	}

	var ledger ports.Ledger = postgres.NewQuotaRepository(db)

	if getenv("LEDGER_BACKEND", "postgres") == "redis" {
		redisAddr := fmt.Sprintf("%s:%s", getenv("REDIS_HOST", "localhost"), getenv("REDIS_PORT", "6379"))
		log.Printf("Connecting to Redis at %s...", redisAddr)

		redisClient := goredis.NewClient(&goredis.Options{
			Addr: redisAddr,
			DB:   0,
		})

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("Redis connected successfully!")

		ledger = redisrepo.NewLedger(redisClient)
	}

	holdRepo := postgres.NewHoldRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)
	seqRepo := postgres.NewSequenceRepository(db)
	catalog := postgres.NewCatalogRepository(db)

	clk := clock.NewSystem()

	holdTTL := parseHoldTTL(os.Getenv("HOLD_TTL_MINUTES"), 15*time.Minute)

	reservations := services.NewReservationService(catalog, ledger, holdRepo, seqRepo, clk, services.WithHoldTTL(holdTTL))
	issuer := services.NewTicketIssuer(holdRepo, ticketRepo, ledger, seqRepo, signer, clk)
	gate := services.NewRedemptionGate(ticketRepo, catalog, signer, clk)
	sweeper := services.NewExpirySweeper(holdRepo, ledger, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx)

	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		conn, err := amqp.Dial(amqpURL)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer conn.Close()

		channel, err := conn.Channel()
		if err != nil {
			log.Fatalf("Failed to open RabbitMQ channel: %v", err)
		}
		defer channel.Close()

		consumer := messaging.NewPaymentConsumer(channel, getenv("PAYMENT_QUEUE", "payment.completed"), issuer)
		if err := consumer.Start(ctx); err != nil {
			log.Fatalf("Failed to start payment consumer: %v", err)
		}
	} else {
		log.Println("AMQP_URL not set, payment events accepted via webhook only.")
	}

	holdHandler := handler.NewHoldHandler(reservations)
	validationHandler := handler.NewValidationHandler(gate, issuer)

	mux := http.NewServeMux()

	mux.HandleFunc("/holds", holdHandler.CreateHold)
	mux.HandleFunc("/holds/cancel", holdHandler.CancelHold)
	mux.HandleFunc("/availability", holdHandler.GetAvailability)
	mux.HandleFunc("/tickets/validate", validationHandler.ValidateTicket)
	mux.HandleFunc("/payments/completed", validationHandler.PaymentCompleted)

	server := &http.Server{
		Addr:         ":" + getenv("PORT", "8080"),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server startup failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
}
