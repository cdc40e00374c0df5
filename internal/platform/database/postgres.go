package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

const (
	defaultConnectAttempts = 10
	defaultConnectDelay    = 2 * time.Second
)

type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// ConnectAttempts and ConnectDelay cover startup ordering: the database
	// container may still be coming up when the service starts. Zero values
	// use the defaults.
	ConnectAttempts int
	ConnectDelay    time.Duration
}

func (c Config) dsn() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

func NewPostgresDB(cfg Config) (*sql.DB, error) {
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = defaultConnectAttempts
	}
	delay := cfg.ConnectDelay
	if delay <= 0 {
		delay = defaultConnectDelay
	}

	var db *sql.DB
	var err error

	for i := 1; i <= attempts; i++ {
		log.Printf("Connecting to database (Attempt %d/%d)...", i, attempts)
		db, err = sql.Open("postgres", cfg.dsn())
		if err == nil {
			err = db.Ping()
		}

		if err == nil {
			log.Println("Database connected successfully!")
			return db, nil
		}

		log.Printf("Database not ready yet. Waiting %s...", delay)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %v", attempts, err)
}
