package main

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port   string
	AppEnv string

	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	CustomerServiceURL string
	ProductServiceURL  string
	RequestTimeout     time.Duration
	MaxRetries         int
	CompensationBudget time.Duration

	RedisURL            string
	KafkaBrokers        string
	EventsTopic         string
	ReconciliationTopic string
	SNSTopicArn         string
}

func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:   getEnv("PORT", "8084"),
		AppEnv: getEnv("APP_ENV", "development"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "UTC"),

		CustomerServiceURL: getEnv("CUSTOMER_SERVICE_URL", "http://customer-service:8081"),
		ProductServiceURL:  getEnv("PRODUCT_SERVICE_URL", "http://product-service:8082"),
		RequestTimeout:     getDurationEnv("REQUEST_TIMEOUT", 5*time.Second),
		MaxRetries:         getIntEnv("MAX_RETRIES", 3),
		CompensationBudget: getDurationEnv("COMPENSATION_BUDGET", 10*time.Second),

		RedisURL:            getEnv("REDIS_URL", ""),
		KafkaBrokers:        os.Getenv("KAFKA_BROKERS"),
		EventsTopic:         getEnv("TRANSACTION_EVENTS_TOPIC", "transaction.events"),
		ReconciliationTopic: getEnv("RECONCILIATION_TOPIC", "stock.reconciliation"),
		SNSTopicArn:         os.Getenv("SNS_TOPIC_ARN"),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("database config incomplete")
	}
	if cfg.CustomerServiceURL == "" {
		return nil, fmt.Errorf("CUSTOMER_SERVICE_URL is required")
	}
	if cfg.ProductServiceURL == "" {
		return nil, fmt.Errorf("PRODUCT_SERVICE_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
