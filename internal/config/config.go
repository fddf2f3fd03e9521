package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort   string
	DatabaseType string // sqlite, postgres or mysql
	DatabaseURL  string // for postgres/mysql
	DatabasePath string // for sqlite

	MongoURI      string
	MongoDatabase string

	MigrationsPath string

	TokenDuration time.Duration

	// Retry policy for family document appends
	DocStoreRetries int
	DocStoreBackoff time.Duration

	// Email (Amazon SES)
	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string

	// External assistant
	AssistantAPIURL string
	AssistantAPIKey string
	AssistantModel  string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	return &Config{
		ServerPort:   getEnv("PORT", "8080"),
		DatabaseType: getEnv("DATABASE_TYPE", "sqlite"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		DatabasePath: getEnv("DB_PATH", "./care4kids.db"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "care4kids"),

		MigrationsPath: getEnv("MIGRATIONS_PATH", "./migrations"),

		TokenDuration: getEnvDuration("TOKEN_DURATION", 30*24*time.Hour),

		DocStoreRetries: getEnvInt("DOCSTORE_RETRIES", 3),
		DocStoreBackoff: getEnvDuration("DOCSTORE_BACKOFF", 200*time.Millisecond),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Care4Kids"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:8080"),

		AssistantAPIURL: getEnv("ASSISTANT_API_URL", ""),
		AssistantAPIKey: getEnv("ASSISTANT_API_KEY", ""),
		AssistantModel:  getEnv("ASSISTANT_MODEL", "gpt-4o-mini"),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt reads an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvDuration reads a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
