package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory    = "memory"
	StoreMongo     = "mongo"
	StoreFirestore = "firestore"
	StorePostgres  = "postgres"
)

type Config struct {
	ServerPort  string
	Environment string

	StoreDriver         string
	MongoURI            string
	MongoDatabase       string
	PostgresDSN         string
	FirebaseProject     string
	FirebaseCredsJSON   string
	FirebaseCredsFile   string
	StoreConnectRetries int
	StoreConnectBackoff time.Duration
	StoreOpTimeout      time.Duration

	MessageEditPolicy string

	WSMessageRatePerMinute int
	WSTypingRatePerMinute  int
	HTTPRatePerMinute      int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", getEnv("PORT", "8080")),
		Environment: getEnv("ENVIRONMENT", "development"),

		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", StoreMemory)),
		MongoURI:            getEnv("MONGODB_URI", ""),
		MongoDatabase:       getEnv("MONGODB_DATABASE", "nexus"),
		PostgresDSN:         getEnv("POSTGRES_DSN", ""),
		FirebaseProject:     getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseCredsJSON:   getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseCredsFile:   getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		StoreConnectRetries: getEnvAsInt("STORE_CONNECT_RETRIES", 5),
		StoreConnectBackoff: getEnvAsDuration("STORE_CONNECT_BACKOFF", 2*time.Second),
		StoreOpTimeout:      getEnvAsDuration("STORE_OP_TIMEOUT", 10*time.Second),

		MessageEditPolicy: strings.ToLower(getEnv("MESSAGE_EDIT_POLICY", "sender")),

		WSMessageRatePerMinute: getEnvAsInt("WS_MESSAGE_RATE_PER_MINUTE", 60),
		WSTypingRatePerMinute:  getEnvAsInt("WS_TYPING_RATE_PER_MINUTE", 120),
		HTTPRatePerMinute:      getEnvAsInt("HTTP_RATE_PER_MINUTE", 600),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
