package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Intent   IntentConfig
	Research ResearchConfig
	Store    StoreConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

// IntentConfig configures the primary intent-resolution endpoint.
// When the endpoint is unreachable the resolver degrades to its local parser.
type IntentConfig struct {
	EndpointURL    string
	TimeoutSeconds int
}

// ResearchConfig selects and configures the research stream provider.
type ResearchConfig struct {
	Provider      string // "sse" or "simulated"
	StreamBaseURL string
}

type StoreConfig struct {
	DebounceMillis  int
	TruncateEntries int
	MaxPayloadBytes int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Intent: IntentConfig{
			EndpointURL:    getEnv("INTENT_ENDPOINT_URL", ""),
			TimeoutSeconds: getEnvAsInt("INTENT_TIMEOUT_SECONDS", 3),
		},
		Research: ResearchConfig{
			Provider:      getEnv("RESEARCH_PROVIDER", "sse"),
			StreamBaseURL: getEnv("RESEARCH_STREAM_BASE_URL", "http://localhost:8080"),
		},
		Store: StoreConfig{
			DebounceMillis:  getEnvAsInt("STORE_DEBOUNCE_MILLIS", 1000),
			TruncateEntries: getEnvAsInt("STORE_TRUNCATE_ENTRIES", 50),
			MaxPayloadBytes: getEnvAsInt("STORE_MAX_PAYLOAD_BYTES", 256*1024),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}
