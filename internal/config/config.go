// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port   string
	AppEnv string

	// APIKey guards the /api routes. Empty disables authentication.
	APIKey string

	// Object storage (S3-compatible: MinIO locally, R2/S3 in production)
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool

	// PublicBaseURL, when set, is the CDN-fronted base used to build image
	// URLs without touching the store, e.g. "https://images.example.com".
	PublicBaseURL string
	// SignedURLTTL is how long provider-signed URLs stay valid.
	SignedURLTTL time.Duration

	// Upstream image-generation provider (any OpenAI-compatible endpoint).
	ProviderAPIKey  string
	ProviderBaseURL string
	ImageModel      string
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, reading from environment")
	}

	return &Config{
		Port:   getEnv("PORT", "8080"),
		AppEnv: getEnv("APP_ENV", "development"),
		APIKey: getEnv("API_KEY", ""),

		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
		StorageBucket:    getEnv("STORAGE_BUCKET", "generated-images"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		SignedURLTTL:  time.Duration(getEnvInt("SIGNED_URL_TTL", 86400)) * time.Second,

		ProviderAPIKey:  getEnv("PROVIDER_API_KEY", ""),
		ProviderBaseURL: getEnv("PROVIDER_BASE_URL", ""),
		ImageModel:      getEnv("IMAGE_MODEL", "dall-e-3"),
	}
}

// IsProduction returns true when the app is running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid integer for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}
