package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Port        string
	Environment string
	BaseURL     string

	// Database
	DatabaseURL string

	// Supabase
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseJWTSecret     string
	SupabaseStorageBucket string

	// Generation providers
	GeminiAPIKey      string
	VeoAPIBaseURL     string
	VeoAPIKey         string
	GenerationTimeout time.Duration

	// Artifact storage backend: "supabase" or "s3"
	StorageBackend  string
	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool

	// Redis (rate limiting; optional)
	RedisAddr     string
	RedisPassword string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// Credits granted to a user the first time the ledger sees them
	DefaultFreeCredits int
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:    getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseJWTSecret:     getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "renders"),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		VeoAPIBaseURL:     getEnv("VEO_API_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VeoAPIKey:         getEnv("VEO_API_KEY", ""),
		GenerationTimeout: getDurationEnv("GENERATION_TIMEOUT", 5*time.Minute),

		StorageBackend:  getEnv("STORAGE_BACKEND", "supabase"),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Region:        getEnv("S3_REGION", ""),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3PublicBaseURL: getEnv("S3_PUBLIC_BASE_URL", ""),
		S3UsePathStyle:  getBoolEnv("S3_USE_PATH_STYLE", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		DefaultFreeCredits: getIntEnv("DEFAULT_FREE_CREDITS", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.VeoAPIKey == "" {
		return fmt.Errorf("VEO_API_KEY is required")
	}
	switch c.StorageBackend {
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseServiceKey == "" {
			return fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required for the supabase storage backend")
		}
	case "s3":
		if c.S3Bucket == "" || c.S3Region == "" || c.S3AccessKey == "" || c.S3SecretKey == "" || c.S3PublicBaseURL == "" {
			return fmt.Errorf("S3_BUCKET, S3_REGION, S3_ACCESS_KEY, S3_SECRET_KEY and S3_PUBLIC_BASE_URL are required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be \"supabase\" or \"s3\", got %q", c.StorageBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
