package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"gocause/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig
	Models   ModelConfig
	Database DatabaseConfig
	Queries  QueryConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port string
}

// ModelConfig holds fitted-model persistence settings
type ModelConfig struct {
	// Dir is the directory for filesystem model blobs.
	Dir string
	// Store selects the persistence backend: "file" or "postgres".
	Store string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string
}

// QueryConfig holds default query parameters
type QueryConfig struct {
	// Seed is the reproducibility seed used when a request has none.
	Seed int64
	// BootstrapRepetitions is the default confidence-interval rerun count.
	BootstrapRepetitions int
}

// Load reads configuration from a .env file (when present) and environment
// variables, then validates it.
func Load() (*Config, error) {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Models: ModelConfig{
			Dir:   getEnv("MODEL_DIR", "models"),
			Store: getEnv("MODEL_STORE", "file"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Queries: QueryConfig{
			Seed:                 getEnvInt64("QUERY_SEED", 0),
			BootstrapRepetitions: getEnvInt("BOOTSTRAP_REPETITIONS", 20),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Models.Store {
	case "file":
		if cfg.Models.Dir == "" {
			return errors.ConfigInvalid("MODEL_DIR must be set for the file model store")
		}
	case "postgres":
		if cfg.Database.URL == "" {
			return errors.ConfigInvalid("DATABASE_URL must be set for the postgres model store")
		}
	default:
		return errors.ConfigInvalid("MODEL_STORE must be \"file\" or \"postgres\"")
	}
	if cfg.Queries.BootstrapRepetitions < 1 {
		return errors.ConfigInvalid("BOOTSTRAP_REPETITIONS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
