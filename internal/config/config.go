package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the settings of the API server and the catalogctl client.
type Config struct {
	Port           string
	DBDriver       string
	DBPath         string
	DatabaseDSN    string
	FrontendOrigin string
	SeedPath       string
	RabbitMQURL    string
	LogLevel       string
	APIBaseURL     string
	APITimeout     time.Duration
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3001")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "data.sqlite")
	v.SetDefault("DATABASE_DSN", "")
	v.SetDefault("FRONTEND_ORIGIN", "*")
	v.SetDefault("SEED_PATH", "")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("API_BASE_URL", "http://localhost:3001/api")
	v.SetDefault("API_TIMEOUT", "10s")
}

// Load reads an optional .env file into the process environment and builds a
// Config from v. Environment variables override the defaults.
func Load(v *viper.Viper) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}

	SetDefaults(v)
	v.AutomaticEnv()

	cfg := Config{
		Port:           v.GetString("PORT"),
		DBDriver:       strings.ToLower(v.GetString("DB_DRIVER")),
		DBPath:         v.GetString("DB_PATH"),
		DatabaseDSN:    v.GetString("DATABASE_DSN"),
		FrontendOrigin: v.GetString("FRONTEND_ORIGIN"),
		SeedPath:       v.GetString("SEED_PATH"),
		RabbitMQURL:    v.GetString("RABBITMQ_URL"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		APIBaseURL:     strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		APITimeout:     v.GetDuration("API_TIMEOUT"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH must not be empty")
		}
	case "postgres":
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.APITimeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive")
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c Config) ListenAddr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
