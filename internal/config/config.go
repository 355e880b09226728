package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DSN       string
	JWTSecret string
	AppPort   string
	LogLevel  string
}

// Load reads configuration from a .env file if present, falling back to
// system environment variables.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DSN:       os.Getenv("MYSQL_DSN"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		AppPort:   os.Getenv("APP_PORT"),
		LogLevel:  os.Getenv("LOG_LEVEL"),
	}

	if cfg.DSN == "" {
		return Config{}, fmt.Errorf("config: MYSQL_DSN not set in environment")
	}
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "dev-secret-only"
	}
	if cfg.AppPort == "" {
		cfg.AppPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}
