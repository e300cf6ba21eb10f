// Package config содержит логику чтения конфигурации сервиса локер.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config содержит параметры конфигурации сервиса локер.
type Config struct {
	RunAddress         string `env:"RUN_ADDRESS"`
	DatabaseURI        string `env:"DATABASE_URI"`
	FortniteAPIAddress string `env:"FORTNITE_API_ADDRESS"`
	FortniteAPIKey     string `env:"FORTNITE_API_KEY"`
	AuthSecret         string `env:"AUTH_SECRET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envFortniteAddress := cfg.FortniteAPIAddress
	envFortniteKey := cfg.FortniteAPIKey
	envAuthSecret := cfg.AuthSecret

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.FortniteAPIAddress, "f", "https://fortnite-api.com/v2", "fortnite API address")
	flag.StringVar(&cfg.FortniteAPIKey, "k", "", "fortnite API key")
	flag.StringVar(&cfg.AuthSecret, "s", "", "secret key for auth tokens")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envFortniteAddress != "" {
		cfg.FortniteAPIAddress = envFortniteAddress
	}
	if envFortniteKey != "" {
		cfg.FortniteAPIKey = envFortniteKey
	}
	if envAuthSecret != "" {
		cfg.AuthSecret = envAuthSecret
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.AuthSecret == "" {
		cfg.AuthSecret = "locker-secret"
	}

	return cfg, nil
}
