// Package config loads gateway settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Gateway struct {
	Address string
	Port    int
}

type Feed struct {
	Address string
}

type Pair struct {
	BaseAsset  string
	QuoteAsset string
	DataDir    string
}

type Config struct {
	Gateway Gateway
	Feed    Feed
	Pair    Pair
}

func Default() Config {
	return Config{
		Gateway: Gateway{
			Address: "0.0.0.0",
			Port:    9001,
		},
		Feed: Feed{
			Address: "0.0.0.0:9002",
		},
		Pair: Pair{
			BaseAsset:  "XRD",
			QuoteAsset: "rUSD",
			DataDir:    "data/orders",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and the
// environment. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Gateway.Address = getEnv("GATEWAY_ADDRESS", cfg.Gateway.Address)
	if port := os.Getenv("GATEWAY_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Gateway.Port = p
		}
	}
	cfg.Feed.Address = getEnv("FEED_ADDRESS", cfg.Feed.Address)
	cfg.Pair.BaseAsset = getEnv("PAIR_BASE_ASSET", cfg.Pair.BaseAsset)
	cfg.Pair.QuoteAsset = getEnv("PAIR_QUOTE_ASSET", cfg.Pair.QuoteAsset)
	cfg.Pair.DataDir = getEnv("PAIR_DATA_DIR", cfg.Pair.DataDir)

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
