package main

import (
	"flag"
	"fmt"
	"os"
)

type cliConfig struct {
	EnvFile     string
	CatalogPath string
	Store       string
	DatabaseURL string
}

func parseFlags() cliConfig {
	cfg := cliConfig{}

	flag.StringVar(&cfg.EnvFile, "env", "cmd/arena_api/.env", "Path to .env file")
	flag.StringVar(&cfg.CatalogPath, "catalog", "data/tracks.json", "Path to track catalog JSON")
	flag.StringVar(&cfg.Store, "store", "postgres", "Store backend: postgres or memory")
	flag.StringVar(&cfg.DatabaseURL, "db", "", "PostgreSQL connection string (defaults to DATABASE_URL)")

	flag.Parse()
	return cfg
}

func (c cliConfig) databaseURL() (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url, nil
	}
	return "", fmt.Errorf("no database configured: pass -db or set DATABASE_URL")
}
