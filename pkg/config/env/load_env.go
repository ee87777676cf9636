// Package env seeds the process environment from a .env file.
package env

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv reads a .env file into the environment. ENV_PATH overrides the
// default path. A missing file is an error in local mode (env "local" or
// unset); deployed environments inject their variables directly, so there it
// is just skipped.
func LoadDotEnv(env string, defaultPath string) error {
	path := os.Getenv("ENV_PATH")
	if path == "" {
		slog.Info("ENV_PATH not set, falling back to default", "path", defaultPath)
		path = defaultPath
	}

	if err := godotenv.Load(path); err != nil {
		if env == "" || env == "local" {
			slog.Error("Failed to load .env in local mode", "path", path, "error", err)
			return err
		}
		slog.Debug("No .env file, using process environment", "path", path)
	}
	return nil
}
