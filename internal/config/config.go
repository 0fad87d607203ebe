package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const appSlug = "resonate"

// Config carries everything the process needs; built once at startup
// and passed by reference, never read from globals.
type Config struct {
	Paths

	LogLevel  string
	LogFormat string

	// ScanWorkers bounds the extraction worker pool; 0 means pick a
	// default from the machine's CPU count.
	ScanWorkers int

	HTTPAddr string
}

// Load builds a Config from the environment. A .env file in the
// working directory is honored when present. dataDir overrides the
// default data directory when non-empty (CLI flag wins over env).
func Load(dataDir string) (Config, error) {
	_ = godotenv.Load()

	if dataDir == "" {
		dataDir = os.Getenv("RESONATE_DATA_DIR")
	}

	paths, err := ResolvePaths(dataDir)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Paths:     paths,
		LogLevel:  getEnv("RESONATE_LOG_LEVEL", "info"),
		LogFormat: getEnv("RESONATE_LOG_FORMAT", "text"),
		HTTPAddr:  getEnv("RESONATE_HTTP_ADDR", "127.0.0.1:7350"),
	}

	if raw := strings.TrimSpace(os.Getenv("RESONATE_SCAN_WORKERS")); raw != "" {
		workers, parseErr := strconv.Atoi(raw)
		if parseErr != nil || workers < 0 {
			return Config{}, fmt.Errorf("invalid RESONATE_SCAN_WORKERS %q", raw)
		}
		cfg.ScanWorkers = workers
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}

	return fallback
}
