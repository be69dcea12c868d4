package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the dockforge server.
type Config struct {
	Port    int
	APIKey  string
	DataDir string // root under which workspaces and the record store live

	// Upload limits
	MaxUploadMB int

	// External structure fetch
	FetchBaseURL string
	FetchTimeout time.Duration

	// Submission-script defaults applied when a build request omits them
	DefaultQueue    string
	DefaultProject  string
	DefaultWalltime string
	DefaultEnvBlock string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:    8080,
		APIKey:  os.Getenv("DOCKFORGE_API_KEY"),
		DataDir: envOrDefault("DOCKFORGE_DATA_DIR", "/data/dockforge"),

		MaxUploadMB: 256,

		FetchBaseURL: envOrDefault("DOCKFORGE_FETCH_BASE_URL", "https://files.rcsb.org/view"),
		FetchTimeout: 30 * time.Second,

		DefaultQueue:    envOrDefault("DOCKFORGE_DEFAULT_QUEUE", "normal"),
		DefaultProject:  envOrDefault("DOCKFORGE_DEFAULT_PROJECT", "docking"),
		DefaultWalltime: envOrDefault("DOCKFORGE_DEFAULT_WALLTIME", "96:00"),
		DefaultEnvBlock: os.Getenv("DOCKFORGE_DEFAULT_ENV_BLOCK"),
	}

	if v := os.Getenv("DOCKFORGE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DOCKFORGE_PORT %q: %w", v, err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("DOCKFORGE_MAX_UPLOAD_MB"); v != "" {
		mb, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DOCKFORGE_MAX_UPLOAD_MB %q: %w", v, err)
		}
		cfg.MaxUploadMB = mb
	}

	if v := os.Getenv("DOCKFORGE_FETCH_TIMEOUT_SEC"); v != "" {
		sec, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid DOCKFORGE_FETCH_TIMEOUT_SEC %q: %w", v, err)
		}
		cfg.FetchTimeout = time.Duration(sec) * time.Second
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
