package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr         string
	DatabaseURL  string
	StageCatalog string
	MaxBlobBytes int
	LogLevel     string
	LogJSON      bool
	RequestLimit time.Duration
	PruneEvery   time.Duration
	PruneAfter   time.Duration
	WorkerOnce   bool
}

type CLIConfig struct {
	SaveDir       string
	VaultURL      string
	StageCatalog  string
	AutosaveEvery time.Duration
	FrameRate     int
	LogLevel      string
	LogFile       string
	DevTools      bool
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("SPHERES_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:         addr,
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		StageCatalog: strings.TrimSpace(os.Getenv("SPHERES_STAGE_CATALOG")),
		MaxBlobBytes: envIntDefault("SPHERES_MAX_BLOB_BYTES", 256<<10),
		LogLevel:     envDefault("SPHERES_LOG_LEVEL", "info"),
		LogJSON:      envBoolDefault("SPHERES_LOG_JSON", true),
		RequestLimit: envDurationDefault("SPHERES_REQUEST_TIMEOUT", 15*time.Second),
		PruneEvery:   envDurationDefault("SPHERES_PRUNE_EVERY", time.Hour),
		PruneAfter:   envDurationDefault("SPHERES_PRUNE_AFTER", 7*24*time.Hour),
		WorkerOnce:   envBoolDefault("SPHERES_WORKER_RUN_ONCE", false),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MaxBlobBytes <= 0 {
		return cfg, fmt.Errorf("SPHERES_MAX_BLOB_BYTES must be > 0")
	}
	if cfg.PruneEvery <= 0 || cfg.PruneAfter <= 0 {
		return cfg, fmt.Errorf("prune intervals must be > 0")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	cfg := CLIConfig{
		SaveDir:       envDefault("SPHERES_SAVE_DIR", defaultSaveDir()),
		VaultURL:      strings.TrimRight(envDefault("SPHERES_VAULT_URL", "http://localhost:8080"), "/"),
		StageCatalog:  strings.TrimSpace(os.Getenv("SPHERES_STAGE_CATALOG")),
		AutosaveEvery: envDurationDefault("SPHERES_AUTOSAVE_EVERY", 5*time.Second),
		FrameRate:     envIntDefault("SPHERES_FRAME_RATE", 30),
		LogLevel:      envDefault("SPHERES_LOG_LEVEL", "info"),
		LogFile:       strings.TrimSpace(os.Getenv("SPHERES_LOG_FILE")),
		DevTools:      envBoolDefault("SPHERES_DEV_TOOLS", false),
	}
	if cfg.FrameRate <= 0 || cfg.FrameRate > 240 {
		cfg.FrameRate = 30
	}
	if cfg.AutosaveEvery <= 0 {
		cfg.AutosaveEvery = 5 * time.Second
	}
	return cfg
}

func defaultSaveDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".spheres"
	}
	return filepath.Join(home, ".spheres")
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
