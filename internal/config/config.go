package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"

	"github.com/ent0n29/voiceforge/internal/audio"
)

// MemoryLibrary as LIBRARY_PATH keeps the library in process memory.
const MemoryLibrary = "memory"

// Config contains all runtime settings for the speech service.
type Config struct {
	BindAddr             string        `env:"APP_BIND_ADDR" envDefault:":8080"`
	ShutdownTimeout      time.Duration `env:"APP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	JobInactivityTimeout time.Duration `env:"APP_JOB_INACTIVITY_TIMEOUT" envDefault:"30m"`
	MetricsNamespace     string        `env:"APP_METRICS_NAMESPACE" envDefault:"voiceforge"`
	LogLevel             string        `env:"APP_LOG_LEVEL" envDefault:"info"`
	AllowAnyOrigin       bool          `env:"APP_ALLOW_ANY_ORIGIN" envDefault:"false"`
	// MockProviders swaps both TTS backends and the transcriber for local
	// fakes that render silence.
	MockProviders bool `env:"APP_MOCK_PROVIDERS" envDefault:"false"`

	GeminiAPIKey      string        `env:"GEMINI_API_KEY"`
	GoogleCloudAPIKey string        `env:"GOOGLE_CLOUD_API_KEY"`
	GeminiEndpoint    string        `env:"GEMINI_ENDPOINT"`
	GeminiModel       string        `env:"GEMINI_MODEL"`
	ChirpEndpoint     string        `env:"CHIRP_ENDPOINT"`
	SpeechEndpoint    string        `env:"SPEECH_ENDPOINT"`
	ProviderTimeout   time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"2m"`
	CleanText         bool          `env:"CLEAN_TEXT" envDefault:"false"`

	ChunkMaxWords          int    `env:"CHUNK_MAX_WORDS" envDefault:"500"`
	DispatchConcurrency    int    `env:"DISPATCH_CONCURRENCY" envDefault:"0"`
	BatchRequestsPerMinute int    `env:"BATCH_REQUESTS_PER_MINUTE" envDefault:"60"`
	MergePolicy            string `env:"MERGE_POLICY" envDefault:"strict"`

	LibraryMaxClips int    `env:"LIBRARY_MAX_CLIPS" envDefault:"100"`
	LibraryMaxMB    int    `env:"LIBRARY_MAX_MB" envDefault:"50"`
	LibraryPath     string `env:"LIBRARY_PATH"`
	DatabaseURL     string `env:"DATABASE_URL"`
}

// Load reads a .env file when present, then environment variables, and
// applies safe defaults.
func Load() (Config, error) {
	_ = godotenv.Load()
	return parse(environ())
}

func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		// Blank values fall back to defaults.
		if strings.TrimSpace(v) == "" {
			continue
		}
		out[k] = strings.TrimSpace(v)
	}
	return out
}

func parse(vars map[string]string) (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: vars})
	if err != nil {
		return Config{}, fmt.Errorf("config parse error: %w", err)
	}

	if cfg.LibraryPath == "" && cfg.DatabaseURL == "" {
		scope := gap.NewScope(gap.User, "voiceforge")
		path, err := scope.DataPath("library")
		if err != nil {
			return Config{}, fmt.Errorf("resolve library path: %w", err)
		}
		cfg.LibraryPath = path
	}

	if cfg.JobInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_JOB_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("APP_SHUTDOWN_TIMEOUT must be positive")
	}
	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, fmt.Errorf("APP_LOG_LEVEL: %w", err)
	}
	if cfg.ChunkMaxWords <= 0 {
		return Config{}, fmt.Errorf("CHUNK_MAX_WORDS must be positive")
	}
	if cfg.DispatchConcurrency < 0 {
		return Config{}, fmt.Errorf("DISPATCH_CONCURRENCY must be >= 0")
	}
	if cfg.BatchRequestsPerMinute <= 0 {
		return Config{}, fmt.Errorf("BATCH_REQUESTS_PER_MINUTE must be positive")
	}
	if _, err := audio.ParseMergePolicy(cfg.MergePolicy); err != nil {
		return Config{}, fmt.Errorf("MERGE_POLICY: %w", err)
	}
	if cfg.LibraryMaxClips <= 0 {
		return Config{}, fmt.Errorf("LIBRARY_MAX_CLIPS must be positive")
	}
	if cfg.LibraryMaxMB <= 0 {
		return Config{}, fmt.Errorf("LIBRARY_MAX_MB must be positive")
	}
	if cfg.ProviderTimeout <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_TIMEOUT must be positive")
	}
	return cfg, nil
}

// LibraryMaxBytes converts the configured megabyte cap to bytes.
func (c Config) LibraryMaxBytes() int {
	return c.LibraryMaxMB * 1024 * 1024
}

// StorePath returns the badger directory, or "" for an in-memory library.
func (c Config) StorePath() string {
	if strings.EqualFold(c.LibraryPath, MemoryLibrary) {
		return ""
	}
	return c.LibraryPath
}

// Level returns the parsed log level; Load has already validated it.
func (c Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}
