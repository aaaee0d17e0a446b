package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("LIBRARY_PATH", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":8080" {
		t.Fatalf("BindAddr = %q, want :8080", cfg.BindAddr)
	}
	if cfg.ChunkMaxWords != 500 || cfg.LibraryMaxClips != 100 {
		t.Fatalf("ChunkMaxWords=%d LibraryMaxClips=%d", cfg.ChunkMaxWords, cfg.LibraryMaxClips)
	}
	if cfg.LibraryMaxBytes() != 50*1024*1024 {
		t.Fatalf("LibraryMaxBytes() = %d", cfg.LibraryMaxBytes())
	}
	if cfg.MergePolicy != "strict" {
		t.Fatalf("MergePolicy = %q, want strict", cfg.MergePolicy)
	}
	if cfg.JobInactivityTimeout != 30*time.Minute {
		t.Fatalf("JobInactivityTimeout = %v", cfg.JobInactivityTimeout)
	}
	if cfg.StorePath() != "" {
		t.Fatalf("StorePath() = %q, want in-memory", cfg.StorePath())
	}
}

func TestLoadDefaultLibraryPathIsUserDataDir(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_DATA_HOME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !strings.Contains(cfg.LibraryPath, "voiceforge") {
		t.Fatalf("LibraryPath = %q, want a voiceforge data dir", cfg.LibraryPath)
	}
}

func TestLoadExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("APP_BIND_ADDR", ":9191")
	t.Setenv("GEMINI_API_KEY", "  gem-key  ")
	t.Setenv("CHUNK_MAX_WORDS", "250")
	t.Setenv("MERGE_POLICY", "lenient")
	t.Setenv("APP_ALLOW_ANY_ORIGIN", "true")
	t.Setenv("DATABASE_URL", "postgres://localhost/voiceforge")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BindAddr != ":9191" || cfg.GeminiAPIKey != "gem-key" {
		t.Fatalf("BindAddr=%q GeminiAPIKey=%q", cfg.BindAddr, cfg.GeminiAPIKey)
	}
	if cfg.ChunkMaxWords != 250 || cfg.MergePolicy != "lenient" || !cfg.AllowAnyOrigin {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.LibraryPath != "" {
		t.Fatalf("LibraryPath = %q, want empty when DATABASE_URL is set", cfg.LibraryPath)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"APP_JOB_INACTIVITY_TIMEOUT", "1s"},
		{"APP_JOB_INACTIVITY_TIMEOUT", "soon"},
		{"APP_LOG_LEVEL", "loud"},
		{"CHUNK_MAX_WORDS", "0"},
		{"DISPATCH_CONCURRENCY", "-1"},
		{"MERGE_POLICY", "best-effort"},
		{"LIBRARY_MAX_MB", "0"},
		{"BATCH_REQUESTS_PER_MINUTE", "x"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv("LIBRARY_PATH", "memory")
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() should reject %s=%q", tc.key, tc.value)
			}
		})
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_JOB_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_LOG_LEVEL",
		"APP_ALLOW_ANY_ORIGIN",
		"APP_MOCK_PROVIDERS",
		"GEMINI_API_KEY",
		"GOOGLE_CLOUD_API_KEY",
		"GEMINI_ENDPOINT",
		"GEMINI_MODEL",
		"CHIRP_ENDPOINT",
		"SPEECH_ENDPOINT",
		"PROVIDER_TIMEOUT",
		"CLEAN_TEXT",
		"CHUNK_MAX_WORDS",
		"DISPATCH_CONCURRENCY",
		"BATCH_REQUESTS_PER_MINUTE",
		"MERGE_POLICY",
		"LIBRARY_MAX_CLIPS",
		"LIBRARY_MAX_MB",
		"LIBRARY_PATH",
		"DATABASE_URL",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
