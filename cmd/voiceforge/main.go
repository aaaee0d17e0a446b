// Package main provides the voiceforge server and command line tools.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ent0n29/voiceforge/internal/config"
	"github.com/ent0n29/voiceforge/internal/library"
	"github.com/ent0n29/voiceforge/internal/voice"
)

var (
	// Version as provided by the release build.
	Version = ""

	configFile string

	rootCmd = &cobra.Command{
		Use:           "voiceforge",
		Short:         "Long-form text to speech with a persistent clip library",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return loadCLIConfig()
		},
	}
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error("command failed", "err", err)
		os.Exit(1)
	}
}

func init() {
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "CLI defaults file (default voiceforge.yml in the user config dir)")

	viper.SetDefault("provider", string(library.ProviderGemini))
	viper.SetDefault("language", "en-US")
	viper.SetDefault("finalize", "merge")
	viper.SetDefault("auto_retry", 0)

	rootCmd.AddCommand(serveCmd, synthCmd, transcribeCmd, clipsCmd)
}

// loadCLIConfig reads synth defaults (provider, voice, language, style,
// pace, finalize) from voiceforge.yml and VOICEFORGE_* variables. Service
// settings stay in the environment.
func loadCLIConfig() error {
	viper.SetEnvPrefix("voiceforge")
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		dirs, err := gap.NewScope(gap.User, "voiceforge").ConfigDirs()
		if err != nil {
			return fmt.Errorf("resolve config dirs: %w", err)
		}
		if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
			dirs = append([]string{filepath.Join(c, "voiceforge")}, dirs...)
		}
		for _, d := range dirs {
			viper.AddConfigPath(d)
		}
		viper.SetConfigName("voiceforge")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read %s: %w", viper.ConfigFileUsed(), err)
		}
	}
	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("using CLI defaults", "path", used)
	}
	return nil
}

// runtime is the shared wiring for commands that touch the library.
type runtime struct {
	cfg       config.Config
	logger    *log.Logger
	store     library.Store
	library   *library.Library
	providers *voice.Registry
}

func newRuntime(ctx context.Context, onEvict library.EvictFunc) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "voiceforge",
		Level:           cfg.Level(),
	})
	log.SetDefault(logger)

	store, err := library.NewStore(ctx, cfg.DatabaseURL, cfg.StorePath())
	if err != nil {
		return nil, fmt.Errorf("library store init failed: %w", err)
	}
	lib := library.New(store, library.Limits{
		MaxClips: cfg.LibraryMaxClips,
		MaxBytes: cfg.LibraryMaxBytes(),
	}, onEvict)

	providers := voice.NewRegistry(voice.Options{
		GeminiEndpoint: cfg.GeminiEndpoint,
		GeminiModel:    cfg.GeminiModel,
		ChirpEndpoint:  cfg.ChirpEndpoint,
		SpeechEndpoint: cfg.SpeechEndpoint,
		CleanText:      cfg.CleanText,
		Timeout:        cfg.ProviderTimeout,
	}, cfg.MockProviders)
	if cfg.MockProviders {
		logger.Warn("providers are mocked; audio will be silence")
	}

	return &runtime{cfg: cfg, logger: logger, store: store, library: lib, providers: providers}, nil
}

func (rt *runtime) Close() error {
	return rt.store.Close()
}

// credentials merges keys saved in the library with the environment's.
func (rt *runtime) credentials(ctx context.Context) (library.Credentials, error) {
	stored, err := rt.store.LoadCredentials(ctx)
	if err != nil {
		return library.Credentials{}, err
	}
	return stored.Merge(library.Credentials{
		Gemini: rt.cfg.GeminiAPIKey,
		GCloud: rt.cfg.GoogleCloudAPIKey,
	}), nil
}
