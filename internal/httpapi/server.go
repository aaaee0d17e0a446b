package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/ent0n29/voiceforge/internal/audio"
	"github.com/ent0n29/voiceforge/internal/config"
	"github.com/ent0n29/voiceforge/internal/library"
	"github.com/ent0n29/voiceforge/internal/observability"
	"github.com/ent0n29/voiceforge/internal/pipeline"
	"github.com/ent0n29/voiceforge/internal/voice"
)

// Providers builds synthesis and transcription clients for a credential set.
type Providers interface {
	Synthesizer(kind voice.Kind, creds library.Credentials) (voice.Synthesizer, error)
	Transcriber(creds library.Credentials, script string) voice.Transcriber
}

type Server struct {
	cfg       config.Config
	jobs      *pipeline.Manager
	library   *library.Library
	providers Providers
	metrics   *observability.Metrics
	logger    *log.Logger
	upgrader  websocket.Upgrader
	batch     *rate.Limiter
	merge     audio.MergePolicy
	// transcribeLimit is the largest clip sent to speech-to-text whole.
	transcribeLimit int
	// baseCtx outlives requests; background job runs derive from it.
	baseCtx context.Context
}

func New(ctx context.Context, cfg config.Config, jobs *pipeline.Manager, lib *library.Library, providers Providers, metrics *observability.Metrics, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	perMinute := cfg.BatchRequestsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	merge, err := audio.ParseMergePolicy(cfg.MergePolicy)
	if err != nil {
		merge = audio.MergeStrict
	}
	return &Server{
		cfg:       cfg,
		jobs:      jobs,
		library:   lib,
		providers: providers,
		metrics:   metrics,
		logger:    logger,
		batch:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		merge:     merge,
		baseCtx:   ctx,

		transcribeLimit: voice.MaxTranscribeBytes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Only same-origin browsers may drive a job stream unless
				// explicitly opened up.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/onboarding/status", s.handleOnboardingStatus)

	r.Post("/api/tts/batch", s.handleBatch)

	r.Post("/v1/jobs", s.handleCreateJob)
	r.Get("/v1/jobs/{id}", s.handleGetJob)
	r.Delete("/v1/jobs/{id}", s.handleDiscardJob)
	r.Post("/v1/jobs/{id}/chunks/{index}/retry", s.handleRetryChunk)
	r.Post("/v1/jobs/{id}/retry", s.handleRetryFailed)
	r.Post("/v1/jobs/{id}/finalize", s.handleFinalizeJob)
	r.Get("/v1/jobs/{id}/ws", s.handleJobWS)

	r.Get("/v1/clips", s.handleListClips)
	r.Get("/v1/clips/{id}", s.handleGetClip)
	r.Get("/v1/clips/{id}/audio", s.handleClipAudio)
	r.Delete("/v1/clips/{id}", s.handleDeleteClip)
	r.Post("/v1/clips/{id}/transcript", s.handleTranscribeClip)
	r.Get("/v1/clips/{id}/transcript.txt", s.handleTranscriptText)
	r.Get("/v1/clips/{id}/highlight", s.handleHighlight)

	r.Get("/v1/voices", s.handleListVoices)
	r.Post("/v1/voices/preview", s.handlePreviewVoice)
	r.Get("/v1/settings", s.handleGetSettings)
	r.Put("/v1/settings", s.handlePutSettings)
	r.Get("/v1/credentials", s.handleGetCredentials)
	r.Put("/v1/credentials", s.handlePutCredentials)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"active_jobs":    s.jobs.ActiveCount(),
		"mock_providers": s.cfg.MockProviders,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.library.Store().LoadSettings(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"store_mode": storeMode(s.cfg),
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"generated_at": "",
			"window_size":  0,
			"stages":       []any{},
		})
		return
	}
	respondJSON(w, http.StatusOK, s.metrics.SnapshotLatency())
}

func storeMode(cfg config.Config) string {
	switch {
	case strings.TrimSpace(cfg.DatabaseURL) != "":
		return "postgres"
	case cfg.StorePath() != "":
		return "badger"
	default:
		return "in-memory"
	}
}

// credentials returns the stored keys with server-held keys filling any
// that are empty.
func (s *Server) credentials(ctx context.Context) (library.Credentials, error) {
	stored, err := s.library.Store().LoadCredentials(ctx)
	if err != nil {
		return library.Credentials{}, err
	}
	return stored.Merge(library.Credentials{
		Gemini: s.cfg.GeminiAPIKey,
		GCloud: s.cfg.GoogleCloudAPIKey,
	}), nil
}

func (s *Server) synthesizer(ctx context.Context, kind voice.Kind) (voice.Synthesizer, error) {
	creds, err := s.credentials(ctx)
	if err != nil {
		return nil, err
	}
	return s.providers.Synthesizer(kind, creds)
}

// respondProviderError maps pipeline, library and provider errors to
// status codes.
func (s *Server) respondProviderError(w http.ResponseWriter, err error) {
	var (
		pe       *voice.ProviderError
		sizeErr  *voice.SizeLimitError
		incomp   *pipeline.IncompleteError
		tooLong  *pipeline.TooLongError
		decodeEr *audio.DecodeError
	)
	switch {
	case errors.Is(err, voice.ErrCredentialRequired):
		respondError(w, http.StatusUnauthorized, "credential_required", err.Error())
	case errors.Is(err, voice.ErrInvalidRequest), errors.As(err, &tooLong), errors.Is(err, pipeline.ErrEmptyText):
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.As(err, &sizeErr):
		respondError(w, http.StatusRequestEntityTooLarge, "audio_too_large", err.Error())
	case errors.As(err, &incomp):
		respondError(w, http.StatusConflict, "job_incomplete", err.Error())
	case errors.Is(err, pipeline.ErrNotFound), errors.Is(err, library.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, pipeline.ErrBusy), errors.Is(err, pipeline.ErrAlreadyFinalized),
		errors.Is(err, pipeline.ErrNotRetryable), errors.Is(err, pipeline.ErrAlreadyStarted):
		respondError(w, http.StatusConflict, "job_conflict", err.Error())
	case errors.Is(err, pipeline.ErrIndexOutOfRange):
		respondError(w, http.StatusBadRequest, "invalid_chunk_index", err.Error())
	case errors.As(err, &decodeEr), errors.Is(err, audio.ErrNothingToMerge):
		respondError(w, http.StatusUnprocessableEntity, "merge_failed", err.Error())
	case errors.As(err, &pe):
		if s.metrics != nil {
			s.metrics.ProviderErrors.WithLabelValues(pe.Provider, http.StatusText(pe.StatusCode)).Inc()
		}
		respondError(w, http.StatusBadGateway, "provider_error", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
