package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/voiceforge/internal/library"
	"github.com/ent0n29/voiceforge/internal/pipeline"
	"github.com/ent0n29/voiceforge/internal/voice"
)

type createJobRequest struct {
	Text         string  `json:"text"`
	Provider     string  `json:"provider"`
	Voice        string  `json:"voice"`
	Language     string  `json:"language"`
	Style        string  `json:"style,omitempty"`
	Pace         float64 `json:"pace,omitempty"`
	Model        string  `json:"model,omitempty"`
	MultiSpeaker bool    `json:"multiSpeaker,omitempty"`
	SecondVoice  string  `json:"secondVoice,omitempty"`
	// LongTextMode overrides the stored setting when set.
	LongTextMode *bool `json:"longTextMode,omitempty"`
	// AutoFinalize is merge, separate or none. Empty means merge for a
	// single chunk and none otherwise.
	AutoFinalize string `json:"autoFinalize,omitempty"`
	// Wait blocks the response until every chunk has settled.
	Wait bool `json:"wait,omitempty"`
}

type finalizeRequest struct {
	Mode string `json:"mode"`
}

type jobResponse struct {
	Job   pipeline.Snapshot `json:"job"`
	Clips []clipSummary     `json:"clips,omitempty"`
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	kind, ok := library.ParseProvider(req.Provider)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_provider", "provider must be gemini or chirp")
		return
	}
	catalog, _ := voice.CatalogFor(kind)
	if strings.TrimSpace(req.Voice) == "" {
		req.Voice = catalog.DefaultVoice
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = "en-US"
	}

	ctx := r.Context()
	settings, err := s.library.Store().LoadSettings(ctx)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	longText := settings.LongTextMode
	if req.LongTextMode != nil {
		longText = *req.LongTextMode
	}
	maxWords := settings.WordLimit
	if maxWords <= 0 {
		maxWords = s.cfg.ChunkMaxWords
	}
	chunks, err := pipeline.Plan(req.Text, maxWords, longText)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}

	auto, err := parseAutoFinalize(req.AutoFinalize, len(chunks))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	creds, err := s.credentials(ctx)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	if !s.cfg.MockProviders && strings.TrimSpace(creds.For(kind)) == "" {
		s.respondProviderError(w, &voice.CredentialError{Provider: kind})
		return
	}
	synth, err := s.providers.Synthesizer(kind, creds)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}

	vreq := voice.Request{
		Text:         strings.TrimSpace(req.Text),
		Voice:        req.Voice,
		Language:     req.Language,
		Style:        req.Style,
		Pace:         req.Pace,
		Model:        req.Model,
		MultiSpeaker: req.MultiSpeaker,
		SecondVoice:  req.SecondVoice,
	}
	job := s.jobs.Create(chunks, vreq, s.jobOptions(kind, auto))
	s.observeActiveJobs()
	s.logger.Info("job created", "job", job.ID(), "provider", kind, "chunks", len(chunks), "auto_finalize", auto)

	if req.Wait {
		if err := job.Run(s.baseCtx, synth); err != nil {
			s.respondProviderError(w, err)
			return
		}
		s.respondJob(w, r, http.StatusOK, job)
		return
	}
	go func() {
		if err := job.Run(s.baseCtx, synth); err != nil && !errors.Is(err, pipeline.ErrDiscarded) {
			s.logger.Error("job run failed", "job", job.ID(), "err", err)
		}
	}()
	respondJSON(w, http.StatusAccepted, jobResponse{Job: job.Snapshot()})
}

func parseAutoFinalize(v string, chunks int) (pipeline.FinalizeMode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		if chunks == 1 {
			return pipeline.FinalizeMerge, nil
		}
		return "", nil
	case "none":
		return "", nil
	default:
		return pipeline.ParseFinalizeMode(v)
	}
}

func (s *Server) jobOptions(kind library.Provider, auto pipeline.FinalizeMode) pipeline.Options {
	opts := pipeline.Options{
		Provider:       kind,
		MaxConcurrency: s.cfg.DispatchConcurrency,
		AutoFinalize:   auto,
		MergePolicy:    s.merge,
		Sink:           s.library,
		Logger:         s.logger,
	}
	if s.metrics != nil {
		opts.Hooks = pipeline.Hooks{
			ChunkSettled: func(p library.Provider, c pipeline.Chunk, took time.Duration) {
				s.metrics.ObserveChunk(string(p), string(c.Status), took)
			},
			Finalized: func(mode pipeline.FinalizeMode, took time.Duration, err error) {
				s.metrics.ObserveFinalize(string(mode), took, err)
			},
		}
	}
	return opts
}

func (s *Server) observeActiveJobs() {
	if s.metrics != nil {
		s.metrics.ActiveJobs.Set(float64(s.jobs.ActiveCount()))
	}
}

func (s *Server) jobFromRequest(w http.ResponseWriter, r *http.Request) (*pipeline.Job, bool) {
	job, err := s.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "job_not_found", err.Error())
		return nil, false
	}
	return job, true
}

// respondJob writes the job snapshot plus summaries of any clips it produced.
func (s *Server) respondJob(w http.ResponseWriter, r *http.Request, status int, job *pipeline.Job) {
	snap := job.Snapshot()
	resp := jobResponse{Job: snap}
	for _, id := range snap.ClipIDs {
		clip, err := s.library.Get(r.Context(), id)
		if err != nil {
			// Evicted since finalization.
			continue
		}
		resp.Clips = append(resp.Clips, summarize(clip))
	}
	respondJSON(w, status, resp)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}
	s.respondJob(w, r, http.StatusOK, job)
}

func (s *Server) handleDiscardJob(w http.ResponseWriter, r *http.Request) {
	if err := s.jobs.Discard(chi.URLParam(r, "id")); err != nil {
		respondError(w, http.StatusNotFound, "job_not_found", err.Error())
		return
	}
	s.observeActiveJobs()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetryChunk(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_chunk_index", "chunk index must be an integer")
		return
	}
	synth, err := s.synthesizer(r.Context(), job.Snapshot().Provider)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	if err := job.Retry(s.baseCtx, index, synth); err != nil {
		s.respondProviderError(w, err)
		return
	}
	s.respondJob(w, r, http.StatusOK, job)
}

func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}
	synth, err := s.synthesizer(r.Context(), job.Snapshot().Provider)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	if _, err := job.RetryFailed(s.baseCtx, synth); err != nil {
		s.respondProviderError(w, err)
		return
	}
	s.respondJob(w, r, http.StatusOK, job)
}

func (s *Server) handleFinalizeJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobFromRequest(w, r)
	if !ok {
		return
	}
	var req finalizeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	mode, err := pipeline.ParseFinalizeMode(req.Mode)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if _, err := job.Finalize(context.WithoutCancel(r.Context()), mode); err != nil {
		s.respondProviderError(w, err)
		return
	}
	s.respondJob(w, r, http.StatusOK, job)
}
