package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ent0n29/voiceforge/internal/audio"
	"github.com/ent0n29/voiceforge/internal/library"
	"github.com/ent0n29/voiceforge/internal/policy"
	"github.com/ent0n29/voiceforge/internal/voice"
)

type batchRequest struct {
	Chunks   []string `json:"chunks"`
	Provider string   `json:"provider"`
	Voice    string   `json:"voice"`
	Language string   `json:"language"`
	Style    string   `json:"style,omitempty"`
	Pace     float64  `json:"pace,omitempty"`
	Model    string   `json:"model,omitempty"`
}

type batchChunk struct {
	Index    int    `json:"index"`
	Audio    string `json:"audio"`
	MimeType string `json:"mimeType"`
}

type batchResponse struct {
	Chunks          []batchChunk `json:"chunks"`
	TotalChunks     int          `json:"totalChunks"`
	ProcessedChunks int          `json:"processedChunks"`
	Error           string       `json:"error,omitempty"`
	FailedIndex     *int         `json:"failedIndex,omitempty"`
}

// handleBatch synthesizes chunks one at a time, paced by the batch limiter,
// and stops at the first failure.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if len(req.Chunks) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "chunks array is required")
		return
	}
	kind, ok := library.ParseProvider(req.Provider)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_provider", "provider must be gemini or chirp")
		return
	}
	if strings.TrimSpace(req.Voice) == "" {
		catalog, _ := voice.CatalogFor(kind)
		req.Voice = catalog.DefaultVoice
	}
	if strings.TrimSpace(req.Language) == "" {
		req.Language = "en-US"
	}

	ctx := r.Context()
	synth, err := s.synthesizer(ctx, kind)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}

	resp := batchResponse{Chunks: []batchChunk{}, TotalChunks: len(req.Chunks)}
	for i, text := range req.Chunks {
		if i > 0 {
			if err := s.batch.Wait(ctx); err != nil {
				s.failBatch(w, &resp, i, err)
				return
			}
		}
		res, err := synth.Synthesize(ctx, voice.Request{
			Text:     text,
			Voice:    req.Voice,
			Language: req.Language,
			Style:    req.Style,
			Pace:     req.Pace,
			Model:    req.Model,
		})
		if err != nil {
			s.failBatch(w, &resp, i, err)
			return
		}
		resp.Chunks = append(resp.Chunks, batchChunk{Index: i, Audio: audio.ToBase64(res.Audio), MimeType: res.MimeType})
		resp.ProcessedChunks++
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) failBatch(w http.ResponseWriter, resp *batchResponse, index int, err error) {
	idx := index
	resp.FailedIndex = &idx
	resp.Error = policy.RedactSecrets(err.Error())
	s.logger.Warn("batch chunk failed", "index", index, "processed", resp.ProcessedChunks, "err", err)
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, voice.ErrCredentialRequired):
		status = http.StatusUnauthorized
	case errors.Is(err, voice.ErrInvalidRequest):
		status = http.StatusBadRequest
	}
	respondJSON(w, status, resp)
}
