package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ent0n29/voiceforge/internal/library"
	"github.com/ent0n29/voiceforge/internal/voice"
)

// previewMaxWords keeps previews cheap; longer text belongs in a job.
const previewMaxWords = 60

type listVoicesResponse struct {
	Catalogs []voice.Catalog `json:"catalogs"`
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	kinds := []library.Provider{library.ProviderGemini, library.ProviderChirp}
	if raw := strings.TrimSpace(r.URL.Query().Get("provider")); raw != "" {
		kind, ok := library.ParseProvider(raw)
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid_provider", "provider must be gemini or chirp")
			return
		}
		kinds = []library.Provider{kind}
	}
	resp := listVoicesResponse{Catalogs: make([]voice.Catalog, 0, len(kinds))}
	for _, k := range kinds {
		catalog, _ := voice.CatalogFor(k)
		resp.Catalogs = append(resp.Catalogs, catalog)
	}
	respondJSON(w, http.StatusOK, resp)
}

type previewVoiceRequest struct {
	Provider string `json:"provider"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
	Text     string `json:"text"`
}

// handlePreviewVoice synthesizes a short sample and returns the raw audio.
func (s *Server) handlePreviewVoice(w http.ResponseWriter, r *http.Request) {
	var req previewVoiceRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	kind := library.ProviderGemini
	if strings.TrimSpace(req.Provider) != "" {
		var ok bool
		if kind, ok = library.ParseProvider(req.Provider); !ok {
			respondError(w, http.StatusBadRequest, "invalid_provider", "provider must be gemini or chirp")
			return
		}
	}
	catalog, _ := voice.CatalogFor(kind)
	name := strings.TrimSpace(req.Voice)
	if name == "" {
		name = catalog.DefaultVoice
	}
	if !catalog.HasVoice(name) {
		respondError(w, http.StatusBadRequest, "unknown_voice", fmt.Sprintf("%s has no voice %q", kind, name))
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = fmt.Sprintf("Hello! This is a preview of the %s voice.", name)
	}
	if n := len(strings.Fields(text)); n > previewMaxWords {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("preview text is limited to %d words", previewMaxWords))
		return
	}
	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = "en-US"
	}

	synth, err := s.synthesizer(r.Context(), kind)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	res, err := synth.Synthesize(r.Context(), voice.Request{Text: text, Voice: name, Language: language})
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	w.Header().Set("Content-Type", res.MimeType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Audio)
}
