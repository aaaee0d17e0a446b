package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/voiceforge/internal/align"
	"github.com/ent0n29/voiceforge/internal/audio"
	"github.com/ent0n29/voiceforge/internal/library"
	"github.com/ent0n29/voiceforge/internal/voice"
)

// clipSummary is a clip without its audio payload.
type clipSummary struct {
	ID            string                     `json:"id"`
	Provider      library.Provider           `json:"provider"`
	Title         string                     `json:"title"`
	CreatedAt     int64                      `json:"createdAt"`
	Settings      library.GenerationSettings `json:"settings"`
	Text          string                     `json:"text"`
	MimeType      string                     `json:"mimeType"`
	AudioBytes    int                        `json:"audioBytes"`
	AudioSize     string                     `json:"audioSize"`
	TranscriptLen int                        `json:"transcriptWords"`
	GroupID       string                     `json:"groupId,omitempty"`
	PartNumber    int                        `json:"partNumber,omitempty"`
}

func summarize(c library.Clip) clipSummary {
	n := c.AudioSize()
	return clipSummary{
		ID:            c.ID,
		Provider:      c.Provider,
		Title:         c.Title,
		CreatedAt:     c.CreatedAt,
		Settings:      c.Settings,
		Text:          c.Text,
		MimeType:      c.MimeType,
		AudioBytes:    n,
		AudioSize:     humanize.Bytes(uint64(n)),
		TranscriptLen: len(c.Transcript),
		GroupID:       c.GroupID,
		PartNumber:    c.PartNumber,
	}
}

func (s *Server) clipFromRequest(w http.ResponseWriter, r *http.Request) (library.Clip, bool) {
	clip, err := s.library.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondProviderError(w, err)
		return library.Clip{}, false
	}
	return clip, true
}

func (s *Server) handleListClips(w http.ResponseWriter, r *http.Request) {
	clips, err := s.library.List(r.Context())
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	out := make([]clipSummary, len(clips))
	for i, c := range clips {
		out[i] = summarize(c)
	}
	respondJSON(w, http.StatusOK, map[string]any{"clips": out})
}

// handleGetClip returns the full persisted record, audio included.
func (s *Server) handleGetClip(w http.ResponseWriter, r *http.Request) {
	clip, ok := s.clipFromRequest(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, clip)
}

func (s *Server) handleClipAudio(w http.ResponseWriter, r *http.Request) {
	clip, ok := s.clipFromRequest(w, r)
	if !ok {
		return
	}
	data, err := audio.FromBase64(clip.AudioData)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "corrupt_audio", err.Error())
		return
	}
	w.Header().Set("Content-Type", clip.MimeType)
	http.ServeContent(w, r, clip.ID, time.UnixMilli(clip.CreatedAt), bytes.NewReader(data))
}

func (s *Server) handleDeleteClip(w http.ResponseWriter, r *http.Request) {
	if err := s.library.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.respondProviderError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transcriptResponse struct {
	Clips []clipTranscript `json:"clips"`
	// Skipped lists group parts still over the size limit.
	Skipped []string `json:"skipped,omitempty"`
}

type clipTranscript struct {
	ID    string                  `json:"id"`
	Words []library.WordTimestamp `json:"words"`
}

// handleTranscribeClip runs speech-to-text over a clip and stores the word
// timings. A clip over the size limit that belongs to a group is handled by
// transcribing each part instead.
func (s *Server) handleTranscribeClip(w http.ResponseWriter, r *http.Request) {
	clip, ok := s.clipFromRequest(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	creds, err := s.credentials(ctx)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	if !s.cfg.MockProviders && strings.TrimSpace(creds.GCloud) == "" {
		s.respondProviderError(w, &voice.CredentialError{Provider: voice.KindChirp})
		return
	}

	targets := []library.Clip{clip}
	var resp transcriptResponse
	if clip.AudioSize() > s.transcribeLimit {
		var group []library.Clip
		if clip.GroupID != "" {
			if group, err = s.library.Group(ctx, clip.GroupID); err != nil {
				s.respondProviderError(w, err)
				return
			}
		}
		if len(group) <= 1 {
			s.respondProviderError(w, &voice.SizeLimitError{Size: clip.AudioSize(), Limit: s.transcribeLimit})
			return
		}
		targets = targets[:0]
		for _, part := range group {
			if part.AudioSize() > s.transcribeLimit {
				resp.Skipped = append(resp.Skipped, part.ID)
				continue
			}
			targets = append(targets, part)
		}
		s.logger.Info("transcribing group parts", "group", clip.GroupID, "parts", len(targets), "skipped", len(resp.Skipped))
	}

	byID := make(map[string][]library.WordTimestamp, len(targets))
	for _, c := range targets {
		data, err := audio.FromBase64(c.AudioData)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "corrupt_audio", err.Error())
			return
		}
		start := time.Now()
		words, err := s.providers.Transcriber(creds, c.Text).Transcribe(ctx, data, c.MimeType, c.Settings.Language)
		if err != nil {
			s.logger.Warn("transcription failed; nothing saved", "clip", c.ID, "part", c.PartNumber, "done", len(byID), "of", len(targets))
			s.respondProviderError(w, err)
			return
		}
		if s.metrics != nil {
			s.metrics.ObserveTranscribe(time.Since(start))
		}
		byID[c.ID] = words
		resp.Clips = append(resp.Clips, clipTranscript{ID: c.ID, Words: words})
	}
	// Commit only once every target has transcribed.
	if _, err := s.library.SetTranscripts(ctx, byID); err != nil {
		s.respondProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTranscriptText(w http.ResponseWriter, r *http.Request) {
	clip, ok := s.clipFromRequest(w, r)
	if !ok {
		return
	}
	if len(clip.Transcript) == 0 {
		respondError(w, http.StatusNotFound, "no_transcript", "clip has no transcript")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", clip.Title+"-transcript.txt"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(library.FormatTranscript(clip.Transcript)))
}

type highlightResponse struct {
	Index     int     `json:"index"`
	Word      string  `json:"word,omitempty"`
	WordCount int     `json:"wordCount"`
	Duration  float64 `json:"duration"`
	Source    string  `json:"source"`
}

// handleHighlight answers which word is spoken at ?t= seconds. prev is the
// index the client showed last; duration may be passed to skip decoding.
func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	clip, ok := s.clipFromRequest(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	t, err := strconv.ParseFloat(q.Get("t"), 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "t must be a number of seconds")
		return
	}
	prev := 0
	if raw := q.Get("prev"); raw != "" {
		if prev, err = strconv.Atoi(raw); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "prev must be an integer")
			return
		}
	}

	words := align.Words(clip.Text, clip.Transcript)
	resp := highlightResponse{WordCount: len(words), Source: "transcript"}
	if len(clip.Transcript) == 0 {
		resp.Source = "interpolated"
		if raw := q.Get("duration"); raw != "" {
			resp.Duration, _ = strconv.ParseFloat(raw, 64)
		}
		if resp.Duration <= 0 {
			resp.Duration = clipDuration(clip)
		}
	}
	resp.Index = align.HighlightIndex(t, clip.Transcript, resp.Duration, len(words), prev)
	if resp.Index >= 0 && resp.Index < len(words) {
		resp.Word = words[resp.Index]
	}
	respondJSON(w, http.StatusOK, resp)
}

// clipDuration decodes the clip to measure it; 0 when it cannot be decoded.
func clipDuration(c library.Clip) float64 {
	data, err := audio.FromBase64(c.AudioData)
	if err != nil {
		return 0
	}
	buf, err := audio.DecodeToSamples(data)
	if err != nil {
		return 0
	}
	return buf.Duration().Seconds()
}
