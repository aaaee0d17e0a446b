package httpapi

import (
	"net/http"
	"strings"

	"github.com/ent0n29/voiceforge/internal/library"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.library.Store().LoadSettings(r.Context())
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	settings := library.DefaultAppSettings()
	if err := decodeJSON(r, &settings); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	switch {
	case settings.WordLimit <= 0:
		respondError(w, http.StatusBadRequest, "invalid_request", "wordLimit must be positive")
		return
	case settings.TeleprompterFontSize <= 0:
		respondError(w, http.StatusBadRequest, "invalid_request", "teleprompterFontSize must be positive")
		return
	case settings.TeleprompterScrollSpeed <= 0:
		respondError(w, http.StatusBadRequest, "invalid_request", "teleprompterScrollSpeed must be positive")
		return
	}
	if err := s.library.Store().SaveSettings(r.Context(), settings); err != nil {
		s.respondProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// credentialStatus reports which keys are usable without revealing them.
type credentialStatus struct {
	Gemini       bool `json:"gemini"`
	GCloud       bool `json:"gcloud"`
	GeminiStored bool `json:"geminiStored"`
	GCloudStored bool `json:"gcloudStored"`
}

type putCredentialsRequest struct {
	// A nil field keeps the stored key; an empty string clears it.
	Gemini *string `json:"gemini"`
	GCloud *string `json:"gcloud"`
}

func (s *Server) credentialStatus(r *http.Request) (credentialStatus, error) {
	stored, err := s.library.Store().LoadCredentials(r.Context())
	if err != nil {
		return credentialStatus{}, err
	}
	effective, err := s.credentials(r.Context())
	if err != nil {
		return credentialStatus{}, err
	}
	return credentialStatus{
		Gemini:       strings.TrimSpace(effective.Gemini) != "",
		GCloud:       strings.TrimSpace(effective.GCloud) != "",
		GeminiStored: strings.TrimSpace(stored.Gemini) != "",
		GCloudStored: strings.TrimSpace(stored.GCloud) != "",
	}, nil
}

func (s *Server) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	status, err := s.credentialStatus(r)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handlePutCredentials(w http.ResponseWriter, r *http.Request) {
	var req putCredentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	ctx := r.Context()
	stored, err := s.library.Store().LoadCredentials(ctx)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	if req.Gemini != nil {
		stored.Gemini = strings.TrimSpace(*req.Gemini)
	}
	if req.GCloud != nil {
		stored.GCloud = strings.TrimSpace(*req.GCloud)
	}
	if err := s.library.Store().SaveCredentials(ctx, stored); err != nil {
		s.respondProviderError(w, err)
		return
	}
	s.logger.Info("credentials updated", "gemini", stored.Gemini != "", "gcloud", stored.GCloud != "")
	status, err := s.credentialStatus(r)
	if err != nil {
		s.respondProviderError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, status)
}
