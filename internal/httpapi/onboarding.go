package httpapi

import (
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"
)

type onboardingCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type onboardingStatusResponse struct {
	StoreMode     string            `json:"store_mode"`
	MockProviders bool              `json:"mock_providers"`
	Checks        []onboardingCheck `json:"checks"`
}

// handleOnboardingStatus reports what still needs configuring before every
// feature works.
func (s *Server) handleOnboardingStatus(w http.ResponseWriter, r *http.Request) {
	mode := storeMode(s.cfg)
	checks := make([]onboardingCheck, 0, 6)

	if s.cfg.MockProviders {
		checks = append(checks, onboardingCheck{
			ID:     "mock_providers",
			Status: "warn",
			Label:  "Providers are mocked",
			Detail: "Synthesis renders silence and transcripts are evenly spaced.",
			Fix:    "Unset APP_MOCK_PROVIDERS to call the real APIs.",
		})
	} else {
		status, err := s.credentialStatus(r)
		if err != nil {
			checks = append(checks, onboardingCheck{ID: "credentials", Status: "error", Label: "Credential store", Detail: err.Error()})
		} else {
			checks = append(checks,
				keyCheck("gemini_key", "Gemini API key", status.Gemini, "Save a key via PUT /v1/credentials or set GEMINI_API_KEY."),
				keyCheck("gcloud_key", "Google Cloud API key", status.GCloud, "Needed for Chirp voices and transcripts. Set GOOGLE_CLOUD_API_KEY or save one."),
			)
		}
	}

	switch mode {
	case "in-memory":
		checks = append(checks, onboardingCheck{
			ID:     "library_store",
			Status: "warn",
			Label:  "Library persistence",
			Detail: "in-memory only",
			Fix:    "Set LIBRARY_PATH or DATABASE_URL to keep clips across restarts.",
		})
	default:
		checks = append(checks, onboardingCheck{ID: "library_store", Status: "ok", Label: "Library persistence", Detail: mode})
	}

	if count, total, err := s.library.Usage(r.Context()); err == nil {
		checks = append(checks, onboardingCheck{
			ID:     "library_usage",
			Status: "ok",
			Label:  "Library usage",
			Detail: fmt.Sprintf("%d of %d clips, %s of %s", count, s.cfg.LibraryMaxClips,
				humanize.IBytes(uint64(total)), humanize.IBytes(uint64(s.cfg.LibraryMaxBytes()))),
		})
	}

	respondJSON(w, http.StatusOK, onboardingStatusResponse{
		StoreMode:     mode,
		MockProviders: s.cfg.MockProviders,
		Checks:        checks,
	})
}

func keyCheck(id, label string, present bool, fix string) onboardingCheck {
	if present {
		return onboardingCheck{ID: id, Status: "ok", Label: label, Detail: "present"}
	}
	return onboardingCheck{ID: id, Status: "error", Label: label, Detail: "missing", Fix: fix}
}
