package httpapi

import (
	"net/http"
	"strconv"

	"github.com/lovechat-ai/lovechat/internal/persona"
	"github.com/lovechat-ai/lovechat/internal/settings"
	"github.com/lovechat-ai/lovechat/internal/store"
)

func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"personas": persona.All()})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user")
		return
	}

	blob, err := s.store.LoadSettings(r.Context(), user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "failed to load settings")
		return
	}
	decoded, err := settings.Decode(blob, s.settingsDefaults())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "stored settings are corrupt")
		return
	}
	respondJSON(w, http.StatusOK, decoded)
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user")
		return
	}

	var incoming settings.Settings
	if err := decodeJSON(r, &incoming); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid settings body")
		return
	}
	normalized := incoming.Normalize(s.settingsDefaults())

	blob, err := normalized.Encode()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "failed to encode settings")
		return
	}
	if err := s.store.SaveSettings(r.Context(), user.ID, blob); err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "failed to save settings")
		return
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (s *Server) handleRecentCalls(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 100")
			return
		}
		limit = n
	}

	records, err := s.store.RecentCalls(r.Context(), user.ID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "failed to load call history")
		return
	}
	if records == nil {
		records = []store.CallRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"calls": records})
}
