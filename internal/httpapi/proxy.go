package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lovechat-ai/lovechat/internal/tavus"
)

type proxyCreateRequest struct {
	PersonaID string `json:"persona_id"`
	ReplicaID string `json:"replica_id"`
	UserName  string `json:"user_name"`
}

// handleProxyCreateConversation creates a vendor conversation with the
// server-held API key so the browser never sees the credential.
func (s *Server) handleProxyCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req proxyCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.PersonaID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "persona_id is required")
		return
	}
	if strings.TrimSpace(s.cfg.TavusAPIKey) == "" {
		respondError(w, http.StatusInternalServerError, "missing_credential", "Tavus API key is not configured on the server")
		return
	}

	start := time.Now()
	conv, err := s.tavus.CreateConversation(r.Context(), s.cfg.TavusAPIKey, tavus.CreateRequest{
		PersonaID: req.PersonaID,
		ReplicaID: req.ReplicaID,
		UserName:  req.UserName,
	})
	if s.metrics != nil {
		s.metrics.ObserveVendorRequest("proxy_create_conversation", err, time.Since(start))
	}
	if err != nil {
		status, message := proxyErrorResponse(err)
		respondError(w, status, "vendor_error", message)
		return
	}

	respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleProxyEndConversation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "missing conversation id")
		return
	}
	if strings.TrimSpace(s.cfg.TavusAPIKey) == "" {
		respondError(w, http.StatusInternalServerError, "missing_credential", "Tavus API key is not configured on the server")
		return
	}

	start := time.Now()
	err := s.tavus.EndConversation(r.Context(), s.cfg.TavusAPIKey, id)
	if s.metrics != nil {
		s.metrics.ObserveVendorRequest("proxy_end_conversation", err, time.Since(start))
	}
	if err != nil {
		status, message := proxyErrorResponse(err)
		respondError(w, status, "vendor_error", message)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"status": "ended"})
}

// proxyErrorResponse maps a vendor failure onto the status and message the
// web client expects.
func proxyErrorResponse(err error) (int, string) {
	var apiErr *tavus.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.Status
		if status == 0 {
			status = http.StatusBadRequest
		}
		return status, apiErr.UserMessage()
	}
	return http.StatusBadGateway, "vendor request failed"
}
