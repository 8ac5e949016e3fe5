package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lovechat-ai/lovechat/internal/call"
	"github.com/lovechat-ai/lovechat/internal/persona"
	"github.com/lovechat-ai/lovechat/internal/protocol"
	"github.com/lovechat-ai/lovechat/internal/settings"
)

func (s *Server) handleCreateCall(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user")
		return
	}

	var req call.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	p, err := persona.Lookup(strings.TrimSpace(req.PersonaID))
	if err != nil {
		respondError(w, http.StatusNotFound, "persona_not_found", "unknown persona id")
		return
	}
	if !p.Available {
		respondError(w, http.StatusConflict, "persona_unavailable", "this persona is not available yet")
		return
	}

	blob, err := s.store.LoadSettings(r.Context(), user.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "failed to load settings")
		return
	}
	userSettings, err := settings.Decode(blob, s.settingsDefaults())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", "stored settings are corrupt")
		return
	}

	attempt, err := s.calls.Create(user, p, userSettings)
	if err != nil {
		if errors.Is(err, call.ErrActiveCall) {
			respondError(w, http.StatusConflict, "active_call", "you already have an active call")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if s.metrics != nil {
		s.metrics.ActiveCalls.Set(float64(s.calls.ActiveCount()))
		s.metrics.CallEvents.WithLabelValues("created").Inc()
	}

	snap := attempt.Snapshot()
	respondJSON(w, http.StatusCreated, call.CreateResponse{
		CallID:        attempt.ID,
		PersonaID:     snap.PersonaID,
		PersonaName:   snap.PersonaName,
		Screen:        snap.Screen,
		BudgetSeconds: s.cfg.CallBudgetSeconds(),
	})
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user")
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_call_id", "missing call id")
		return
	}

	attempt, err := s.calls.Get(id)
	if err != nil || attempt.Snapshot().UserID != user.ID {
		respondError(w, http.StatusNotFound, "call_not_found", "call attempt not found")
		return
	}

	snap, err := s.calls.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "call_not_found", "call attempt not found")
		return
	}

	if s.metrics != nil {
		s.metrics.ActiveCalls.Set(float64(s.calls.ActiveCount()))
		s.metrics.CallEvents.WithLabelValues("ended_api").Inc()
	}
	respondJSON(w, http.StatusOK, snap)
}

// handleCallWS binds a websocket to a call attempt. The reader feeds the
// controller's inbound channel; a single writer goroutine drains outbound so
// websocket writes stay single-threaded.
func (s *Server) handleCallWS(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user")
		return
	}

	callID := strings.TrimSpace(r.URL.Query().Get("call_id"))
	if callID == "" {
		respondError(w, http.StatusBadRequest, "missing_call_id", "query parameter call_id is required")
		return
	}

	attempt, err := s.calls.Get(callID)
	if err != nil || attempt.Snapshot().UserID != user.ID {
		respondError(w, http.StatusNotFound, "call_not_found", "call attempt not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.countCallEvent("ws_connected")

	inbound := make(chan protocol.ClientControl, 64)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	go func() {
		defer close(runDone)
		_ = attempt.Attach(inbound, outbound)
	}()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-runDone:
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					if s.metrics != nil {
						s.metrics.WSWriteErrors.WithLabelValues("write_json").Inc()
					}
					return
				}
				if t, ok := protocol.TypeOf(msg); ok && s.metrics != nil {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				CallID:    callID,
				Code:      "invalid_client_message",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Drop when the writer is saturated.
			}
			continue
		}

		cmd, ok := parsed.(protocol.ClientControl)
		if !ok || cmd.CallID != callID {
			continue
		}
		if s.metrics != nil {
			s.metrics.WSMessages.WithLabelValues("inbound", string(cmd.Type)).Inc()
		}
		select {
		case <-runDone:
			break readLoop
		case inbound <- cmd:
		}
	}

	// Closing inbound tells the controller the client went away; it tears the
	// attempt down before runDone closes.
	close(inbound)
	<-runDone
	<-writerDone
	s.countCallEvent("ws_disconnected")
	if s.metrics != nil {
		s.metrics.ActiveCalls.Set(float64(s.calls.ActiveCount()))
	}
}

func (s *Server) countCallEvent(event string) {
	if s.metrics != nil {
		s.metrics.CallEvents.WithLabelValues(event).Inc()
	}
}
