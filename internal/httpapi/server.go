package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lovechat-ai/lovechat/internal/call"
	"github.com/lovechat-ai/lovechat/internal/config"
	"github.com/lovechat-ai/lovechat/internal/observability"
	"github.com/lovechat-ai/lovechat/internal/ratelimit"
	"github.com/lovechat-ai/lovechat/internal/settings"
	"github.com/lovechat-ai/lovechat/internal/store"
	"github.com/lovechat-ai/lovechat/internal/supabase"
)

// Server wires the REST surface and the call websocket together.
type Server struct {
	cfg      config.Config
	auth     supabase.Provider
	tavus    call.ConversationClient
	calls    *call.Manager
	store    store.Store
	limiter  ratelimit.Limiter
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func New(cfg config.Config, auth supabase.Provider, conversations call.ConversationClient, calls *call.Manager, st store.Store, limiter ratelimit.Limiter, metrics *observability.Metrics) *Server {
	return &Server{
		cfg:     cfg,
		auth:    auth,
		tavus:   conversations,
		calls:   calls,
		store:   st,
		limiter: limiter,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
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
				if front, err := url.Parse(cfg.FrontendOrigin); err == nil && strings.EqualFold(u.Host, front.Host) {
					return true
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimitMiddleware)

		r.Post("/api/auth/signup", s.handleSignUp)
		r.Post("/api/auth/signin", s.handleSignIn)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/api/tavus/conversation", s.handleProxyCreateConversation)
			r.Post("/api/tavus/conversation/{id}/end", s.handleProxyEndConversation)

			r.Get("/v1/personas", s.handleListPersonas)
			r.Get("/v1/settings", s.handleGetSettings)
			r.Put("/v1/settings", s.handlePutSettings)
			r.Get("/v1/calls/recent", s.handleRecentCalls)

			r.Post("/v1/call/session", s.handleCreateCall)
			r.Post("/v1/call/session/{id}/end", s.handleEndCall)
			r.Get("/v1/call/ws", s.handleCallWS)
		})
	})

	return r
}

// handleHealth keeps the response shape the web client polls.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":       "ready",
		"active_calls": s.calls.ActiveCount(),
	})
}

func (s *Server) settingsDefaults() settings.Defaults {
	return settings.Defaults{
		APIKey:         s.cfg.TavusAPIKey,
		MenPersonaID:   s.cfg.MalePersonaID,
		WomenPersonaID: s.cfg.FemalePersonaID,
		MenReplicaID:   s.cfg.MaleReplicaID,
		WomenReplicaID: s.cfg.FemaleReplicaID,
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
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
