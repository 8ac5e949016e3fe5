package httpapi

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/lovechat-ai/lovechat/internal/supabase"
)

type contextKey string

const userContextKey contextKey = "user"

// userFrom returns the authenticated user placed by requireAuth.
func userFrom(ctx context.Context) (supabase.User, bool) {
	u, ok := ctx.Value(userContextKey).(supabase.User)
	return u, ok
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.cfg.FrontendOrigin
		if s.cfg.AllowAnyOrigin {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware enforces the fixed per-IP window on the API surface.
// Limiter backend failures fail open so a redis outage cannot take the API
// down with it.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		ok, err := s.limiter.Allow(r.Context(), clientIP(r))
		if err != nil {
			log.Printf("rate limiter error: %v", err)
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			if s.metrics != nil {
				s.metrics.RateLimitDenied.Inc()
			}
			respondError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests from this IP, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAuth verifies the bearer token and attaches the user to the request
// context. Websocket clients cannot set headers, so a token query parameter is
// accepted as well.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = strings.TrimSpace(r.URL.Query().Get("token"))
		}
		if token == "" {
			s.countAuthEvent("missing_token")
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		user, err := s.auth.VerifyToken(r.Context(), token)
		if err != nil {
			s.countAuthEvent("invalid_token")
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		s.countAuthEvent("verified")
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func clientIP(r *http.Request) string {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) countAuthEvent(event string) {
	if s.metrics != nil {
		s.metrics.AuthEvents.WithLabelValues(event).Inc()
	}
}
