package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/lovechat-ai/lovechat/internal/supabase"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	User    supabase.User    `json:"user"`
	Session supabase.Session `json:"session"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}
	if len(req.Password) < 6 {
		respondError(w, http.StatusBadRequest, "invalid_request", "password must be at least 6 characters")
		return
	}

	user, err := s.auth.SignUp(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		s.countAuthEvent("signup_failed")
		if errors.Is(err, supabase.ErrUserExists) {
			respondError(w, http.StatusConflict, "user_exists", "a user with this email already exists")
			return
		}
		var authErr *supabase.AuthError
		if errors.As(err, &authErr) && authErr.Status >= 400 && authErr.Status < 500 {
			respondError(w, authErr.Status, "signup_failed", authErr.Message)
			return
		}
		respondError(w, http.StatusBadGateway, "signup_failed", "sign up failed")
		return
	}

	s.countAuthEvent("signup")
	respondJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	user, session, err := s.auth.SignIn(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		s.countAuthEvent("signin_failed")
		if errors.Is(err, supabase.ErrInvalidCredentials) {
			respondError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
			return
		}
		respondError(w, http.StatusBadGateway, "signin_failed", "sign in failed")
		return
	}

	s.countAuthEvent("signin")
	respondJSON(w, http.StatusOK, signInResponse{User: user, Session: session})
}
