package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Client talks to the Supabase GoTrue auth API with the service role key.
type Client struct {
	baseURL    string
	serviceKey string
	// jwtSecret enables local token verification without a network round trip.
	jwtSecret string
	client    *http.Client
}

func NewClient(baseURL, serviceKey, jwtSecret string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		serviceKey: strings.TrimSpace(serviceKey),
		jwtSecret:  strings.TrimSpace(jwtSecret),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type gotrueUser struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u gotrueUser) toUser() User {
	out := User{ID: u.ID, Email: u.Email}
	if v, ok := u.UserMetadata["username"].(string); ok {
		out.Username = v
	}
	return out
}

func (c *Client) SignUp(ctx context.Context, email, password, username string) (User, error) {
	body := map[string]any{
		"email":         email,
		"password":      password,
		"user_metadata": map[string]string{"username": username},
		"email_confirm": false,
	}

	var created gotrueUser
	if err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", c.serviceKey, body, &created); err != nil {
		if authErr, ok := err.(*AuthError); ok && authErr.Status == http.StatusUnprocessableEntity {
			return User{}, ErrUserExists
		}
		return User{}, err
	}
	return created.toUser(), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (User, Session, error) {
	body := map[string]string{"email": email, "password": password}

	var res struct {
		AccessToken  string     `json:"access_token"`
		RefreshToken string     `json:"refresh_token"`
		ExpiresIn    int64      `json:"expires_in"`
		User         gotrueUser `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", c.serviceKey, body, &res); err != nil {
		if authErr, ok := err.(*AuthError); ok && authErr.Status == http.StatusBadRequest {
			return User{}, Session{}, ErrInvalidCredentials
		}
		return User{}, Session{}, err
	}

	return res.User.toUser(), Session{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    res.ExpiresIn,
	}, nil
}

// VerifyToken validates a session token. With a configured JWT secret the
// check is local; otherwise it asks GoTrue for the user behind the token.
func (c *Client) VerifyToken(ctx context.Context, token string) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, ErrInvalidToken
	}

	if c.jwtSecret != "" {
		return verifyHS256(token, c.jwtSecret)
	}

	var remote gotrueUser
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", token, nil, &remote); err != nil {
		if authErr, ok := err.(*AuthError); ok && (authErr.Status == http.StatusUnauthorized || authErr.Status == http.StatusForbidden) {
			return User{}, ErrInvalidToken
		}
		return User{}, err
	}
	if remote.ID == "" {
		return User{}, ErrInvalidToken
	}
	return remote.toUser(), nil
}

type supabaseClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	jwt.RegisteredClaims
}

func verifyHS256(token, secret string) (User, error) {
	parsed, err := jwt.ParseWithClaims(token, &supabaseClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return User{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*supabaseClaims)
	if !ok || claims.Subject == "" {
		return User{}, ErrInvalidToken
	}
	u := User{ID: claims.Subject, Email: claims.Email}
	if v, ok := claims.UserMetadata["username"].(string); ok {
		u.Username = v
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &AuthError{Status: res.StatusCode, Message: gotrueMessage(raw)}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func gotrueMessage(raw []byte) string {
	var body struct {
		Message  string `json:"message"`
		Msg      string `json:"msg"`
		ErrorDsc string `json:"error_description"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, m := range []string{body.Message, body.Msg, body.ErrorDsc} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
