package supabase

import (
	"context"
	"errors"
	"fmt"
)

// User is the authenticated identity the rest of the service consumes.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// Session is the token bundle handed back to the client on sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserExists         = errors.New("user already exists")
)

// AuthError wraps a provider rejection with the upstream status.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: status %d: %s", e.Status, e.Message)
}

// Provider is the identity collaborator. The app only consumes sign-up,
// sign-in and token verification.
type Provider interface {
	SignUp(ctx context.Context, email, password, username string) (User, error)
	SignIn(ctx context.Context, email, password string) (User, Session, error)
	VerifyToken(ctx context.Context, token string) (User, error)
}
