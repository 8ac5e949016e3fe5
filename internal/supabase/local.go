package supabase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const localTokenTTL = 24 * time.Hour

// LocalProvider is an in-process identity store used when Supabase is not
// configured. Passwords are bcrypt-hashed and sessions are HS256 JWTs.
type LocalProvider struct {
	mu     sync.RWMutex
	users  map[string]*localUser
	secret []byte
	now    func() time.Time
}

type localUser struct {
	id       string
	email    string
	username string
	hash     []byte
}

func NewLocalProvider(secret string) *LocalProvider {
	if strings.TrimSpace(secret) == "" {
		secret = uuid.NewString()
	}
	return &LocalProvider{
		users:  make(map[string]*localUser),
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (p *LocalProvider) SignUp(_ context.Context, email, password, username string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.users[email]; exists {
		return User{}, ErrUserExists
	}
	u := &localUser{
		id:       uuid.NewString(),
		email:    email,
		username: strings.TrimSpace(username),
		hash:     hash,
	}
	p.users[email] = u
	return User{ID: u.id, Email: u.email, Username: u.username}, nil
}

func (p *LocalProvider) SignIn(_ context.Context, email, password string) (User, Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	p.mu.RLock()
	u, ok := p.users[email]
	p.mu.RUnlock()
	if !ok {
		return User{}, Session{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(u.hash, []byte(password)); err != nil {
		return User{}, Session{}, ErrInvalidCredentials
	}

	now := p.now().UTC()
	claims := supabaseClaims{
		Email:        u.email,
		UserMetadata: map[string]any{"username": u.username},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(localTokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return User{}, Session{}, err
	}

	return User{ID: u.id, Email: u.email, Username: u.username}, Session{
		AccessToken: token,
		ExpiresIn:   int64(localTokenTTL / time.Second),
	}, nil
}

func (p *LocalProvider) VerifyToken(_ context.Context, token string) (User, error) {
	return verifyHS256(strings.TrimSpace(token), string(p.secret))
}

// NewProvider picks the Supabase client when configured, else the local store.
func NewProvider(supabaseURL, serviceKey, jwtSecret string) Provider {
	if strings.TrimSpace(supabaseURL) != "" {
		return NewClient(supabaseURL, serviceKey, jwtSecret)
	}
	return NewLocalProvider(jwtSecret)
}
