package supabase

import (
	"context"
	"errors"
	"testing"
)

func TestLocalSignUpSignInVerify(t *testing.T) {
	p := NewLocalProvider("test-secret")
	ctx := context.Background()

	created, err := p.SignUp(ctx, "Sam@Example.com", "hunter22", "sam")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if created.ID == "" || created.Email != "sam@example.com" {
		t.Fatalf("unexpected user: %+v", created)
	}

	user, sess, err := p.SignIn(ctx, "sam@example.com", "hunter22")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("SignIn user ID = %q, want %q", user.ID, created.ID)
	}
	if sess.AccessToken == "" {
		t.Fatalf("session token should not be empty")
	}

	verified, err := p.VerifyToken(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if verified.ID != created.ID || verified.Username != "sam" {
		t.Fatalf("unexpected verified user: %+v", verified)
	}
}

func TestLocalSignInRejectsWrongPassword(t *testing.T) {
	p := NewLocalProvider("test-secret")
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "a@b.c", "correct", "a"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, _, err := p.SignIn(ctx, "a@b.c", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("SignIn() error = %v, want ErrInvalidCredentials", err)
	}
	if _, _, err := p.SignIn(ctx, "missing@b.c", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("SignIn() unknown user error = %v, want ErrInvalidCredentials", err)
	}
}

func TestLocalSignUpRejectsDuplicate(t *testing.T) {
	p := NewLocalProvider("test-secret")
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "a@b.c", "pw", "a"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := p.SignUp(ctx, "a@b.c", "pw2", "a2"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("SignUp() duplicate error = %v, want ErrUserExists", err)
	}
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	p := NewLocalProvider("test-secret")
	if _, err := p.VerifyToken(context.Background(), "not-a-jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("VerifyToken() error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewLocalProvider("secret-a")
	verifier := NewLocalProvider("secret-b")
	ctx := context.Background()

	if _, err := issuer.SignUp(ctx, "a@b.c", "pw", "a"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	_, sess, err := issuer.SignIn(ctx, "a@b.c", "pw")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if _, err := verifier.VerifyToken(ctx, sess.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("VerifyToken() cross-secret error = %v, want ErrInvalidToken", err)
	}
}

func TestNewProviderSelection(t *testing.T) {
	if _, ok := NewProvider("", "", "s").(*LocalProvider); !ok {
		t.Fatalf("NewProvider without URL should return *LocalProvider")
	}
	if _, ok := NewProvider("https://x.supabase.co", "key", "s").(*Client); !ok {
		t.Fatalf("NewProvider with URL should return *Client")
	}
}
