package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/snapreel/backend/internal/repositories"
)

type stubGoogle struct {
	ident GoogleIdentity
	err   error
}

func (s stubGoogle) Exchange(context.Context, string, string) (GoogleIdentity, error) {
	return s.ident, s.err
}

func TestSignUpStoresHashedPasswordAndName(t *testing.T) {
	users := repositories.NewMemoryUserRepository()
	svc := NewService(users, nil)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.NowFunc = func() time.Time { return fixed }

	user, err := svc.SignUp(context.Background(), "  Maya@Example.com ", "supersafe", "Maya")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.Email != "maya@example.com" || user.DisplayName != "Maya" || !user.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected user %+v", user)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("supersafe")) != nil {
		t.Fatal("stored password is not a bcrypt hash of the input")
	}

	if _, err := svc.SignUp(context.Background(), "maya@example.com", "anothersafe", ""); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists got %v", err)
	}
}

func TestSignUpValidation(t *testing.T) {
	svc := NewService(repositories.NewMemoryUserRepository(), nil)

	if _, err := svc.SignUp(context.Background(), "not-an-email", "supersafe", ""); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail got %v", err)
	}
	if _, err := svc.SignUp(context.Background(), "a@example.com", "short", ""); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword got %v", err)
	}
	if _, err := svc.SignUp(context.Background(), "six@example.com", "sixsix", ""); err != nil {
		t.Fatalf("six character password rejected: %v", err)
	}

	user, err := svc.SignUp(context.Background(), "theo@example.com", "supersafe", "")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if user.DisplayName != "theo" {
		t.Fatalf("expected display name from email, got %q", user.DisplayName)
	}
}

func TestSignIn(t *testing.T) {
	svc := NewService(repositories.NewMemoryUserRepository(), nil)
	created, err := svc.SignUp(context.Background(), "maya@example.com", "supersafe", "Maya")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	user, err := svc.SignIn(context.Background(), "MAYA@example.com", "supersafe")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("expected %s got %s", created.ID, user.ID)
	}

	if _, err := svc.SignIn(context.Background(), "maya@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials got %v", err)
	}
	if _, err := svc.SignIn(context.Background(), "nobody@example.com", "supersafe"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown email got %v", err)
	}
}

func TestSignInWithGoogleLinksExistingEmail(t *testing.T) {
	users := repositories.NewMemoryUserRepository()
	svc := NewService(users, stubGoogle{ident: GoogleIdentity{Subject: "g-1", Email: "maya@example.com", EmailVerified: true, Name: "Maya G"}})

	created, err := svc.SignUp(context.Background(), "maya@example.com", "supersafe", "Maya")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}

	user, err := svc.SignInWithGoogle(context.Background(), "code", "")
	if err != nil {
		t.Fatalf("google sign in: %v", err)
	}
	if user.ID != created.ID || user.GoogleSub != "g-1" {
		t.Fatalf("expected existing account to be linked, got %+v", user)
	}

	again, err := svc.SignInWithGoogle(context.Background(), "code", "")
	if err != nil {
		t.Fatalf("second google sign in: %v", err)
	}
	if again.ID != created.ID {
		t.Fatalf("expected linked account on repeat sign in, got %s", again.ID)
	}
}

func TestSignInWithGoogleCreatesAccount(t *testing.T) {
	svc := NewService(repositories.NewMemoryUserRepository(), stubGoogle{ident: GoogleIdentity{Subject: "g-2", Email: "new@example.com", EmailVerified: true, Name: "Newcomer"}})

	user, err := svc.SignInWithGoogle(context.Background(), "code", "")
	if err != nil {
		t.Fatalf("google sign in: %v", err)
	}
	if user.DisplayName != "Newcomer" || user.Password != "" || user.GoogleSub != "g-2" {
		t.Fatalf("unexpected google account %+v", user)
	}

	if _, err := svc.SignIn(context.Background(), "new@example.com", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected password sign in to fail for google-only account, got %v", err)
	}
}

func TestSignInWithGoogleErrors(t *testing.T) {
	disabled := NewService(repositories.NewMemoryUserRepository(), nil)
	if _, err := disabled.SignInWithGoogle(context.Background(), "code", ""); !errors.Is(err, ErrGoogleUnavailable) {
		t.Fatalf("expected ErrGoogleUnavailable got %v", err)
	}

	var provider *GoogleProvider
	if _, err := provider.Exchange(context.Background(), "code", ""); !errors.Is(err, ErrGoogleUnavailable) {
		t.Fatalf("expected nil provider to be unavailable, got %v", err)
	}

	failing := NewService(repositories.NewMemoryUserRepository(), stubGoogle{err: errors.New("bad code")})
	if _, err := failing.SignInWithGoogle(context.Background(), "code", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials got %v", err)
	}
}
