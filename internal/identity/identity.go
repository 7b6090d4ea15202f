package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/models"
	"github.com/snapreel/backend/internal/repositories"
)

const minPasswordLength = 6

var (
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidEmail indicates an address that does not parse.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrWeakPassword indicates a password below the minimum length.
	ErrWeakPassword = errors.New("password must be at least 6 characters")
	// ErrAccountExists indicates the email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrGoogleUnavailable indicates Google sign-in is not configured.
	ErrGoogleUnavailable = errors.New("google sign-in is not configured")
)

// UserStore captures the persistence operations the identity service needs.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByGoogleSubject(ctx context.Context, subject string) (models.User, error)
	Update(ctx context.Context, user models.User) error
}

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// GoogleExchanger turns an OAuth authorization code into a verified identity.
type GoogleExchanger interface {
	Exchange(ctx context.Context, code, redirectURI string) (GoogleIdentity, error)
}

// Service owns user accounts: password sign-in, sign-up and Google sign-in.
type Service struct {
	users  UserStore
	google GoogleExchanger

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time
}

// NewService constructs a Service. google may be nil when Google sign-in is disabled.
func NewService(users UserStore, google GoogleExchanger) *Service {
	return &Service{users: users, google: google}
}

// SignUp registers a new account. The display name defaults to the email's local part.
func (s *Service) SignUp(ctx context.Context, email, password, name string) (models.User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return models.User{}, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return models.User{}, ErrWeakPassword
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return models.User{}, ErrAccountExists
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, fmt.Errorf("look up account: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := models.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName(name, email),
		Password:    string(hashed),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.User{}, ErrAccountExists
		}
		return models.User{}, fmt.Errorf("create account: %w", err)
	}

	logging.FromContext(ctx).Info("account created", "userId", user.ID)
	return user, nil
}

// SignIn checks an email and password pair.
func (s *Service) SignIn(ctx context.Context, email, password string) (models.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.User{}, ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("look up account: %w", err)
	}
	if user.Password == "" {
		// Google-only account.
		return models.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	return user, nil
}

// SignInWithGoogle exchanges an authorization code and resolves the account:
// an existing Google link wins, then an account with the same verified email
// is linked, otherwise a new account is created.
func (s *Service) SignInWithGoogle(ctx context.Context, code, redirectURI string) (models.User, error) {
	if s.google == nil {
		return models.User{}, ErrGoogleUnavailable
	}
	if strings.TrimSpace(code) == "" {
		return models.User{}, ErrInvalidCredentials
	}

	ident, err := s.google.Exchange(ctx, code, redirectURI)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	user, err := s.users.FindByGoogleSubject(ctx, ident.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, fmt.Errorf("look up google account: %w", err)
	}

	email := normalizeEmail(ident.Email)
	if ident.EmailVerified && email != "" {
		existing, err := s.users.FindByEmail(ctx, email)
		switch {
		case err == nil:
			existing.GoogleSub = ident.Subject
			existing.UpdatedAt = s.now()
			if err := s.users.Update(ctx, existing); err != nil {
				return models.User{}, fmt.Errorf("link google account: %w", err)
			}
			logging.FromContext(ctx).Info("google account linked", "userId", existing.ID)
			return existing, nil
		case !errors.Is(err, repositories.ErrNotFound):
			return models.User{}, fmt.Errorf("look up account: %w", err)
		}
	}

	now := s.now()
	user = models.User{
		ID:          uuid.NewString(),
		Email:       email,
		DisplayName: displayName(ident.Name, email),
		GoogleSub:   ident.Subject,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.User{}, ErrAccountExists
		}
		return models.User{}, fmt.Errorf("create google account: %w", err)
	}
	logging.FromContext(ctx).Info("account created", "userId", user.ID, "provider", "google")
	return user, nil
}

// Get returns the account with id.
func (s *Service) Get(ctx context.Context, id string) (models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc().UTC()
	}
	return time.Now().UTC()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func displayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(email, "@")
	return local
}
