package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/snapreel/backend/internal/auth"
	"github.com/snapreel/backend/internal/identity"
	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/middleware"
	"github.com/snapreel/backend/internal/models"
)

// AuthHandler implements user authentication endpoints.
type AuthHandler struct {
	Identity IdentityService
	Sessions SessionManager
}

// Login handles POST /api/v1/auth/login requests.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if !h.ready(w, r) {
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid login payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		logger.Warn("login missing credentials", "email", req.Email)
		respondError(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.Identity.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		h.identityFailure(w, r, err, "login")
		return
	}

	h.issue(w, r, user, http.StatusOK)
}

// SignUp handles POST /api/v1/auth/signup requests.
func (h AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if !h.ready(w, r) {
		return
	}

	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid signup payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		logger.Warn("signup missing credentials", "email", req.Email)
		respondError(ctx, w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.Identity.SignUp(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		h.identityFailure(w, r, err, "signup")
		return
	}

	h.issue(w, r, user, http.StatusCreated)
}

// Google handles POST /api/v1/auth/google: an OAuth authorization code is
// exchanged for a verified Google identity and a session.
func (h AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if !h.ready(w, r) {
		return
	}

	var req googleRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid google payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		respondError(ctx, w, http.StatusBadRequest, "authorization code is required")
		return
	}

	user, err := h.Identity.SignInWithGoogle(ctx, req.Code, req.RedirectURI)
	if err != nil {
		h.identityFailure(w, r, err, "google")
		return
	}

	h.issue(w, r, user, http.StatusOK)
}

// Refresh exchanges a refresh token for a new session.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if !h.ready(w, r) {
		return
	}

	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid refresh payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if req.RefreshToken == "" {
		logger.Warn("missing refresh token")
		respondError(ctx, w, http.StatusBadRequest, "refresh token is required")
		return
	}

	tokens, userID, err := h.Sessions.Refresh(ctx, req.RefreshToken)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, auth.ErrRefreshTokenExpired) || errors.Is(err, auth.ErrSessionNotFound) {
			status = http.StatusUnauthorized
		}
		logger.Warn("refresh failed", "error", err, "status", status)
		respondError(ctx, w, status, "unable to refresh session")
		return
	}

	user, err := h.Identity.Get(ctx, userID)
	if err != nil {
		logger.Error("refresh account lookup failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusUnauthorized, "account no longer exists")
		return
	}

	respondJSON(ctx, w, http.StatusOK, authResponse{Account: user.Account(), Tokens: tokens})
}

// Logout handles POST /api/v1/auth/logout. Unknown tokens are ignored.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Sessions == nil {
		respondError(ctx, w, http.StatusInternalServerError, "session service unavailable")
		return
	}

	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.Sessions.Revoke(ctx, strings.TrimSpace(req.RefreshToken))
	w.WriteHeader(http.StatusNoContent)
}

// LogoutAll handles POST /api/v1/auth/logout-all for the authenticated caller.
func (h AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)
	if err := h.Sessions.RevokeAll(ctx, userID); err != nil {
		logging.FromContext(ctx).Error("revoke sessions failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to revoke sessions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/v1/auth/me.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	user, err := h.Identity.Get(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		respondError(ctx, w, http.StatusNotFound, "account not found")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string]models.Account{"account": user.Account()})
}

func (h AuthHandler) ready(w http.ResponseWriter, r *http.Request) bool {
	if h.Identity != nil && h.Sessions != nil {
		return true
	}
	logging.FromContext(r.Context()).Error("authentication dependencies unavailable", "hasIdentity", h.Identity != nil, "hasSessions", h.Sessions != nil)
	respondError(r.Context(), w, http.StatusInternalServerError, "authentication services unavailable")
	return false
}

func (h AuthHandler) issue(w http.ResponseWriter, r *http.Request, user models.User, status int) {
	ctx := r.Context()
	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logging.FromContext(ctx).Error("failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}
	respondJSON(ctx, w, status, authResponse{Account: user.Account(), Tokens: tokens})
}

func (h AuthHandler) identityFailure(w http.ResponseWriter, r *http.Request, err error, action string) {
	ctx := r.Context()
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrWeakPassword):
		respondError(ctx, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, identity.ErrAccountExists):
		respondError(ctx, w, http.StatusConflict, "account already exists")
	case errors.Is(err, identity.ErrGoogleUnavailable):
		respondError(ctx, w, http.StatusNotImplemented, "google sign-in is not configured")
	default:
		logging.FromContext(ctx).Error("identity failure", "action", action, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "authentication failed")
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type googleRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	Account models.Account       `json:"account"`
	Tokens  models.SessionTokens `json:"tokens"`
}
