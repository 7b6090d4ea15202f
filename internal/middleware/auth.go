package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/snapreel/backend/internal/logging"
)

type userCtxKey struct{}

// Authenticator resolves a bearer access token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// WithUserID stores the authenticated caller on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, userID)
}

// UserIDFromContext returns the authenticated caller, or "" for anonymous requests.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userCtxKey{}).(string)
	return userID
}

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" || authn == nil {
				unauthorized(w)
				return
			}

			userID, err := authn.Authenticate(r.Context(), token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("bearer token rejected", "error", err)
				unauthorized(w)
				return
			}

			logger := logging.FromContext(r.Context()).With("user_id", userID)
			ctx := logging.WithLogger(WithUserID(r.Context(), userID), logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="snapreel"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
}
