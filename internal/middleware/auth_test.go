package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubAuthenticator map[string]string

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return "", errors.New("bad token")
}

func TestRequireAuth(t *testing.T) {
	authn := stubAuthenticator{"good": "user-1"}
	var seen string
	handler := RequireAuth(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{name: "missing", status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic good", status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "valid", header: "bearer good", status: http.StatusOK, user: "user-1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d got %d", tc.status, rec.Code)
			}
			if seen != tc.user {
				t.Fatalf("expected user %q got %q", tc.user, seen)
			}
		})
	}
}
