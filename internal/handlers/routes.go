package handlers

import (
	"net/http"

	"github.com/snapreel/backend/internal/metrics"
	"github.com/snapreel/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Identity      IdentityService
	Sessions      SessionManager
	Media         MediaService
	Videos        VideoStore
	Metrics       *metrics.Metrics
	AuthLimiter   middleware.RateLimiter
	MaxUploadSize int64
	HealthChecks  []HealthCheck
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Checks: deps.HealthChecks}
	auth := AuthHandler{Identity: deps.Identity, Sessions: deps.Sessions}
	mediaHandler := MediaHandler{Media: deps.Media, MaxUploadSize: deps.MaxUploadSize}
	videos := VideoHandler{Videos: deps.Videos, Media: deps.Media, Identity: deps.Identity}
	if deps.Metrics != nil {
		videos.Likes = deps.Metrics
	}

	var authn middleware.Authenticator
	if deps.Sessions != nil {
		authn = deps.Sessions
	}
	requireAuth := middleware.RequireAuth(authn)
	limited := func(scope string, h http.HandlerFunc) http.Handler {
		return middleware.RateLimit(deps.AuthLimiter, scope)(h)
	}

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, middleware.Instrument(deps.Metrics, name, h))
	}

	route("/healthz", "health", http.HandlerFunc(health.Handle))
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}

	route("/api/v1/auth/signup", "auth.signup", limited("signup", auth.SignUp))
	route("/api/v1/auth/login", "auth.login", limited("login", auth.Login))
	route("/api/v1/auth/google", "auth.google", limited("google", auth.Google))
	route("/api/v1/auth/refresh", "auth.refresh", limited("refresh", auth.Refresh))
	route("/api/v1/auth/logout", "auth.logout", http.HandlerFunc(auth.Logout))
	route("/api/v1/auth/logout-all", "auth.logout_all", requireAuth(http.HandlerFunc(auth.LogoutAll)))
	route("/api/v1/auth/me", "auth.me", requireAuth(http.HandlerFunc(auth.Me)))

	route("/api/v1/media/upload", "media.upload", requireAuth(http.HandlerFunc(mediaHandler.Upload)))
	route("/api/v1/media/derive", "media.derive", http.HandlerFunc(mediaHandler.Derive))

	route("GET /api/v1/videos", "videos.list", http.HandlerFunc(videos.List))
	route("POST /api/v1/videos", "videos.create", requireAuth(http.HandlerFunc(videos.Create)))
	route("GET /api/v1/videos/{id}", "videos.get", http.HandlerFunc(videos.Get))
	route("PATCH /api/v1/videos/{id}", "videos.update", requireAuth(http.HandlerFunc(videos.Update)))
	route("DELETE /api/v1/videos/{id}", "videos.delete", requireAuth(http.HandlerFunc(videos.Delete)))
	route("POST /api/v1/videos/{id}/like", "videos.like", requireAuth(http.HandlerFunc(videos.Like)))
	route("POST /api/v1/videos/{id}/views", "videos.views", http.HandlerFunc(videos.Views))
	route("GET /api/v1/users/{id}/videos", "users.videos", http.HandlerFunc(videos.ByUser))
}
