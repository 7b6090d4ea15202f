package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/repositories"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondStoreError maps repository sentinels onto HTTP statuses.
func respondStoreError(ctx context.Context, w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "video not found")
	case errors.Is(err, repositories.ErrInvalidCursor):
		respondError(ctx, w, http.StatusBadRequest, "invalid cursor")
	case errors.Is(err, repositories.ErrConflict):
		respondError(ctx, w, http.StatusConflict, "video already exists")
	default:
		logging.FromContext(ctx).Error("video store failure", "action", action, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to "+action)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
