package handlers

import (
	"net/http"
	"strings"

	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/media"
	"github.com/snapreel/backend/internal/middleware"
	"github.com/snapreel/backend/internal/models"
)

// VideoHandler provides endpoints for posting, listing and liking videos.
type VideoHandler struct {
	Videos   VideoStore
	Media    MediaService
	Identity IdentityService
	Likes    LikeObserver
}

type createVideoRequest struct {
	VideoURL     string  `json:"videoUrl"`
	PosterName   string  `json:"posterName"`
	UserID       string  `json:"userId"`
	ThumbnailURL string  `json:"thumbnailUrl"`
	Duration     float64 `json:"duration"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
}

// Create handles POST /api/v1/videos. Missing dimensions are probed from the
// media and a missing thumbnail is derived; both are best effort.
func (h VideoHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	caller := middleware.UserIDFromContext(ctx)

	var req createVideoRequest
	if err := decodeJSON(r, &req); err != nil {
		logger.Warn("invalid video payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.VideoURL = strings.TrimSpace(req.VideoURL)
	if req.VideoURL == "" {
		respondError(ctx, w, http.StatusBadRequest, "videoUrl is required")
		return
	}
	if req.UserID != "" && req.UserID != caller {
		respondError(ctx, w, http.StatusForbidden, "cannot post on behalf of another user")
		return
	}
	// Only the caller's own uploads are accepted; everything below probes
	// and later deletes this reference.
	if h.Media == nil || !h.Media.Owns(req.VideoURL, caller) {
		logger.Warn("video reference outside caller folder", "videoUrl", req.VideoURL)
		respondError(ctx, w, http.StatusForbidden, "videoUrl must reference one of your uploads")
		return
	}

	video := models.Video{
		VideoURL:     req.VideoURL,
		PosterName:   strings.TrimSpace(req.PosterName),
		UserID:       caller,
		ThumbnailURL: req.ThumbnailURL,
		Duration:     req.Duration,
	}

	if video.PosterName == "" && h.Identity != nil {
		if user, err := h.Identity.Get(ctx, caller); err == nil {
			video.PosterName = user.DisplayName
		}
	}

	if req.Width > 0 || req.Height > 0 {
		dims, err := media.NewDimensions(req.Width, req.Height)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		applyDimensions(&video, dims)
	} else if h.Media != nil {
		probed, err := h.Media.Probe(ctx, video.VideoURL)
		if err != nil {
			logger.Warn("video probe failed", "error", err, "videoUrl", video.VideoURL)
		} else {
			applyDimensions(&video, probed.Dimensions)
			if video.Duration == 0 {
				video.Duration = probed.Duration
			}
		}
	}

	if video.ThumbnailURL == "" && h.Media != nil {
		if thumb, err := h.Media.Thumbnail(video.VideoURL, media.PosterOptions{}); err == nil {
			video.ThumbnailURL = thumb
		}
	}

	created, err := h.Videos.Create(ctx, video)
	if err != nil {
		respondStoreError(ctx, w, err, "save video")
		return
	}

	logger.Info("video saved", "videoId", created.ID, "landscape", created.IsLandscape)
	respondJSON(ctx, w, http.StatusCreated, map[string]any{"id": created.ID, "video": created})
}

func applyDimensions(v *models.Video, d media.Dimensions) {
	v.Width = d.Width
	v.Height = d.Height
	v.AspectRatio = d.AspectRatio
	v.IsLandscape = d.IsLandscape
}

// List handles GET /api/v1/videos?pageSize=&cursor=.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	page, err := h.Videos.List(ctx, queryInt(q.Get("pageSize")), q.Get("cursor"))
	if err != nil {
		respondStoreError(ctx, w, err, "list videos")
		return
	}
	respondJSON(ctx, w, http.StatusOK, page)
}

// Get handles GET /api/v1/videos/{id}.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	video, err := h.Videos.Get(ctx, r.PathValue("id"))
	if err != nil {
		respondStoreError(ctx, w, err, "load video")
		return
	}
	respondJSON(ctx, w, http.StatusOK, video)
}

// Update handles PATCH /api/v1/videos/{id}. Only the owner may update.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if _, ok := h.owned(w, r, id); !ok {
		return
	}

	var update models.VideoUpdate
	if err := decodeJSON(r, &update); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Videos.Update(ctx, id, update); err != nil {
		respondStoreError(ctx, w, err, "update video")
		return
	}

	video, err := h.Videos.Get(ctx, id)
	if err != nil {
		respondStoreError(ctx, w, err, "load video")
		return
	}
	respondJSON(ctx, w, http.StatusOK, video)
}

// Delete handles DELETE /api/v1/videos/{id}. Stored media under the owner's
// folder is removed after the record; a storage failure is logged and does
// not fail the request.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	video, ok := h.owned(w, r, id)
	if !ok {
		return
	}

	if err := h.Videos.Delete(ctx, id); err != nil {
		respondStoreError(ctx, w, err, "delete video")
		return
	}
	if h.Media != nil && h.Media.Owns(video.VideoURL, video.UserID) {
		if err := h.Media.Delete(ctx, video.VideoURL); err != nil {
			logging.FromContext(ctx).Warn("stored media not removed", "error", err, "videoUrl", video.VideoURL)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Like handles POST /api/v1/videos/{id}/like, toggling the caller's like.
func (h VideoHandler) Like(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.Videos.ToggleLike(ctx, r.PathValue("id"), middleware.UserIDFromContext(ctx))
	if err != nil {
		respondStoreError(ctx, w, err, "toggle like")
		return
	}
	if h.Likes != nil {
		h.Likes.ObserveLike(result.Liked)
	}
	respondJSON(ctx, w, http.StatusOK, result)
}

// Views handles POST /api/v1/videos/{id}/views.
func (h VideoHandler) Views(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.Videos.IncrementViews(ctx, r.PathValue("id")); err != nil {
		respondStoreError(ctx, w, err, "count view")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ByUser handles GET /api/v1/users/{id}/videos?limit=.
func (h VideoHandler) ByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	videos, err := h.Videos.ListByUser(ctx, r.PathValue("id"), queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		respondStoreError(ctx, w, err, "list user videos")
		return
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]models.Video{"videos": videos})
}

func (h VideoHandler) owned(w http.ResponseWriter, r *http.Request, id string) (models.Video, bool) {
	ctx := r.Context()
	video, err := h.Videos.Get(ctx, id)
	if err != nil {
		respondStoreError(ctx, w, err, "load video")
		return models.Video{}, false
	}
	if video.UserID != middleware.UserIDFromContext(ctx) {
		respondError(ctx, w, http.StatusForbidden, "only the owner may modify this video")
		return models.Video{}, false
	}
	return video, true
}
