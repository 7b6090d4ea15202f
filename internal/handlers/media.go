package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/media"
	"github.com/snapreel/backend/internal/middleware"
)

const multipartMemory = 32 << 20

// MediaHandler exposes the media transform service.
type MediaHandler struct {
	Media         MediaService
	MaxUploadSize int64
}

// Upload handles POST /api/v1/media/upload. The body is multipart with a
// "file" part and an optional "filename" field.
func (h MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	if h.Media == nil {
		respondError(ctx, w, http.StatusInternalServerError, "media service unavailable")
		return
	}

	if h.MaxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadSize)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(ctx, w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		logger.Warn("invalid multipart upload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "expected multipart form with a file part")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	filename := strings.TrimSpace(r.FormValue("filename"))
	if filename == "" {
		filename = header.Filename
	}

	location, err := h.Media.Upload(ctx, media.UploadRequest{
		UserID:   middleware.UserIDFromContext(ctx),
		Filename: filename,
		Body:     file,
		Size:     header.Size,
	})
	if err != nil {
		if errors.Is(err, media.ErrMissingUser) {
			respondError(ctx, w, http.StatusUnauthorized, "authentication required")
			return
		}
		logger.Error("media upload failed", "error", err)
		respondError(ctx, w, http.StatusBadGateway, "upload failed")
		return
	}

	logger.Info("media uploaded", "location", location, "bytes", header.Size)
	respondJSON(ctx, w, http.StatusCreated, map[string]string{"url": location})
}

// Derive handles GET /api/v1/media/derive. kind selects poster (default),
// thumbnail or responsive.
func (h MediaHandler) Derive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Media == nil {
		respondError(ctx, w, http.StatusInternalServerError, "media service unavailable")
		return
	}

	q := r.URL.Query()
	reference := strings.TrimSpace(q.Get("url"))
	if reference == "" {
		respondError(ctx, w, http.StatusBadRequest, "url is required")
		return
	}

	width, height := queryInt(q.Get("width")), queryInt(q.Get("height"))
	var (
		derived string
		err     error
	)
	switch kind := q.Get("kind"); kind {
	case "", "poster":
		at, _ := strconv.ParseFloat(q.Get("time"), 64)
		derived, err = h.Media.Thumbnail(reference, media.PosterOptions{Width: width, Height: height, Time: at})
	case "thumbnail":
		derived, err = h.Media.Still(reference, media.ThumbnailOptions{Width: width, Height: height})
	case "responsive":
		derived, err = h.Media.Responsive(reference, queryInt(q.Get("screenWidth")))
	default:
		respondError(ctx, w, http.StatusBadRequest, "unknown kind "+strconv.Quote(kind))
		return
	}
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"url": derived})
}

func queryInt(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
