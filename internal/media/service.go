package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/storage"
)

// ErrMissingUser indicates an upload without an owning user.
var ErrMissingUser = errors.New("upload requires a user id")

// UploadObserver is told how many bytes each upload wrote.
type UploadObserver interface {
	ObserveUpload(n int64)
}

// Service is the media transform service: it stores raw uploads and derives
// delivery URLs for renditions of them.
type Service struct {
	store       storage.ObjectStore
	transformer Transformer
	prober      Prober
	folder      string
	observer    UploadObserver

	// NowFunc names uploads that arrive without a filename.
	NowFunc func() time.Time
}

// NewService wires a Service. prober and observer may be nil.
func NewService(store storage.ObjectStore, transformer Transformer, prober Prober, folder string, observer UploadObserver) *Service {
	folder = strings.Trim(folder, "/")
	if folder == "" {
		folder = "videos"
	}
	return &Service{store: store, transformer: transformer, prober: prober, folder: folder, observer: observer}
}

// UploadRequest describes one raw media upload.
type UploadRequest struct {
	UserID   string
	Filename string
	Body     io.Reader
	Size     int64
}

// Upload stores the body under <folder>/<userID>/<filename> and returns its location.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (string, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return "", ErrMissingUser
	}
	if req.Body == nil {
		return "", errors.New("upload body is required")
	}

	ctx, span := logging.StartSpan(ctx, "media.upload")
	key := path.Join(s.userFolder(req.UserID), s.filename(req.Filename))

	counted := &countingReader{r: req.Body}
	location, err := s.store.Put(ctx, key, counted, req.Size, contentType(key))
	span.End(err)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if s.observer != nil {
		s.observer.ObserveUpload(counted.n)
	}
	return location, nil
}

func (s *Service) userFolder(userID string) string {
	return path.Join(s.folder, path.Base(strings.TrimSpace(userID)))
}

// Owns reports whether reference is an object this service stored for userID.
func (s *Service) Owns(reference, userID string) bool {
	if strings.TrimSpace(userID) == "" {
		return false
	}
	key, err := s.store.Key(strings.TrimSpace(reference))
	if err != nil {
		return false
	}
	return strings.HasPrefix(key, s.userFolder(userID)+"/")
}

func (s *Service) filename(name string) string {
	name = path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "" || name == "." || name == "/" || name == ".." {
		now := time.Now()
		if s.NowFunc != nil {
			now = s.NowFunc()
		}
		return fmt.Sprintf("video_%d.mp4", now.UnixMilli())
	}
	return name
}

func contentType(key string) string {
	if t := mime.TypeByExtension(path.Ext(key)); t != "" {
		return t
	}
	return "video/mp4"
}

// Delete removes the stored object behind reference.
func (s *Service) Delete(ctx context.Context, reference string) error {
	return s.store.Delete(ctx, reference)
}

// Thumbnail derives a poster frame URL for a stored reference.
func (s *Service) Thumbnail(reference string, opts PosterOptions) (string, error) {
	id, err := s.transformer.PublicID(reference)
	if err != nil {
		return "", err
	}
	return s.transformer.PosterURL(id, opts), nil
}

// Responsive derives a playback URL sized for screenWidth.
func (s *Service) Responsive(reference string, screenWidth int) (string, error) {
	id, err := s.transformer.PublicID(reference)
	if err != nil {
		return "", err
	}
	return s.transformer.ResponsiveURL(id, screenWidth), nil
}

// Still derives the default square thumbnail.
func (s *Service) Still(reference string, opts ThumbnailOptions) (string, error) {
	id, err := s.transformer.PublicID(reference)
	if err != nil {
		return "", err
	}
	return s.transformer.ThumbnailURL(id, opts), nil
}

// Probe inspects a stored reference. Callers pass only references that
// passed Owns.
func (s *Service) Probe(ctx context.Context, reference string) (ProbeResult, error) {
	if s.prober == nil {
		return ProbeResult{}, ErrProberUnavailable
	}
	return s.prober.Probe(ctx, reference)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
