package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/snapreel/backend/internal/config"
)

// ErrForeignLocation indicates a location that this store did not produce.
var ErrForeignLocation = errors.New("location does not belong to this object store")

// ObjectStore writes media objects and returns their public locations.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, location string) error
	// Key maps a location returned by Put back to its object key.
	Key(location string) (string, error)
}

// New selects the driver named in cfg.
func New(ctx context.Context, cfg config.ObjectStoreConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case "minio":
		return NewMinioStorage(ctx, cfg)
	case "s3", "":
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown object store driver %q", cfg.Driver)
	}
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return key, nil
}

// locator maps keys to public URLs and back.
type locator struct {
	baseURL string
}

func (l locator) location(key string) string {
	if l.baseURL == "" {
		return key
	}
	return l.baseURL + "/" + key
}

// Key returns the object key behind location, or ErrForeignLocation when
// location lies outside this store.
func (l locator) Key(location string) (string, error) { return l.key(location) }

func (l locator) key(location string) (string, error) {
	if l.baseURL == "" {
		return cleanKey(location)
	}
	rest, ok := strings.CutPrefix(location, l.baseURL+"/")
	if !ok {
		return "", ErrForeignLocation
	}
	if unescaped, err := url.PathUnescape(rest); err == nil {
		rest = unescaped
	}
	return cleanKey(rest)
}
