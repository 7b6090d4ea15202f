package media

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

const (
	defaultThumbSize = 300
	defaultPosterAt  = 1
)

// Transformer builds delivery URLs that ask the media CDN for a derived
// rendition of a stored upload. All methods are pure string transforms.
type Transformer struct {
	base   string
	folder string
}

// NewTransformer returns a Transformer rooted at the delivery base URL.
// folder is the top-level upload folder that public ids start with.
func NewTransformer(deliveryBase, folder string) Transformer {
	return Transformer{
		base:   strings.TrimSuffix(strings.TrimSpace(deliveryBase), "/"),
		folder: strings.Trim(folder, "/"),
	}
}

// ThumbnailOptions sizes a still frame. Zero fields take defaults.
type ThumbnailOptions struct {
	Width   int
	Height  int
	Crop    string
	Quality string
}

// PosterOptions sizes a still frame taken Time seconds into the video.
type PosterOptions struct {
	Width  int
	Height int
	Time   float64
}

// ThumbnailURL is the default still image for publicID.
func (t Transformer) ThumbnailURL(publicID string, opts ThumbnailOptions) string {
	return t.url(thumbnailTransformation(opts), publicID)
}

func thumbnailTransformation(opts ThumbnailOptions) string {
	w := orDefault(opts.Width, defaultThumbSize)
	h := orDefault(opts.Height, defaultThumbSize)
	crop := opts.Crop
	if crop == "" {
		crop = "fill"
	}
	quality := opts.Quality
	if quality == "" {
		quality = "auto"
	}
	return fmt.Sprintf("w_%d,h_%d,c_%s,q_%s,f_jpg", w, h, crop, quality)
}

// PosterURL is a thumbnail taken at a start offset (one second by default).
func (t Transformer) PosterURL(publicID string, opts PosterOptions) string {
	at := opts.Time
	if at <= 0 {
		at = defaultPosterAt
	}
	tr := thumbnailTransformation(ThumbnailOptions{Width: opts.Width, Height: opts.Height})
	return t.url(fmt.Sprintf("%s,so_%s", tr, formatSeconds(at)), publicID)
}

// ResponsiveURL picks a rendition width for the viewer's screen.
func (t Transformer) ResponsiveURL(publicID string, screenWidth int) string {
	return t.url(fmt.Sprintf("w_%d,c_scale,q_auto,f_mp4", ResponsiveWidth(screenWidth)), publicID)
}

// ResponsiveWidth maps a screen width to 480, 720 (>=768) or 1280 (>=1024).
func ResponsiveWidth(screenWidth int) int {
	switch {
	case screenWidth >= 1024:
		return 1280
	case screenWidth >= 768:
		return 720
	default:
		return 480
	}
}

// OptimizedOptions requests a re-encoded rendition.
type OptimizedOptions struct {
	Width   int
	Height  int
	Quality string
	Format  string
}

// OptimizedURL scales only when a dimension is given.
func (t Transformer) OptimizedURL(publicID string, opts OptimizedOptions) string {
	var parts []string
	if opts.Width > 0 {
		parts = append(parts, fmt.Sprintf("w_%d", opts.Width))
	}
	if opts.Height > 0 {
		parts = append(parts, fmt.Sprintf("h_%d", opts.Height))
	}
	if len(parts) > 0 {
		parts = append(parts, "c_scale")
	}
	quality, format := opts.Quality, opts.Format
	if quality == "" {
		quality = "auto"
	}
	if format == "" {
		format = "mp4"
	}
	parts = append(parts, "q_"+quality, "f_"+format)
	return t.url(strings.Join(parts, ","), publicID)
}

func (t Transformer) url(transformation, publicID string) string {
	return fmt.Sprintf("%s/video/upload/%s/%s", t.base, transformation, publicID)
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// PublicID extracts the asset identifier from a stored media reference:
// the path after "/upload/" (skipping a version segment) for delivery URLs,
// otherwise the object path starting at the upload folder. The file
// extension is dropped.
func (t Transformer) PublicID(reference string) (string, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", fmt.Errorf("empty media reference")
	}

	p := reference
	if u, err := url.Parse(reference); err == nil && u.Scheme != "" {
		p = u.Path
	}
	if _, rest, ok := strings.Cut(p, "/upload/"); ok {
		p = rest
		if first, tail, ok := strings.Cut(p, "/"); ok && versionSegment.MatchString(first) {
			p = tail
		}
	} else if t.folder != "" {
		if i := strings.Index(p, "/"+t.folder+"/"); i >= 0 {
			p = p[i:]
		}
	}
	p = strings.Trim(p, "/")
	p = strings.TrimSuffix(p, path.Ext(p))
	if p == "" {
		return "", fmt.Errorf("no public id in %q", reference)
	}
	return p, nil
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func formatSeconds(s float64) string {
	out := fmt.Sprintf("%.2f", s)
	out = strings.TrimRight(strings.TrimRight(out, "0"), ".")
	return out
}
