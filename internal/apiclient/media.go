package apiclient

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/snapreel/backend/internal/media"
)

// Upload streams body as a multipart upload. The server files it under the
// signed-in user's folder. An access token rejected mid-session is renewed;
// the upload is then replayed when body can seek back, otherwise the 401 is
// returned and a second Upload goes out with the new token.
func (c *Client) Upload(ctx context.Context, body io.Reader, filename string) (string, error) {
	if err := c.ensureFresh(ctx); err != nil {
		return "", err
	}

	seeker, seekable := body.(io.Seeker)
	var start int64
	if seekable {
		var err error
		if start, err = seeker.Seek(0, io.SeekCurrent); err != nil {
			seekable = false
		}
	}

	location, sent, err := c.upload(ctx, body, filename)
	if StatusOf(err) != http.StatusUnauthorized || c.refreshToken() == "" {
		return location, err
	}
	if rerr := c.renew(ctx, sent); rerr != nil {
		return "", rerr
	}
	if !seekable {
		return "", err
	}
	if _, serr := seeker.Seek(start, io.SeekStart); serr != nil {
		return "", err
	}
	location, _, err = c.upload(ctx, body, filename)
	return location, err
}

// upload sends one multipart request and returns the access token it used.
func (c *Client) upload(ctx context.Context, body io.Reader, filename string) (string, string, error) {
	token := c.accessToken()
	if token == "" {
		return "", "", ErrNotSignedIn
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeUpload(mw, body, filename)
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/media/upload", pr)
	if err != nil {
		_ = pr.Close()
		return "", token, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		_ = pr.CloseWithError(err)
		return "", token, fmt.Errorf("upload: %w", err)
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := decodeResponse(resp, &out); err != nil {
		_ = pr.CloseWithError(err)
		return "", token, err
	}
	return out.URL, token, nil
}

func writeUpload(mw *multipart.Writer, body io.Reader, filename string) error {
	if filename != "" {
		if err := mw.WriteField("filename", filename); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, body); err != nil {
		return err
	}
	return mw.Close()
}

type deriveParams struct {
	URL         string  `url:"url"`
	Kind        string  `url:"kind"`
	Width       int     `url:"width,omitempty"`
	Height      int     `url:"height,omitempty"`
	Time        float64 `url:"time,omitempty"`
	ScreenWidth int     `url:"screenWidth,omitempty"`
}

func (c *Client) derive(ctx context.Context, params deriveParams) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/v1/media/derive", params, nil, &out, false); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Poster derives a still frame URL for a stored video.
func (c *Client) Poster(ctx context.Context, reference string, opts media.PosterOptions) (string, error) {
	return c.derive(ctx, deriveParams{URL: reference, Kind: "poster", Width: opts.Width, Height: opts.Height, Time: opts.Time})
}

// Responsive derives a playback URL sized for screenWidth.
func (c *Client) Responsive(ctx context.Context, reference string, screenWidth int) (string, error) {
	return c.derive(ctx, deriveParams{URL: reference, Kind: "responsive", ScreenWidth: screenWidth})
}
