package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/snapreel/backend/internal/models"
)

type listParams struct {
	PageSize int    `url:"pageSize,omitempty"`
	Cursor   string `url:"cursor,omitempty"`
}

type userVideosParams struct {
	Limit int `url:"limit,omitempty"`
}

func videoPath(id string, suffix string) string {
	return "/api/v1/videos/" + url.PathEscape(id) + suffix
}

// CreateVideo saves a video record and returns it as stored.
func (c *Client) CreateVideo(ctx context.Context, video models.Video) (models.Video, error) {
	body := map[string]any{
		"videoUrl":     video.VideoURL,
		"posterName":   video.PosterName,
		"userId":       video.UserID,
		"thumbnailUrl": video.ThumbnailURL,
		"duration":     video.Duration,
		"width":        video.Width,
		"height":       video.Height,
	}
	var out struct {
		ID    string       `json:"id"`
		Video models.Video `json:"video"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/v1/videos", nil, body, &out, true); err != nil {
		return models.Video{}, err
	}
	return out.Video, nil
}

// ListVideos fetches one newest-first page.
func (c *Client) ListVideos(ctx context.Context, pageSize int, cursor string) (models.VideoPage, error) {
	var page models.VideoPage
	err := c.call(ctx, http.MethodGet, "/api/v1/videos", listParams{PageSize: pageSize, Cursor: cursor}, nil, &page, false)
	return page, err
}

// GetVideo reads one record.
func (c *Client) GetVideo(ctx context.Context, id string) (models.Video, error) {
	var video models.Video
	err := c.call(ctx, http.MethodGet, videoPath(id, ""), nil, nil, &video, false)
	return video, err
}

// ListUserVideos returns a user's videos newest-first.
func (c *Client) ListUserVideos(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	var out struct {
		Videos []models.Video `json:"videos"`
	}
	err := c.call(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(userID)+"/videos", userVideosParams{Limit: limit}, nil, &out, false)
	return out.Videos, err
}

// UpdateVideo applies a partial update to a video the caller owns.
func (c *Client) UpdateVideo(ctx context.Context, id string, update models.VideoUpdate) error {
	return c.call(ctx, http.MethodPatch, videoPath(id, ""), nil, update, nil, true)
}

// DeleteVideo removes a video the caller owns.
func (c *Client) DeleteVideo(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, videoPath(id, ""), nil, nil, nil, true)
}

// ToggleLike flips the signed-in user's like on a video.
func (c *Client) ToggleLike(ctx context.Context, id string) (models.LikeResult, error) {
	var result models.LikeResult
	err := c.call(ctx, http.MethodPost, videoPath(id, "/like"), nil, nil, &result, true)
	return result, err
}

// IncrementViews counts one view.
func (c *Client) IncrementViews(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodPost, videoPath(id, "/views"), nil, nil, nil, false)
}
