package repositories

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/snapreel/backend/internal/models"
)

// pageCursor references the last record of a page in (timestamp, id) order.
type pageCursor struct {
	Timestamp time.Time `json:"t"`
	ID        string    `json:"id"`
}

func encodeCursor(v models.Video) string {
	raw, err := json.Marshal(pageCursor{Timestamp: v.Timestamp.UTC(), ID: v.ID})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(cursor string) (*pageCursor, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var c pageCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if c.ID == "" || c.Timestamp.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// after reports whether v sorts strictly after the cursor in newest-first order.
func (c *pageCursor) after(v models.Video) bool {
	if v.Timestamp.Before(c.Timestamp) {
		return true
	}
	return v.Timestamp.Equal(c.Timestamp) && v.ID < c.ID
}

// buildPage trims an overfetched result (limit+1 rows) to a page and sets the cursor.
func buildPage(videos []models.Video, pageSize int) models.VideoPage {
	page := models.VideoPage{Videos: videos}
	if len(videos) > pageSize {
		page.Videos = videos[:pageSize]
		page.NextCursor = encodeCursor(page.Videos[pageSize-1])
	}
	if page.Videos == nil {
		page.Videos = []models.Video{}
	}
	return page
}
