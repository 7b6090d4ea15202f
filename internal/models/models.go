package models

import "time"

// User is the identity service's stored account row.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Password    string
	GoogleSub   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Account returns the public view of the user.
func (u User) Account() Account {
	return Account{UID: u.ID, DisplayName: u.DisplayName, Email: u.Email}
}

// Account is the read-only account value handed to clients.
type Account struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
}

// Video is one posted video's metadata record.
type Video struct {
	ID           string    `json:"id" bson:"_id"`
	VideoURL     string    `json:"videoUrl" bson:"videoUrl"`
	PosterName   string    `json:"posterName" bson:"posterName"`
	UserID       string    `json:"userId" bson:"userId"`
	Timestamp    time.Time `json:"timestamp" bson:"timestamp"`
	Likes        int       `json:"likes" bson:"likes"`
	LikedBy      []string  `json:"likedBy" bson:"likedBy"`
	Views        int       `json:"views" bson:"views"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty" bson:"thumbnailUrl,omitempty"`
	Duration     float64   `json:"duration,omitempty" bson:"duration,omitempty"`
	Width        int       `json:"width,omitempty" bson:"width,omitempty"`
	Height       int       `json:"height,omitempty" bson:"height,omitempty"`
	AspectRatio  float64   `json:"aspectRatio,omitempty" bson:"aspectRatio,omitempty"`
	IsLandscape  bool      `json:"isLandscape" bson:"isLandscape"`
}

// Normalize applies defaults to records with missing fields.
func (v *Video) Normalize() {
	if v.Likes < 0 {
		v.Likes = 0
	}
	if v.Views < 0 {
		v.Views = 0
	}
	if v.LikedBy == nil {
		v.LikedBy = []string{}
	}
}

// LikedByUser reports whether userID is a member of LikedBy.
func (v Video) LikedByUser(userID string) bool {
	for _, id := range v.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// VideoPage is one newest-first page of video records.
type VideoPage struct {
	Videos     []Video `json:"videos"`
	NextCursor string  `json:"nextCursor,omitempty"`
}

// VideoUpdate carries the mutable subset of a video record. Nil fields are left untouched.
type VideoUpdate struct {
	PosterName   *string  `json:"posterName,omitempty"`
	ThumbnailURL *string  `json:"thumbnailUrl,omitempty"`
	Duration     *float64 `json:"duration,omitempty"`
}

// LikeResult reports the record state after a like toggle.
type LikeResult struct {
	Likes int  `json:"likes"`
	Liked bool `json:"liked"`
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
