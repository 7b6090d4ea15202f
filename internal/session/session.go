// Package session is the client application context: the one place screens
// reach identity, media and video records, and the owner of the current
// account.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/media"
	"github.com/snapreel/backend/internal/models"
)

// DefaultPageSize is used when a query does not set one.
const DefaultPageSize = 10

var (
	// ErrNotSignedIn is returned by operations that need a current account.
	ErrNotSignedIn = errors.New("no account is signed in")
	// ErrWrongUser is returned when an operation names a user other than the current account.
	ErrWrongUser = errors.New("user does not match the signed-in account")
)

// Identity is the identity service as seen by the client.
type Identity interface {
	SignIn(ctx context.Context, email, password string) (models.Account, error)
	SignUp(ctx context.Context, email, password, name string) (models.Account, error)
	SignInWithGoogle(ctx context.Context, code string) (models.Account, error)
	SignOut(ctx context.Context) error
	// Subscribe reports the current account immediately and on every change.
	Subscribe(fn func(*models.Account)) (unsubscribe func())
}

// Media is the media transform service as seen by the client.
type Media interface {
	Upload(ctx context.Context, body io.Reader, filename string) (string, error)
	Poster(ctx context.Context, reference string, opts media.PosterOptions) (string, error)
	Responsive(ctx context.Context, reference string, screenWidth int) (string, error)
}

// Videos is the video record store as seen by the client.
type Videos interface {
	CreateVideo(ctx context.Context, video models.Video) (models.Video, error)
	ListVideos(ctx context.Context, pageSize int, cursor string) (models.VideoPage, error)
	ListUserVideos(ctx context.Context, userID string, limit int) ([]models.Video, error)
	UpdateVideo(ctx context.Context, id string, update models.VideoUpdate) error
	DeleteVideo(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, id string) (models.LikeResult, error)
	IncrementViews(ctx context.Context, id string) error
}

// Dependencies wires a Context. Prober is optional and used when a saved
// video arrives without dimensions.
type Dependencies struct {
	Identity Identity
	Media    Media
	Videos   Videos
	Prober   media.Prober
}

// Context composes the collaborators into one capability surface.
type Context struct {
	identity Identity
	media    Media
	videos   Videos
	prober   media.Prober

	accounts    *AccountStore
	unsubscribe func()
}

// New builds a Context and subscribes its account store to identity changes.
func New(deps Dependencies) *Context {
	c := &Context{
		identity: deps.Identity,
		media:    deps.Media,
		videos:   deps.Videos,
		prober:   deps.Prober,
		accounts: newAccountStore(),
	}
	c.unsubscribe = deps.Identity.Subscribe(c.accounts.set)
	return c
}

// Close detaches from identity notifications.
func (c *Context) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
}

// Accounts exposes the read side of the current-account store.
func (c *Context) Accounts() *AccountStore { return c.accounts }

// Current is shorthand for Accounts().Current().
func (c *Context) Current() *models.Account { return c.accounts.Current() }

// Loading is shorthand for Accounts().Loading().
func (c *Context) Loading() bool { return c.accounts.Loading() }

// Subscribe is shorthand for Accounts().Subscribe(fn).
func (c *Context) Subscribe(fn func(*models.Account)) func() { return c.accounts.Subscribe(fn) }

// SignIn returns the account, or nil on any failure. Failures are logged.
func (c *Context) SignIn(ctx context.Context, email, password string) *models.Account {
	account, err := c.identity.SignIn(ctx, email, password)
	return c.signedIn(ctx, "sign in", account, err)
}

// SignUp returns the new account, or nil on any failure. A non-empty name
// becomes the display name.
func (c *Context) SignUp(ctx context.Context, email, password, name string) *models.Account {
	account, err := c.identity.SignUp(ctx, email, password, strings.TrimSpace(name))
	return c.signedIn(ctx, "sign up", account, err)
}

// SignInWithGoogle redeems an authorization code from the Google consent
// page; nil on failure.
func (c *Context) SignInWithGoogle(ctx context.Context, code string) *models.Account {
	account, err := c.identity.SignInWithGoogle(ctx, code)
	return c.signedIn(ctx, "google sign in", account, err)
}

func (c *Context) signedIn(ctx context.Context, action string, account models.Account, err error) *models.Account {
	if err != nil {
		logging.FromContext(ctx).Warn(action+" failed", "error", err)
		return nil
	}
	return &account
}

// SignOut ends the session. The account store is cleared by the identity
// notification, not here.
func (c *Context) SignOut(ctx context.Context) error {
	if err := c.identity.SignOut(ctx); err != nil {
		logging.FromContext(ctx).Warn("sign out failed", "error", err)
		return err
	}
	return nil
}

// UploadParams describes a raw video upload.
type UploadParams struct {
	Video    io.Reader
	UserID   string
	Filename string
}

// UploadVideo uploads into the current user's folder and returns the
// playable URL. Errors propagate.
func (c *Context) UploadVideo(ctx context.Context, params UploadParams) (string, error) {
	if _, err := c.actingUser(params.UserID); err != nil {
		return "", err
	}
	if params.Video == nil {
		return "", errors.New("upload: video body is required")
	}
	url, err := c.media.Upload(ctx, params.Video, params.Filename)
	if err != nil {
		return "", fmt.Errorf("upload video: %w", err)
	}
	return url, nil
}

// SaveParams describes a video record to persist. Width and Height are
// optional; without them the media at LocalPath (or VideoURL) is probed.
type SaveParams struct {
	VideoURL     string
	PosterName   string
	UserID       string
	ThumbnailURL string
	Duration     float64
	Width        int
	Height       int
	LocalPath    string
}

// SaveVideo persists a record and returns its id. Errors propagate.
func (c *Context) SaveVideo(ctx context.Context, params SaveParams) (string, error) {
	account, err := c.actingUser(params.UserID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(params.VideoURL) == "" {
		return "", errors.New("save video: video url is required")
	}

	video := models.Video{
		VideoURL:     params.VideoURL,
		PosterName:   params.PosterName,
		UserID:       account.UID,
		ThumbnailURL: params.ThumbnailURL,
		Duration:     params.Duration,
	}
	if video.PosterName == "" {
		video.PosterName = account.DisplayName
	}

	dims, ok := c.dimensions(ctx, params)
	if ok {
		video.Width = dims.Width
		video.Height = dims.Height
		video.AspectRatio = dims.AspectRatio
		video.IsLandscape = dims.IsLandscape
	}

	saved, err := c.videos.CreateVideo(ctx, video)
	if err != nil {
		return "", fmt.Errorf("save video: %w", err)
	}
	return saved.ID, nil
}

func (c *Context) dimensions(ctx context.Context, params SaveParams) (media.Dimensions, bool) {
	if params.Width > 0 && params.Height > 0 {
		dims, err := media.NewDimensions(params.Width, params.Height)
		return dims, err == nil
	}
	if c.prober == nil {
		return media.Dimensions{}, false
	}
	source := params.LocalPath
	if source == "" {
		source = params.VideoURL
	}
	result, err := c.prober.Probe(ctx, source)
	if err != nil {
		logging.FromContext(ctx).Warn("dimension probe failed", "error", err)
		return media.Dimensions{}, false
	}
	return result.Dimensions, true
}

// QueryParams pages through the feed. A zero PageSize means DefaultPageSize.
type QueryParams struct {
	PageSize int
	Cursor   string
}

// GetAllVideos returns one newest-first page and the cursor for the next.
func (c *Context) GetAllVideos(ctx context.Context, params QueryParams) (models.VideoPage, error) {
	if params.PageSize <= 0 {
		params.PageSize = DefaultPageSize
	}
	page, err := c.videos.ListVideos(ctx, params.PageSize, params.Cursor)
	if err != nil {
		return models.VideoPage{}, fmt.Errorf("get videos: %w", err)
	}
	for i := range page.Videos {
		page.Videos[i].Normalize()
	}
	return page, nil
}

// LikeVideo toggles userID's like on videoID. userID must be the current account.
func (c *Context) LikeVideo(ctx context.Context, videoID, userID string) (models.LikeResult, error) {
	if _, err := c.actingUser(userID); err != nil {
		return models.LikeResult{}, err
	}
	result, err := c.videos.ToggleLike(ctx, videoID)
	if err != nil {
		return models.LikeResult{}, fmt.Errorf("like video: %w", err)
	}
	return result, nil
}

// VideoThumbnail derives a poster frame URL.
func (c *Context) VideoThumbnail(ctx context.Context, videoURL string, opts media.PosterOptions) (string, error) {
	return c.media.Poster(ctx, videoURL, opts)
}

// ResponsiveVideo derives a playback URL for screenWidth.
func (c *Context) ResponsiveVideo(ctx context.Context, videoURL string, screenWidth int) (string, error) {
	return c.media.Responsive(ctx, videoURL, screenWidth)
}

// GetUserVideos lists one user's videos newest-first.
func (c *Context) GetUserVideos(ctx context.Context, userID string, limit int) ([]models.Video, error) {
	return c.videos.ListUserVideos(ctx, userID, limit)
}

// UpdateVideo applies a partial update to one of the current user's videos.
func (c *Context) UpdateVideo(ctx context.Context, id string, update models.VideoUpdate) error {
	if c.Current() == nil {
		return ErrNotSignedIn
	}
	return c.videos.UpdateVideo(ctx, id, update)
}

// DeleteVideo removes one of the current user's videos.
func (c *Context) DeleteVideo(ctx context.Context, id string) error {
	if c.Current() == nil {
		return ErrNotSignedIn
	}
	return c.videos.DeleteVideo(ctx, id)
}

// IncrementViews counts one view.
func (c *Context) IncrementViews(ctx context.Context, id string) error {
	return c.videos.IncrementViews(ctx, id)
}

// actingUser returns the current account, checking userID against it when set.
func (c *Context) actingUser(userID string) (*models.Account, error) {
	account := c.Current()
	if account == nil {
		return nil, ErrNotSignedIn
	}
	if userID != "" && userID != account.UID {
		return nil, ErrWrongUser
	}
	return account, nil
}
