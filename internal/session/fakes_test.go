package session

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/snapreel/backend/internal/media"
	"github.com/snapreel/backend/internal/models"
)

type fakeIdentity struct {
	mu      sync.Mutex
	subs    []func(*models.Account)
	current *models.Account
	err     error
	created models.Account
}

func (f *fakeIdentity) notify(a *models.Account) {
	f.mu.Lock()
	f.current = a
	subs := append([]func(*models.Account){}, f.subs...)
	f.mu.Unlock()
	for _, fn := range subs {
		fn(a)
	}
}

func (f *fakeIdentity) SignIn(_ context.Context, email, _ string) (models.Account, error) {
	if f.err != nil {
		return models.Account{}, f.err
	}
	a := models.Account{UID: "u1", Email: email, DisplayName: "Maya"}
	f.notify(&a)
	return a, nil
}

func (f *fakeIdentity) SignUp(_ context.Context, email, _, name string) (models.Account, error) {
	if f.err != nil {
		return models.Account{}, f.err
	}
	a := models.Account{UID: "u1", Email: email, DisplayName: name}
	f.created = a
	f.notify(&a)
	return a, nil
}

func (f *fakeIdentity) SignInWithGoogle(_ context.Context, code string) (models.Account, error) {
	if f.err != nil || code == "" {
		return models.Account{}, errors.New("exchange failed")
	}
	a := models.Account{UID: "g1", DisplayName: "Google User"}
	f.notify(&a)
	return a, nil
}

func (f *fakeIdentity) SignOut(context.Context) error {
	f.notify(nil)
	return nil
}

func (f *fakeIdentity) Subscribe(fn func(*models.Account)) func() {
	f.mu.Lock()
	f.subs = append(f.subs, fn)
	current := f.current
	f.mu.Unlock()
	fn(current)
	return func() {}
}

type fakeMedia struct {
	url      string
	err      error
	filename string
	body     string
}

func (f *fakeMedia) Upload(_ context.Context, body io.Reader, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	data, _ := io.ReadAll(body)
	f.body, f.filename = string(data), filename
	return f.url, nil
}

func (f *fakeMedia) Poster(_ context.Context, reference string, _ media.PosterOptions) (string, error) {
	return "poster:" + reference, nil
}

func (f *fakeMedia) Responsive(_ context.Context, reference string, _ int) (string, error) {
	return "responsive:" + reference, nil
}

type fakeVideos struct {
	mu        sync.Mutex
	saved     []models.Video
	pages     []models.VideoPage
	listErr   error
	createErr error
	likeErr   error
	pageSize  int
	cursors   []string
	likes     map[string]models.LikeResult
}

func (f *fakeVideos) CreateVideo(_ context.Context, v models.Video) (models.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return models.Video{}, f.createErr
	}
	v.ID = "vid-" + string(rune('a'+len(f.saved)))
	f.saved = append(f.saved, v)
	return v, nil
}

func (f *fakeVideos) ListVideos(_ context.Context, pageSize int, cursor string) (models.VideoPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageSize = pageSize
	f.cursors = append(f.cursors, cursor)
	if f.listErr != nil {
		return models.VideoPage{}, f.listErr
	}
	if len(f.pages) == 0 {
		return models.VideoPage{Videos: []models.Video{}}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakeVideos) ListUserVideos(context.Context, string, int) ([]models.Video, error) {
	return nil, nil
}

func (f *fakeVideos) UpdateVideo(context.Context, string, models.VideoUpdate) error { return nil }

func (f *fakeVideos) DeleteVideo(context.Context, string) error { return nil }

func (f *fakeVideos) ToggleLike(_ context.Context, id string) (models.LikeResult, error) {
	if f.likeErr != nil {
		return models.LikeResult{}, f.likeErr
	}
	return f.likes[id], nil
}

func (f *fakeVideos) IncrementViews(context.Context, string) error { return nil }
