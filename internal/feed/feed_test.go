package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snapreel/backend/internal/models"
	"github.com/snapreel/backend/internal/notify"
	"github.com/snapreel/backend/internal/session"
)

type fakeSource struct {
	mu        sync.Mutex
	viewer    *models.Account
	pages     map[string]models.VideoPage
	listErr   error
	likeErr   error
	like      models.LikeResult
	// block, when set, is closed by the test to release LikeVideo.
	block     chan struct{}
	// replies, when set, scripts the nth LikeVideo call.
	replies   []chan likeReply
	likeCalls int
	calls     []session.QueryParams
}

type likeReply struct {
	result models.LikeResult
	err    error
}

func (f *fakeSource) Current() *models.Account { return f.viewer }

func (f *fakeSource) GetAllVideos(_ context.Context, params session.QueryParams) (models.VideoPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	if f.listErr != nil {
		return models.VideoPage{}, f.listErr
	}
	return f.pages[params.Cursor], nil
}

func (f *fakeSource) LikeVideo(context.Context, string, string) (models.LikeResult, error) {
	f.mu.Lock()
	n := f.likeCalls
	f.likeCalls++
	f.mu.Unlock()
	if f.replies != nil {
		reply := <-f.replies[n]
		return reply.result, reply.err
	}
	if f.block != nil {
		<-f.block
	}
	return f.like, f.likeErr
}

func videos(ids ...string) []models.Video {
	out := make([]models.Video, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Video{ID: id})
	}
	return out
}

func TestActiveIndex(t *testing.T) {
	assert.Equal(t, 0, ActiveIndex(0, 800, 5))
	assert.Equal(t, 2, ActiveIndex(1600, 800, 5))
	assert.Equal(t, 2, ActiveIndex(1900, 800, 5), "rounds to nearest")
	assert.Equal(t, 3, ActiveIndex(2100, 800, 5))
	assert.Equal(t, 4, ActiveIndex(99999, 800, 5), "clamped to last")
	assert.Equal(t, 0, ActiveIndex(-300, 800, 5))
	assert.Equal(t, 0, ActiveIndex(500, 0, 5))
	assert.Equal(t, 0, ActiveIndex(500, 800, 0))
}

func TestPlaybackStates(t *testing.T) {
	for n := 1; n <= 6; n++ {
		for k := 0; k < n; k++ {
			states := PlaybackStates(n, ActiveIndex(float64(k)*640, 640, n), true)
			for i, s := range states {
				switch {
				case i == k:
					assert.Equal(t, Active, s)
				case i == k+1:
					assert.Equal(t, Preloading, s)
				default:
					assert.Equal(t, Inactive, s)
				}
			}
		}
	}

	for _, s := range PlaybackStates(4, 1, false) {
		assert.Equal(t, Inactive, s)
	}
}

func TestBlurKeepsActiveIndex(t *testing.T) {
	src := &fakeSource{pages: map[string]models.VideoPage{"": {Videos: videos("a", "b", "c")}}}
	m := New(src, nil, 0)
	require.NoError(t, m.Focus(context.Background()))

	m.ScrollSettled(800, 800)
	assert.Equal(t, []PlaybackState{Inactive, Active, Preloading}, m.States())

	m.Blur()
	assert.Equal(t, 1, m.ActiveIndex())
	assert.Equal(t, []PlaybackState{Inactive, Inactive, Inactive}, m.States())

	require.NoError(t, m.Focus(context.Background()))
	assert.Equal(t, []PlaybackState{Inactive, Active, Preloading}, m.States())
}

func TestEmptyFeedIsNotAnError(t *testing.T) {
	src := &fakeSource{pages: map[string]models.VideoPage{"": {Videos: []models.Video{}}}}
	m := New(src, nil, 0)
	assert.Equal(t, Loading, m.View())

	require.NoError(t, m.Load(context.Background()))
	assert.Equal(t, Empty, m.View())
	assert.Empty(t, m.States())
}

func TestLoadErrorWithoutCachedData(t *testing.T) {
	notes := &notify.Recorder{}
	src := &fakeSource{listErr: errors.New("offline")}
	m := New(src, notes, 0)

	require.Error(t, m.Load(context.Background()))
	assert.Equal(t, Error, m.View())
	last, ok := notes.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Error, last.Kind)
}

func TestRefreshErrorKeepsCachedData(t *testing.T) {
	src := &fakeSource{pages: map[string]models.VideoPage{"": {Videos: videos("a")}}}
	m := New(src, nil, 0)
	require.NoError(t, m.Load(context.Background()))

	src.listErr = errors.New("offline")
	require.Error(t, m.Refresh(context.Background()))
	assert.Equal(t, Ready, m.View())
	assert.Len(t, m.Items(), 1)
}

func TestRefreshReplacesListAndLoadMoreAppends(t *testing.T) {
	src := &fakeSource{pages: map[string]models.VideoPage{
		"":   {Videos: videos("c", "b"), NextCursor: "p2"},
		"p2": {Videos: videos("a")},
	}}
	m := New(src, nil, 2)
	require.NoError(t, m.Load(context.Background()))
	assert.True(t, m.HasMore())

	require.NoError(t, m.LoadMore(context.Background()))
	ids := func() []string {
		var out []string
		for _, it := range m.Items() {
			out = append(out, it.Video.ID)
		}
		return out
	}
	assert.Equal(t, []string{"c", "b", "a"}, ids())
	assert.False(t, m.HasMore())
	require.NoError(t, m.LoadMore(context.Background()), "no-op at end of feed")

	src.pages[""] = models.VideoPage{Videos: videos("d", "c"), NextCursor: "p2"}
	m.ScrollSettled(2*700, 700)
	require.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, []string{"d", "c"}, ids())
	assert.Equal(t, 1, m.ActiveIndex(), "active index clamped to the new list")

	assert.Equal(t, 2, src.calls[0].PageSize)
	assert.Equal(t, "p2", src.calls[1].Cursor)
}

func TestOptimisticLikeRollback(t *testing.T) {
	notes := &notify.Recorder{}
	src := &fakeSource{
		viewer: &models.Account{UID: "u1"},
		pages: map[string]models.VideoPage{"": {Videos: []models.Video{
			{ID: "v1", Likes: 5, LikedBy: []string{}},
		}}},
		likeErr: errors.New("backend unavailable"),
		block:   make(chan struct{}),
	}
	m := New(src, notes, 0)
	require.NoError(t, m.Load(context.Background()))

	done := make(chan error, 1)
	go func() { done <- m.ToggleLike(context.Background(), "v1") }()

	assert.Eventually(t, func() bool {
		it := m.Items()[0]
		return it.Liked && it.Likes == 6
	}, time.Second, time.Millisecond, "tentative state applied before the backend answers")

	close(src.block)
	require.Error(t, <-done)

	it := m.Items()[0]
	assert.False(t, it.Liked)
	assert.Equal(t, 5, it.Likes)
	last, _ := notes.Last()
	assert.Equal(t, notify.Error, last.Kind)
}

func (f *fakeSource) likeCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.likeCalls
}

func TestStaleLikeFailureKeepsNewerResult(t *testing.T) {
	notes := &notify.Recorder{}
	src := &fakeSource{
		viewer: &models.Account{UID: "u1"},
		pages: map[string]models.VideoPage{"": {Videos: []models.Video{
			{ID: "v1", Likes: 5, LikedBy: []string{}},
		}}},
		replies: []chan likeReply{make(chan likeReply, 1), make(chan likeReply, 1)},
	}
	m := New(src, notes, 0)
	require.NoError(t, m.Load(context.Background()))

	first := make(chan error, 1)
	go func() { first <- m.ToggleLike(context.Background(), "v1") }()
	require.Eventually(t, func() bool { return src.likeCallCount() == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- m.ToggleLike(context.Background(), "v1") }()
	require.Eventually(t, func() bool { return src.likeCallCount() == 2 }, time.Second, time.Millisecond)

	src.replies[1] <- likeReply{result: models.LikeResult{Likes: 7, Liked: false}}
	require.NoError(t, <-second)
	src.replies[0] <- likeReply{err: errors.New("backend unavailable")}
	require.Error(t, <-first)

	it := m.Items()[0]
	assert.False(t, it.Liked)
	assert.Equal(t, 7, it.Likes, "the older tap's failure does not roll back the newer result")
}

func TestLikeAdoptsServerResult(t *testing.T) {
	src := &fakeSource{
		viewer: &models.Account{UID: "u1"},
		pages: map[string]models.VideoPage{"": {Videos: []models.Video{
			{ID: "v1", Likes: 3, LikedBy: []string{"u1", "u2", "u3"}},
		}}},
		like: models.LikeResult{Likes: 4, Liked: false},
	}
	m := New(src, nil, 0)
	require.NoError(t, m.Load(context.Background()))
	require.True(t, m.Items()[0].Liked, "liked state derived from likedBy")

	require.NoError(t, m.ToggleLike(context.Background(), "v1"))
	it := m.Items()[0]
	assert.False(t, it.Liked)
	assert.Equal(t, 4, it.Likes, "server count wins once confirmed")
}

func TestLikeRequiresViewer(t *testing.T) {
	src := &fakeSource{pages: map[string]models.VideoPage{"": {Videos: videos("v1")}}}
	m := New(src, nil, 0)
	require.NoError(t, m.Load(context.Background()))
	assert.ErrorIs(t, m.ToggleLike(context.Background(), "v1"), session.ErrNotSignedIn)
}
