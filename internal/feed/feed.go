// Package feed is the feed screen's state machine: paging, scroll-driven
// playback and optimistic likes.
package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/models"
	"github.com/snapreel/backend/internal/notify"
	"github.com/snapreel/backend/internal/session"
)

// ViewState is what the screen shows as a whole.
type ViewState int

const (
	Loading ViewState = iota
	Ready
	Empty
	Error
)

func (v ViewState) String() string {
	switch v {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Empty:
		return "empty"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

// Source is the slice of the session context the feed uses.
type Source interface {
	Current() *models.Account
	GetAllVideos(ctx context.Context, params session.QueryParams) (models.VideoPage, error)
	LikeVideo(ctx context.Context, videoID, userID string) (models.LikeResult, error)
}

// Item is one feed entry with the viewer's local like state.
type Item struct {
	Video models.Video
	Liked bool
	Likes int

	// generation counts like taps; a response only lands if no later tap happened.
	generation int
}

// Model is the feed screen state. All methods are safe for concurrent use.
type Model struct {
	source   Source
	notifier notify.Notifier
	pageSize int

	mu      sync.Mutex
	items   []Item
	cursor  string
	view    ViewState
	active  int
	focused bool
}

// New returns a Model in the Loading view. pageSize 0 uses the session default.
func New(source Source, notifier notify.Notifier, pageSize int) *Model {
	if notifier == nil {
		notifier = notify.Func(func(notify.Notification) {})
	}
	return &Model{source: source, notifier: notifier, pageSize: pageSize, view: Loading}
}

// Items returns a copy of the list.
func (m *Model) Items() []Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.items...)
}

// View returns the screen view state.
func (m *Model) View() ViewState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

// HasMore reports whether LoadMore can fetch another page.
func (m *Model) HasMore() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor != ""
}

// ActiveIndex returns the item selected by the last settled scroll.
func (m *Model) ActiveIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// States returns the playback state of every item.
func (m *Model) States() []PlaybackState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return PlaybackStates(len(m.items), m.active, m.focused)
}

// ScrollSettled recomputes the active item. Intermediate scroll positions
// are never passed here.
func (m *Model) ScrollSettled(scrollOffset, itemHeight float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = ActiveIndex(scrollOffset, itemHeight, len(m.items))
}

// Focus marks the screen as foreground and reloads the first page.
func (m *Model) Focus(ctx context.Context) error {
	m.mu.Lock()
	m.focused = true
	m.mu.Unlock()
	return m.Load(ctx)
}

// Blur pauses everything without moving the active index.
func (m *Model) Blur() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focused = false
}

// Load fetches the first page, on mount and on focus.
func (m *Model) Load(ctx context.Context) error {
	return m.fetchFirst(ctx)
}

// Refresh re-fetches the first page and replaces the list wholesale.
func (m *Model) Refresh(ctx context.Context) error {
	return m.fetchFirst(ctx)
}

func (m *Model) fetchFirst(ctx context.Context) error {
	page, err := m.source.GetAllVideos(ctx, session.QueryParams{PageSize: m.pageSize})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		logging.FromContext(ctx).Warn("feed load failed", "error", err)
		if len(m.items) == 0 {
			m.view = Error
		}
		m.notifier.Notify(notify.Notification{Kind: notify.Error, Message: "Failed to load videos. Pull to refresh."})
		return err
	}

	m.items = m.toItems(page.Videos)
	m.cursor = page.NextCursor
	if m.active >= len(m.items) {
		m.active = max(len(m.items)-1, 0)
	}
	m.view = viewFor(len(m.items))
	return nil
}

// LoadMore appends the next page. It is a no-op at the end of the feed.
func (m *Model) LoadMore(ctx context.Context) error {
	m.mu.Lock()
	cursor := m.cursor
	m.mu.Unlock()
	if cursor == "" {
		return nil
	}

	page, err := m.source.GetAllVideos(ctx, session.QueryParams{PageSize: m.pageSize, Cursor: cursor})

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.notifier.Notify(notify.Notification{Kind: notify.Error, Message: "Failed to load more videos."})
		return err
	}
	if m.cursor != cursor {
		// A refresh replaced the list while this page was in flight.
		return nil
	}
	seen := make(map[string]bool, len(m.items))
	for _, it := range m.items {
		seen[it.Video.ID] = true
	}
	for _, it := range m.toItems(page.Videos) {
		if !seen[it.Video.ID] {
			m.items = append(m.items, it)
		}
	}
	m.cursor = page.NextCursor
	m.view = viewFor(len(m.items))
	return nil
}

func viewFor(n int) ViewState {
	if n == 0 {
		return Empty
	}
	return Ready
}

func (m *Model) viewerID() string {
	if account := m.source.Current(); account != nil {
		return account.UID
	}
	return ""
}

func (m *Model) toItems(videos []models.Video) []Item {
	viewer := m.viewerID()
	items := make([]Item, 0, len(videos))
	for _, v := range videos {
		v.Normalize()
		items = append(items, Item{Video: v, Liked: viewer != "" && v.LikedByUser(viewer), Likes: v.Likes})
	}
	return items
}

// ToggleLike applies the like locally, then asks the backend. On failure
// the exact pre-tap values are restored.
func (m *Model) ToggleLike(ctx context.Context, videoID string) error {
	viewer := m.viewerID()
	if viewer == "" {
		m.notifier.Notify(notify.Notification{Kind: notify.Error, Message: "Sign in to like videos."})
		return session.ErrNotSignedIn
	}

	m.mu.Lock()
	i := m.indexLocked(videoID)
	if i < 0 {
		m.mu.Unlock()
		return fmt.Errorf("video %s is not in the feed", videoID)
	}
	snapshot := struct {
		liked bool
		likes int
	}{m.items[i].Liked, m.items[i].Likes}

	item := &m.items[i]
	item.Liked = !snapshot.liked
	if item.Liked {
		item.Likes = snapshot.likes + 1
	} else if snapshot.likes > 0 {
		item.Likes = snapshot.likes - 1
	}
	item.generation++
	generation := item.generation
	m.mu.Unlock()

	result, err := m.source.LikeVideo(ctx, videoID, viewer)

	m.mu.Lock()
	defer m.mu.Unlock()
	i = m.indexLocked(videoID)
	if err != nil {
		// A later tap owns the item now; its outcome decides the state.
		if i >= 0 && m.items[i].generation == generation {
			m.items[i].Liked = snapshot.liked
			m.items[i].Likes = snapshot.likes
		}
		m.notifier.Notify(notify.Notification{Kind: notify.Error, Message: "Could not update like."})
		return err
	}
	if i >= 0 && m.items[i].generation == generation {
		m.items[i].Liked = result.Liked
		m.items[i].Likes = result.Likes
	}
	return nil
}

func (m *Model) indexLocked(videoID string) int {
	for i := range m.items {
		if m.items[i].Video.ID == videoID {
			return i
		}
	}
	return -1
}
