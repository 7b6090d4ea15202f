// Package notify carries user-facing feedback from the client state machines.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/snapreel/backend/internal/logging"
)

// Kind classifies a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Info    Kind = "info"
)

// Notification is one message for the user. Persistent notifications stay
// until the condition that raised them changes; the rest are transient.
type Notification struct {
	Kind       Kind
	Message    string
	Persistent bool
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to the Notifier interface.
type Func func(Notification)

func (f Func) Notify(n Notification) { f(n) }

// Log writes notifications to the context logger.
func Log(ctx context.Context) Notifier {
	logger := logging.FromContext(ctx)
	return Func(func(n Notification) {
		level := slog.LevelInfo
		if n.Kind == Error {
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, n.Message, "kind", string(n.Kind), "persistent", n.Persistent)
	})
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.all = append(r.all, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return Notification{}, false
	}
	return r.all[len(r.all)-1], true
}
