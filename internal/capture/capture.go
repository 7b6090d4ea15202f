// Package capture is the capture screen's state machine: record, preview,
// then post through the upload pipeline.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/snapreel/backend/internal/logging"
	"github.com/snapreel/backend/internal/media"
	"github.com/snapreel/backend/internal/models"
	"github.com/snapreel/backend/internal/notify"
	"github.com/snapreel/backend/internal/session"
)

// State is the capture screen state.
type State int

const (
	Idle State = iota
	Recording
	Previewing
	Uploading
	PermissionDenied
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Previewing:
		return "previewing"
	case Uploading:
		return "uploading"
	case PermissionDenied:
		return "permission_denied"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrPermissionDenied is returned by a Recorder when camera or microphone access is refused.
	ErrPermissionDenied = errors.New("camera permission denied")
	// ErrInvalidTransition is returned when an action does not apply to the current state.
	ErrInvalidTransition = errors.New("action not valid in current state")
)

// Pipeline stages reported by StageError.
const (
	StageAccount = "account"
	StageRead    = "read"
	StageUpload  = "upload"
	StageSave    = "save"
)

// StageError names the pipeline stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

func failureMessage(err error) string {
	var stage *StageError
	if !errors.As(err, &stage) {
		return "Posting failed. Try again."
	}
	switch stage.Stage {
	case StageAccount:
		return "Sign in to post videos."
	case StageRead:
		return "Could not read the recording."
	case StageUpload:
		return "Upload failed. Your recording is still here; try again."
	default:
		return "Video uploaded but could not be saved. Try posting again."
	}
}

// Recorder is the camera. Stop returns the local path of the finished recording.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (string, error)
}

// Poster is the slice of the session context the pipeline uses.
type Poster interface {
	Current() *models.Account
	UploadVideo(ctx context.Context, params session.UploadParams) (string, error)
	SaveVideo(ctx context.Context, params session.SaveParams) (string, error)
}

// Config wires a Machine. Prober is optional.
type Config struct {
	Recorder Recorder
	Poster   Poster
	Prober   media.Prober
	Notifier notify.Notifier
}

// Machine is safe for concurrent use; recorder callbacks may arrive on any goroutine.
type Machine struct {
	recorder Recorder
	poster   Poster
	prober   media.Prober
	notifier notify.Notifier

	// Open reads a recording for upload.
	Open func(path string) (io.ReadCloser, error)
	// NewTicker drives the elapsed timer.
	NewTicker func(d time.Duration) (<-chan time.Time, func())

	mu        sync.Mutex
	state     State
	preview   string
	elapsed   time.Duration
	stopTimer func()
}

// New returns a Machine in Idle.
func New(cfg Config) *Machine {
	n := cfg.Notifier
	if n == nil {
		n = notify.Func(func(notify.Notification) {})
	}
	return &Machine{
		recorder: cfg.Recorder,
		poster:   cfg.Poster,
		prober:   cfg.Prober,
		notifier: n,
		Open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
		NewTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Preview returns the local path being previewed, if any.
func (m *Machine) Preview() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.preview
}

// Elapsed is the recording time at one-second resolution.
func (m *Machine) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.elapsed
}

// FormatElapsed renders d as mm:ss.
func FormatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// SetPermission records the OS permission state. A refusal parks the
// machine in PermissionDenied with a persistent prompt; a grant releases it.
func (m *Machine) SetPermission(granted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !granted {
		m.stopTimerLocked()
		m.state = PermissionDenied
		m.preview = ""
		m.notifier.Notify(notify.Notification{Kind: notify.Error, Message: "Camera access is needed to record. Enable it in settings.", Persistent: true})
		return
	}
	if m.state == PermissionDenied {
		m.state = Idle
	}
}

// Shutter starts a recording from Idle, or stops the current one.
func (m *Machine) Shutter(ctx context.Context) error {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	switch state {
	case Idle:
		return m.start(ctx)
	case Recording:
		return m.stop(ctx)
	default:
		return fmt.Errorf("shutter while %s: %w", state, ErrInvalidTransition)
	}
}

func (m *Machine) start(ctx context.Context) error {
	if err := m.recorder.Start(ctx); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			m.SetPermission(false)
			return err
		}
		m.notifier.Notify(notify.Notification{Kind: notify.Error, Message: "Could not start recording."})
		return fmt.Errorf("start recording: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Recording
	m.elapsed = 0
	ticks, stop := m.NewTicker(time.Second)
	done := make(chan struct{})
	var once sync.Once
	m.stopTimer = func() {
		once.Do(func() {
			stop()
			close(done)
		})
	}
	go m.runTimer(ticks, done)
	return nil
}

func (m *Machine) runTimer(ticks <-chan time.Time, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticks:
			m.mu.Lock()
			if m.state == Recording {
				m.elapsed += time.Second
			}
			m.mu.Unlock()
		}
	}
}

func (m *Machine) stopTimerLocked() {
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
}

func (m *Machine) stop(ctx context.Context) error {
	path, err := m.recorder.Stop(ctx)
	if err != nil {
		m.RecorderFailed(err)
		return fmt.Errorf("stop recording: %w", err)
	}
	m.RecorderStopped(path)
	return nil
}

// RecorderStopped moves Recording to Previewing with path as the preview
// source. The recorder calls it when it stops on its own.
func (m *Machine) RecorderStopped(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Recording {
		return
	}
	m.stopTimerLocked()
	m.state = Previewing
	m.preview = path
}

// RecorderFailed reverts a recording to Idle.
func (m *Machine) RecorderFailed(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Recording {
		return
	}
	m.stopTimerLocked()
	m.state = Idle
	m.elapsed = 0
	m.notifier.Notify(notify.Notification{Kind: notify.Error, Message: "Recording failed: " + err.Error()})
}

// Clear discards the preview without any network call.
func (m *Machine) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != Previewing {
		return fmt.Errorf("clear while %s: %w", m.state, ErrInvalidTransition)
	}
	m.state = Idle
	m.preview = ""
	m.elapsed = 0
	return nil
}

// Close stops the timer.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimerLocked()
}

// Post runs the upload pipeline for the previewed recording: the raw upload
// and a local dimension probe run concurrently, then the record is saved.
// Any failure, including a save failure after a successful upload, returns
// the machine to Previewing with the recording kept.
func (m *Machine) Post(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.state != Previewing {
		state := m.state
		m.mu.Unlock()
		return "", fmt.Errorf("post while %s: %w", state, ErrInvalidTransition)
	}
	m.state = Uploading
	path := m.preview
	m.mu.Unlock()

	id, err := m.runPipeline(ctx, path)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.state = Previewing
		m.notifier.Notify(notify.Notification{Kind: notify.Error, Message: failureMessage(err)})
		return "", err
	}
	m.state = Idle
	m.preview = ""
	m.elapsed = 0
	m.notifier.Notify(notify.Notification{Kind: notify.Success, Message: "Video posted."})
	return id, nil
}

func (m *Machine) runPipeline(ctx context.Context, path string) (string, error) {
	logger := logging.FromContext(ctx)
	account := m.poster.Current()
	if account == nil {
		return "", &StageError{Stage: StageAccount, Err: session.ErrNotSignedIn}
	}

	var (
		videoURL string
		dims     media.Dimensions
		duration float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		body, err := m.Open(path)
		if err != nil {
			return &StageError{Stage: StageRead, Err: err}
		}
		defer body.Close()

		videoURL, err = m.poster.UploadVideo(gctx, session.UploadParams{
			Video:    body,
			UserID:   account.UID,
			Filename: fmt.Sprintf("video_%d%s", time.Now().UnixMilli(), filepath.Ext(path)),
		})
		if err != nil {
			return &StageError{Stage: StageUpload, Err: err}
		}
		return nil
	})
	if m.prober != nil {
		g.Go(func() error {
			result, err := m.prober.Probe(gctx, path)
			if err != nil {
				logger.Warn("local probe failed", "error", err)
				return nil
			}
			dims, duration = result.Dimensions, result.Duration
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	id, err := m.poster.SaveVideo(ctx, session.SaveParams{
		VideoURL:   videoURL,
		PosterName: account.DisplayName,
		UserID:     account.UID,
		Duration:   duration,
		Width:      dims.Width,
		Height:     dims.Height,
	})
	if err != nil {
		logger.Error("video uploaded but not saved", "videoUrl", videoURL, "error", err)
		return "", &StageError{Stage: StageSave, Err: err}
	}
	return id, nil
}
