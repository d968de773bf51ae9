// Package app wires the camera, classifier and recognition session into the
// running fingerspell sampler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/ayusman/fingerspell/internal/capture"
	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/clock"
	"github.com/ayusman/fingerspell/internal/letter"
	"github.com/ayusman/fingerspell/internal/observe"
	"github.com/ayusman/fingerspell/internal/session"
	"github.com/ayusman/fingerspell/internal/store"
)

// Sampler defaults.
const (
	// DefaultPeriod is the wait between two sampler ticks.
	DefaultPeriod = 200 * time.Millisecond
	// DefaultFPSWindow is the number of ticks per frame-rate estimate.
	DefaultFPSWindow = 10
	// eventQueueSize bounds events waiting for the publishers.
	eventQueueSize = 64
)

// Commands accepted by Control.
const (
	CommandConfirm   = "confirm"
	CommandReject    = "reject"
	CommandResetWord = "reset_word"
)

var (
	// ErrUnknownCommand is returned by Control for an unrecognized command.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrSessionEnded is returned by decisions made after Stop and before the
	// next Start.
	ErrSessionEnded = errors.New("session ended")
)

// EventPublisher delivers session events to external systems.
type EventPublisher interface {
	Publish(ctx context.Context, ev session.Event) error
}

// EventDispatcher reacts to session events, for example by running plugins.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev session.Event)
}

// Config holds the collaborators and settings of an App.
type Config struct {
	Camera     capture.Camera
	Classifier classifier.Classifier

	Thresholds   letter.Thresholds
	SpaceLiteral string

	// Period is the wait between ticks. Zero selects DefaultPeriod.
	Period time.Duration
	// FPSWindow is the number of ticks per frame-rate estimate. Zero selects
	// DefaultFPSWindow.
	FPSWindow int
	// Clock drives the sampler. Nil selects the real clock.
	Clock clock.Clock

	// Optional collaborators.
	Store      *store.Store
	Matcher    *classifier.Matcher
	Publisher  EventPublisher
	Dispatcher EventDispatcher
	Metrics    *observe.Metrics
	Logger     *slog.Logger
}

// Status is the session snapshot plus the sampler's lifecycle state.
type Status struct {
	session.Snapshot
	Running bool `json:"running"`
	Enabled bool `json:"enabled"`
}

// Update is pushed to listeners after every tick and user action. Event is
// set when the update was caused by a session transition.
type Update struct {
	Status Status         `json:"status"`
	Event  *session.Event `json:"event,omitempty"`
}

// Listener receives updates. It is called from the sampler goroutine and
// from user actions and must not block.
type Listener func(Update)

// App runs the sampler loop over one session at a time.
type App struct {
	cfg     Config
	log     *slog.Logger
	metrics *observe.Metrics

	// lifeMu serializes Start and Stop, including the camera open and the
	// wait for the loop to exit. Status never takes it.
	lifeMu sync.Mutex

	mu        sync.RWMutex
	sess      *session.Session
	persisted bool
	ended     bool
	running   bool
	enabled   bool
	cancel    context.CancelFunc
	done      chan struct{}

	listenerMu sync.RWMutex
	listeners  []Listener

	frameMu  sync.RWMutex
	frame    []byte
	frameSeq uint64

	events    chan session.Event
	pumpDone  chan struct{}
	closeOnce sync.Once
}

// New creates an App with a fresh session. The sampler is not started.
func New(cfg Config) *App {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.FPSWindow <= 0 {
		cfg.FPSWindow = DefaultFPSWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		// Instrument creation on the no-op provider cannot fail.
		metrics, _ = observe.NewMetrics(noop.NewMeterProvider())
	}

	a := &App{
		cfg:      cfg,
		log:      cfg.Logger,
		metrics:  metrics,
		enabled:  true,
		events:   make(chan session.Event, eventQueueSize),
		pumpDone: make(chan struct{}),
	}
	a.sess = a.newSession()
	go a.pump()
	return a
}

func (a *App) newSession() *session.Session {
	return session.New(session.Config{
		ID:           uuid.NewString(),
		Thresholds:   a.cfg.Thresholds,
		SpaceLiteral: a.cfg.SpaceLiteral,
		Clock:        a.cfg.Clock,
	})
}

// Session returns the current session.
func (a *App) Session() *session.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.sess
}

// Status returns the current session snapshot and lifecycle flags.
func (a *App) Status() Status {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Status{
		Snapshot: a.sess.Snapshot(),
		Running:  a.running,
		Enabled:  a.enabled,
	}
}

// Running reports whether the sampler loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running
}

// SetEnabled pauses or resumes sampling without ending the session. While
// paused the loop keeps its period but reads no frames.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled
	a.mu.Unlock()
	a.notify(nil)
}

// IsEnabled reports whether sampling is enabled.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// AddListener registers l for all future updates.
func (a *App) AddListener(l Listener) {
	a.listenerMu.Lock()
	defer a.listenerMu.Unlock()
	a.listeners = append(a.listeners, l)
}

// Start opens the camera and launches the sampler. It returns an error
// wrapping capture.ErrCameraUnavailable when no camera can be used, in which
// case nothing is started. Calling Start on a running App is a no-op.
//
// A session that was stopped is not resumed; Start begins a new one.
func (a *App) Start(ctx context.Context) error {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	if a.Running() {
		return nil
	}
	if err := a.cfg.Camera.Open(); err != nil {
		return fmt.Errorf("start sampler: %w", err)
	}

	a.mu.Lock()
	if a.ended {
		a.sess = a.newSession()
		a.persisted = false
		a.ended = false
	}
	sess := a.sess
	persist := a.cfg.Store != nil && !a.persisted
	a.mu.Unlock()

	if persist {
		err := a.cfg.Store.Sessions().Create(ctx, &store.Session{
			ID:        sess.ID(),
			StartedAt: a.cfg.Clock.Now(),
		})
		if err != nil {
			a.log.Error("failed to record session", slog.String("session", sess.ID()), slog.Any("error", err))
		}
		persist = err == nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	a.mu.Lock()
	if persist {
		a.persisted = true
	}
	a.cancel = cancel
	a.done = done
	a.running = true
	a.enabled = true
	a.mu.Unlock()

	a.metrics.ActiveSessions.Add(ctx, 1)
	go a.run(runCtx, sess, done)

	a.log.Info("sampler started",
		slog.String("session", sess.ID()),
		slog.Duration("period", a.cfg.Period))
	a.notify(nil)
	return nil
}

// Stop ends the sampler loop, closes the camera and classifier and records
// the session's final word. It blocks until the loop has exited; a Start
// issued meanwhile waits for it.
func (a *App) Stop(ctx context.Context) {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	cancel, done, sess := a.cancel, a.done, a.sess
	persisted := a.persisted
	a.running = false
	a.ended = true
	a.cancel = nil
	a.mu.Unlock()

	cancel()
	<-done

	if err := a.cfg.Classifier.Close(); err != nil {
		a.log.Warn("error closing classifier", slog.Any("error", err))
	}

	if a.cfg.Store != nil && persisted {
		if err := a.cfg.Store.Sessions().End(ctx, sess.ID(), sess.Word(), a.cfg.Clock.Now()); err != nil {
			a.log.Error("failed to close session record", slog.String("session", sess.ID()), slog.Any("error", err))
		}
	}

	a.metrics.ActiveSessions.Add(ctx, -1)
	a.log.Info("sampler stopped", slog.String("session", sess.ID()), slog.String("word", sess.Word()))
	a.notify(nil)
}

// Close stops the sampler and waits for queued events to be published.
func (a *App) Close(ctx context.Context) {
	a.Stop(ctx)
	a.closeOnce.Do(func() {
		close(a.events)
		<-a.pumpDone
	})
}

// activeSession returns the session decisions apply to, or ErrSessionEnded
// once it has been stopped.
func (a *App) activeSession() (*session.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.ended {
		return nil, ErrSessionEnded
	}
	return a.sess, nil
}

// Confirm commits the label on display to the word.
func (a *App) Confirm(ctx context.Context) (session.Event, error) {
	sess, err := a.activeSession()
	if err != nil {
		return session.Event{}, err
	}
	ev, err := sess.Confirm()
	if err != nil {
		return ev, err
	}
	a.metrics.RecordCommit(ctx, string(ev.Label))
	a.emit(ctx, ev)
	return ev, nil
}

// Reject discards the pending candidate.
func (a *App) Reject(ctx context.Context) (session.Event, error) {
	sess, err := a.activeSession()
	if err != nil {
		return session.Event{}, err
	}
	ev, err := sess.Reject()
	if err != nil {
		return ev, err
	}
	a.metrics.Rejects.Add(ctx, 1)
	a.emit(ctx, ev)
	return ev, nil
}

// ResetWord clears the word.
func (a *App) ResetWord(ctx context.Context) (session.Event, error) {
	sess, err := a.activeSession()
	if err != nil {
		return session.Event{}, err
	}
	ev := sess.ResetWord()
	a.metrics.WordResets.Add(ctx, 1)
	a.emit(ctx, ev)
	return ev, nil
}

// Control runs a named command. It serves remote control channels.
func (a *App) Control(ctx context.Context, command string) error {
	var err error
	switch command {
	case CommandConfirm:
		_, err = a.Confirm(ctx)
	case CommandReject:
		_, err = a.Reject(ctx)
	case CommandResetWord:
		_, err = a.ResetWord(ctx)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	return err
}

// LatestFrame returns the most recent processed frame as JPEG and a sequence
// number that increases with every new frame. ok is false until the first
// frame has been processed.
func (a *App) LatestFrame() (jpeg []byte, seq uint64, ok bool) {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	return a.frame, a.frameSeq, a.frame != nil
}

func (a *App) setFrame(jpeg []byte) {
	a.frameMu.Lock()
	defer a.frameMu.Unlock()
	a.frame = jpeg
	a.frameSeq++
}

// emit persists, publishes and broadcasts a session event.
func (a *App) emit(ctx context.Context, ev session.Event) {
	a.log.Info("session event",
		slog.String("kind", string(ev.Kind)),
		slog.String("label", string(ev.Label)),
		slog.String("word", ev.Word))

	a.recordCommit(ctx, ev)

	if a.cfg.Dispatcher != nil {
		a.cfg.Dispatcher.Dispatch(ctx, ev)
	}

	if a.cfg.Publisher != nil {
		select {
		case a.events <- ev:
		default:
			a.log.Warn("event queue full, dropping event", slog.String("kind", string(ev.Kind)))
			a.metrics.RecordPublishError(ctx, "queue")
		}
	}

	a.notify(&ev)
}

func (a *App) recordCommit(ctx context.Context, ev session.Event) {
	if a.cfg.Store == nil {
		return
	}
	var kind store.CommitKind
	switch ev.Kind {
	case session.EventConfirm:
		kind = store.CommitKindLetter
	case session.EventReset:
		kind = store.CommitKindReset
	default:
		return
	}

	a.mu.RLock()
	persisted := a.persisted && !a.ended && a.sess.ID() == ev.SessionID
	a.mu.RUnlock()
	if !persisted {
		return
	}

	err := a.cfg.Store.Commits().Append(ctx, &store.Commit{
		SessionID: ev.SessionID,
		Kind:      kind,
		Label:     string(ev.Label),
		Appended:  ev.Appended,
		WordAfter: ev.Word,
		CreatedAt: ev.At,
	})
	if err != nil {
		a.log.Error("failed to record commit", slog.Any("error", err))
	}
}

// pump forwards queued events to the publisher in order.
func (a *App) pump() {
	defer close(a.pumpDone)
	for ev := range a.events {
		if err := a.cfg.Publisher.Publish(context.Background(), ev); err != nil {
			a.log.Debug("event not fully delivered", slog.Any("error", err))
		}
	}
}

func (a *App) notify(ev *session.Event) {
	u := Update{Status: a.Status(), Event: ev}

	a.listenerMu.RLock()
	defer a.listenerMu.RUnlock()
	for _, l := range a.listeners {
		l(u)
	}
}
