// Package publish delivers session events to external message systems and
// accepts remote control commands from them.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/ayusman/fingerspell/internal/observe"
	"github.com/ayusman/fingerspell/internal/session"
)

// Publisher sends session events somewhere.
type Publisher interface {
	// Name identifies the publisher in logs and metrics.
	Name() string
	Publish(ctx context.Context, ev session.Event) error
	Close() error
}

// ControlHandler executes a remote command such as "confirm", "reject" or
// "reset_word".
type ControlHandler func(ctx context.Context, command string) error

// ErrEmptyCommand is returned for a control message without a command.
var ErrEmptyCommand = errors.New("empty control command")

// parseControl accepts either {"command":"confirm"} or a bare command name.
func parseControl(payload []byte) (string, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) > 0 && payload[0] == '{' {
		var msg struct {
			Command string `json:"command"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			return "", err
		}
		payload = []byte(msg.Command)
	}
	cmd := strings.ToLower(strings.TrimSpace(string(payload)))
	if cmd == "" {
		return "", ErrEmptyCommand
	}
	return cmd, nil
}

// Fanout publishes each event to every publisher. A failing publisher is
// logged and counted but never blocks the others.
type Fanout struct {
	publishers []Publisher
	metrics    *observe.Metrics
	logger     *slog.Logger
}

// NewFanout creates a Fanout. metrics may be nil.
func NewFanout(logger *slog.Logger, metrics *observe.Metrics, publishers ...Publisher) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{publishers: publishers, metrics: metrics, logger: logger}
}

// Add registers another publisher.
func (f *Fanout) Add(p Publisher) {
	f.publishers = append(f.publishers, p)
}

// Len returns the number of publishers.
func (f *Fanout) Len() int {
	return len(f.publishers)
}

// Publish sends ev to all publishers and returns the joined errors.
func (f *Fanout) Publish(ctx context.Context, ev session.Event) error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			f.logger.Warn("publish failed",
				slog.String("publisher", p.Name()),
				slog.String("kind", string(ev.Kind)),
				slog.Any("error", err))
			if f.metrics != nil {
				f.metrics.RecordPublishError(ctx, p.Name())
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (f *Fanout) Close() error {
	var errs []error
	for _, p := range f.publishers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
