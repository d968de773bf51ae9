package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ayusman/fingerspell/internal/session"
)

// NATSConfig configures a NATSPublisher.
type NATSConfig struct {
	Servers        []string
	SubjectPrefix  string
	Username       string
	Password       string
	Token          string
	ConnectTimeout time.Duration
}

// NATSPublisher publishes events on {prefix}.{session}.{kind} and listens for
// commands on {prefix}.control.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	sub    *nats.Subscription
	log    *slog.Logger
}

// NewNATS connects to the configured servers.
func NewNATS(cfg NATSConfig, log *slog.Logger) (*NATSPublisher, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("no NATS servers configured")
	}
	if log == nil {
		log = slog.Default()
	}

	options := []nats.Option{nats.Name("fingerspell")}
	if cfg.ConnectTimeout > 0 {
		options = append(options, nats.Timeout(cfg.ConnectTimeout))
	}
	if cfg.Username != "" || cfg.Password != "" {
		options = append(options, nats.UserInfo(cfg.Username, cfg.Password))
	}
	if cfg.Token != "" {
		options = append(options, nats.Token(cfg.Token))
	}

	url := strings.Join(cfg.Servers, ",")
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	log.Info("connected to NATS", slog.String("servers", url))

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "fingerspell"
	}
	return &NATSPublisher{conn: conn, prefix: prefix, log: log}, nil
}

// Name implements Publisher.
func (p *NATSPublisher) Name() string { return "nats" }

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(ev session.Event) string {
	return p.prefix + "." + ev.SessionID + "." + string(ev.Kind)
}

// ControlSubject is the subject remote commands are read from.
func (p *NATSPublisher) ControlSubject() string {
	return p.prefix + ".control"
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(_ context.Context, ev session.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.conn.Publish(p.Subject(ev), data)
}

// SubscribeControl routes messages on the control subject to handler. A
// request with a reply subject gets {"ok":true} or {"error":"..."} back.
func (p *NATSPublisher) SubscribeControl(ctx context.Context, handler ControlHandler) error {
	sub, err := p.conn.Subscribe(p.ControlSubject(), func(msg *nats.Msg) {
		cmd, err := parseControl(msg.Data)
		if err == nil {
			err = handler(ctx, cmd)
		}
		if err != nil {
			p.log.Warn("control command failed",
				slog.String("subject", msg.Subject),
				slog.Any("error", err))
		}
		if msg.Reply == "" {
			return
		}
		reply := map[string]any{"ok": err == nil}
		if err != nil {
			reply["error"] = err.Error()
		}
		data, _ := json.Marshal(reply)
		if rerr := msg.Respond(data); rerr != nil {
			p.log.Warn("control reply failed", slog.Any("error", rerr))
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", p.ControlSubject(), err)
	}
	p.sub = sub
	return nil
}

// Healthy reports whether the connection is up.
func (p *NATSPublisher) Healthy() bool {
	return p != nil && p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// Close drains the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	p.log.Info("closing NATS connection")
	err := p.conn.Drain()
	p.conn.Close()
	return err
}
