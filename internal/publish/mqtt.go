package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ayusman/fingerspell/internal/session"
)

// publishTimeout bounds how long Publish waits for the broker.
const publishTimeout = 2 * time.Second

// MQTTConfig configures an MQTTPublisher.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	QoS         byte
	Username    string
	Password    string
}

// MQTTPublisher publishes events on {prefix}/{session}/{kind} and listens for
// commands on {prefix}/control.
type MQTTPublisher struct {
	client mqtt.Client
	prefix string
	qos    byte
	log    *slog.Logger
}

// NewMQTT connects to the broker. Reconnects are handled by the client.
func NewMQTT(cfg MQTTConfig, log *slog.Logger) (*MQTTPublisher, error) {
	if log == nil {
		log = slog.Default()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", slog.Any("error", err))
	})
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		log.Info("mqtt connected", slog.String("broker", cfg.Broker))
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(10*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect: %w", token.Error())
	}

	return newMQTTPublisher(client, cfg.TopicPrefix, cfg.QoS, log), nil
}

func newMQTTPublisher(client mqtt.Client, prefix string, qos byte, log *slog.Logger) *MQTTPublisher {
	if prefix == "" {
		prefix = "fingerspell"
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos, log: log}
}

// Name implements Publisher.
func (p *MQTTPublisher) Name() string { return "mqtt" }

// Topic returns the topic an event is published on.
func (p *MQTTPublisher) Topic(ev session.Event) string {
	return p.prefix + "/" + ev.SessionID + "/" + string(ev.Kind)
}

// ControlTopic is the topic remote commands are read from.
func (p *MQTTPublisher) ControlTopic() string {
	return p.prefix + "/control"
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(ctx context.Context, ev session.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	token := p.client.Publish(p.Topic(ev), p.qos, false, data)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(publishTimeout):
		return fmt.Errorf("mqtt publish %s: timed out", p.Topic(ev))
	}
	return token.Error()
}

// SubscribeControl routes messages on the control topic to handler.
func (p *MQTTPublisher) SubscribeControl(ctx context.Context, handler ControlHandler) error {
	token := p.client.Subscribe(p.ControlTopic(), p.qos, func(_ mqtt.Client, msg mqtt.Message) {
		cmd, err := parseControl(msg.Payload())
		if err == nil {
			err = handler(ctx, cmd)
		}
		if err != nil {
			p.log.Warn("control command failed",
				slog.String("topic", msg.Topic()),
				slog.Any("error", err))
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", p.ControlTopic(), token.Error())
	}
	return nil
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	p.client.Disconnect(250)
	return nil
}
