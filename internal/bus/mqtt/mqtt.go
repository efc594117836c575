// Package mqtt is the concrete [bus.Transport] used outside of tests:
// the medical-simulation bus modeled as MQTT topics under a per-core
// namespace, reached through an auto-reconnecting paho client.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus"
)

// Config describes how to reach the broker backing the simulation bus.
type Config struct {
	BrokerURL string // e.g. "mqtt://localhost:1883"
	CoreID    string // namespace prefix, e.g. "AMM_000"
	Username  string
	Password  string
}

// Transport is a [bus.Transport] backed by an MQTT broker via
// autopaho's connection manager, grounded on the teacher pack's
// internal/mqtt publisher: one autopaho.ConnectionManager per
// participant, re-subscribing on every reconnect because autopaho does
// not do so automatically.
type Transport struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	cm       *autopaho.ConnectionManager
	handlers map[bus.Topic][]func([]byte)

	backoff backoff.BackOff
}

// New constructs a Transport. Connect must be called before use.
func New(cfg Config, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[bus.Topic][]func([]byte)),
		backoff:  backoff.NewExponentialBackOff(),
	}
}

func (t *Transport) topicString(topic bus.Topic) string {
	return fmt.Sprintf("%s/%s", t.cfg.CoreID, topic)
}

func (t *Transport) Connect(ctx context.Context, participantID string) error {
	brokerURL, err := url.Parse(t.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("parse mqtt broker url: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: t.cfg.Username,
		ConnectPassword: []byte(t.cfg.Password),
		ConnectRetryDelay: func() time.Duration {
			d := t.backoff.NextBackOff()
			if d == backoff.Stop {
				return 30 * time.Second
			}
			return d
		}(),
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			t.logger.Info("mqtt connected to broker", "broker", t.cfg.BrokerURL, "participant", participantID)
			t.resubscribe(context.Background(), cm)
		},
		OnConnectError: func(err error) {
			t.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: participantID,
			OnPublishReceived: []func(autopaho.PublishReceived) (bool, error){
				t.onPublishReceived,
			},
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	t.mu.Lock()
	t.cm = cm
	t.mu.Unlock()

	connCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		t.logger.Warn("mqtt initial connection timed out, retrying in background", "error", err)
	}
	return nil
}

func (t *Transport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	cm := t.cm
	t.mu.Unlock()
	if cm == nil {
		return nil
	}
	return cm.Disconnect(ctx)
}

func (t *Transport) Publish(ctx context.Context, topic bus.Topic, payload []byte) error {
	t.mu.Lock()
	cm := t.cm
	t.mu.Unlock()
	if cm == nil {
		return fmt.Errorf("mqtt transport not connected")
	}
	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   t.topicString(topic),
		Payload: payload,
		QoS:     0,
	})
	if err != nil {
		return fmt.Errorf("mqtt publish %s: %w", topic, err)
	}
	return nil
}

func (t *Transport) Subscribe(topic bus.Topic, handler func(payload []byte)) error {
	t.mu.Lock()
	t.handlers[topic] = append(t.handlers[topic], handler)
	cm := t.cm
	t.mu.Unlock()
	if cm != nil {
		t.resubscribe(context.Background(), cm)
	}
	return nil
}

func (t *Transport) resubscribe(ctx context.Context, cm *autopaho.ConnectionManager) {
	t.mu.Lock()
	opts := make([]paho.SubscribeOptions, 0, len(t.handlers))
	for topic := range t.handlers {
		opts = append(opts, paho.SubscribeOptions{Topic: t.topicString(topic), QoS: 0})
	}
	t.mu.Unlock()
	if len(opts) == 0 {
		return
	}
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: opts}); err != nil {
		t.logger.Error("mqtt subscribe failed", "error", err)
	}
}

func (t *Transport) onPublishReceived(pr autopaho.PublishReceived) (bool, error) {
	t.mu.Lock()
	var matched []func([]byte)
	for topic, handlers := range t.handlers {
		if t.topicString(topic) == pr.Packet.Topic {
			matched = append(matched, handlers...)
		}
	}
	t.mu.Unlock()
	for _, h := range matched {
		h(pr.Packet.Payload)
	}
	return true, nil
}

func (t *Transport) NewUUID() string {
	return uuid.New().String()
}
