// Package memtransport is an in-process [bus.Transport] used by tests
// and by single-process deployments that front only one manikin.
// Delivery is synchronous and in-order, grounded on the teacher's
// internal/events broadcast bus but keyed by topic rather than fanning
// every payload to every subscriber.
package memtransport

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/AdvancedModularManikin/tcp-bridge/internal/bus"
)

// Transport is an in-process implementation of [bus.Transport].
// All participants constructed against the same *Transport share the
// same topic fanout, exactly as separate processes would share a real
// broker.
type Transport struct {
	mu       sync.RWMutex
	handlers map[bus.Topic][]func([]byte)
}

// New returns a ready-to-use in-process transport.
func New() *Transport {
	return &Transport{handlers: make(map[bus.Topic][]func([]byte))}
}

func (t *Transport) Connect(ctx context.Context, participantID string) error { return nil }

func (t *Transport) Disconnect(ctx context.Context) error { return nil }

func (t *Transport) Publish(ctx context.Context, topic bus.Topic, payload []byte) error {
	t.mu.RLock()
	handlers := append([]func([]byte){}, t.handlers[topic]...)
	t.mu.RUnlock()
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (t *Transport) Subscribe(topic bus.Topic, handler func(payload []byte)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[topic] = append(t.handlers[topic], handler)
	return nil
}

func (t *Transport) NewUUID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		// uuid.NewRandom only fails if crypto/rand is broken; fall back
		// to a plain random hex string rather than panic.
		var b [16]byte
		_, _ = rand.Read(b[:])
		return fmt.Sprintf("%x", b)
	}
	return id.String()
}
