package bus

import (
	"context"
	"encoding/json"
	"fmt"
)

// Participant is one bus participant's typed façade over a [Transport].
// A manikin owns exactly one Participant. Publish and Subscribe both
// handle the JSON envelope so callers never see raw bytes.
type Participant struct {
	id        string
	transport Transport
}

// NewParticipant wires id to transport. Connect must be called before
// Publish/Subscribe are used.
func NewParticipant(id string, transport Transport) *Participant {
	return &Participant{id: id, transport: transport}
}

// ID returns the participant's bus identity.
func (p *Participant) ID() string { return p.id }

// Connect establishes the participant's presence on the bus.
func (p *Participant) Connect(ctx context.Context) error {
	return p.transport.Connect(ctx, p.id)
}

// Disconnect tears down the participant's presence on the bus.
func (p *Participant) Disconnect(ctx context.Context) error {
	return p.transport.Disconnect(ctx)
}

// NewUUID mints a bus-wide unique identifier.
func (p *Participant) NewUUID() string {
	return p.transport.NewUUID()
}

// Publish JSON-encodes v and publishes it on topic.
func (p *Participant) Publish(ctx context.Context, topic Topic, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s sample: %w", topic, err)
	}
	return p.transport.Publish(ctx, topic, data)
}

// Subscribe decodes every payload received on topic into a fresh T and
// invokes handler. Decode failures are silently dropped — the
// transport layer is responsible for its own wire-format logging.
func Subscribe[T any](p *Participant, topic Topic, handler func(T)) error {
	return p.transport.Subscribe(topic, func(payload []byte) {
		var v T
		if err := json.Unmarshal(payload, &v); err != nil {
			return
		}
		handler(v)
	})
}
