package bus

import "context"

// Transport is the minimum contract the bridge needs from the
// underlying publish/subscribe medium. It is the thing spec.md calls
// "an external pub/sub library providing typed publishers, subscribers,
// and UUID generation" — genuinely out of scope for this engine, and
// kept pluggable so a real broker client can stand in for tests.
//
// Payloads cross the Transport boundary as opaque bytes (JSON-encoded
// by [Participant]); the transport itself never inspects them.
type Transport interface {
	// Connect establishes the participant's presence on the bus under
	// participantID. Implementations may use this for client ID
	// derivation, discovery announcements, or connection setup.
	Connect(ctx context.Context, participantID string) error

	// Disconnect tears down the participant's presence on the bus.
	Disconnect(ctx context.Context) error

	// Publish sends payload on topic.
	Publish(ctx context.Context, topic Topic, payload []byte) error

	// Subscribe registers handler to be invoked for every payload
	// received on topic. Subscribing to the same topic twice adds a
	// second independent handler.
	Subscribe(topic Topic, handler func(payload []byte)) error

	// NewUUID mints a bus-wide unique identifier, e.g. for event
	// records minted by the bridge itself.
	NewUUID() string
}
