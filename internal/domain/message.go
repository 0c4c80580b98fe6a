package domain

// Message is an opaque byte payload carried by the async transport.
// The core never interprets the payload content.
type Message struct {
	// Topic is an optional routing prefix used by pub/sub filtering.
	// When non-empty it is rendered as a prefix of the wire payload, which
	// is what subscribe-side prefix filters match against.
	Topic string

	// Payload is the message body.
	Payload []byte
}

// Empty reports whether the message carries no payload. A topic alone is
// not a sendable message; the payload must be non-empty.
func (m Message) Empty() bool {
	return len(m.Payload) == 0
}

// Bytes renders the wire form of the message: topic prefix (if any)
// followed by the payload.
func (m Message) Bytes() []byte {
	if m.Topic == "" {
		return m.Payload
	}
	b := make([]byte, 0, len(m.Topic)+len(m.Payload))
	b = append(b, m.Topic...)
	b = append(b, m.Payload...)
	return b
}
