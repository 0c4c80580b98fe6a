package ports

import "github.com/bft-labs/mirage/internal/domain"

// MessageHandler consumes one inbound async payload.
//
// The handler is invoked synchronously on the async worker goroutine. It must
// not block or perform long work: while it runs, neither receiving nor queue
// draining makes progress.
type MessageHandler func(msg domain.Message)

// AsyncSocket is the asynchronous messaging socket handle.
//
// Ownership is exclusive: the endpoint creates the socket, only the async
// worker goroutine calls TryRecv/TrySend between Open and shutdown, and the
// reaper calls Close after the worker has been joined.
type AsyncSocket interface {
	// Open binds (server role) or connects (client role) the socket.
	Open() error

	// TryRecv attempts a non-blocking receive. It returns
	// domain.ErrWouldBlock when no message is pending, and
	// domain.ErrTransportClosed or another error on a fatal fault.
	TryRecv() (domain.Message, error)

	// TrySend attempts a non-blocking send. It returns domain.ErrWouldBlock
	// when the transport cannot accept the message right now (backpressure),
	// and domain.ErrTransportClosed when the socket is gone.
	TrySend(msg domain.Message) error

	// Close releases the socket and its I/O resources.
	Close() error
}

// TopicSocket is implemented by async sockets whose subscription filters can
// change while the socket is open. Only sub-mode sockets support it; filters
// for other modes fail with domain.ErrInvalidConfig.
//
// Unlike TryRecv/TrySend, Subscribe and Unsubscribe may be called from any
// goroutine.
type TopicSocket interface {
	// Subscribe adds a topic prefix filter.
	Subscribe(topic string) error

	// Unsubscribe removes a topic prefix filter added by Subscribe or
	// carried in the socket's initial options.
	Unsubscribe(topic string) error
}
