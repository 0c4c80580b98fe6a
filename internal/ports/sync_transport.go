package ports

import "context"

// SyncTransport is the synchronous RPC side of the endpoint.
//
// The server implementation binds a listener, registers the caller-supplied
// services and serves the dispatch loop on its own goroutine. The client
// implementation establishes a channel and blocks until the server is
// reachable or the context deadline elapses.
type SyncTransport interface {
	// Establish makes the transport usable. Server: bind and begin serving.
	// Client: connect and wait for reachability bounded by ctx.
	Establish(ctx context.Context) error

	// Shutdown signals the dispatch loop to stop accepting new calls and
	// joins it. Idempotent; no-op for the client side.
	Shutdown()

	// Close releases any remaining transport handles.
	Close() error
}

// TrafficEmitter receives message-level events from the endpoint core.
// Implementations must be safe for concurrent use; callbacks run on the
// worker and producer goroutines.
type TrafficEmitter interface {
	// OnMessageSent is called after a payload is handed to the transport.
	OnMessageSent(bytes int)

	// OnMessageReceived is called after an inbound payload is delivered
	// to the handler.
	OnMessageReceived(bytes int)

	// OnMessageDropped is called when the overflow policy discards a
	// payload at the high-water-mark.
	OnMessageDropped()
}
