// Package ports defines the interfaces (ports) that connect the application
// layer to the transport adapters.
//
// Ports are the boundaries between the endpoint core and the outside world.
// They define what the core needs from the two transports without specifying
// how those needs are fulfilled.
//
// # Port Interfaces
//
//   - [AsyncSocket]: the asynchronous messaging socket (pub/sub, push/pull, req/rep)
//   - [SyncTransport]: the synchronous RPC transport (server or client side)
//   - [MessageHandler]: caller-supplied sink for inbound async payloads
//   - [Logger]: structured logging abstraction
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with concrete
// transports. This separation enables testing the lifecycle and worker logic
// with mock implementations and keeps the transport handles single-owner.
package ports
