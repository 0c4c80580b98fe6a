// Package mirage provides a dual-transport service endpoint: a synchronous
// RPC transport for request/response calls and an asynchronous messaging
// transport for pub/sub and push/pull streams, combined under one lifecycle.
//
// An Endpoint is created with New over a Config, started with Start and
// torn down with Stop. Outbound async messages go through Send into a
// bounded queue drained by a dedicated worker goroutine; inbound async
// messages are delivered to the configured handler on that same goroutine.
// Sync RPC services are registered through ServiceDescriptors on the server
// role and called through Channel on the client role.
package mirage
