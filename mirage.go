// Package mirage provides a dual-transport service endpoint: synchronous
// RPC and asynchronous pub/sub or push/pull messaging under one lifecycle.
//
// Example usage:
//
//	cfg := mirage.DefaultServerConfig()
//	if err := cfg.SetSyncAddr("127.0.0.1", 50051); err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.SetAsyncTCPAddr("127.0.0.1", 5555); err != nil {
//	    log.Fatal(err)
//	}
//	ep, err := mirage.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := ep.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer ep.Stop()
//	_ = ep.SendString("hello")
package mirage

import (
	endpoint "github.com/bft-labs/mirage/pkg/mirage"
)

// Endpoint combines both transports under one lifecycle.
// See pkg/mirage for the full API.
type Endpoint = endpoint.Endpoint

// Config holds the endpoint configuration.
// Use DefaultServerConfig or DefaultClientConfig for role-appropriate defaults.
type Config = endpoint.Config

// Message is an opaque async payload with an optional topic prefix.
type Message = endpoint.Message

// New creates an endpoint over a validated copy of cfg.
func New(cfg Config, opts ...endpoint.Option) (*Endpoint, error) {
	return endpoint.New(cfg, opts...)
}

// DefaultServerConfig returns server-role defaults.
func DefaultServerConfig() Config {
	return endpoint.DefaultServerConfig()
}

// DefaultClientConfig returns client-role defaults.
func DefaultClientConfig() Config {
	return endpoint.DefaultClientConfig()
}
