// Package app contains the endpoint core: the bounded outbound queue, the
// async transport worker loop and the resource reaper. It depends only on
// the domain model and the ports interfaces; concrete transports live in
// internal/adapters.
package app
