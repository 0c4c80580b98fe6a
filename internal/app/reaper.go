package app

import (
	"sync"
	"time"

	"github.com/bft-labs/mirage/internal/ports"
	"github.com/bft-labs/mirage/pkg/lifecycle"
)

// Reaper performs deterministic, ordered teardown of endpoint resources.
//
// One reaper is created per lifecycle generation and every exit path shares
// it: graceful stop, failed start and worker-detected fault all call Reap,
// which runs at most once. The fixed order prevents any goroutine from using
// a handle that has already been closed:
//
//  1. wake producers blocked on the outbound queue (the running flag has
//     already been cleared by the state transition that preceded Reap)
//  2. signal the sync transport to stop and join its dispatch loop
//  3. join the async worker, which observes the cleared flag
//  4. close the async socket together with its I/O resources
//  5. discard any remaining queued outbound messages
//  6. release the remaining sync transport handles
type Reaper struct {
	once    sync.Once
	manager *lifecycle.Manager
	queue   *OutboundQueue
	sync    ports.SyncTransport
	socket  ports.AsyncSocket
	timeout time.Duration
	logger  ports.Logger
}

// NewReaper wires a reaper over the resources of one lifecycle generation.
// Any of sync/socket may be nil when start failed before creating them.
func NewReaper(
	manager *lifecycle.Manager,
	queue *OutboundQueue,
	syncTransport ports.SyncTransport,
	socket ports.AsyncSocket,
	timeout time.Duration,
	logger ports.Logger,
) *Reaper {
	if timeout <= 0 {
		timeout = lifecycle.ShutdownTimeout
	}
	return &Reaper{
		manager: manager,
		queue:   queue,
		sync:    syncTransport,
		socket:  socket,
		timeout: timeout,
		logger:  logger,
	}
}

// Reap tears everything down exactly once. Safe to call from multiple exit
// paths concurrently; later calls return after the first completes its work.
func (r *Reaper) Reap() {
	r.once.Do(r.reap)
}

func (r *Reaper) reap() {
	if r.queue != nil {
		r.queue.Close()
	}

	if r.sync != nil {
		r.sync.Shutdown()
	}

	if err := r.manager.WaitWithTimeout(r.timeout); err != nil {
		r.logger.Warn("worker join timed out", ports.Err(err))
	}

	if r.socket != nil {
		if err := r.socket.Close(); err != nil {
			r.logger.Warn("async socket close failed", ports.Err(err))
		}
	}

	if r.queue != nil {
		if n := r.queue.DiscardAll(); n > 0 {
			r.logger.Info("discarded queued outbound messages", ports.Int("count", n))
		}
	}

	if r.sync != nil {
		if err := r.sync.Close(); err != nil {
			r.logger.Warn("sync transport close failed", ports.Err(err))
		}
	}
}
