package app

import (
	"errors"
	"time"

	"github.com/bft-labs/mirage/internal/domain"
	"github.com/bft-labs/mirage/internal/ports"
)

// WorkerConfig carries the subset of endpoint configuration the async
// worker needs.
type WorkerConfig struct {
	Mode         domain.SocketMode
	PollInterval time.Duration
	Handler      ports.MessageHandler
}

// Worker runs the async transport poll loop on a dedicated goroutine for the
// whole Running period. It is the only goroutine that touches the socket
// between Open and shutdown.
//
// Each iteration attempts one non-blocking receive (receive-capable modes),
// drains the outbound queue with non-blocking sends (send-capable modes),
// then sleeps the poll interval. The interval is the upper bound on both
// receive latency and shutdown latency.
type Worker struct {
	cfg     WorkerConfig
	socket  ports.AsyncSocket
	queue   *OutboundQueue
	running func() bool
	onFatal func(err error)
	emitter ports.TrafficEmitter
	logger  ports.Logger
}

// NewWorker creates an async worker. running is the lock-free running-flag
// read; onFatal is invoked at most once when the worker hits a fatal
// transport fault and is about to exit.
func NewWorker(
	cfg WorkerConfig,
	socket ports.AsyncSocket,
	queue *OutboundQueue,
	running func() bool,
	onFatal func(err error),
	emitter ports.TrafficEmitter,
	logger ports.Logger,
) *Worker {
	return &Worker{
		cfg:     cfg,
		socket:  socket,
		queue:   queue,
		running: running,
		onFatal: onFatal,
		emitter: emitter,
		logger:  logger,
	}
}

// Run executes the poll loop until the running flag clears or a fatal
// transport fault occurs. Fatal faults are reported through onFatal, never
// as a panic or error across the goroutine boundary.
func (w *Worker) Run() {
	if err := w.socket.Open(); err != nil {
		w.logger.Error("async socket setup failed", ports.Err(err))
		w.onFatal(err)
		return
	}

	canRecv := w.cfg.Mode.CanRecv()
	canSend := w.cfg.Mode.CanSend()

	for w.running() {
		if canRecv {
			if !w.recvOnce() {
				return
			}
		}
		if canSend {
			if !w.drainOnce() {
				return
			}
		}
		time.Sleep(w.cfg.PollInterval)
	}

	w.logger.Debug("async worker stopped")
}

// recvOnce attempts a single non-blocking receive and dispatches the payload
// to the handler. Returns false when the worker must exit.
func (w *Worker) recvOnce() bool {
	msg, err := w.socket.TryRecv()
	if err != nil {
		if errors.Is(err, domain.ErrWouldBlock) {
			return true
		}
		w.logger.Error("async receive failed", ports.Err(err))
		w.onFatal(err)
		return false
	}

	if msg.Empty() || w.cfg.Handler == nil {
		return true
	}

	// Handler runs on the worker goroutine; it must not block.
	w.cfg.Handler(msg)
	if w.emitter != nil {
		w.emitter.OnMessageReceived(len(msg.Payload))
	}
	return true
}

// drainOnce sends queued messages until the queue is empty or the transport
// pushes back. The queue lock is not held during the send, so producers keep
// enqueuing concurrently. Returns false when the worker must exit.
func (w *Worker) drainOnce() bool {
	for w.running() {
		msg, ok := w.queue.Peek()
		if !ok {
			return true
		}

		err := w.socket.TrySend(msg)
		if err == nil {
			w.queue.Commit()
			if w.emitter != nil {
				w.emitter.OnMessageSent(len(msg.Payload))
			}
			continue
		}

		if errors.Is(err, domain.ErrWouldBlock) {
			// Backpressure: the message stays at the front of the queue
			// and is retried next iteration.
			return true
		}
		if errors.Is(err, domain.ErrTransportClosed) {
			w.logger.Error("async send failed", ports.Err(err))
			w.onFatal(err)
			return false
		}

		// Transient transport error: keep the message, stop draining for
		// this iteration.
		w.logger.Error("async send failed", ports.Err(err))
		return true
	}
	return true
}
