package app

import (
	"sync"

	"github.com/bft-labs/mirage/internal/domain"
	"github.com/bft-labs/mirage/internal/ports"
)

// OverflowPolicy selects what Enqueue does when the queue has reached the
// configured high-water-mark. The policy is explicit: producers either block
// until the worker drains a slot, or the new message is dropped and counted.
type OverflowPolicy int

const (
	// BlockOnFull makes Enqueue wait until space is available or the
	// endpoint shuts down.
	BlockOnFull OverflowPolicy = iota

	// DropOnFull makes Enqueue discard the new message and return nil.
	// Backpressure is never surfaced as an error.
	DropOnFull
)

// String returns a human-readable policy name.
func (p OverflowPolicy) String() string {
	switch p {
	case BlockOnFull:
		return "block"
	case DropOnFull:
		return "drop"
	default:
		return "unknown"
	}
}

// OutboundQueue is a bounded, mutex-protected FIFO of async payloads.
// It decouples producer goroutines from the async worker: Enqueue never
// blocks on network I/O, only on the lock (and on a full queue under
// BlockOnFull).
//
// The worker consumes with Peek/Commit so a message is only removed after
// the transport has accepted it; a would-block send leaves it at the front
// and the queue size never exceeds the high-water-mark.
type OutboundQueue struct {
	mu      sync.Mutex
	notFull *sync.Cond
	items   []domain.Message
	hwm     int
	policy  OverflowPolicy
	closed  bool
	dropped int64

	isRunning func() bool
	emitter   ports.TrafficEmitter
	logger    ports.Logger
}

// NewOutboundQueue creates a queue bounded at hwm messages.
// isRunning gates Enqueue on the endpoint being in the Running state.
func NewOutboundQueue(hwm int, policy OverflowPolicy, isRunning func() bool, emitter ports.TrafficEmitter, logger ports.Logger) *OutboundQueue {
	q := &OutboundQueue{
		hwm:       hwm,
		policy:    policy,
		isRunning: isRunning,
		emitter:   emitter,
		logger:    logger,
	}
	q.notFull = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a message for the async worker to send.
//
// It fails with domain.ErrInvalidPayload for an empty message and
// domain.ErrNotRunning when the endpoint is not running. At the
// high-water-mark the overflow policy applies; see OverflowPolicy.
func (q *OutboundQueue) Enqueue(msg domain.Message) error {
	if msg.Empty() {
		return domain.ErrInvalidPayload
	}
	if !q.isRunning() {
		return domain.ErrNotRunning
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) >= q.hwm {
		if q.closed {
			return domain.ErrNotRunning
		}
		if q.policy == DropOnFull {
			q.dropped++
			if q.emitter != nil {
				q.emitter.OnMessageDropped()
			}
			q.logger.Debug("outbound queue full, dropping message",
				ports.Int("hwm", q.hwm))
			return nil
		}
		q.notFull.Wait()
	}

	if q.closed {
		return domain.ErrNotRunning
	}

	q.items = append(q.items, msg)
	return nil
}

// Peek returns the message at the front of the queue without removing it.
// Only the async worker goroutine may call Peek and Commit.
func (q *OutboundQueue) Peek() (domain.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return domain.Message{}, false
	}
	return q.items[0], true
}

// Commit removes the front message after the transport accepted it and
// wakes one producer blocked on a full queue.
func (q *OutboundQueue) Commit() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return
	}
	q.items = q.items[1:]
	q.notFull.Signal()
}

// Len returns the current queue depth.
func (q *OutboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the number of messages discarded by DropOnFull.
func (q *OutboundQueue) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close marks the queue closed and wakes every blocked producer.
// Subsequent Enqueue calls fail with domain.ErrNotRunning.
func (q *OutboundQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notFull.Broadcast()
}

// DiscardAll empties the queue at teardown and returns how many messages
// were thrown away.
func (q *OutboundQueue) DiscardAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	q.notFull.Broadcast()
	return n
}
