package mirage

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"

	"github.com/bft-labs/mirage/internal/adapters/grpcx"
	"github.com/bft-labs/mirage/internal/app"
	"github.com/bft-labs/mirage/internal/domain"
	"github.com/bft-labs/mirage/internal/ports"
	"github.com/bft-labs/mirage/pkg/lifecycle"
	"github.com/bft-labs/mirage/pkg/log"
)

// ServiceDescriptor registers a sync RPC service implementation with the
// server-side dispatcher at start.
type ServiceDescriptor = grpcx.ServiceDescriptor

// ServiceFunc adapts a registration function to a ServiceDescriptor.
type ServiceFunc = grpcx.ServiceFunc

// Sentinel errors surfaced by the endpoint API.
var (
	ErrInvalidConfig  = domain.ErrInvalidConfig
	ErrAlreadyRunning = domain.ErrAlreadyRunning
	ErrNotRunning     = domain.ErrNotRunning
	ErrConnectTimeout = domain.ErrConnectTimeout
	ErrInvalidPayload = domain.ErrInvalidPayload
)

// Endpoint combines a synchronous RPC transport and an asynchronous
// messaging transport under one lifecycle.
//
// Start and Stop are serialized; Send and the read accessors may be called
// from any goroutine. A fatal async transport fault moves the endpoint to
// the Errored state, observable through State and the event handler; it is
// never raised as an error on another call path.
type Endpoint struct {
	// mu serializes the structural lifecycle calls: Start, Stop, Reset.
	mu sync.Mutex

	cfg  Config
	opts options

	manager *lifecycle.Manager
	emitter *eventEmitterWrapper
	logger  log.Logger

	// resMu guards the per-generation resources with short holds, so Send
	// never waits behind a Start blocked in connection establishment.
	resMu    sync.RWMutex
	queue    *app.OutboundQueue
	socket   ports.AsyncSocket
	syncTr   ports.SyncTransport
	reaper   *app.Reaper
	faultErr error
}

// New creates an endpoint over a validated copy of cfg. The configuration
// is immutable afterwards.
func New(cfg Config, opts ...Option) (*Endpoint, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	emitter := &eventEmitterWrapper{handler: o.handler}
	return &Endpoint{
		cfg:     cfg,
		opts:    o,
		manager: lifecycle.NewManager(o.logger, emitter),
		emitter: emitter,
		logger:  o.logger,
	}, nil
}

// Start brings both transports up and moves the endpoint to Running.
//
// The sequence is fixed: validate, transition to Starting, create the
// outbound queue and async socket, spawn the async worker, then establish
// the sync transport. For the server role establishment binds and begins
// serving; for the client role it blocks until the server is reachable,
// bounded by the connect timeout. Any failure tears down everything that
// was created and returns the original error.
//
// Calling Start on an endpoint that is not Idle is a logged no-op returning
// ErrAlreadyRunning.
func (e *Endpoint) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.cfg.Validate(); err != nil {
		return err
	}

	if state := e.manager.State(); state != lifecycle.StateIdle {
		e.logger.Warn("start ignored",
			log.String("state", state.String()),
		)
		return domain.ErrAlreadyRunning
	}

	if err := e.manager.TransitionTo(lifecycle.StateStarting, "start requested"); err != nil {
		return err
	}

	queue := app.NewOutboundQueue(
		e.cfg.QueueHWM,
		e.cfg.QueuePolicy,
		func() bool { return e.manager.State() == lifecycle.StateRunning },
		e.emitter,
		e.logger,
	)
	socket := e.opts.transports.newAsyncSocket(e.cfg, e.logger)
	syncTr := e.opts.transports.newSyncTransport(e.cfg, e.logger)
	reaper := app.NewReaper(e.manager, queue, syncTr, socket, e.opts.shutdownTimeout, e.logger)

	e.resMu.Lock()
	e.queue = queue
	e.socket = socket
	e.syncTr = syncTr
	e.reaper = reaper
	e.faultErr = nil
	e.resMu.Unlock()

	worker := app.NewWorker(app.WorkerConfig{
		Mode:         e.cfg.Mode,
		PollInterval: e.cfg.PollInterval,
		Handler:      e.cfg.Handler,
	}, socket, queue, e.manager.IsRunning, e.onWorkerFault, e.emitter, e.logger)

	e.manager.AddWorker()
	go func() {
		defer e.manager.WorkerDone()
		worker.Run()
	}()

	if err := syncTr.Establish(ctx); err != nil {
		e.logger.Error("sync transport setup failed", log.Err(err))
		// Clearing the running flag lets the worker exit before the
		// reaper joins it. The transition fails only if the worker
		// already faulted to Errored; teardown is shared either way.
		_ = e.manager.TransitionTo(lifecycle.StateStopped, "start failed")
		reaper.Reap()
		return err
	}

	if err := e.manager.TransitionTo(lifecycle.StateRunning, "transports established"); err != nil {
		// The worker faulted while the sync transport was connecting.
		ferr := e.loadFaultErr()
		reaper.Reap()
		if ferr == nil {
			ferr = err
		}
		return ferr
	}

	e.logger.Info("endpoint started",
		log.String("role", e.cfg.Role.String()),
		log.String("mode", e.cfg.Mode.String()),
		log.String("sync_addr", e.cfg.SyncAddr),
		log.String("async_addr", e.cfg.AsyncAddr),
	)
	return nil
}

// Stop gracefully tears the endpoint down. It is idempotent: stopping an
// endpoint that is not Running is a no-op, and after a transport fault it
// only waits for the shared teardown to finish.
func (e *Endpoint) Stop() error {
	e.mu.Lock()

	switch e.manager.State() {
	case lifecycle.StateRunning:
	case lifecycle.StateErrored:
		reaper := e.currentReaper()
		e.mu.Unlock()
		if reaper != nil {
			reaper.Reap()
		}
		return nil
	default:
		e.logger.Debug("stop ignored",
			log.String("state", e.manager.State().String()),
		)
		e.mu.Unlock()
		return nil
	}

	if err := e.manager.TransitionTo(lifecycle.StateStopping, "stop requested"); err != nil {
		// Lost the race against a worker fault; join its teardown.
		reaper := e.currentReaper()
		e.mu.Unlock()
		if reaper != nil {
			reaper.Reap()
		}
		return nil
	}

	reaper := e.currentReaper()
	e.mu.Unlock()

	reaper.Reap()
	_ = e.manager.TransitionTo(lifecycle.StateStopped, "graceful shutdown")
	return nil
}

// Reset rearms a stopped endpoint for a fresh Start. Permitted only from
// the Stopped state; Errored is terminal for the instance.
func (e *Endpoint) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.manager.Reset("reset requested"); err != nil {
		return err
	}

	e.resMu.Lock()
	e.queue = nil
	e.socket = nil
	e.syncTr = nil
	e.reaper = nil
	e.faultErr = nil
	e.resMu.Unlock()
	return nil
}

// Send enqueues an outbound async payload. It fails with ErrNotRunning
// unless the endpoint is Running, and with ErrInvalidPayload for an empty
// message. At the queue high-water-mark the configured overflow policy
// applies; a drop is not an error.
func (e *Endpoint) Send(payload []byte) error {
	return e.SendMessage(Message{Payload: payload})
}

// SendString is Send for string payloads.
func (e *Endpoint) SendString(payload string) error {
	return e.SendMessage(Message{Payload: []byte(payload)})
}

// SendMessage enqueues an outbound message with an optional topic prefix.
func (e *Endpoint) SendMessage(msg Message) error {
	e.resMu.RLock()
	queue := e.queue
	e.resMu.RUnlock()

	if queue == nil {
		return domain.ErrNotRunning
	}
	return queue.Enqueue(msg)
}

// Subscribe adds a topic prefix filter to the async socket at runtime.
// The endpoint must be configured in sub mode and be Running; filters wanted
// from the first received message go in Config.Subscriptions instead.
func (e *Endpoint) Subscribe(topic string) error {
	return e.updateTopicFilter(topic, true)
}

// Unsubscribe removes a topic prefix filter added by Subscribe or carried in
// Config.Subscriptions.
func (e *Endpoint) Unsubscribe(topic string) error {
	return e.updateTopicFilter(topic, false)
}

func (e *Endpoint) updateTopicFilter(topic string, subscribe bool) error {
	if e.cfg.Mode != domain.ModeSub {
		return fmt.Errorf("topic filters require sub mode, mode is %s: %w", e.cfg.Mode, domain.ErrInvalidConfig)
	}

	e.resMu.RLock()
	socket := e.socket
	e.resMu.RUnlock()

	if socket == nil || e.manager.State() != lifecycle.StateRunning {
		return domain.ErrNotRunning
	}
	filters, ok := socket.(ports.TopicSocket)
	if !ok {
		return fmt.Errorf("async transport has no runtime topic filters: %w", domain.ErrInvalidConfig)
	}
	if subscribe {
		return filters.Subscribe(topic)
	}
	return filters.Unsubscribe(topic)
}

// IsRunning is a lock-free read of the running flag. The flag is true from
// the moment Start begins until the first teardown transition.
func (e *Endpoint) IsRunning() bool {
	return e.manager.IsRunning()
}

// State returns the current lifecycle state. After a fatal async transport
// fault this reports StateErrored; the fault is not surfaced anywhere else.
func (e *Endpoint) State() State {
	return e.manager.State()
}

// Channel returns the sync client channel for stub construction. It is nil
// for the server role or while the endpoint has no established channel.
func (e *Endpoint) Channel() grpc.ClientConnInterface {
	e.resMu.RLock()
	defer e.resMu.RUnlock()

	client, ok := e.syncTr.(*grpcx.Client)
	if !ok {
		return nil
	}
	return client.Conn()
}

// Dropped reports how many outbound messages the drop-on-full policy has
// discarded in the current generation.
func (e *Endpoint) Dropped() int64 {
	e.resMu.RLock()
	defer e.resMu.RUnlock()
	if e.queue == nil {
		return 0
	}
	return e.queue.Dropped()
}

// onWorkerFault runs on the worker goroutine when the async transport fails
// fatally. The teardown is handed to a fresh goroutine because the reaper
// joins the worker itself.
func (e *Endpoint) onWorkerFault(err error) {
	e.emitter.OnTransportFault(err)

	e.resMu.Lock()
	if e.faultErr == nil {
		e.faultErr = err
	}
	reaper := e.reaper
	e.resMu.Unlock()

	if terr := e.manager.TransitionTo(lifecycle.StateErrored, "transport fault: "+err.Error()); terr != nil {
		// A stop or failed start already owns the teardown.
		return
	}
	if reaper != nil {
		go reaper.Reap()
	}
}

func (e *Endpoint) currentReaper() *app.Reaper {
	e.resMu.RLock()
	defer e.resMu.RUnlock()
	return e.reaper
}

func (e *Endpoint) loadFaultErr() error {
	e.resMu.RLock()
	defer e.resMu.RUnlock()
	return e.faultErr
}
