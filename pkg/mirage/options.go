package mirage

import (
	"time"

	"github.com/bft-labs/mirage/internal/adapters/grpcx"
	"github.com/bft-labs/mirage/internal/adapters/nanomsg"
	"github.com/bft-labs/mirage/internal/ports"
	"github.com/bft-labs/mirage/pkg/log"
)

// Option configures an Endpoint at construction time.
type Option func(*options)

type options struct {
	logger          log.Logger
	handler         EventHandler
	shutdownTimeout time.Duration
	transports      transportFactory
}

// transportFactory is the seam between the endpoint and the concrete
// transports. Tests substitute in-memory implementations here.
type transportFactory struct {
	newAsyncSocket   func(cfg Config, logger log.Logger) ports.AsyncSocket
	newSyncTransport func(cfg Config, logger log.Logger) ports.SyncTransport
}

func defaultOptions() options {
	return options{
		logger:     log.NewNoopLogger(),
		transports: defaultTransports(),
	}
}

func defaultTransports() transportFactory {
	return transportFactory{
		newAsyncSocket: func(cfg Config, logger log.Logger) ports.AsyncSocket {
			return nanomsg.New(nanomsg.Options{
				Addr:          cfg.AsyncAddr,
				Mode:          cfg.Mode,
				Role:          cfg.Role,
				Linger:        cfg.Linger,
				RecvTimeout:   cfg.RecvTimeout,
				QueueDepth:    cfg.QueueHWM,
				Subscriptions: cfg.Subscriptions,
			}, logger)
		},
		newSyncTransport: func(cfg Config, logger log.Logger) ports.SyncTransport {
			if cfg.Role == RoleServer {
				return grpcx.NewServer(grpcx.ServerOptions{
					Addr:           cfg.SyncAddr,
					MaxRecvMsgSize: cfg.MaxRecvMsgSize,
					MaxSendMsgSize: cfg.MaxSendMsgSize,
					Services:       cfg.Services,
				}, logger)
			}
			return grpcx.NewClient(grpcx.ClientOptions{
				Addr:           cfg.SyncAddr,
				ConnectTimeout: cfg.ConnectTimeout,
				MaxRecvMsgSize: cfg.MaxRecvMsgSize,
				MaxSendMsgSize: cfg.MaxSendMsgSize,
			}, logger)
		},
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler registers an observer for lifecycle and traffic events.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.handler = handler
	}
}

// WithShutdownTimeout bounds how long Stop waits for the async worker to
// exit. Defaults to the lifecycle package's shutdown timeout.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout > 0 {
			o.shutdownTimeout = timeout
		}
	}
}

// withTransports overrides the transport factory. Test hook.
func withTransports(tf transportFactory) Option {
	return func(o *options) {
		if tf.newAsyncSocket != nil {
			o.transports.newAsyncSocket = tf.newAsyncSocket
		}
		if tf.newSyncTransport != nil {
			o.transports.newSyncTransport = tf.newSyncTransport
		}
	}
}
