package mirage

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/mirage/internal/app"
	"github.com/bft-labs/mirage/internal/domain"
	"github.com/bft-labs/mirage/internal/ports"
)

// Re-exported domain types so callers need a single import.
type (
	// Message is an opaque async payload with an optional topic prefix.
	Message = domain.Message

	// MessageHandler consumes inbound async payloads on the worker
	// goroutine. It must not block or perform long work.
	MessageHandler = ports.MessageHandler

	// SocketMode is the async socket pattern.
	SocketMode = domain.SocketMode

	// Role selects the server or client side of both transports.
	Role = domain.Role

	// OverflowPolicy selects the queue behavior at the high-water-mark.
	OverflowPolicy = app.OverflowPolicy
)

// Socket modes.
const (
	ModePub  = domain.ModePub
	ModeSub  = domain.ModeSub
	ModePush = domain.ModePush
	ModePull = domain.ModePull
	ModeReq  = domain.ModeReq
	ModeRep  = domain.ModeRep
)

// Roles.
const (
	RoleServer = domain.RoleServer
	RoleClient = domain.RoleClient
)

// Overflow policies.
const (
	BlockOnFull = app.BlockOnFull
	DropOnFull  = app.DropOnFull
)

// ParseSocketMode converts a configuration string ("pub", "subscribe", ...)
// into a SocketMode.
var ParseSocketMode = domain.ParseSocketMode

// Config holds the endpoint configuration. It is copied into the endpoint
// by New and immutable afterwards.
//
// Use DefaultServerConfig or DefaultClientConfig for role-appropriate
// defaults, then set the addresses with the Set* helpers.
type Config struct {
	// Role selects bind-and-serve (server) or connect (client) behavior
	// on both transports.
	Role Role

	// SyncAddr is the sync RPC transport address, "host:port".
	SyncAddr string

	// AsyncAddr is the async transport address, "tcp://host:port" or
	// "ipc:///path".
	AsyncAddr string

	// Mode is the async socket pattern.
	Mode SocketMode

	// Handler receives inbound async payloads. Required for
	// receive-capable modes (sub, pull, rep).
	Handler MessageHandler

	// Services are registered with the sync dispatcher at start.
	// Server role only.
	Services []ServiceDescriptor

	// Subscriptions are prefix filters applied in sub mode. Empty
	// subscribes to everything.
	Subscriptions []string

	// IOThreads sizes transport I/O concurrency where the underlying
	// transport exposes such a knob; transports that manage their own
	// I/O ignore it.
	IOThreads int

	// Linger is how long the async socket may flush pending output on
	// close.
	Linger time.Duration

	// RecvTimeout bounds each receive attempt in the worker loop.
	RecvTimeout time.Duration

	// ConnectTimeout bounds how long a client start waits for the sync
	// server to become reachable.
	ConnectTimeout time.Duration

	// MaxRecvMsgSize / MaxSendMsgSize cap sync transport message sizes.
	MaxRecvMsgSize int
	MaxSendMsgSize int

	// QueueHWM is the outbound queue high-water-mark.
	QueueHWM int

	// QueuePolicy selects what Send does at the high-water-mark.
	// The policy is explicit: BlockOnFull waits, DropOnFull discards.
	QueuePolicy OverflowPolicy

	// PollInterval paces the async worker loop. It is the upper bound on
	// both receive latency and shutdown latency.
	PollInterval time.Duration
}

const defaultMaxMsgSize = 4 << 20 // 4 MiB

// DefaultServerConfig returns server-role defaults: a pub socket that does
// not linger on close.
func DefaultServerConfig() Config {
	cfg := Config{
		Role:   RoleServer,
		Mode:   ModePub,
		Linger: 0,
	}
	cfg.SetDefaults()
	return cfg
}

// DefaultClientConfig returns client-role defaults: a sub socket with a
// one-second linger so pending output is flushed on disconnect.
func DefaultClientConfig() Config {
	cfg := Config{
		Role:   RoleClient,
		Mode:   ModeSub,
		Linger: time.Second,
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset numeric fields with defaults. Addresses, mode and
// handler are left to the caller.
func (c *Config) SetDefaults() {
	if c.IOThreads <= 0 {
		c.IOThreads = 1
	}
	if c.RecvTimeout <= 0 {
		c.RecvTimeout = 10 * time.Millisecond
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.MaxRecvMsgSize <= 0 {
		c.MaxRecvMsgSize = defaultMaxMsgSize
	}
	if c.MaxSendMsgSize <= 0 {
		c.MaxSendMsgSize = defaultMaxMsgSize
	}
	if c.QueueHWM <= 0 {
		c.QueueHWM = 1000
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Millisecond
	}
}

// Validate checks the configuration for well-formedness. It is pure: no
// resource is allocated for a doomed configuration.
func (c *Config) Validate() error {
	if !c.Role.Valid() {
		return fmt.Errorf("%w: unknown role", domain.ErrInvalidConfig)
	}
	if err := validateSyncAddr(c.SyncAddr); err != nil {
		return err
	}
	if err := validateAsyncAddr(c.AsyncAddr); err != nil {
		return err
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: unknown socket mode", domain.ErrInvalidConfig)
	}
	if c.Mode.CanRecv() && c.Handler == nil {
		return fmt.Errorf("%w: handler is required for %s mode", domain.ErrInvalidConfig, c.Mode)
	}
	if c.Role == RoleClient && len(c.Services) > 0 {
		return fmt.Errorf("%w: services require the server role", domain.ErrInvalidConfig)
	}
	if len(c.Subscriptions) > 0 && c.Mode != ModeSub {
		return fmt.Errorf("%w: subscriptions require sub mode", domain.ErrInvalidConfig)
	}
	if c.IOThreads <= 0 {
		return fmt.Errorf("%w: io threads must be positive", domain.ErrInvalidConfig)
	}
	if c.Linger < 0 {
		return fmt.Errorf("%w: linger must not be negative", domain.ErrInvalidConfig)
	}
	if c.RecvTimeout <= 0 {
		return fmt.Errorf("%w: receive timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect timeout must be positive", domain.ErrInvalidConfig)
	}
	if c.MaxRecvMsgSize <= 0 || c.MaxSendMsgSize <= 0 {
		return fmt.Errorf("%w: message size limits must be positive", domain.ErrInvalidConfig)
	}
	if c.QueueHWM <= 0 {
		return fmt.Errorf("%w: queue high-water-mark must be positive", domain.ErrInvalidConfig)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", domain.ErrInvalidConfig)
	}
	return nil
}

func validateSyncAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: sync address is required", domain.ErrInvalidConfig)
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("%w: sync address %q: %v", domain.ErrInvalidConfig, addr, err)
	}
	if host == "" {
		return fmt.Errorf("%w: sync address host is required", domain.ErrInvalidConfig)
	}
	if err := validatePort(portStr); err != nil {
		return fmt.Errorf("%w: sync address %q: %v", domain.ErrInvalidConfig, addr, err)
	}
	return nil
}

func validateAsyncAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: async address is required", domain.ErrInvalidConfig)
	}
	switch {
	case strings.HasPrefix(addr, "tcp://"):
		host, portStr, err := net.SplitHostPort(strings.TrimPrefix(addr, "tcp://"))
		if err != nil {
			return fmt.Errorf("%w: async address %q: %v", domain.ErrInvalidConfig, addr, err)
		}
		if host == "" {
			return fmt.Errorf("%w: async address host is required", domain.ErrInvalidConfig)
		}
		if err := validatePort(portStr); err != nil {
			return fmt.Errorf("%w: async address %q: %v", domain.ErrInvalidConfig, addr, err)
		}
		return nil
	case strings.HasPrefix(addr, "ipc://"):
		if strings.TrimPrefix(addr, "ipc://") == "" {
			return fmt.Errorf("%w: async address %q has an empty ipc path", domain.ErrInvalidConfig, addr)
		}
		return nil
	default:
		return fmt.Errorf("%w: async address %q must be tcp://host:port or ipc:///path", domain.ErrInvalidConfig, addr)
	}
}

func validatePort(s string) error {
	port, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("port %q is not a number", s)
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port %d out of range (0, 65535]", port)
	}
	return nil
}
