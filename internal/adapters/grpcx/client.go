package grpcx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bft-labs/mirage/internal/domain"
	"github.com/bft-labs/mirage/internal/ports"
)

// ClientOptions carries the sync-transport slice of the endpoint
// configuration for the client role.
type ClientOptions struct {
	Addr           string
	ConnectTimeout time.Duration
	MaxRecvMsgSize int
	MaxSendMsgSize int
}

// Client owns the channel to the sync server. It implements
// ports.SyncTransport; callers build typed stubs over Conn().
type Client struct {
	opts ClientOptions

	mu     sync.Mutex
	conn   *grpc.ClientConn
	logger ports.Logger
}

var _ ports.SyncTransport = (*Client)(nil)

// NewClient creates the client without connecting.
func NewClient(opts ClientOptions, logger ports.Logger) *Client {
	return &Client{opts: opts, logger: logger}
}

// Establish creates the channel and blocks until the server is reachable,
// bounded by the connect timeout. On timeout the channel is released and
// domain.ErrConnectTimeout is returned.
func (c *Client) Establish(ctx context.Context) error {
	conn, err := grpc.NewClient(c.opts.Addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(c.opts.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(c.opts.MaxSendMsgSize),
		),
	)
	if err != nil {
		return fmt.Errorf("create channel %s: %w", c.opts.Addr, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	conn.Connect()
	for {
		state := conn.GetState()
		if state == connectivity.Ready {
			break
		}
		if !conn.WaitForStateChange(waitCtx, state) {
			_ = conn.Close()
			// The caller's context ending is cancellation, not an
			// unreachable server.
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("connect %s: %w", c.opts.Addr, err)
			}
			return fmt.Errorf("%w: %s after %s", domain.ErrConnectTimeout, c.opts.Addr, c.opts.ConnectTimeout)
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("sync channel ready", ports.String("addr", c.opts.Addr))
	return nil
}

// Conn returns the established channel for stub construction, or nil when
// the client is not connected.
func (c *Client) Conn() grpc.ClientConnInterface {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn
}

// Shutdown is a no-op for the client side; there is no dispatch loop to
// join.
func (c *Client) Shutdown() {}

// Close releases the channel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
