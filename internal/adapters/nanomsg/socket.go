package nanomsg

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	"go.nanomsg.org/mangos/v3/protocol/pull"
	"go.nanomsg.org/mangos/v3/protocol/push"
	"go.nanomsg.org/mangos/v3/protocol/rep"
	"go.nanomsg.org/mangos/v3/protocol/req"
	"go.nanomsg.org/mangos/v3/protocol/sub"

	// Register the transports the address builders produce.
	_ "go.nanomsg.org/mangos/v3/transport/ipc"
	_ "go.nanomsg.org/mangos/v3/transport/tcp"

	"github.com/bft-labs/mirage/internal/domain"
	"github.com/bft-labs/mirage/internal/ports"
)

// sendDeadline bounds each send attempt so the worker loop observes
// backpressure as a would-block condition instead of stalling.
const sendDeadline = time.Millisecond

// Options carries the async-transport slice of the endpoint configuration.
type Options struct {
	// Addr is a tcp://host:port or ipc:///path address.
	Addr string

	// Mode selects the socket pattern.
	Mode domain.SocketMode

	// Role decides bind (server) versus connect (client).
	Role domain.Role

	// Linger is how long Close waits to flush pending output.
	Linger time.Duration

	// RecvTimeout bounds each receive attempt. It is the receive-side
	// contribution to the worker's per-iteration latency.
	RecvTimeout time.Duration

	// QueueDepth maps the configured high-water-mark onto the socket's
	// internal read/write queues.
	QueueDepth int

	// Subscriptions are the prefix filters for sub mode. Empty means
	// subscribe to everything.
	Subscriptions []string
}

// Socket adapts a mangos scalability-protocols socket to ports.AsyncSocket.
//
// mangos manages its own I/O goroutines internally, so closing the socket
// also releases the transport's I/O context.
type Socket struct {
	opts   Options
	logger ports.Logger

	// mu guards the socket handle: the worker goroutine owns TryRecv and
	// TrySend, but Subscribe/Unsubscribe and Close may run on other
	// goroutines while the worker is still opening the socket.
	mu   sync.Mutex
	sock mangos.Socket
}

var _ ports.AsyncSocket = (*Socket)(nil)
var _ ports.TopicSocket = (*Socket)(nil)

// New creates the socket handle without performing any I/O.
// The worker calls Open on its own goroutine.
func New(opts Options, logger ports.Logger) *Socket {
	if opts.RecvTimeout <= 0 {
		opts.RecvTimeout = time.Millisecond
	}
	return &Socket{opts: opts, logger: logger}
}

// Open creates the protocol socket, applies the configured options and
// binds or connects it according to the role.
func (s *Socket) Open() error {
	sock, err := newProtoSocket(s.opts.Mode)
	if err != nil {
		return fmt.Errorf("create %s socket: %w", s.opts.Mode, err)
	}

	if err := s.configure(sock); err != nil {
		_ = sock.Close()
		return err
	}

	switch s.opts.Role {
	case domain.RoleServer:
		err = sock.Listen(s.opts.Addr)
	default:
		// Connect asynchronously, matching messaging-socket semantics:
		// the peer may come up later and the socket keeps redialing.
		if oErr := sock.SetOption(mangos.OptionDialAsynch, true); oErr != nil && !errors.Is(oErr, mangos.ErrBadOption) {
			_ = sock.Close()
			return fmt.Errorf("set dial option: %w", oErr)
		}
		err = sock.Dial(s.opts.Addr)
	}
	if err != nil {
		_ = sock.Close()
		return fmt.Errorf("%s %s: %w", s.opts.Role, s.opts.Addr, err)
	}

	s.mu.Lock()
	s.sock = sock
	s.mu.Unlock()
	s.logger.Info("async socket open",
		ports.String("addr", s.opts.Addr),
		ports.String("mode", s.opts.Mode.String()),
		ports.String("role", s.opts.Role.String()),
	)
	return nil
}

func (s *Socket) configure(sock mangos.Socket) error {
	// Linger is best effort; not every protocol supports it.
	if s.opts.Linger > 0 {
		if err := sock.SetOption(mangos.OptionLinger, s.opts.Linger); err != nil && !errors.Is(err, mangos.ErrBadOption) {
			return fmt.Errorf("set linger: %w", err)
		}
	}

	if s.opts.Mode.CanRecv() {
		if err := sock.SetOption(mangos.OptionRecvDeadline, s.opts.RecvTimeout); err != nil {
			return fmt.Errorf("set receive deadline: %w", err)
		}
		if s.opts.QueueDepth > 0 {
			if err := sock.SetOption(mangos.OptionReadQLen, s.opts.QueueDepth); err != nil && !errors.Is(err, mangos.ErrBadOption) {
				return fmt.Errorf("set read queue length: %w", err)
			}
		}
	}

	if s.opts.Mode.CanSend() {
		if err := sock.SetOption(mangos.OptionSendDeadline, sendDeadline); err != nil {
			return fmt.Errorf("set send deadline: %w", err)
		}
		if s.opts.QueueDepth > 0 {
			if err := sock.SetOption(mangos.OptionWriteQLen, s.opts.QueueDepth); err != nil && !errors.Is(err, mangos.ErrBadOption) {
				return fmt.Errorf("set write queue length: %w", err)
			}
		}
	}

	if s.opts.Mode == domain.ModeSub {
		topics := s.opts.Subscriptions
		if len(topics) == 0 {
			topics = []string{""}
		}
		for _, topic := range topics {
			if err := sock.SetOption(mangos.OptionSubscribe, []byte(topic)); err != nil {
				return fmt.Errorf("subscribe %q: %w", topic, err)
			}
		}
	}

	return nil
}

// TryRecv attempts one bounded receive.
func (s *Socket) TryRecv() (domain.Message, error) {
	b, err := s.sock.Recv()
	if err != nil {
		switch {
		case errors.Is(err, mangos.ErrRecvTimeout):
			return domain.Message{}, domain.ErrWouldBlock
		case errors.Is(err, mangos.ErrClosed):
			return domain.Message{}, domain.ErrTransportClosed
		default:
			return domain.Message{}, fmt.Errorf("recv: %w", err)
		}
	}
	return domain.Message{Payload: b}, nil
}

// TrySend attempts one bounded send of the message's wire form.
func (s *Socket) TrySend(msg domain.Message) error {
	err := s.sock.Send(msg.Bytes())
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, mangos.ErrSendTimeout):
		return domain.ErrWouldBlock
	case errors.Is(err, mangos.ErrClosed):
		return domain.ErrTransportClosed
	default:
		return fmt.Errorf("send: %w", err)
	}
}

// Subscribe adds a topic prefix filter to an open sub socket.
func (s *Socket) Subscribe(topic string) error {
	return s.setTopicFilter(mangos.OptionSubscribe, topic)
}

// Unsubscribe removes a topic prefix filter added by Subscribe or carried in
// the initial options.
func (s *Socket) Unsubscribe(topic string) error {
	return s.setTopicFilter(mangos.OptionUnsubscribe, topic)
}

func (s *Socket) setTopicFilter(option, topic string) error {
	if s.opts.Mode != domain.ModeSub {
		return fmt.Errorf("topic filter on %s socket: %w", s.opts.Mode, domain.ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sock == nil {
		return domain.ErrNotRunning
	}
	if err := s.sock.SetOption(option, []byte(topic)); err != nil {
		if errors.Is(err, mangos.ErrClosed) {
			return domain.ErrTransportClosed
		}
		return fmt.Errorf("%s %q: %w", option, topic, err)
	}
	return nil
}

// Close releases the socket and its internal I/O resources. Idempotent.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sock == nil {
		return nil
	}
	err := s.sock.Close()
	if err != nil && !errors.Is(err, mangos.ErrClosed) {
		return err
	}
	return nil
}

func newProtoSocket(mode domain.SocketMode) (mangos.Socket, error) {
	switch mode {
	case domain.ModePub:
		return pub.NewSocket()
	case domain.ModeSub:
		return sub.NewSocket()
	case domain.ModePush:
		return push.NewSocket()
	case domain.ModePull:
		return pull.NewSocket()
	case domain.ModeReq:
		return req.NewSocket()
	case domain.ModeRep:
		return rep.NewSocket()
	default:
		return nil, fmt.Errorf("unsupported socket mode %d", mode)
	}
}
