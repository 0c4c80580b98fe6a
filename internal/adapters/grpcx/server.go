package grpcx

import (
	"context"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"

	"github.com/bft-labs/mirage/internal/ports"
)

// ServiceDescriptor is the registration capability a caller supplies for
// each concrete RPC service the endpoint should expose. Generated gRPC
// service implementations satisfy it via a one-line adapter; see ServiceFunc.
type ServiceDescriptor interface {
	// Register attaches the service to the dispatcher.
	Register(grpc.ServiceRegistrar)
}

// ServiceFunc adapts a registration function to ServiceDescriptor.
type ServiceFunc func(grpc.ServiceRegistrar)

// Register calls f.
func (f ServiceFunc) Register(r grpc.ServiceRegistrar) { f(r) }

// ServerOptions carries the sync-transport slice of the endpoint
// configuration for the server role.
type ServerOptions struct {
	Addr           string
	MaxRecvMsgSize int
	MaxSendMsgSize int
	Services       []ServiceDescriptor
}

// Server runs the synchronous RPC dispatch loop on its own goroutine.
// It implements ports.SyncTransport.
type Server struct {
	opts ServerOptions

	mu       sync.Mutex
	lis      net.Listener
	srv      *grpc.Server
	serveWG  sync.WaitGroup
	shutOnce sync.Once
	logger   ports.Logger
}

var _ ports.SyncTransport = (*Server)(nil)

// NewServer creates the server without binding anything.
func NewServer(opts ServerOptions, logger ports.Logger) *Server {
	return &Server{opts: opts, logger: logger}
}

// Establish binds the listener, registers the configured services and
// starts the dispatch loop. The server is reachable once this returns nil.
func (s *Server) Establish(_ context.Context) error {
	lis, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.opts.Addr, err)
	}

	srv := grpc.NewServer(
		grpc.MaxRecvMsgSize(s.opts.MaxRecvMsgSize),
		grpc.MaxSendMsgSize(s.opts.MaxSendMsgSize),
	)
	for _, svc := range s.opts.Services {
		svc.Register(srv)
	}

	s.mu.Lock()
	s.lis = lis
	s.srv = srv
	s.mu.Unlock()

	s.serveWG.Add(1)
	go func() {
		defer s.serveWG.Done()
		if err := srv.Serve(lis); err != nil {
			s.logger.Error("sync dispatch loop exited", ports.Err(err))
		}
	}()

	s.logger.Info("sync server listening", ports.String("addr", lis.Addr().String()))
	return nil
}

// Addr returns the bound listener address, or the configured address when
// the listener is not up.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return s.lis.Addr().String()
	}
	return s.opts.Addr
}

// Shutdown stops accepting new calls, drains in-flight RPCs and joins the
// dispatch goroutine. Idempotent.
func (s *Server) Shutdown() {
	s.shutOnce.Do(func() {
		s.mu.Lock()
		srv := s.srv
		s.mu.Unlock()
		if srv != nil {
			srv.GracefulStop()
		}
		s.serveWG.Wait()
	})
}

// Close releases the listener when the dispatch loop never started.
// GracefulStop already closed it otherwise.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil && s.lis != nil {
		err := s.lis.Close()
		s.lis = nil
		return err
	}
	s.lis = nil
	s.srv = nil
	return nil
}
