package grpcx

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bft-labs/mirage/internal/domain"
	"github.com/bft-labs/mirage/pkg/log"
)

func healthService() ServiceDescriptor {
	return ServiceFunc(func(r grpc.ServiceRegistrar) {
		grpc_health_v1.RegisterHealthServer(r, health.NewServer())
	})
}

func TestServerClientRoundTrip(t *testing.T) {
	srv := NewServer(ServerOptions{
		Addr:           "127.0.0.1:0",
		MaxRecvMsgSize: 4 << 20,
		MaxSendMsgSize: 4 << 20,
		Services:       []ServiceDescriptor{healthService()},
	}, log.NewNoopLogger())

	if err := srv.Establish(context.Background()); err != nil {
		t.Fatalf("server Establish: %v", err)
	}
	defer func() {
		srv.Shutdown()
		_ = srv.Close()
	}()

	cli := NewClient(ClientOptions{
		Addr:           srv.Addr(),
		ConnectTimeout: 5 * time.Second,
		MaxRecvMsgSize: 4 << 20,
		MaxSendMsgSize: 4 << 20,
	}, log.NewNoopLogger())

	if err := cli.Establish(context.Background()); err != nil {
		t.Fatalf("client Establish: %v", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := grpc_health_v1.NewHealthClient(cli.Conn()).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("health status = %v, want SERVING", resp.GetStatus())
	}
}

func TestClient_ConnectTimeout(t *testing.T) {
	cli := NewClient(ClientOptions{
		Addr:           "127.0.0.1:1",
		ConnectTimeout: 300 * time.Millisecond,
		MaxRecvMsgSize: 4 << 20,
		MaxSendMsgSize: 4 << 20,
	}, log.NewNoopLogger())

	start := time.Now()
	err := cli.Establish(context.Background())
	if !errors.Is(err, domain.ErrConnectTimeout) {
		t.Fatalf("Establish = %v, want ErrConnectTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Establish took %s, want bounded by connect timeout", elapsed)
	}
	if cli.Conn() != nil {
		t.Error("Conn() != nil after failed Establish")
	}
}

func TestClient_EstablishCanceled(t *testing.T) {
	cli := NewClient(ClientOptions{
		Addr:           "127.0.0.1:1",
		ConnectTimeout: time.Minute,
		MaxRecvMsgSize: 4 << 20,
		MaxSendMsgSize: 4 << 20,
	}, log.NewNoopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := cli.Establish(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Establish = %v, want context.Canceled", err)
	}
	if errors.Is(err, domain.ErrConnectTimeout) {
		t.Error("cancellation reported as a connect timeout")
	}
	if cli.Conn() != nil {
		t.Error("Conn() != nil after canceled Establish")
	}
}

func TestServer_ShutdownIdempotent(t *testing.T) {
	srv := NewServer(ServerOptions{
		Addr:           "127.0.0.1:0",
		MaxRecvMsgSize: 4 << 20,
		MaxSendMsgSize: 4 << 20,
		Services:       []ServiceDescriptor{healthService()},
	}, log.NewNoopLogger())

	if err := srv.Establish(context.Background()); err != nil {
		t.Fatalf("Establish: %v", err)
	}

	done := make(chan struct{})
	go func() {
		srv.Shutdown()
		srv.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("repeated Shutdown blocked")
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
