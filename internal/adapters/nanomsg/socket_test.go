package nanomsg

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bft-labs/mirage/internal/domain"
	"github.com/bft-labs/mirage/pkg/log"
)

func ipcAddr(t *testing.T, name string) string {
	t.Helper()
	return "ipc://" + filepath.Join(t.TempDir(), name+".sock")
}

func TestPushPullRoundTrip(t *testing.T) {
	addr := ipcAddr(t, "pipe")

	puller := New(Options{
		Addr:        addr,
		Mode:        domain.ModePull,
		Role:        domain.RoleServer,
		RecvTimeout: 10 * time.Millisecond,
		QueueDepth:  8,
	}, log.NewNoopLogger())
	if err := puller.Open(); err != nil {
		t.Fatalf("pull Open: %v", err)
	}
	defer puller.Close()

	pusher := New(Options{
		Addr:       addr,
		Mode:       domain.ModePush,
		Role:       domain.RoleClient,
		QueueDepth: 8,
	}, log.NewNoopLogger())
	if err := pusher.Open(); err != nil {
		t.Fatalf("push Open: %v", err)
	}
	defer pusher.Close()

	// The dial is asynchronous; retry the send until the pipe is up.
	out := domain.Message{Payload: []byte("payload")}
	deadline := time.Now().Add(5 * time.Second)
	for {
		err := pusher.TrySend(out)
		if err == nil {
			break
		}
		if !errors.Is(err, domain.ErrWouldBlock) {
			t.Fatalf("TrySend: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("TrySend kept reporting backpressure")
		}
		time.Sleep(5 * time.Millisecond)
	}

	for {
		in, err := puller.TryRecv()
		if err == nil {
			if string(in.Payload) != "payload" {
				t.Errorf("received %q, want %q", in.Payload, "payload")
			}
			return
		}
		if !errors.Is(err, domain.ErrWouldBlock) {
			t.Fatalf("TryRecv: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("message never arrived")
		}
	}
}

func TestPubSub_TopicFilter(t *testing.T) {
	addr := ipcAddr(t, "feed")

	publisher := New(Options{
		Addr:       addr,
		Mode:       domain.ModePub,
		Role:       domain.RoleServer,
		QueueDepth: 8,
	}, log.NewNoopLogger())
	if err := publisher.Open(); err != nil {
		t.Fatalf("pub Open: %v", err)
	}
	defer publisher.Close()

	subscriber := New(Options{
		Addr:          addr,
		Mode:          domain.ModeSub,
		Role:          domain.RoleClient,
		RecvTimeout:   10 * time.Millisecond,
		QueueDepth:    8,
		Subscriptions: []string{"metrics."},
	}, log.NewNoopLogger())
	if err := subscriber.Open(); err != nil {
		t.Fatalf("sub Open: %v", err)
	}
	defer subscriber.Close()

	// Publish both topics until the subscriber observes one; the filter
	// must never deliver the unsubscribed topic.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = publisher.TrySend(domain.Message{Topic: "metrics.", Payload: []byte("cpu=1")})
		_ = publisher.TrySend(domain.Message{Topic: "logs.", Payload: []byte("noise")})

		in, err := subscriber.TryRecv()
		if err == nil {
			if !strings.HasPrefix(string(in.Payload), "metrics.") {
				t.Fatalf("received %q, want only metrics.* messages", in.Payload)
			}
			return
		}
		if !errors.Is(err, domain.ErrWouldBlock) {
			t.Fatalf("TryRecv: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("no subscribed message arrived")
		}
	}
}

func TestSubscribe_RuntimeTopicFilter(t *testing.T) {
	addr := ipcAddr(t, "live")

	publisher := New(Options{
		Addr:       addr,
		Mode:       domain.ModePub,
		Role:       domain.RoleServer,
		QueueDepth: 8,
	}, log.NewNoopLogger())
	if err := publisher.Open(); err != nil {
		t.Fatalf("pub Open: %v", err)
	}
	defer publisher.Close()

	subscriber := New(Options{
		Addr:          addr,
		Mode:          domain.ModeSub,
		Role:          domain.RoleClient,
		RecvTimeout:   10 * time.Millisecond,
		QueueDepth:    8,
		Subscriptions: []string{"alpha."},
	}, log.NewNoopLogger())
	if err := subscriber.Open(); err != nil {
		t.Fatalf("sub Open: %v", err)
	}
	defer subscriber.Close()

	if err := subscriber.Subscribe("beta."); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Only beta.* frames are published; nothing arrives unless the runtime
	// filter took effect.
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = publisher.TrySend(domain.Message{Topic: "beta.", Payload: []byte("late-filter")})

		in, err := subscriber.TryRecv()
		if err == nil {
			if !strings.HasPrefix(string(in.Payload), "beta.") {
				t.Fatalf("received %q, want a beta.* message", in.Payload)
			}
			break
		}
		if !errors.Is(err, domain.ErrWouldBlock) {
			t.Fatalf("TryRecv: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("runtime subscription never delivered a message")
		}
	}

	if err := subscriber.Unsubscribe("beta."); err != nil {
		t.Errorf("Unsubscribe: %v", err)
	}
}

func TestSubscribe_RequiresSubMode(t *testing.T) {
	sock := New(Options{
		Addr: ipcAddr(t, "nosub"),
		Mode: domain.ModePush,
		Role: domain.RoleClient,
	}, log.NewNoopLogger())

	if err := sock.Subscribe("metrics."); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("Subscribe on push socket = %v, want ErrInvalidConfig", err)
	}
	if err := sock.Unsubscribe("metrics."); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("Unsubscribe on push socket = %v, want ErrInvalidConfig", err)
	}
}

func TestSubscribe_BeforeOpen(t *testing.T) {
	sock := New(Options{
		Addr: ipcAddr(t, "unopened"),
		Mode: domain.ModeSub,
		Role: domain.RoleClient,
	}, log.NewNoopLogger())

	if err := sock.Subscribe("metrics."); !errors.Is(err, domain.ErrNotRunning) {
		t.Errorf("Subscribe before Open = %v, want ErrNotRunning", err)
	}
}

func TestTryRecv_AfterCloseReportsTransportClosed(t *testing.T) {
	addr := ipcAddr(t, "closed")

	sock := New(Options{
		Addr:        addr,
		Mode:        domain.ModePull,
		Role:        domain.RoleServer,
		RecvTimeout: 10 * time.Millisecond,
	}, log.NewNoopLogger())
	if err := sock.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := sock.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sock.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if _, err := sock.TryRecv(); !errors.Is(err, domain.ErrTransportClosed) {
		t.Errorf("TryRecv after Close = %v, want ErrTransportClosed", err)
	}
}

func TestOpen_UnknownTransport(t *testing.T) {
	sock := New(Options{
		Addr: "carrier-pigeon://coop",
		Mode: domain.ModePub,
		Role: domain.RoleServer,
	}, log.NewNoopLogger())

	if err := sock.Open(); err == nil {
		t.Error("Open succeeded for an unregistered transport scheme")
		sock.Close()
	}
}
