package mirage

import (
	"errors"
	"testing"
)

func TestAddressBuilders(t *testing.T) {
	if got := SyncAddress("127.0.0.1", 50051); got != "127.0.0.1:50051" {
		t.Errorf("SyncAddress = %q, want %q", got, "127.0.0.1:50051")
	}
	if got := AsyncIPCAddress("foo"); got != "ipc:///tmp/foo.sock" {
		t.Errorf("AsyncIPCAddress = %q, want %q", got, "ipc:///tmp/foo.sock")
	}
	if got := AsyncTCPAddress("*", 5555); got != "tcp://*:5555" {
		t.Errorf("AsyncTCPAddress = %q, want %q", got, "tcp://*:5555")
	}
}

func TestConfig_SetSyncAddr(t *testing.T) {
	var cfg Config

	if err := cfg.SetSyncAddr("localhost", 50051); err != nil {
		t.Fatalf("SetSyncAddr: %v", err)
	}
	if cfg.SyncAddr != "localhost:50051" {
		t.Errorf("SyncAddr = %q, want %q", cfg.SyncAddr, "localhost:50051")
	}

	tests := []struct {
		name string
		host string
		port int
	}{
		{name: "empty host", host: "", port: 50051},
		{name: "port zero", host: "localhost", port: 0},
		{name: "negative port", host: "localhost", port: -1},
		{name: "port too large", host: "localhost", port: 65536},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Config
			if err := c.SetSyncAddr(tt.host, tt.port); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("SetSyncAddr(%q, %d) = %v, want ErrInvalidConfig", tt.host, tt.port, err)
			}
		})
	}
}

func TestConfig_SetAsyncIPCAddr(t *testing.T) {
	var cfg Config

	if err := cfg.SetAsyncIPCAddr("mirage-feed_1.0"); err != nil {
		t.Fatalf("SetAsyncIPCAddr: %v", err)
	}
	if cfg.AsyncAddr != "ipc:///tmp/mirage-feed_1.0.sock" {
		t.Errorf("AsyncAddr = %q", cfg.AsyncAddr)
	}

	for _, name := range []string{"", "../etc/passwd", "has space", "semi;colon"} {
		var c Config
		if err := c.SetAsyncIPCAddr(name); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("SetAsyncIPCAddr(%q) = %v, want ErrInvalidConfig", name, err)
		}
	}
}

func TestConfig_SetAsyncTCPAddr(t *testing.T) {
	var cfg Config

	if err := cfg.SetAsyncTCPAddr("10.0.0.5", 5555); err != nil {
		t.Fatalf("SetAsyncTCPAddr: %v", err)
	}
	if cfg.AsyncAddr != "tcp://10.0.0.5:5555" {
		t.Errorf("AsyncAddr = %q", cfg.AsyncAddr)
	}

	var c Config
	if err := c.SetAsyncTCPAddr("10.0.0.5", 0); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("SetAsyncTCPAddr port 0 = %v, want ErrInvalidConfig", err)
	}
}
