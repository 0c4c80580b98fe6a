package mirage

import (
	"errors"
	"testing"
	"time"
)

func validServerConfig() Config {
	cfg := DefaultServerConfig()
	cfg.SyncAddr = "127.0.0.1:50051"
	cfg.AsyncAddr = "tcp://127.0.0.1:5555"
	return cfg
}

func validClientConfig() Config {
	cfg := DefaultClientConfig()
	cfg.SyncAddr = "127.0.0.1:50051"
	cfg.AsyncAddr = "ipc:///tmp/feed.sock"
	cfg.Handler = func(Message) {}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		client  bool
		wantErr bool
	}{
		{name: "valid server", mutate: func(c *Config) {}},
		{name: "valid client", client: true, mutate: func(c *Config) {}},
		{name: "missing sync addr", mutate: func(c *Config) { c.SyncAddr = "" }, wantErr: true},
		{name: "sync addr without port", mutate: func(c *Config) { c.SyncAddr = "127.0.0.1" }, wantErr: true},
		{name: "sync port zero", mutate: func(c *Config) { c.SyncAddr = "127.0.0.1:0" }, wantErr: true},
		{name: "sync port out of range", mutate: func(c *Config) { c.SyncAddr = "127.0.0.1:70000" }, wantErr: true},
		{name: "missing async addr", mutate: func(c *Config) { c.AsyncAddr = "" }, wantErr: true},
		{name: "unknown async scheme", mutate: func(c *Config) { c.AsyncAddr = "udp://127.0.0.1:5555" }, wantErr: true},
		{name: "async tcp port out of range", mutate: func(c *Config) { c.AsyncAddr = "tcp://127.0.0.1:99999" }, wantErr: true},
		{name: "wildcard async host", mutate: func(c *Config) { c.AsyncAddr = "tcp://*:5555" }},
		{name: "recv mode without handler", client: true, mutate: func(c *Config) { c.Handler = nil }, wantErr: true},
		{name: "services on client role", client: true, mutate: func(c *Config) {
			c.Services = []ServiceDescriptor{ServiceFunc(nil)}
		}, wantErr: true},
		{name: "subscriptions on send-only mode", mutate: func(c *Config) {
			c.Subscriptions = []string{"metrics."}
		}, wantErr: true},
		{name: "negative linger", mutate: func(c *Config) { c.Linger = -time.Second }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.PollInterval = 0 }, wantErr: true},
		{name: "zero queue hwm", mutate: func(c *Config) { c.QueueHWM = 0 }, wantErr: true},
		{name: "zero message size limit", mutate: func(c *Config) { c.MaxRecvMsgSize = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validServerConfig()
			if tt.client {
				cfg = validClientConfig()
			}
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()

	if cfg.Role != RoleServer {
		t.Errorf("Role = %v, want RoleServer", cfg.Role)
	}
	if cfg.Mode != ModePub {
		t.Errorf("Mode = %v, want ModePub", cfg.Mode)
	}
	if cfg.Linger != 0 {
		t.Errorf("Linger = %v, want 0", cfg.Linger)
	}
	if cfg.QueueHWM != 1000 {
		t.Errorf("QueueHWM = %d, want 1000", cfg.QueueHWM)
	}
	if cfg.MaxRecvMsgSize != 4<<20 || cfg.MaxSendMsgSize != 4<<20 {
		t.Errorf("message size limits = %d/%d, want 4 MiB", cfg.MaxRecvMsgSize, cfg.MaxSendMsgSize)
	}
	if cfg.PollInterval != time.Millisecond {
		t.Errorf("PollInterval = %v, want 1ms", cfg.PollInterval)
	}
}

func TestDefaultClientConfig(t *testing.T) {
	cfg := DefaultClientConfig()

	if cfg.Role != RoleClient {
		t.Errorf("Role = %v, want RoleClient", cfg.Role)
	}
	if cfg.Mode != ModeSub {
		t.Errorf("Mode = %v, want ModeSub", cfg.Mode)
	}
	if cfg.Linger != time.Second {
		t.Errorf("Linger = %v, want 1s", cfg.Linger)
	}
	if cfg.ConnectTimeout != 30*time.Second {
		t.Errorf("ConnectTimeout = %v, want 30s", cfg.ConnectTimeout)
	}
}

func TestParseSocketMode(t *testing.T) {
	tests := []struct {
		in      string
		want    SocketMode
		wantErr bool
	}{
		{in: "pub", want: ModePub},
		{in: "publish", want: ModePub},
		{in: "sub", want: ModeSub},
		{in: "push", want: ModePush},
		{in: "pull", want: ModePull},
		{in: "req", want: ModeReq},
		{in: "rep", want: ModeRep},
		{in: "dealer", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseSocketMode(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSocketMode(%q) = %v, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseSocketMode(%q) = %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}
}
