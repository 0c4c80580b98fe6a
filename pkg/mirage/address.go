package mirage

import (
	"fmt"
	"regexp"

	"github.com/bft-labs/mirage/internal/domain"
)

// ipcNamePattern accepts filesystem-safe IPC endpoint names.
var ipcNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// SyncAddress renders a sync transport address from a host and port.
func SyncAddress(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// AsyncTCPAddress renders a TCP async transport address.
func AsyncTCPAddress(host string, port int) string {
	return fmt.Sprintf("tcp://%s:%d", host, port)
}

// AsyncIPCAddress renders an IPC async transport address under /tmp from a
// bare endpoint name.
func AsyncIPCAddress(name string) string {
	return fmt.Sprintf("ipc:///tmp/%s.sock", name)
}

// SetSyncAddr validates host and port and sets the sync address.
func (c *Config) SetSyncAddr(host string, port int) error {
	if host == "" {
		return fmt.Errorf("%w: sync address host is required", domain.ErrInvalidConfig)
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: sync port %d out of range (0, 65535]", domain.ErrInvalidConfig, port)
	}
	c.SyncAddr = SyncAddress(host, port)
	return nil
}

// SetAsyncTCPAddr validates host and port and sets a TCP async address.
func (c *Config) SetAsyncTCPAddr(host string, port int) error {
	if host == "" {
		return fmt.Errorf("%w: async address host is required", domain.ErrInvalidConfig)
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: async port %d out of range (0, 65535]", domain.ErrInvalidConfig, port)
	}
	c.AsyncAddr = AsyncTCPAddress(host, port)
	return nil
}

// SetAsyncIPCAddr validates the endpoint name and sets an IPC async address.
// The name becomes part of a socket path, so it must be filesystem safe.
func (c *Config) SetAsyncIPCAddr(name string) error {
	if name == "" {
		return fmt.Errorf("%w: ipc endpoint name is required", domain.ErrInvalidConfig)
	}
	if !ipcNamePattern.MatchString(name) {
		return fmt.Errorf("%w: ipc endpoint name %q is not filesystem safe", domain.ErrInvalidConfig, name)
	}
	c.AsyncAddr = AsyncIPCAddress(name)
	return nil
}
