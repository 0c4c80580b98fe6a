package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Role           string   `toml:"role"`
	Mode           string   `toml:"mode"`
	SyncAddr       string   `toml:"sync_addr"`
	AsyncAddr      string   `toml:"async_addr"`
	Subscriptions  []string `toml:"subscriptions"`
	Linger         string   `toml:"linger"`
	RecvTimeout    string   `toml:"recv_timeout"`
	ConnectTimeout string   `toml:"connect_timeout"`
	PollInterval   string   `toml:"poll_interval"`
	QueueHWM       int      `toml:"queue_hwm"`
	QueuePolicy    string   `toml:"queue_policy"`
	MaxRecvMsgSize int      `toml:"max_recv_msg_size"`
	MaxSendMsgSize int      `toml:"max_send_msg_size"`
	MetricsAddr    string   `toml:"metrics_addr"`
	LogJSON        *bool    `toml:"log_json"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.mirage/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".mirage", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("role", fc.Role, &cfg.Role)
	s.setString("mode", fc.Mode, &cfg.Mode)
	s.setString("sync-addr", fc.SyncAddr, &cfg.SyncAddr)
	s.setString("async-addr", fc.AsyncAddr, &cfg.AsyncAddr)
	s.setString("queue-policy", fc.QueuePolicy, &cfg.QueuePolicy)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setStrings("subscribe", fc.Subscriptions, &cfg.Subscriptions)

	if err := s.setDuration("linger", fc.Linger, &cfg.Linger); err != nil {
		return err
	}
	if err := s.setDuration("recv-timeout", fc.RecvTimeout, &cfg.RecvTimeout); err != nil {
		return err
	}
	if err := s.setDuration("connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", fc.PollInterval, &cfg.PollInterval); err != nil {
		return err
	}

	s.setInt("queue-hwm", fc.QueueHWM, &cfg.QueueHWM)
	s.setInt("max-recv-msg-size", fc.MaxRecvMsgSize, &cfg.MaxRecvMsgSize)
	s.setInt("max-send-msg-size", fc.MaxSendMsgSize, &cfg.MaxSendMsgSize)

	s.setBool("log-json", fc.LogJSON, &cfg.LogJSON)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
