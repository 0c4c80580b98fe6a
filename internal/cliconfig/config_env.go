package cliconfig

import (
	"os"
	"strings"
)

// ApplyEnvConfig applies MIRAGE_* environment variables to the Config.
// Env values override file config but lose to explicitly set flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("role", os.Getenv("MIRAGE_ROLE"), &cfg.Role)
	s.setString("mode", os.Getenv("MIRAGE_MODE"), &cfg.Mode)
	s.setString("sync-addr", os.Getenv("MIRAGE_SYNC_ADDR"), &cfg.SyncAddr)
	s.setString("async-addr", os.Getenv("MIRAGE_ASYNC_ADDR"), &cfg.AsyncAddr)
	s.setString("queue-policy", os.Getenv("MIRAGE_QUEUE_POLICY"), &cfg.QueuePolicy)
	s.setString("metrics-addr", os.Getenv("MIRAGE_METRICS_ADDR"), &cfg.MetricsAddr)

	if v := os.Getenv("MIRAGE_SUBSCRIPTIONS"); v != "" {
		s.setStrings("subscribe", splitList(v), &cfg.Subscriptions)
	}

	if err := s.setDuration("linger", os.Getenv("MIRAGE_LINGER"), &cfg.Linger); err != nil {
		return err
	}
	if err := s.setDuration("recv-timeout", os.Getenv("MIRAGE_RECV_TIMEOUT"), &cfg.RecvTimeout); err != nil {
		return err
	}
	if err := s.setDuration("connect-timeout", os.Getenv("MIRAGE_CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("poll", os.Getenv("MIRAGE_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}

	if err := s.setIntFromString("queue-hwm", os.Getenv("MIRAGE_QUEUE_HWM"), &cfg.QueueHWM); err != nil {
		return err
	}
	if err := s.setIntFromString("max-recv-msg-size", os.Getenv("MIRAGE_MAX_RECV_MSG_SIZE"), &cfg.MaxRecvMsgSize); err != nil {
		return err
	}
	if err := s.setIntFromString("max-send-msg-size", os.Getenv("MIRAGE_MAX_SEND_MSG_SIZE"), &cfg.MaxSendMsgSize); err != nil {
		return err
	}

	s.setBoolFromString("log-json", os.Getenv("MIRAGE_LOG_JSON"), &cfg.LogJSON)

	return nil
}

// splitList splits a comma-separated env value into trimmed entries.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
