// Package cliconfig holds the daemon's CLI configuration: defaults, TOML
// file loading, environment overrides and validation. Precedence is flags
// over environment over file over defaults, tracked through the changed
// flags map.
package cliconfig

import (
	"fmt"
	"strconv"
	"time"
)

// Config holds CLI configuration for miraged.
type Config struct {
	Role string
	Mode string

	SyncAddr  string
	AsyncAddr string

	Subscriptions []string

	Linger         time.Duration
	RecvTimeout    time.Duration
	ConnectTimeout time.Duration
	PollInterval   time.Duration

	QueueHWM    int
	QueuePolicy string

	MaxRecvMsgSize int
	MaxSendMsgSize int

	MetricsAddr string
	LogJSON     bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Role:           "server",
		Mode:           "pub",
		SyncAddr:       "127.0.0.1:50051",
		AsyncAddr:      "tcp://127.0.0.1:5555",
		ConnectTimeout: 30 * time.Second,
		PollInterval:   time.Millisecond,
		QueueHWM:       1000,
		QueuePolicy:    "block",
		MaxRecvMsgSize: 4 << 20,
		MaxSendMsgSize: 4 << 20,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Role {
	case "server", "client":
	default:
		return fmt.Errorf("role must be server or client, got %q", c.Role)
	}

	switch c.QueuePolicy {
	case "block", "drop":
	default:
		return fmt.Errorf("queue-policy must be block or drop, got %q", c.QueuePolicy)
	}

	if c.SyncAddr == "" {
		return fmt.Errorf("sync-addr is required")
	}
	if c.AsyncAddr == "" {
		return fmt.Errorf("async-addr is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.QueueHWM <= 0 {
		return fmt.Errorf("queue high-water-mark must be positive")
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a string slice if non-empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
