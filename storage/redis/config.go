package redis

import (
	"fmt"
	"time"

	"github.com/gaborage/go-apiclient/storage"
)

// Config holds connection settings for the Redis credential backend.
type Config struct {
	Host     string
	Port     int
	Password string //nolint:gosec // loaded from env or config, masked in logs
	Database int

	// KeyPrefix namespaces every key, e.g. "apiclient:" turns "token" into "apiclient:token".
	KeyPrefix string

	// TTL expires stored values. Zero keeps them until deleted.
	TTL time.Duration

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Validate rejects configurations that can never connect.
func (c *Config) Validate() error {
	if c.Host == "" {
		return storage.NewConfigError("redis.host", "host is required", nil)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return storage.NewConfigError("redis.port", fmt.Sprintf("invalid port: %d", c.Port), nil)
	}
	if c.Database < 0 || c.Database > 15 {
		return storage.NewConfigError("redis.database", fmt.Sprintf("invalid database number: %d (must be 0-15)", c.Database), nil)
	}
	if c.TTL < 0 {
		return storage.NewConfigError("redis.ttl", "ttl cannot be negative", nil)
	}
	if c.DialTimeout < 0 {
		return storage.NewConfigError("redis.dial_timeout", "dial timeout cannot be negative", nil)
	}
	return nil
}

// Address returns "host:port".
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
