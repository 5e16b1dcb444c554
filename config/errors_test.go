package config

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigErrorFormatting(t *testing.T) {
	assert.Equal(t,
		"config_missing: api.baseurl required set API_BASEURL env var or add api.baseurl to config.yaml",
		NewMissingFieldError("api.baseurl").Error())

	assert.Equal(t,
		"config_invalid: log.level invalid value \"loud\" must be one of: debug, info",
		NewInvalidFieldError("log.level", `invalid value "loud"`, []string{"debug", "info"}).Error())

	err := &ConfigError{Category: "invalid", Field: "x", Details: []string{"a", "b"}}
	assert.Equal(t, "config_invalid: x a; b", err.Error())
}

func TestIsNotConfigured(t *testing.T) {
	assert.False(t, IsNotConfigured(nil))
	assert.True(t, IsNotConfigured(ErrNotConfigured))
	assert.True(t, IsNotConfigured(fmt.Errorf("wrap: %w", ErrNotConfigured)))
	assert.True(t, IsNotConfigured(NewNotConfiguredError("observability.trace.endpoint")))
	assert.False(t, IsNotConfigured(NewMissingFieldError("api.baseurl")))
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "CREDENTIAL_REDIS_HOST", EnvVar("credential.redis.host"))
}
