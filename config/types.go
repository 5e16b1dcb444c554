package config

import (
	"time"

	"github.com/knadh/koanf/v2"
)

// Config represents the overall client configuration structure.
// The embedded koanf.Koanf instance allows flexible access to keys that are
// not part of the struct.
type Config struct {
	App           AppConfig           `koanf:"app" json:"app" yaml:"app"`
	API           APIConfig           `koanf:"api" json:"api" yaml:"api"`
	Credential    CredentialConfig    `koanf:"credential" json:"credential" yaml:"credential"`
	Log           LogConfig           `koanf:"log" json:"log" yaml:"log"`
	Observability ObservabilityConfig `koanf:"observability" json:"observability" yaml:"observability"`

	// k holds the underlying Koanf instance for flexible access to custom configurations
	k *koanf.Koanf `json:"-" yaml:"-"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name" validate:"required"`
	Version string `koanf:"version" json:"version" yaml:"version" validate:"required"`
	Env     string `koanf:"env" json:"env" yaml:"env" validate:"oneof=development staging production"`
}

// APIConfig describes the remote API and how calls to it are made.
type APIConfig struct {
	BaseURL string `koanf:"baseurl" json:"baseurl" yaml:"baseurl" validate:"required,url"`

	// Timeout bounds a single attempt. Zero disables it.
	Timeout     time.Duration `koanf:"timeout" json:"timeout" yaml:"timeout" validate:"gte=0"`
	RetryBudget int           `koanf:"retrybudget" json:"retrybudget" yaml:"retrybudget" validate:"gte=0,lte=10"`
	// RetryDelay is the linear backoff step: attempt n waits (n+1)*RetryDelay.
	RetryDelay time.Duration `koanf:"retrydelay" json:"retrydelay" yaml:"retrydelay" validate:"gte=0"`
	LoginPath  string        `koanf:"loginpath" json:"loginpath" yaml:"loginpath" validate:"required,startswith=/"`

	Headers map[string]string `koanf:"headers" json:"headers" yaml:"headers"`

	LogPayloads        bool `koanf:"logpayloads" json:"logpayloads" yaml:"logpayloads"`
	MaxPayloadLogBytes int  `koanf:"maxpayloadlogbytes" json:"maxpayloadlogbytes" yaml:"maxpayloadlogbytes" validate:"gte=0"`
}

// Credential backends.
const (
	BackendNone    = "none"
	BackendMemory  = "memory"
	BackendFile    = "file"
	BackendRedis   = "redis"
	BackendKeyring = "keyring"
)

// CredentialConfig selects where the session credential is persisted.
type CredentialConfig struct {
	Backend string `koanf:"backend" json:"backend" yaml:"backend" validate:"oneof=none memory file redis keyring"`
	Key     string `koanf:"key" json:"key" yaml:"key" validate:"required"`

	File    FileStoreConfig    `koanf:"file" json:"file" yaml:"file"`
	Redis   RedisStoreConfig   `koanf:"redis" json:"redis" yaml:"redis"`
	Keyring KeyringStoreConfig `koanf:"keyring" json:"keyring" yaml:"keyring"`
}

// FileStoreConfig holds the JSON file backend settings.
type FileStoreConfig struct {
	Path string `koanf:"path" json:"path" yaml:"path"`
}

// RedisStoreConfig holds the Redis backend settings.
type RedisStoreConfig struct {
	Host        string        `koanf:"host" json:"host" yaml:"host"`
	Port        int           `koanf:"port" json:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Password    string        `koanf:"password" json:"-" yaml:"password"`
	Database    int           `koanf:"database" json:"database" yaml:"database" validate:"gte=0"`
	KeyPrefix   string        `koanf:"keyprefix" json:"keyprefix" yaml:"keyprefix"`
	TTL         time.Duration `koanf:"ttl" json:"ttl" yaml:"ttl" validate:"gte=0"`
	DialTimeout time.Duration `koanf:"dialtimeout" json:"dialtimeout" yaml:"dialtimeout" validate:"gte=0"`
}

// KeyringStoreConfig holds the OS keychain backend settings.
type KeyringStoreConfig struct {
	Service string `koanf:"service" json:"service" yaml:"service"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level  string `koanf:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Pretty bool   `koanf:"pretty" json:"pretty" yaml:"pretty"`
}

// Trace exporter protocols.
const (
	ProtocolStdout = "stdout"
	ProtocolHTTP   = "http"
	ProtocolGRPC   = "grpc"
)

// ObservabilityConfig controls the OpenTelemetry providers.
type ObservabilityConfig struct {
	Enabled bool          `koanf:"enabled" json:"enabled" yaml:"enabled"`
	Service ServiceConfig `koanf:"service" json:"service" yaml:"service"`
	Trace   TraceConfig   `koanf:"trace" json:"trace" yaml:"trace"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics" yaml:"metrics"`
}

// ServiceConfig identifies this process in telemetry.
type ServiceConfig struct {
	Name    string `koanf:"name" json:"name" yaml:"name"`
	Version string `koanf:"version" json:"version" yaml:"version"`
}

// TraceConfig configures span export.
type TraceConfig struct {
	Endpoint   string  `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	Protocol   string  `koanf:"protocol" json:"protocol" yaml:"protocol" validate:"oneof=stdout http grpc"`
	Insecure   bool    `koanf:"insecure" json:"insecure" yaml:"insecure"`
	SampleRate float64 `koanf:"samplerate" json:"samplerate" yaml:"samplerate" validate:"gte=0,lte=1"`
}

// MetricsConfig configures metric export. Endpoint falls back to the trace endpoint.
type MetricsConfig struct {
	Endpoint string        `koanf:"endpoint" json:"endpoint" yaml:"endpoint"`
	Interval time.Duration `koanf:"interval" json:"interval" yaml:"interval" validate:"gte=0"`
}
