package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	envprovider "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// sections are the top-level keys environment variables may set.
var sections = []string{"app", "api", "credential", "log", "observability"}

type loadOptions struct {
	dir     string
	environ func() []string
}

// LoadOption customizes where configuration is read from.
type LoadOption func(*loadOptions)

// WithDir reads config.yaml and config.<env>.yaml from dir instead of the working directory.
func WithDir(dir string) LoadOption {
	return func(o *loadOptions) {
		o.dir = dir
	}
}

// WithEnviron replaces os.Environ as the source of environment variables.
func WithEnviron(environ func() []string) LoadOption {
	return func(o *loadOptions) {
		if environ != nil {
			o.environ = environ
		}
	}
}

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. config.<env>.yaml
// 3. config.yaml
// 4. Default values (lowest priority)
//
// Missing YAML files are skipped.
func Load(opts ...LoadOption) (*Config, error) {
	o := loadOptions{environ: os.Environ}
	for _, opt := range opts {
		opt(&o)
	}

	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := loadYAMLFile(k, filepath.Join(o.dir, "config.yaml")); err != nil {
		return nil, err
	}

	// the environment may select the overlay too, so peek at APP_ENV first
	env := k.String("app.env")
	if fromEnv := lookupEnv(o.environ, "APP_ENV"); fromEnv != "" {
		env = fromEnv
	}
	if env != "" {
		if err := loadYAMLFile(k, filepath.Join(o.dir, fmt.Sprintf("config.%s.yaml", env))); err != nil {
			return nil, err
		}
	}

	if err := loadEnv(k, o.environ); err != nil {
		return nil, err
	}

	return finish(k)
}

// LoadFromBytes loads defaults overlaid with the given YAML document. The
// environment is not consulted.
func LoadFromBytes(data []byte) (*Config, error) {
	k := koanf.New(".")
	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return finish(k)
}

func finish(k *koanf.Koanf) (*Config, error) {
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadYAMLFile(k *koanf.Koanf, path string) error {
	err := k.Load(file.Provider(path), yaml.Parser())
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

// loadEnv maps API_BASEURL to api.baseurl, CREDENTIAL_REDIS_HOST to
// credential.redis.host and so on. Variables outside the known sections are ignored.
func loadEnv(k *koanf.Koanf, environ func() []string) error {
	provider := envprovider.Provider(".", envprovider.Opt{
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ReplaceAll(strings.ToLower(key), "_", ".")
			section, _, _ := strings.Cut(key, ".")
			if !isSection(section) || section == key {
				return "", nil
			}
			return key, value
		},
		EnvironFunc: environ,
	})
	if err := k.Load(provider, nil); err != nil {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func isSection(name string) bool {
	for _, s := range sections {
		if s == name {
			return true
		}
	}
	return false
}

func lookupEnv(environ func() []string, name string) string {
	for _, kv := range environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k == name {
			return v
		}
	}
	return ""
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "apiclient",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"api.baseurl":            "http://localhost:8000",
		"api.timeout":            "30s",
		"api.retrybudget":        2,
		"api.retrydelay":         "1s",
		"api.loginpath":          "/login",
		"api.logpayloads":        false,
		"api.maxpayloadlogbytes": 1024,

		"credential.backend":           BackendFile,
		"credential.key":               "token",
		"credential.redis.host":        "localhost",
		"credential.redis.port":        6379,
		"credential.redis.keyprefix":   "apiclient:",
		"credential.redis.dialtimeout": "5s",
		"credential.keyring.service":   "go-apiclient",

		"log.level":  "info",
		"log.pretty": false,

		"observability.enabled":          false,
		"observability.service.name":     "apiclient",
		"observability.trace.protocol":   ProtocolHTTP,
		"observability.trace.samplerate": 1.0,
		"observability.metrics.interval": "60s",
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}
