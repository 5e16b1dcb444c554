package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

func structValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report fields by their koanf key so errors match config.yaml
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks struct constraints and then rules that span several fields.
func Validate(cfg *Config) error {
	if err := structValidator().Struct(cfg); err != nil {
		return translate(err)
	}

	if err := validateCredential(&cfg.Credential); err != nil {
		return fmt.Errorf("credential config: %w", err)
	}

	if err := validateObservability(&cfg.Observability); err != nil {
		return fmt.Errorf("observability config: %w", err)
	}

	return nil
}

// translate converts the first validator failure into a ConfigError.
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}

	fe := verrs[0]
	// Namespace is "Config.api.baseurl"
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(field)
	case "oneof":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value())), strings.Fields(fe.Param()))
	case "url":
		return NewInvalidFieldError(field, fmt.Sprintf("invalid url %q", fmt.Sprint(fe.Value())), nil)
	case "startswith":
		return NewInvalidFieldError(field, fmt.Sprintf("must start with %q", fe.Param()), nil)
	case "gte":
		return NewInvalidFieldError(field, "must be at least "+fe.Param(), nil)
	case "lte":
		return NewInvalidFieldError(field, "must be at most "+fe.Param(), nil)
	default:
		return NewInvalidFieldError(field, "failed "+fe.Tag()+" check", nil)
	}
}

func validateCredential(cfg *CredentialConfig) error {
	if cfg.Backend == BackendRedis {
		if strings.TrimSpace(cfg.Redis.Host) == "" {
			return NewMissingFieldError("credential.redis.host")
		}
		if cfg.Redis.Port == 0 {
			return NewMissingFieldError("credential.redis.port")
		}
	}

	if cfg.Backend == BackendKeyring && strings.TrimSpace(cfg.Keyring.Service) == "" {
		return NewMissingFieldError("credential.keyring.service")
	}

	return nil
}

func validateObservability(cfg *ObservabilityConfig) error {
	if !cfg.Enabled {
		return nil
	}

	if cfg.Service.Name == "" {
		return NewMissingFieldError("observability.service.name")
	}

	if cfg.Trace.Protocol != ProtocolStdout && strings.HasPrefix(cfg.Trace.Endpoint, "http://") && !cfg.Trace.Insecure {
		return NewInvalidFieldError("observability.trace.endpoint",
			"plaintext endpoint requires observability.trace.insecure", nil)
	}

	return nil
}
