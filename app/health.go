package app

import (
	"context"
	"time"

	"github.com/gaborage/go-apiclient/credential"
	"github.com/gaborage/go-apiclient/storage"
)

const (
	healthyStatus       = "healthy"
	unhealthyStatus     = "unhealthy"
	disabledStatus      = "disabled"
	authenticatedStatus = "authenticated"
	anonymousStatus     = "anonymous"

	probeTimeout = 5 * time.Second
)

// HealthStatus captures the outcome of one status probe.
type HealthStatus struct {
	Name     string         `json:"name"`
	Status   string         `json:"status"`
	Details  map[string]any `json:"details,omitempty"`
	Err      error          `json:"-"`
	Error    string         `json:"error,omitempty"`
	Critical bool           `json:"critical"`
}

// HealthProbe exposes a uniform interface for status probes.
type HealthProbe interface {
	Run(ctx context.Context) HealthStatus
}

type healthProbeFunc struct {
	name     string
	critical bool
	fn       func(ctx context.Context) (string, map[string]any, error)
}

func (h healthProbeFunc) Run(ctx context.Context) HealthStatus {
	status, details, err := h.fn(ctx)
	hs := HealthStatus{
		Name:     h.name,
		Status:   status,
		Details:  details,
		Err:      err,
		Critical: h.critical,
	}
	if err != nil {
		hs.Error = err.Error()
	}
	return hs
}

func storageHealthProbe(backend string, store storage.Store) HealthProbe {
	if store == nil {
		return healthProbeFunc{
			name: "storage",
			fn: func(context.Context) (string, map[string]any, error) {
				return disabledStatus, map[string]any{"backend": backend}, nil
			},
		}
	}

	return healthProbeFunc{
		name:     "storage",
		critical: true,
		fn: func(ctx context.Context) (string, map[string]any, error) {
			details := map[string]any{"backend": backend}
			if err := store.Health(ctx); err != nil {
				return unhealthyStatus, details, err
			}
			return healthyStatus, details, nil
		},
	}
}

func credentialHealthProbe(creds credential.Store) HealthProbe {
	return healthProbeFunc{
		name: "credential",
		fn: func(ctx context.Context) (string, map[string]any, error) {
			if creds.IsAuthenticated(ctx) {
				return authenticatedStatus, nil, nil
			}
			return anonymousStatus, nil, nil
		},
	}
}

// StatusReport summarizes the session for the status command.
type StatusReport struct {
	BaseURL       string         `json:"base_url"`
	Backend       string         `json:"backend"`
	Authenticated bool           `json:"authenticated"`
	Healthy       bool           `json:"healthy"`
	Checks        []HealthStatus `json:"checks"`
}

// Status runs every probe. Healthy is false when a critical probe failed.
func (a *App) Status(ctx context.Context) StatusReport {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	report := StatusReport{
		BaseURL: a.cfg.API.BaseURL,
		Backend: a.cfg.Credential.Backend,
		Healthy: true,
	}
	for _, probe := range a.healthProbes {
		hs := probe.Run(ctx)
		if hs.Critical && hs.Err != nil {
			report.Healthy = false
			a.logger.Warn().Err(hs.Err).Str("probe", hs.Name).Msg("Status probe failed")
		}
		if hs.Name == "credential" {
			report.Authenticated = hs.Status == authenticatedStatus
		}
		report.Checks = append(report.Checks, hs)
	}
	return report
}
