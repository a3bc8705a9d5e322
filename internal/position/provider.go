// Package position acquires the device's current coordinates behind a
// location-permission check.
package position

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
)

// Permission is the state of the location permission.
type Permission int

const (
	PermissionUndetermined Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "undetermined"
	}
}

// PermissionGate reports and requests the location permission. Request may
// show an OS prompt.
type PermissionGate interface {
	Status(ctx context.Context) (Permission, error)
	Request(ctx context.Context) (Permission, error)
}

// FixSource produces a single position fix.
type FixSource interface {
	CurrentFix(ctx context.Context) (domain.GeoCoordinates, error)
}

// FixFunc adapts a function to FixSource.
type FixFunc func(ctx context.Context) (domain.GeoCoordinates, error)

func (f FixFunc) CurrentFix(ctx context.Context) (domain.GeoCoordinates, error) { return f(ctx) }

// Provider performs one-shot position acquisition. It never retries; the
// caller decides whether to prompt again.
type Provider struct {
	gate   PermissionGate
	source FixSource
	logger *slog.Logger
}

// NewProvider creates a Provider.
func NewProvider(gate PermissionGate, source FixSource, logger *slog.Logger) *Provider {
	return &Provider{gate: gate, source: source, logger: logger}
}

// Acquire returns the current coordinates, failing with
// domain.ErrPermissionDenied or domain.ErrLocationUnavailable.
func (p *Provider) Acquire(ctx context.Context) (domain.GeoCoordinates, error) {
	perm, err := p.gate.Status(ctx)
	if err != nil {
		return domain.GeoCoordinates{}, fmt.Errorf("%w: permission status: %w", domain.ErrPermissionDenied, err)
	}
	if perm == PermissionUndetermined {
		p.logger.Debug("requesting location permission")
		if perm, err = p.gate.Request(ctx); err != nil {
			return domain.GeoCoordinates{}, fmt.Errorf("%w: permission request: %w", domain.ErrPermissionDenied, err)
		}
	}
	if perm != PermissionGranted {
		p.logger.Info("location permission not granted", "permission", perm.String())
		return domain.GeoCoordinates{}, domain.ErrPermissionDenied
	}

	coords, err := p.source.CurrentFix(ctx)
	if err != nil {
		return domain.GeoCoordinates{}, fmt.Errorf("%w: %w", domain.ErrLocationUnavailable, err)
	}
	if !coords.Valid() {
		return domain.GeoCoordinates{}, fmt.Errorf("%w: invalid fix %.6f,%.6f",
			domain.ErrLocationUnavailable, coords.Latitude, coords.Longitude)
	}
	return coords, nil
}

// StaticGate is a PermissionGate with a fixed answer. Request returns the
// granted state when PromptGrants is set.
type StaticGate struct {
	Permission   Permission
	PromptGrants bool
}

func (g *StaticGate) Status(context.Context) (Permission, error) { return g.Permission, nil }

func (g *StaticGate) Request(context.Context) (Permission, error) {
	if g.Permission == PermissionUndetermined {
		if g.PromptGrants {
			g.Permission = PermissionGranted
		} else {
			g.Permission = PermissionDenied
		}
	}
	return g.Permission, nil
}

// Fixed returns a FixSource that always reports c. Used when the coordinates
// arrive with the request, as in the HTTP API and CLI.
func Fixed(c domain.GeoCoordinates) FixSource {
	return FixFunc(func(context.Context) (domain.GeoCoordinates, error) { return c, nil })
}

// Granted returns an already-granted gate.
func Granted() PermissionGate { return &StaticGate{Permission: PermissionGranted} }
