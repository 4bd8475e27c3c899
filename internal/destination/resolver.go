// Package destination turns a parsed start location into a concrete
// region candidate, consulting the grid registry and, for cross-grid
// addresses, a remote gatekeeper.
package destination

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/halcyongrid/logind/internal/domain"
	"github.com/halcyongrid/logind/internal/services"
	"github.com/halcyongrid/logind/internal/startloc"
)

// ForeignResolver resolves a cross-grid address to a region descriptor
// plus the gatekeeper that will route the session to it.
type ForeignResolver interface {
	ResolveForeign(ctx context.Context, host string, port int, regionName string) (*domain.RegionDescriptor, *domain.Gatekeeper, error)
}

// Resolver picks the destination region for a login attempt.
type Resolver struct {
	grid    services.Grid
	foreign ForeignResolver
}

// NewResolver creates a resolver over the given grid registry and
// foreign-grid resolver.
func NewResolver(grid services.Grid, foreign ForeignResolver) *Resolver {
	return &Resolver{grid: grid, foreign: foreign}
}

// Resolve maps a start location and the user's stored locations to a
// destination. It never returns an empty resolution: exhausting every
// fallback is an explicit ErrNoDestination.
func (r *Resolver) Resolve(ctx context.Context, loc startloc.Location, user *domain.UserContext, memory *domain.LocationMemory) (*domain.DestinationResolution, error) {
	switch loc.Kind {
	case startloc.Home:
		stored := storedLocation{where: domain.WhereHome}
		if memory.HasHome() {
			stored.regionID = memory.HomeRegionID
			stored.position = memory.HomePosition
			stored.lookAt = memory.HomeLookAt
		}
		return r.resolveStored(ctx, user, stored)

	case startloc.Last:
		stored := storedLocation{where: domain.WhereLast}
		if memory.HasLast() {
			stored.regionID = memory.LastRegionID
			stored.position = memory.LastPosition
			stored.lookAt = memory.LastLookAt
		}
		return r.resolveStored(ctx, user, stored)

	case startloc.Explicit:
		return r.resolveExplicit(ctx, loc, user)

	default:
		return nil, fmt.Errorf("unknown start location kind %d", loc.Kind)
	}
}

// storedLocation is a home or last-visited location pulled from the
// user's location memory. An empty regionID means nothing is stored.
type storedLocation struct {
	regionID string
	position domain.Vector3
	lookAt   domain.Vector3
	where    string
}

func (r *Resolver) resolveStored(ctx context.Context, user *domain.UserContext, stored storedLocation) (*domain.DestinationResolution, error) {
	if stored.regionID != "" {
		region, err := r.grid.RegionByID(ctx, user.ScopeID, stored.regionID)
		if err != nil {
			slog.Warn("region lookup failed, falling back to defaults",
				"user_id", user.UserID, "region_id", stored.regionID, "error", err)
		}
		if region != nil {
			return &domain.DestinationResolution{
				Region:   region,
				Where:    stored.where,
				Position: stored.position,
				LookAt:   stored.lookAt,
			}, nil
		}
	}

	region, err := r.anyUsableRegion(ctx, user.ScopeID)
	if err != nil {
		return nil, err
	}
	return &domain.DestinationResolution{
		Region:   region,
		Where:    domain.WhereSafe,
		Position: domain.DefaultPosition,
		LookAt:   domain.DefaultLookAt,
	}, nil
}

func (r *Resolver) resolveExplicit(ctx context.Context, loc startloc.Location, user *domain.UserContext) (*domain.DestinationResolution, error) {
	position := domain.Vector3{X: float64(loc.X), Y: float64(loc.Y), Z: float64(loc.Z)}

	if loc.Foreign() {
		region, gk, err := r.foreign.ResolveForeign(ctx, loc.Host, loc.Port, loc.RegionName)
		if err != nil {
			return nil, err
		}
		return &domain.DestinationResolution{
			Region:     region,
			Gatekeeper: gk,
			Where:      domain.WhereURL,
			Position:   position,
			LookAt:     domain.DefaultLookAt,
		}, nil
	}

	regions, err := r.grid.RegionsByNamePattern(ctx, user.ScopeID, loc.RegionName, 1)
	if err != nil {
		slog.Warn("region name lookup failed, falling back to defaults",
			"user_id", user.UserID, "region", loc.RegionName, "error", err)
	}
	if len(regions) > 0 {
		return &domain.DestinationResolution{
			Region:   regions[0],
			Where:    domain.WhereURL,
			Position: position,
			LookAt:   domain.DefaultLookAt,
		}, nil
	}

	region, err := r.anyUsableRegion(ctx, user.ScopeID)
	if err != nil {
		return nil, err
	}
	return &domain.DestinationResolution{
		Region:   region,
		Where:    domain.WhereSafe,
		Position: position,
		LookAt:   domain.DefaultLookAt,
	}, nil
}

// anyUsableRegion is the shared no-match fallback: the scope's default
// regions first, then any named region as a last resort.
func (r *Resolver) anyUsableRegion(ctx context.Context, scopeID string) (*domain.RegionDescriptor, error) {
	defaults, err := r.grid.DefaultRegions(ctx, scopeID)
	if err != nil {
		slog.Warn("default region query failed", "scope_id", scopeID, "error", err)
	}
	if len(defaults) > 0 {
		return defaults[0], nil
	}

	any, err := r.grid.RegionsByNamePattern(ctx, scopeID, "", 1)
	if err != nil {
		slog.Warn("wildcard region query failed", "scope_id", scopeID, "error", err)
	}
	if len(any) > 0 {
		return any[0], nil
	}
	return nil, domain.ErrNoDestination
}
