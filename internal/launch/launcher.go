// Package launch materializes an authenticated session at a
// destination region, walking a fallback chain when the first choice
// refuses admission.
package launch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/halcyongrid/logind/internal/domain"
	"github.com/halcyongrid/logind/internal/services"
)

// Params carries one launch request. A fresh AgentCircuit is built
// from these fields for every destination attempted; circuits are
// never reused across destinations.
type Params struct {
	User        *domain.UserContext
	Session     domain.SessionHandle
	Appearance  *domain.AvatarAppearance
	Destination *domain.DestinationResolution
	Flags       domain.TeleportFlags
	Channel     string
	Version     string
	Platform    string
	ClientIP    string
}

// Outcome is a successful launch: the region that admitted the session
// and the circuit bound to it, plus every region tried along the way.
type Outcome struct {
	Region  *domain.RegionDescriptor
	Circuit *domain.AgentCircuit
	Tried   []string
}

// ExhaustedError reports that no candidate region admitted the
// session. It satisfies errors.Is against ErrNoReachableDestination
// and unwraps to the per-candidate refusals.
type ExhaustedError struct {
	Tried []string
	cause error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("no reachable destination (tried: %s): %v", strings.Join(e.Tried, ", "), e.cause)
}

func (e *ExhaustedError) Unwrap() error { return e.cause }

func (e *ExhaustedError) Is(target error) bool { return target == domain.ErrNoReachableDestination }

// Launcher attempts session admission with fallback. Deployments with
// federation enabled admit every attempt indirectly through the
// federation gateway; otherwise admission is a direct call against the
// simulator hosting the region.
type Launcher struct {
	grid       services.Grid
	simulation services.Simulation
	federation services.Federation
	federated  bool
}

// NewLauncher creates a launcher. When federated is true the gateway
// handles all admissions, contacting each destination's owning grid.
func NewLauncher(grid services.Grid, simulation services.Simulation, federation services.Federation, federated bool) *Launcher {
	return &Launcher{grid: grid, simulation: simulation, federation: federation, federated: federated}
}

// Launch tries the candidate destination, then fallback regions near
// its grid coordinates, then the scope's safe regions. Each failed
// region is marked unsafe exactly once and never retried within this
// call, even if a later candidate list names it again.
func (l *Launcher) Launch(ctx context.Context, p Params) (*Outcome, error) {
	primary := p.Destination.Region
	tried := map[string]bool{}
	var names []string
	var refusals error

	attempt := func(region *domain.RegionDescriptor) (*domain.AgentCircuit, error) {
		tried[region.ID] = true
		names = append(names, region.Name)
		circuit := l.buildCircuit(region, p)
		return circuit, l.admit(ctx, region, circuit, p)
	}

	circuit, err := attempt(primary)
	if err == nil {
		return &Outcome{Region: primary, Circuit: circuit, Tried: names}, nil
	}
	slog.Warn("destination refused admission, entering fallback",
		"user_id", p.User.UserID, "region", primary.Name, "error", err)
	refusals = multierror.Append(refusals, fmt.Errorf("%s: %w", primary.Name, err))
	l.markUnsafe(ctx, primary)

	for _, fetch := range []func() ([]*domain.RegionDescriptor, error){
		func() ([]*domain.RegionDescriptor, error) {
			return l.grid.FallbackRegions(ctx, primary.ScopeID, primary.CoordX, primary.CoordY)
		},
		func() ([]*domain.RegionDescriptor, error) {
			return l.grid.SafeRegions(ctx, primary.ScopeID, primary.CoordX, primary.CoordY)
		},
	} {
		candidates, err := fetch()
		if err != nil {
			slog.Warn("candidate region query failed", "user_id", p.User.UserID, "error", err)
			continue
		}
		for _, candidate := range candidates {
			if tried[candidate.ID] {
				continue
			}
			circuit, err := attempt(candidate)
			if err == nil {
				return &Outcome{Region: candidate, Circuit: circuit, Tried: names}, nil
			}
			slog.Warn("fallback region refused admission",
				"user_id", p.User.UserID, "region", candidate.Name, "error", err)
			refusals = multierror.Append(refusals, fmt.Errorf("%s: %w", candidate.Name, err))
			l.markUnsafe(ctx, candidate)
		}
	}

	return nil, &ExhaustedError{Tried: names, cause: refusals}
}

// buildCircuit constructs a fresh circuit bound to one destination.
// All attempts share the session handle; only the circuit code,
// destination and metadata binding are minted per attempt.
func (l *Launcher) buildCircuit(region *domain.RegionDescriptor, p Params) *domain.AgentCircuit {
	return &domain.AgentCircuit{
		CircuitCode:     domain.NewCircuitCode(),
		SessionID:       p.Session.SessionID,
		SecureSessionID: p.Session.SecureSessionID,
		UserID:          p.User.UserID,
		FirstName:       p.User.FirstName,
		LastName:        p.User.LastName,
		DestinationID:   region.ID,
		StartPosition:   p.Destination.Position,
		Appearance:      p.Appearance,
		Channel:         p.Channel,
		Version:         p.Version,
		Platform:        p.Platform,
		ClientIP:        p.ClientIP,
	}
}

// admit places the agent on a candidate region. Federated deployments
// go through the gateway for every attempt: the resolved primary
// carries its own gatekeeper, while fallback candidates pass nil and
// the gateway client derives the endpoint from the region itself.
func (l *Launcher) admit(ctx context.Context, region *domain.RegionDescriptor, circuit *domain.AgentCircuit, p Params) error {
	if l.federated && l.federation != nil {
		var gk *domain.Gatekeeper
		if region.ID == p.Destination.Region.ID {
			gk = p.Destination.Gatekeeper
		}
		return l.federation.LoginAgentToGrid(ctx, circuit, gk, region, p.ClientIP)
	}
	return l.simulation.CreateAgent(ctx, region, circuit, p.Flags)
}

// markUnsafe is fire-and-forget: the registry may already know, and a
// failing mark must not abort an otherwise viable fallback.
func (l *Launcher) markUnsafe(ctx context.Context, region *domain.RegionDescriptor) {
	if err := l.grid.MarkUnsafe(ctx, region.ID); err != nil {
		slog.Warn("failed to mark region unsafe", "region", region.Name, "region_id", region.ID, "error", err)
	}
}
