// Package services defines the collaborator contracts the login core
// consumes. Implementations live in internal/store (standalone
// SQLite-backed deployment), internal/auth, internal/simulation and
// internal/federation; deployments may substitute remote-backed
// implementations at composition time.
package services

import (
	"context"
	"time"

	"github.com/halcyongrid/logind/internal/domain"
)

// AccountDirectory resolves and creates user accounts.
type AccountDirectory interface {
	// Find looks up an account by name within a scope.
	// Returns (nil, nil) when no account matches.
	Find(ctx context.Context, scopeID, firstName, lastName string) (*domain.UserContext, error)

	// Create registers a new account, used when anonymous login is
	// permitted and a name has never been seen before.
	Create(ctx context.Context, scopeID, firstName, lastName, credential string) (*domain.UserContext, error)

	// RecordTermsAcceptance persists that the user accepted the
	// current terms of service.
	RecordTermsAcceptance(ctx context.Context, userID string) error
}

// AuthenticationGate verifies credentials and issues session tokens.
type AuthenticationGate interface {
	// Authenticate checks the credential and returns a token valid for
	// the given lifetime. An empty token or an error both mean rejection.
	Authenticate(ctx context.Context, userID, credential string, lifetime time.Duration) (string, error)

	// IssueToken mints a token without checking a credential, for
	// deployments that delegate authentication elsewhere.
	IssueToken(ctx context.Context, userID string, lifetime time.Duration) (string, error)
}

// Presence owns the durable record of logged-in sessions and the
// per-user home/last location memory.
type Presence interface {
	// Login registers a session. This is the first durable side effect
	// of a login attempt; every later failure must compensate with Logout.
	Login(ctx context.Context, userID, sessionID, secureSessionID string) (bool, error)

	// Logout removes a registered session. Idempotent.
	Logout(ctx context.Context, sessionID string) error

	// LocationMemory returns the user's stored home and last-visited
	// locations, or (nil, nil) when none are recorded.
	LocationMemory(ctx context.Context, userID string) (*domain.LocationMemory, error)

	// SetHome stores a new home location for the user.
	SetHome(ctx context.Context, userID, regionID string, position, lookAt domain.Vector3) error

	// SetLast stores the most recent location for the user.
	SetLast(ctx context.Context, userID, regionID string, position, lookAt domain.Vector3) error
}

// Grid is the region registry. Region descriptors are read-only to the
// login service except for the reachability flag cleared by MarkUnsafe.
type Grid interface {
	// RegionByID returns the region with the given identifier, or
	// (nil, nil) when the registry no longer knows it.
	RegionByID(ctx context.Context, scopeID, regionID string) (*domain.RegionDescriptor, error)

	// RegionsByNamePattern returns up to limit regions whose names
	// start with pattern. An empty pattern matches any region.
	RegionsByNamePattern(ctx context.Context, scopeID, pattern string, limit int) ([]*domain.RegionDescriptor, error)

	// DefaultRegions returns the regions designated as login defaults
	// for the scope.
	DefaultRegions(ctx context.Context, scopeID string) ([]*domain.RegionDescriptor, error)

	// FallbackRegions returns reachable regions ordered by distance
	// from the given grid coordinate.
	FallbackRegions(ctx context.Context, scopeID string, x, y int) ([]*domain.RegionDescriptor, error)

	// SafeRegions returns the regions explicitly designated as
	// trustworthy fallback destinations.
	SafeRegions(ctx context.Context, scopeID string, x, y int) ([]*domain.RegionDescriptor, error)

	// MarkUnsafe clears the region's reachability flag. Idempotent and
	// commutative; concurrent marks need no coordination.
	MarkUnsafe(ctx context.Context, regionID string) error
}

// Inventory provides the skeleton and gesture reads that enrich a
// successful login, plus first-login bootstrap.
type Inventory interface {
	Skeleton(ctx context.Context, userID string) ([]domain.InventoryFolder, error)
	ActiveGestures(ctx context.Context, userID string) ([]domain.InventoryItem, error)
	CreateUserInventory(ctx context.Context, userID string) error
}

// Friends lists a user's friends. Optional; a nil implementation
// simply omits the enrichment.
type Friends interface {
	List(ctx context.Context, userID string) ([]domain.FriendInfo, error)
}

// Avatars supplies the appearance snapshot embedded in each agent
// circuit. Optional; sessions launch with a nil snapshot without it.
type Avatars interface {
	Appearance(ctx context.Context, userID string) (*domain.AvatarAppearance, error)
}

// Simulation admits an agent directly at the simulator hosting a
// region. A non-nil error is a refusal and carries the reason.
type Simulation interface {
	CreateAgent(ctx context.Context, region *domain.RegionDescriptor, circuit *domain.AgentCircuit, flags domain.TeleportFlags) error
}

// RegionLink is the gatekeeper's answer to a link handshake.
type RegionLink struct {
	RegionID string
	Handle   uint64
	ImageRef string
}

// Federation is the gateway used for cross-grid resolution and
// admission. Remote rejections surface as errors carrying the
// remote-supplied reason verbatim.
type Federation interface {
	// LinkRegion performs the link handshake with a remote gatekeeper.
	LinkRegion(ctx context.Context, gk *domain.Gatekeeper) (*RegionLink, error)

	// HyperlinkRegion fetches the full region descriptor keyed by the
	// identifier returned from the link handshake.
	HyperlinkRegion(ctx context.Context, gk *domain.Gatekeeper, regionID string) (*domain.RegionDescriptor, error)

	// LoginAgentToGrid asks the destination's owning grid to admit the
	// session. A non-nil error is a refusal.
	LoginAgentToGrid(ctx context.Context, circuit *domain.AgentCircuit, gk *domain.Gatekeeper, destination *domain.RegionDescriptor, clientIP string) error
}

// LoginModule is a pluggable policy check consulted once per attempt
// after the built-in policy gates. Modules are registered as an
// ordered list at composition time; the first rejection short-circuits
// the attempt with the module's message.
type LoginModule interface {
	Name() string
	// Authorize returns nil to accept; a non-nil error rejects the
	// login with the error text as the user-visible message.
	Authorize(ctx context.Context, req *domain.LoginRequest, user *domain.UserContext) error
}
