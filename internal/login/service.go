// Package login sequences a login attempt through authentication,
// policy checks, presence registration, destination resolution and
// session launch, compensating the registered presence whenever a
// later stage fails.
package login

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/halcyongrid/logind/internal/destination"
	"github.com/halcyongrid/logind/internal/domain"
	"github.com/halcyongrid/logind/internal/events"
	"github.com/halcyongrid/logind/internal/launch"
	"github.com/halcyongrid/logind/internal/services"
	"github.com/halcyongrid/logind/internal/startloc"
)

// User-facing failure messages. Raw collaborator faults never reach
// the client.
const (
	msgBadIdentity      = "Could not find an account with that name."
	msgBadCredentials   = "Could not authenticate your avatar. Please check your username and password."
	msgBanned           = "You have been banned from this grid."
	msgTOSRequired      = "You must accept the terms of service before logging in."
	msgLevelTooLow      = "Your account level is too low to log in right now."
	msgBadStartLocation = "The requested start location could not be understood."
	msgPresenceFailed   = "Could not register your presence with the grid. Please try again shortly."
	msgDestination      = "The grid could not find a destination for you. Please try again shortly."
	msgInventoryFailed  = "Your inventory is currently unavailable. Please try again shortly."
	msgInternal         = "An unexpected error occurred. Please try again shortly."
)

// MinAdminLevel is the account level required to adjust the minimum
// login level remotely.
const MinAdminLevel = 200

// Options configure the orchestrator's policy behavior.
type Options struct {
	AllowAnonymous   bool
	RequireTOS       bool
	RequireInventory bool
	SkipLocalAuth    bool
	MinLoginLevel    int
	TokenLifetime    time.Duration
	WelcomeMessage   string
}

// Service is the login orchestrator. All collaborators arrive through
// the constructor; there are no ambient globals.
type Service struct {
	accounts  services.AccountDirectory
	gate      services.AuthenticationGate
	presence  services.Presence
	inventory services.Inventory
	friends   services.Friends
	avatars   services.Avatars
	resolver  *destination.Resolver
	launcher  *launch.Launcher
	modules   []services.LoginModule
	hub       *events.Hub
	opts      Options

	mu       sync.RWMutex
	minLevel int
}

// Deps bundles the collaborators a Service needs. Optional
// collaborators (friends, avatars, hub, modules) may be nil/empty.
type Deps struct {
	Accounts  services.AccountDirectory
	Gate      services.AuthenticationGate
	Presence  services.Presence
	Inventory services.Inventory
	Friends   services.Friends
	Avatars   services.Avatars
	Resolver  *destination.Resolver
	Launcher  *launch.Launcher
	Modules   []services.LoginModule
	Hub       *events.Hub
}

// NewService wires a login orchestrator.
func NewService(deps Deps, opts Options) *Service {
	if opts.TokenLifetime <= 0 {
		opts.TokenLifetime = 30 * 24 * time.Hour
	}
	return &Service{
		accounts:  deps.Accounts,
		gate:      deps.Gate,
		presence:  deps.Presence,
		inventory: deps.Inventory,
		friends:   deps.Friends,
		avatars:   deps.Avatars,
		resolver:  deps.Resolver,
		launcher:  deps.Launcher,
		modules:   deps.Modules,
		hub:       deps.Hub,
		opts:      opts,
		minLevel:  opts.MinLoginLevel,
	}
}

// MinimumLevel returns the current minimum account level policy.
func (s *Service) MinimumLevel() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.minLevel
}

// SetMinimumLevel adjusts the minimum-level policy. The requesting
// account must authenticate and hold level MinAdminLevel or above.
func (s *Service) SetMinimumLevel(ctx context.Context, scopeID, firstName, lastName, credential string, level int) error {
	admin, err := s.accounts.Find(ctx, scopeID, firstName, lastName)
	if err != nil {
		return fmt.Errorf("look up requesting account: %w", err)
	}
	if admin == nil {
		return errors.New("requesting account not found")
	}
	token, err := s.gate.Authenticate(ctx, admin.UserID, credential, time.Minute)
	if err != nil || token == "" {
		return errors.New("authentication failed for requesting account")
	}
	if admin.Level < MinAdminLevel {
		return fmt.Errorf("account level %d is below the required %d", admin.Level, MinAdminLevel)
	}

	s.mu.Lock()
	s.minLevel = level
	s.mu.Unlock()
	slog.Info("minimum login level changed", "level", level, "by", admin.UserID)
	return nil
}

// Login runs one attempt to a terminal result. It never returns an
// error: every failure is converted to exactly one FailureKind plus a
// human-readable message.
func (s *Service) Login(ctx context.Context, req *domain.LoginRequest) *domain.LoginResult {
	s.hub.Publish(events.Event{Type: events.TypeAttempt, User: req.Name()})

	user, res := s.resolveAccount(ctx, req)
	if res != nil {
		return s.failed(req, res)
	}

	if res := s.authenticate(ctx, req, user); res != nil {
		return s.failed(req, res)
	}

	if res := s.checkPolicy(ctx, req, user); res != nil {
		return s.failed(req, res)
	}

	// Presence registration is the first durable side effect. From
	// here every failure exit compensates with a presence logout.
	session := domain.NewSessionHandle()
	ok, err := s.presence.Login(ctx, user.UserID, session.SessionID, session.SecureSessionID)
	if err != nil || !ok {
		slog.Error("presence registration failed", "user_id", user.UserID, "error", err)
		return s.failed(req, domain.FailedLogin(domain.FailureGrid, msgPresenceFailed))
	}

	result := s.loginRegistered(ctx, req, user, session)
	if !result.Success {
		s.compensate(ctx, user, session)
		return s.failed(req, result)
	}
	s.hub.Publish(events.Event{
		Type: events.TypeComplete, UserID: user.UserID, User: req.Name(), Region: result.RegionName,
	})
	return result
}

// loginRegistered covers every stage after presence registration. Any
// panic here is converted to an internal failure so the caller still
// runs the compensating logout.
func (s *Service) loginRegistered(ctx context.Context, req *domain.LoginRequest, user *domain.UserContext, session domain.SessionHandle) (result *domain.LoginResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic during login", "user_id", user.UserID, "panic", r)
			result = domain.FailedLogin(domain.FailureInternal, msgInternal)
		}
	}()

	loc, err := startloc.Parse(req.StartLocation)
	if err != nil {
		slog.Info("unparsable start location", "user_id", user.UserID, "start", req.StartLocation, "error", err)
		return domain.FailedLogin(domain.FailureUser, msgBadStartLocation)
	}

	memory, err := s.presence.LocationMemory(ctx, user.UserID)
	if err != nil {
		slog.Warn("location memory unavailable, using defaults", "user_id", user.UserID, "error", err)
	}

	dest, err := s.resolver.Resolve(ctx, loc, user, memory)
	if err != nil {
		slog.Warn("destination resolution failed", "user_id", user.UserID, "start", req.StartLocation, "error", err)
		return domain.FailedLogin(domain.FailureGrid, msgDestination)
	}
	s.hub.Publish(events.Event{
		Type: events.TypeDestination, UserID: user.UserID, Region: dest.Region.Name, Message: dest.Where,
	})

	// One-time bootstrap: a user with no home at all adopts the first
	// successfully resolved destination.
	if !memory.HasHome() {
		s.bootstrapHome(ctx, user, dest)
	}

	appearance := s.loadAppearance(ctx, user)

	flags := domain.TeleportViaLogin
	if dest.Foreign() {
		flags |= domain.TeleportViaHGLogin
	}
	outcome, err := s.launcher.Launch(ctx, launch.Params{
		User:        user,
		Session:     session,
		Appearance:  appearance,
		Destination: dest,
		Flags:       flags,
		Channel:     req.Channel,
		Version:     req.Version,
		Platform:    req.Platform,
		ClientIP:    req.ClientIP,
	})
	if err != nil {
		slog.Warn("session launch failed", "user_id", user.UserID, "error", err)
		return domain.FailedLogin(domain.FailureGrid, err.Error())
	}
	if outcome.Region != dest.Region {
		s.hub.Publish(events.Event{
			Type: events.TypeFallback, UserID: user.UserID, Region: outcome.Region.Name,
			Message: fmt.Sprintf("primary %s unreachable", dest.Region.Name),
		})
	}

	return s.complete(ctx, user, session, dest, outcome)
}

// complete assembles the final session descriptor, fetching the
// best-effort enrichments.
func (s *Service) complete(ctx context.Context, user *domain.UserContext, session domain.SessionHandle, dest *domain.DestinationResolution, outcome *launch.Outcome) *domain.LoginResult {
	skeleton, res := s.fetchInventory(ctx, user)
	if res != nil {
		return res
	}

	var friendList []domain.FriendInfo
	if s.friends != nil {
		var err error
		friendList, err = s.friends.List(ctx, user.UserID)
		if err != nil {
			slog.Warn("friends list unavailable", "user_id", user.UserID, "error", err)
			friendList = nil
		}
	}

	var gestures []domain.InventoryItem
	if s.inventory != nil {
		var err error
		gestures, err = s.inventory.ActiveGestures(ctx, user.UserID)
		if err != nil {
			slog.Warn("active gestures unavailable", "user_id", user.UserID, "error", err)
			gestures = nil
		}
	}

	// A fallback landing invalidates the resolved coordinates: the
	// stored position belongs to the region the user never reached.
	position, lookAt, where := dest.Position, dest.LookAt, dest.Where
	if outcome.Region.ID != dest.Region.ID {
		position, lookAt, where = domain.DefaultPosition, domain.DefaultLookAt, domain.WhereSafe
	}

	// Record where this session starts so "last" resolves next time.
	if err := s.presence.SetLast(ctx, user.UserID, outcome.Region.ID, position, lookAt); err != nil {
		slog.Warn("failed to record last location", "user_id", user.UserID, "error", err)
	}

	return &domain.LoginResult{
		Success:         true,
		Message:         s.opts.WelcomeMessage,
		UserID:          user.UserID,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		SessionID:       session.SessionID,
		SecureSessionID: session.SecureSessionID,
		CircuitCode:     outcome.Circuit.CircuitCode,
		Where:           where,
		Position:        position,
		LookAt:          lookAt,
		RegionName:      outcome.Region.Name,
		SimAddress:      outcome.Region.HostName,
		SimPort:         outcome.Region.Port,
		Friends:         friendList,
		Skeleton:        skeleton,
		Gestures:        gestures,
	}
}

func (s *Service) resolveAccount(ctx context.Context, req *domain.LoginRequest) (*domain.UserContext, *domain.LoginResult) {
	user, err := s.accounts.Find(ctx, req.ScopeID, req.FirstName, req.LastName)
	if err != nil {
		slog.Error("account lookup failed", "user", req.Name(), "error", err)
		return nil, domain.FailedLogin(domain.FailureInternal, msgInternal)
	}
	if user != nil {
		return user, nil
	}
	if !s.opts.AllowAnonymous {
		return nil, domain.FailedLogin(domain.FailureUser, msgBadIdentity)
	}

	user, err = s.accounts.Create(ctx, req.ScopeID, req.FirstName, req.LastName, req.Credential)
	if err != nil {
		slog.Error("anonymous account creation failed", "user", req.Name(), "error", err)
		return nil, domain.FailedLogin(domain.FailureInternal, msgInternal)
	}
	slog.Info("created anonymous account", "user_id", user.UserID, "user", req.Name())
	return user, nil
}

func (s *Service) authenticate(ctx context.Context, req *domain.LoginRequest, user *domain.UserContext) *domain.LoginResult {
	var token string
	var err error
	if s.opts.SkipLocalAuth {
		token, err = s.gate.IssueToken(ctx, user.UserID, s.opts.TokenLifetime)
	} else {
		token, err = s.gate.Authenticate(ctx, user.UserID, req.Credential, s.opts.TokenLifetime)
	}
	if err != nil || token == "" {
		slog.Info("authentication rejected", "user_id", user.UserID, "error", err)
		return domain.FailedLogin(domain.FailureUser, msgBadCredentials)
	}
	return nil
}

// checkPolicy runs the built-in gates and then the registered modules
// in order. The first rejection wins. The only side effect is
// recording terms acceptance when the caller explicitly supplies it.
func (s *Service) checkPolicy(ctx context.Context, req *domain.LoginRequest, user *domain.UserContext) *domain.LoginResult {
	if user.Banned {
		return domain.FailedLogin(domain.FailureUser, msgBanned)
	}

	if s.opts.RequireTOS && !user.TermsAccepted {
		if !req.AgreeToTOS {
			return domain.FailedLogin(domain.FailureUser, msgTOSRequired)
		}
		if err := s.accounts.RecordTermsAcceptance(ctx, user.UserID); err != nil {
			slog.Error("failed to record terms acceptance", "user_id", user.UserID, "error", err)
			return domain.FailedLogin(domain.FailureInternal, msgInternal)
		}
		user.TermsAccepted = true
	}

	if user.Level < s.MinimumLevel() {
		return domain.FailedLogin(domain.FailureUser, msgLevelTooLow)
	}

	for _, m := range s.modules {
		if err := m.Authorize(ctx, req, user); err != nil {
			slog.Info("login module rejected attempt", "module", m.Name(), "user_id", user.UserID, "reason", err)
			return domain.FailedLogin(domain.FailureUser, err.Error())
		}
	}
	return nil
}

// bootstrapHome persists the first resolved destination as the user's
// home and last location. Best-effort: the login proceeds either way.
func (s *Service) bootstrapHome(ctx context.Context, user *domain.UserContext, dest *domain.DestinationResolution) {
	if dest.Foreign() {
		// A home on a foreign grid would be unreachable once the
		// hyperlink expires; leave home unset.
		return
	}
	if err := s.presence.SetHome(ctx, user.UserID, dest.Region.ID, dest.Position, dest.LookAt); err != nil {
		slog.Warn("failed to bootstrap home location", "user_id", user.UserID, "error", err)
		return
	}
	slog.Info("bootstrapped home location", "user_id", user.UserID, "region", dest.Region.Name)
}

func (s *Service) loadAppearance(ctx context.Context, user *domain.UserContext) *domain.AvatarAppearance {
	if s.avatars == nil {
		return nil
	}
	appearance, err := s.avatars.Appearance(ctx, user.UserID)
	if err != nil {
		slog.Warn("appearance unavailable, launching with none", "user_id", user.UserID, "error", err)
		return nil
	}
	return appearance
}

// fetchInventory returns the skeleton, bootstrapping it on first login
// when inventory is required. A missing or unreachable skeleton is
// only fatal for deployments that mandate inventory.
func (s *Service) fetchInventory(ctx context.Context, user *domain.UserContext) ([]domain.InventoryFolder, *domain.LoginResult) {
	if s.inventory == nil {
		if s.opts.RequireInventory {
			return nil, domain.FailedLogin(domain.FailureInventory, msgInventoryFailed)
		}
		return nil, nil
	}

	skeleton, err := s.inventory.Skeleton(ctx, user.UserID)
	if err == nil && len(skeleton) == 0 && s.opts.RequireInventory {
		if err := s.inventory.CreateUserInventory(ctx, user.UserID); err != nil {
			slog.Error("inventory bootstrap failed", "user_id", user.UserID, "error", err)
			return nil, domain.FailedLogin(domain.FailureInventory, msgInventoryFailed)
		}
		skeleton, err = s.inventory.Skeleton(ctx, user.UserID)
	}
	if err != nil {
		if s.opts.RequireInventory {
			slog.Error("required inventory unreachable", "user_id", user.UserID, "error", err)
			return nil, domain.FailedLogin(domain.FailureInventory, msgInventoryFailed)
		}
		slog.Warn("inventory unavailable, proceeding with empty skeleton", "user_id", user.UserID, "error", err)
		return nil, nil
	}
	if len(skeleton) == 0 && s.opts.RequireInventory {
		return nil, domain.FailedLogin(domain.FailureInventory, msgInventoryFailed)
	}
	return skeleton, nil
}

// compensate removes the registered presence after a post-registration
// failure. Its own failure is logged and does not change the result.
func (s *Service) compensate(ctx context.Context, user *domain.UserContext, session domain.SessionHandle) {
	if err := s.presence.Logout(ctx, session.SessionID); err != nil {
		slog.Error("compensating presence logout failed",
			"user_id", user.UserID, "session_id", session.SessionID, "error", err)
	}
}

func (s *Service) failed(req *domain.LoginRequest, res *domain.LoginResult) *domain.LoginResult {
	s.hub.Publish(events.Event{
		Type: events.TypeFailed, User: req.Name(), Message: string(res.Kind) + ": " + res.Message,
	})
	return res
}
