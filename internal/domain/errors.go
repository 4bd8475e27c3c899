package domain

import "errors"

// Sentinel errors surfaced by destination resolution and launch.
var (
	// ErrNoDestination means every resolution fallback was exhausted.
	ErrNoDestination = errors.New("no destination region available")

	// ErrFederationDisabled is returned for cross-grid addresses when
	// the deployment runs without hypergrid support.
	ErrFederationDisabled = errors.New("hypergrid federation is disabled")

	// ErrNoReachableDestination means no candidate region admitted the
	// session during the launch fallback chain.
	ErrNoReachableDestination = errors.New("no reachable destination")
)

// FailureKind classifies a login failure for the caller. Every failure
// leaving the orchestrator carries exactly one kind plus a
// human-readable message; raw collaborator faults never escape.
type FailureKind string

const (
	// FailureUser covers account, credential and policy rejections.
	FailureUser FailureKind = "user"
	// FailureGrid covers destination resolution and launch failures.
	FailureGrid FailureKind = "grid"
	// FailureInventory means required inventory was missing or unreachable.
	FailureInventory FailureKind = "inventory"
	// FailureInternal is an unexpected fault, always logged with context.
	FailureInternal FailureKind = "internal"
)
