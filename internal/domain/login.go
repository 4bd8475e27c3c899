package domain

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"

	"github.com/google/uuid"
)

// LoginRequest carries everything a client supplies with one login
// attempt. It is immutable once received.
type LoginRequest struct {
	FirstName     string `json:"first"`
	LastName      string `json:"last"`
	Credential    string `json:"passwd"`
	StartLocation string `json:"start"`
	ScopeID       string `json:"scope_id,omitempty"`
	Channel       string `json:"channel,omitempty"`
	Version       string `json:"version,omitempty"`
	Platform      string `json:"platform,omitempty"`
	ClientIP      string `json:"-"`
	AgreeToTOS    bool   `json:"agree_to_tos,omitempty"`
}

// Name returns the avatar's full name.
func (r *LoginRequest) Name() string {
	return r.FirstName + " " + r.LastName
}

// UserContext is the resolved account the login attempt runs under.
// It is produced by the account directory and read-only to the core.
type UserContext struct {
	UserID        string
	ScopeID       string
	FirstName     string
	LastName      string
	Level         int
	Banned        bool
	TermsAccepted bool
}

// SessionHandle is the pair of identifiers minted exactly once per
// login attempt. It becomes the durable session key the moment
// presence registration succeeds.
type SessionHandle struct {
	SessionID       string
	SecureSessionID string
}

// NewSessionHandle mints a fresh session identifier pair.
func NewSessionHandle() SessionHandle {
	return SessionHandle{
		SessionID:       uuid.NewString(),
		SecureSessionID: uuid.NewString(),
	}
}

// AvatarAppearance is an opaque snapshot of the avatar's current
// appearance, handed to the destination simulator verbatim.
type AvatarAppearance struct {
	Serial int             `json:"serial"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// TeleportFlags describe how a session arrives at a region.
type TeleportFlags uint32

const (
	// TeleportViaLogin marks the initial admission of a fresh login.
	TeleportViaLogin TeleportFlags = 1 << 1
	// TeleportViaHGLogin marks admission arriving through a federation
	// gateway rather than a direct simulator call.
	TeleportViaHGLogin TeleportFlags = 1 << 26
)

// AgentCircuit is the transient admission credential set used to
// materialize one session at one destination. A circuit is rebuilt,
// never mutated, whenever the destination changes during fallback.
type AgentCircuit struct {
	CircuitCode     uint32            `json:"circuit_code"`
	SessionID       string            `json:"session_id"`
	SecureSessionID string            `json:"secure_session_id"`
	UserID          string            `json:"agent_id"`
	FirstName       string            `json:"first_name"`
	LastName        string            `json:"last_name"`
	DestinationID   string            `json:"destination_id"`
	StartPosition   Vector3           `json:"start_position"`
	Appearance      *AvatarAppearance `json:"appearance,omitempty"`
	Channel         string            `json:"channel,omitempty"`
	Version         string            `json:"version,omitempty"`
	Platform        string            `json:"platform,omitempty"`
	ClientIP        string            `json:"client_ip,omitempty"`
}

// NewCircuitCode draws a random non-zero circuit code.
func NewCircuitCode() uint32 {
	var buf [4]byte
	for {
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand failing is unrecoverable for credential material.
			panic("domain: read random circuit code: " + err.Error())
		}
		if code := binary.BigEndian.Uint32(buf[:]) & 0x7fffffff; code != 0 {
			return code
		}
	}
}
