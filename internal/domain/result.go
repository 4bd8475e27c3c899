package domain

// LoginResult is the single outward-facing outcome of a login attempt:
// either a fully populated session descriptor or a structured failure.
type LoginResult struct {
	Success bool        `json:"login"`
	Kind    FailureKind `json:"kind,omitempty"`
	Message string      `json:"message,omitempty"`

	UserID          string  `json:"agent_id,omitempty"`
	FirstName       string  `json:"first_name,omitempty"`
	LastName        string  `json:"last_name,omitempty"`
	SessionID       string  `json:"session_id,omitempty"`
	SecureSessionID string  `json:"secure_session_id,omitempty"`
	CircuitCode     uint32  `json:"circuit_code,omitempty"`
	Where           string  `json:"where,omitempty"`
	Position        Vector3 `json:"position,omitzero"`
	LookAt          Vector3 `json:"look_at,omitzero"`
	RegionName      string  `json:"region_name,omitempty"`
	SimAddress      string  `json:"sim_ip,omitempty"`
	SimPort         int     `json:"sim_port,omitempty"`

	Friends  []FriendInfo      `json:"friends,omitempty"`
	Skeleton []InventoryFolder `json:"inventory_skeleton,omitempty"`
	Gestures []InventoryItem   `json:"gestures,omitempty"`
}

// FailedLogin builds the structured failure shape of a LoginResult.
func FailedLogin(kind FailureKind, message string) *LoginResult {
	return &LoginResult{Kind: kind, Message: message}
}
