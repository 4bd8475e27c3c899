package domain

// LocationMemory is the per-user record of home and last-visited
// locations. It is owned by the presence collaborator; the login
// service reads it and may request updates (for example establishing
// a default home on first successful resolution).
type LocationMemory struct {
	UserID       string
	HomeRegionID string
	HomePosition Vector3
	HomeLookAt   Vector3
	LastRegionID string
	LastPosition Vector3
	LastLookAt   Vector3
}

// HasHome reports whether a home region has ever been set.
func (m *LocationMemory) HasHome() bool {
	return m != nil && m.HomeRegionID != ""
}

// HasLast reports whether a last-visited region is recorded.
func (m *LocationMemory) HasLast() bool {
	return m != nil && m.LastRegionID != ""
}

// FriendInfo is one entry of a user's friends list, fetched as a
// best-effort enrichment after a successful login.
type FriendInfo struct {
	FriendID   string `json:"friend_id"`
	MyRights   int    `json:"my_rights"`
	TheirRight int    `json:"their_rights"`
}

// InventoryFolder is one node of the user's inventory skeleton.
type InventoryFolder struct {
	ID       string `json:"folder_id"`
	ParentID string `json:"parent_id,omitempty"`
	Name     string `json:"name"`
	Type     int    `json:"type"`
	Version  int    `json:"version"`
}

// InventoryItem is a single inventory entry; the login response only
// carries items for the active-gestures enrichment.
type InventoryItem struct {
	ID      string `json:"item_id"`
	AssetID string `json:"asset_id,omitempty"`
	Name    string `json:"name"`
}
