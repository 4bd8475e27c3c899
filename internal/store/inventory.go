package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/halcyongrid/logind/internal/domain"
)

// Skeleton returns the user's inventory folder tree. An empty slice
// means the inventory has never been bootstrapped.
func (s *SQLiteStore) Skeleton(ctx context.Context, userID string) ([]domain.InventoryFolder, error) {
	query := `SELECT folder_id, parent_id, name, type, version
		FROM inventory_folders WHERE user_id = ? ORDER BY parent_id, name`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query inventory folders: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close folder rows", "error", closeErr)
		}
	}()

	var folders []domain.InventoryFolder
	for rows.Next() {
		var f domain.InventoryFolder
		if err := rows.Scan(&f.ID, &f.ParentID, &f.Name, &f.Type, &f.Version); err != nil {
			return nil, fmt.Errorf("scan folder row: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate folders: %w", err)
	}
	return folders, nil
}

// ActiveGestures returns the user's currently active gestures.
func (s *SQLiteStore) ActiveGestures(ctx context.Context, userID string) ([]domain.InventoryItem, error) {
	query := `SELECT item_id, asset_id, name FROM gestures WHERE user_id = ? AND active = 1`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query gestures: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close gesture rows", "error", closeErr)
		}
	}()

	var items []domain.InventoryItem
	for rows.Next() {
		var item domain.InventoryItem
		if err := rows.Scan(&item.ID, &item.AssetID, &item.Name); err != nil {
			return nil, fmt.Errorf("scan gesture row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gestures: %w", err)
	}
	return items, nil
}

// standardFolders are created under the root on first-login bootstrap.
var standardFolders = []struct {
	name string
	typ  int
}{
	{"Textures", 0},
	{"Sounds", 1},
	{"Calling Cards", 2},
	{"Landmarks", 3},
	{"Clothing", 5},
	{"Objects", 6},
	{"Notecards", 7},
	{"Gestures", 20},
}

// CreateUserInventory bootstraps the root folder set for a user that
// has never logged in before. Calling it for a user that already has
// folders is an error.
func (s *SQLiteStore) CreateUserInventory(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin inventory bootstrap: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			slog.Warn("failed to roll back inventory bootstrap", "error", rbErr)
		}
	}()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM inventory_folders WHERE user_id = ?`, userID,
	).Scan(&existing); err != nil {
		return fmt.Errorf("count existing folders: %w", err)
	}
	if existing > 0 {
		return fmt.Errorf("inventory already exists for user %s", userID)
	}

	insert := `INSERT INTO inventory_folders (folder_id, user_id, parent_id, name, type, version)
		VALUES (?, ?, ?, ?, ?, 1)`

	rootID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, insert, rootID, userID, "", "My Inventory", 8); err != nil {
		return fmt.Errorf("insert root folder: %w", err)
	}
	for _, f := range standardFolders {
		if _, err := tx.ExecContext(ctx, insert, uuid.NewString(), userID, rootID, f.name, f.typ); err != nil {
			return fmt.Errorf("insert %s folder: %w", f.name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit inventory bootstrap: %w", err)
	}
	return nil
}

// List returns the user's friends list.
func (s *SQLiteStore) List(ctx context.Context, userID string) ([]domain.FriendInfo, error) {
	query := `SELECT friend_id, my_rights, their_rights FROM friends WHERE user_id = ?`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query friends: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close friend rows", "error", closeErr)
		}
	}()

	var friends []domain.FriendInfo
	for rows.Next() {
		var f domain.FriendInfo
		if err := rows.Scan(&f.FriendID, &f.MyRights, &f.TheirRight); err != nil {
			return nil, fmt.Errorf("scan friend row: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friends: %w", err)
	}
	return friends, nil
}

// Appearance returns the stored appearance snapshot, or (nil, nil)
// when the user has never saved one.
func (s *SQLiteStore) Appearance(ctx context.Context, userID string) (*domain.AvatarAppearance, error) {
	query := `SELECT serial, appearance_json FROM avatars WHERE user_id = ?`
	row := s.db.QueryRowContext(ctx, query, userID)

	var appearance domain.AvatarAppearance
	var raw string
	err := row.Scan(&appearance.Serial, &raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan avatar row: %w", err)
	}
	if raw != "" {
		appearance.Data = json.RawMessage(raw)
	}
	return &appearance, nil
}
