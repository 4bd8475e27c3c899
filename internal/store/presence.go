package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/halcyongrid/logind/internal/domain"
)

// Login registers a session. The write retries on SQLite concurrency
// conflicts because it is the first durable side effect of a login
// attempt and the caller treats failure as fatal.
func (s *SQLiteStore) Login(ctx context.Context, userID, sessionID, secureSessionID string) (bool, error) {
	query := `
		INSERT INTO presence (session_id, secure_session_id, user_id, logged_in_at)
		VALUES (?, ?, ?, ?)`
	if err := s.execRetry(ctx, query, sessionID, secureSessionID, userID, time.Now().Unix()); err != nil {
		return false, fmt.Errorf("register presence: %w", err)
	}
	return true, nil
}

// Logout removes a registered session. Idempotent; it also retries on
// concurrency conflicts so that compensation cannot be lost to a
// transient lock.
func (s *SQLiteStore) Logout(ctx context.Context, sessionID string) error {
	if err := s.execRetry(ctx, `DELETE FROM presence WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	return nil
}

// LocationMemory returns the user's stored home and last-visited
// locations, or (nil, nil) when none are recorded.
func (s *SQLiteStore) LocationMemory(ctx context.Context, userID string) (*domain.LocationMemory, error) {
	query := `
		SELECT home_region_id, home_pos_x, home_pos_y, home_pos_z,
		       home_look_x, home_look_y, home_look_z,
		       last_region_id, last_pos_x, last_pos_y, last_pos_z,
		       last_look_x, last_look_y, last_look_z
		FROM locations WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	memory := domain.LocationMemory{UserID: userID}
	err := row.Scan(
		&memory.HomeRegionID, &memory.HomePosition.X, &memory.HomePosition.Y, &memory.HomePosition.Z,
		&memory.HomeLookAt.X, &memory.HomeLookAt.Y, &memory.HomeLookAt.Z,
		&memory.LastRegionID, &memory.LastPosition.X, &memory.LastPosition.Y, &memory.LastPosition.Z,
		&memory.LastLookAt.X, &memory.LastLookAt.Y, &memory.LastLookAt.Z,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan location row: %w", err)
	}
	return &memory, nil
}

// SetHome stores a new home location, preserving the last-visited half
// of the record.
func (s *SQLiteStore) SetHome(ctx context.Context, userID, regionID string, position, lookAt domain.Vector3) error {
	query := `
		INSERT INTO locations (user_id, home_region_id,
			home_pos_x, home_pos_y, home_pos_z,
			home_look_x, home_look_y, home_look_z, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			home_region_id = excluded.home_region_id,
			home_pos_x = excluded.home_pos_x,
			home_pos_y = excluded.home_pos_y,
			home_pos_z = excluded.home_pos_z,
			home_look_x = excluded.home_look_x,
			home_look_y = excluded.home_look_y,
			home_look_z = excluded.home_look_z,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		userID, regionID,
		position.X, position.Y, position.Z,
		lookAt.X, lookAt.Y, lookAt.Z,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("set home location: %w", err)
	}
	return nil
}

// SetLast stores the most recent location, preserving the home half of
// the record.
func (s *SQLiteStore) SetLast(ctx context.Context, userID, regionID string, position, lookAt domain.Vector3) error {
	query := `
		INSERT INTO locations (user_id, last_region_id,
			last_pos_x, last_pos_y, last_pos_z,
			last_look_x, last_look_y, last_look_z, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			last_region_id = excluded.last_region_id,
			last_pos_x = excluded.last_pos_x,
			last_pos_y = excluded.last_pos_y,
			last_pos_z = excluded.last_pos_z,
			last_look_x = excluded.last_look_x,
			last_look_y = excluded.last_look_y,
			last_look_z = excluded.last_look_z,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		userID, regionID,
		position.X, position.Y, position.Z,
		lookAt.X, lookAt.Y, lookAt.Z,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("set last location: %w", err)
	}
	return nil
}
