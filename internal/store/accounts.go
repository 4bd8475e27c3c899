package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/halcyongrid/logind/internal/auth"
	"github.com/halcyongrid/logind/internal/domain"
)

// Find looks up an account by name within a scope. Returns (nil, nil)
// when no account matches.
func (s *SQLiteStore) Find(ctx context.Context, scopeID, firstName, lastName string) (*domain.UserContext, error) {
	query := `
		SELECT user_id, scope_id, first_name, last_name, user_level, banned, tos_accepted
		FROM users WHERE scope_id = ? AND first_name = ? AND last_name = ?`

	row := s.db.QueryRowContext(ctx, query, scopeID, firstName, lastName)

	var user domain.UserContext
	var banned, tosAccepted int
	err := row.Scan(
		&user.UserID, &user.ScopeID, &user.FirstName, &user.LastName,
		&user.Level, &banned, &tosAccepted,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.Banned = banned != 0
	user.TermsAccepted = tosAccepted != 0
	return &user, nil
}

// Create registers a new account with a salted credential hash.
func (s *SQLiteStore) Create(ctx context.Context, scopeID, firstName, lastName, credential string) (*domain.UserContext, error) {
	userID := uuid.NewString()
	salt := auth.NewSalt()
	now := time.Now().Unix()

	query := `
		INSERT INTO users (user_id, scope_id, first_name, last_name, password_hash, password_salt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		userID, scopeID, firstName, lastName,
		auth.HashCredential(credential, salt), salt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return &domain.UserContext{
		UserID:    userID,
		ScopeID:   scopeID,
		FirstName: firstName,
		LastName:  lastName,
	}, nil
}

// RecordTermsAcceptance persists that the user accepted the current
// terms of service.
func (s *SQLiteStore) RecordTermsAcceptance(ctx context.Context, userID string) error {
	query := `UPDATE users SET tos_accepted = 1, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("record terms acceptance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

// SetUserLevel updates an account's privilege level.
func (s *SQLiteStore) SetUserLevel(ctx context.Context, userID string, level int) error {
	query := `UPDATE users SET user_level = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, level, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("set user level: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user %s not found", userID)
	}
	return nil
}

// Credential returns the stored hash and salt for a user, or empty
// strings when the user has no credential on file.
func (s *SQLiteStore) Credential(ctx context.Context, userID string) (string, string, error) {
	query := `SELECT password_hash, password_salt FROM users WHERE user_id = ?`
	row := s.db.QueryRowContext(ctx, query, userID)

	var hash, salt string
	err := row.Scan(&hash, &salt)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("scan credential row: %w", err)
	}
	return hash, salt, nil
}

// StoreToken persists an issued token with its expiry, pruning any
// tokens that have already expired.
func (s *SQLiteStore) StoreToken(ctx context.Context, userID, token string, expires time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_tokens WHERE expires_at < ?`, time.Now().Unix()); err != nil {
		return fmt.Errorf("prune expired tokens: %w", err)
	}
	query := `INSERT INTO auth_tokens (token, user_id, expires_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, token, userID, expires.Unix()); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return nil
}
