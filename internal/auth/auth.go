// Package auth implements the credential gates a deployment can choose
// from: salted-hash password verification backed by the account store,
// or a pass-through gate for deployments that authenticate elsewhere.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrBadCredential is returned for any credential mismatch. The
// message is deliberately identical for unknown users and wrong
// passwords.
var ErrBadCredential = errors.New("invalid credential")

// CredentialStore is the slice of the account store the gates need.
type CredentialStore interface {
	// Credential returns the stored hash and salt for a user, or empty
	// strings when the user has no credential on file.
	Credential(ctx context.Context, userID string) (hash, salt string, err error)

	// StoreToken persists an issued token with its expiry.
	StoreToken(ctx context.Context, userID, token string, expires time.Time) error
}

// HashCredential derives the stored form of a secret.
func HashCredential(secret, salt string) string {
	sum := sha256.Sum256([]byte(secret + ":" + salt))
	return hex.EncodeToString(sum[:])
}

// NewSalt returns a fresh random salt.
func NewSalt() string {
	return uuid.NewString()
}

// PasswordGate verifies a password against the stored salted hash and
// issues a session token on success.
type PasswordGate struct {
	store CredentialStore
}

// NewPasswordGate creates a password gate over the given store.
func NewPasswordGate(store CredentialStore) *PasswordGate {
	return &PasswordGate{store: store}
}

// Authenticate checks the credential and mints a token.
func (g *PasswordGate) Authenticate(ctx context.Context, userID, credential string, lifetime time.Duration) (string, error) {
	hash, salt, err := g.store.Credential(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	if hash == "" {
		return "", ErrBadCredential
	}
	supplied := HashCredential(credential, salt)
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(hash)) != 1 {
		return "", ErrBadCredential
	}
	return g.IssueToken(ctx, userID, lifetime)
}

// IssueToken mints and persists a token without a credential check.
func (g *PasswordGate) IssueToken(ctx context.Context, userID string, lifetime time.Duration) (string, error) {
	token := uuid.NewString()
	if err := g.store.StoreToken(ctx, userID, token, time.Now().Add(lifetime)); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// PassthroughGate accepts every credential. It is for deployments
// where an upstream system has already authenticated the user.
type PassthroughGate struct{}

// Authenticate ignores the credential and issues a token.
func (PassthroughGate) Authenticate(_ context.Context, _ string, _ string, _ time.Duration) (string, error) {
	return uuid.NewString(), nil
}

// IssueToken mints a token.
func (PassthroughGate) IssueToken(_ context.Context, _ string, _ time.Duration) (string, error) {
	return uuid.NewString(), nil
}
