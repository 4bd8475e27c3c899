package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	hash, salt string
	credErr    error
	tokens     map[string]time.Time
}

func (s *fakeStore) Credential(_ context.Context, _ string) (string, string, error) {
	return s.hash, s.salt, s.credErr
}

func (s *fakeStore) StoreToken(_ context.Context, _, token string, expires time.Time) error {
	if s.tokens == nil {
		s.tokens = map[string]time.Time{}
	}
	s.tokens[token] = expires
	return nil
}

func TestPasswordGateAccepts(t *testing.T) {
	salt := NewSalt()
	store := &fakeStore{hash: HashCredential("hunter2", salt), salt: salt}
	gate := NewPasswordGate(store)

	token, err := gate.Authenticate(context.Background(), "u1", "hunter2", time.Hour)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if token == "" {
		t.Fatal("empty token for valid credential")
	}
	if _, ok := store.tokens[token]; !ok {
		t.Error("issued token not persisted")
	}
}

func TestPasswordGateRejectsWrongPassword(t *testing.T) {
	salt := NewSalt()
	store := &fakeStore{hash: HashCredential("hunter2", salt), salt: salt}
	gate := NewPasswordGate(store)

	if _, err := gate.Authenticate(context.Background(), "u1", "letmein", time.Hour); !errors.Is(err, ErrBadCredential) {
		t.Fatalf("error = %v, want ErrBadCredential", err)
	}
	if len(store.tokens) != 0 {
		t.Error("token issued for rejected credential")
	}
}

func TestPasswordGateRejectsMissingCredential(t *testing.T) {
	gate := NewPasswordGate(&fakeStore{})

	if _, err := gate.Authenticate(context.Background(), "u1", "anything", time.Hour); !errors.Is(err, ErrBadCredential) {
		t.Fatalf("error = %v, want ErrBadCredential", err)
	}
}

func TestPassthroughGateAlwaysIssues(t *testing.T) {
	gate := PassthroughGate{}

	t1, err := gate.Authenticate(context.Background(), "u1", "ignored", time.Hour)
	if err != nil || t1 == "" {
		t.Fatalf("Authenticate = %q, %v", t1, err)
	}
	t2, err := gate.IssueToken(context.Background(), "u1", time.Hour)
	if err != nil || t2 == "" {
		t.Fatalf("IssueToken = %q, %v", t2, err)
	}
	if t1 == t2 {
		t.Error("tokens are not unique")
	}
}
