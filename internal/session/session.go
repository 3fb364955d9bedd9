// Package session stores the signed-in user's credentials and exposes them
// to the request pipeline.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Auth is the persisted authentication state.
type Auth struct {
	SessionSecret string `json:"sessionSecret,omitempty"`
	UserID        string `json:"userId,omitempty"`
	Username      string `json:"username,omitempty"`
}

type state struct {
	Auth *Auth `json:"auth,omitempty"`
}

// Store reads credentials from the environment token and the state file.
// It implements fetch.Credentials.
type Store struct {
	Path  string
	Token string
}

// New creates a store backed by the state file at path.
func New(path, token string) *Store {
	return &Store{Path: path, Token: token}
}

// AccessToken returns the token supplied through the environment.
func (s *Store) AccessToken() (string, bool) {
	return s.Token, s.Token != ""
}

// SessionSecret returns the secret saved by the last login, if any.
func (s *Store) SessionSecret() (string, bool) {
	auth, err := s.Load()
	if err != nil || auth == nil || auth.SessionSecret == "" {
		return "", false
	}
	return auth.SessionSecret, true
}

// Load returns the persisted auth state, or nil when nobody is signed in.
func (s *Store) Load() (*Auth, error) {
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	return st.Auth, nil
}

// Save persists auth, replacing any previous session.
func (s *Store) Save(auth *Auth) error {
	return s.write(state{Auth: auth})
}

// Clear signs the user out by dropping the saved session.
func (s *Store) Clear() error {
	if _, err := os.Stat(s.Path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return s.write(state{})
}

func (s *Store) write(st state) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	// Write to temporary file first, then rename (atomic operation)
	tmpPath := s.Path + ".tmp." + uuid.NewString()
	if err := os.WriteFile(tmpPath, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.Path)
}
