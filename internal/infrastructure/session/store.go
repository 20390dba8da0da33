package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"neonote/internal/domain/account"
)

var (
	ErrClosed     = errors.New("session store is closed")
	ErrNoSession  = errors.New("no active session")
	ErrEmptyToken = errors.New("session token is empty")
)

// Session is the authenticated state of this client.
type Session struct {
	Token   string       `json:"token"`
	User    account.User `json:"user"`
	SavedAt time.Time    `json:"savedAt"`
}

// Store holds the current session and mirrors it to a file. It is opened
// once at startup and closed at teardown; there is no package-level state.
type Store struct {
	mu      sync.RWMutex
	path    string
	current *Session
	closed  bool
}

// Open loads the persisted session at path, if any. An empty path keeps the
// session in memory only.
func Open(path string) (*Store, error) {
	s := &Store{path: strings.TrimSpace(path)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Token returns the bearer token, or "" when signed out or closed.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.current == nil {
		return ""
	}
	return s.current.Token
}

// Current returns the active session.
func (s *Store) Current() (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Session{}, ErrClosed
	}
	if s.current == nil {
		return Session{}, ErrNoSession
	}
	return *s.current, nil
}

// Save replaces the active session and persists it.
func (s *Store) Save(sess Session) error {
	if strings.TrimSpace(sess.Token) == "" {
		return ErrEmptyToken
	}
	if sess.SavedAt.IsZero() {
		sess.SavedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	previous := s.current
	s.current = &sess
	if err := s.saveLocked(); err != nil {
		s.current = previous
		return err
	}
	return nil
}

// Clear signs out and removes the persisted session.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	s.current = nil
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Close ends the session context. The persisted file is left in place.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.current = nil
	return nil
}

func (s *Store) load() error {
	if s.path == "" {
		return nil
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if len(raw) == 0 {
		return nil
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("decode session file: %w", err)
	}
	if sess.Token == "" {
		return nil
	}
	s.current = &sess
	return nil
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}

	raw, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.path)
}
