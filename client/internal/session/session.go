// Package session keeps the login token between CLI runs.
package session

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var unsafeChars = regexp.MustCompile(`[^a-z0-9._-]`)

func sanitize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = unsafeChars.ReplaceAllString(s, "")
	if s == "" {
		s = "default"
	}
	return s
}

// Store persists the token and username under dir.
type Store struct {
	dir string
}

// New returns a store rooted at <user config dir>/naaga/<profile>.
//
//	Linux:   ~/.config/naaga/<profile>/
//	macOS:   ~/Library/Application Support/naaga/<profile>/
func New(profile string) *Store {
	root, _ := os.UserConfigDir()
	if root == "" {
		home, _ := os.UserHomeDir()
		root = filepath.Join(home, ".config")
	}
	return NewAt(filepath.Join(root, "naaga", sanitize(profile)))
}

// NewAt returns a store rooted at dir.
func NewAt(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(name string) string { return filepath.Join(s.dir, name) }

func (s *Store) Save(token, username string) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return errors.Wrap(err, "create session dir")
	}
	if err := os.WriteFile(s.path("token"), []byte(strings.TrimSpace(token)), 0o600); err != nil {
		return errors.Wrap(err, "write token")
	}
	return errors.Wrap(os.WriteFile(s.path("username"), []byte(strings.TrimSpace(username)), 0o600), "write username")
}

func (s *Store) Token() string {
	b, _ := os.ReadFile(s.path("token"))
	return strings.TrimSpace(string(b))
}

func (s *Store) Username() string {
	b, _ := os.ReadFile(s.path("username"))
	return strings.TrimSpace(string(b))
}

func (s *Store) Clear() {
	_ = os.Remove(s.path("token"))
	_ = os.Remove(s.path("username"))
}
