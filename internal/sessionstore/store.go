// File: internal/sessionstore/store.go
// Package sessionstore persists the serialized cookie set of an authenticated
// session, one JSON file per account identifier. A stored set lets a later run
// skip the full login when the cookies are still honored by the site.
package sessionstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Cookie is the durable representation of one browser cookie.
type Cookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure"`
	HTTPOnly bool      `json:"httpOnly"`
	SameSite string    `json:"sameSite,omitempty"`
}

// valid reports whether the entry carries the fields required to restore it.
func (c Cookie) valid() bool {
	return c.Name != "" && c.Value != "" && c.Domain != ""
}

// Store reads and writes per-identifier cookie files under a single directory.
//
// Callers must guarantee at most one concurrent run per identifier; the store
// does not lock files (the worker pool upholds this by deduplicating batches
// on identifier).
type Store struct {
	dir    string
	logger *zap.Logger
}

// New creates the store directory if needed and returns a Store.
func New(dir string, logger *zap.Logger) (*Store, error) {
	if dir == "" {
		dir = "cookies"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cookie store directory %q: %w", dir, err)
	}
	return &Store{
		dir:    dir,
		logger: logger.Named("sessionstore"),
	}, nil
}

// Save persists the cookie set for the identifier, overwriting any prior set.
// An empty set is not an error: there is nothing worth persisting, so the call
// logs and returns nil, leaving any previous file untouched.
func (s *Store) Save(identifier string, cookies []Cookie) error {
	if len(cookies) == 0 {
		s.logger.Warn("Refusing to persist empty cookie set", zap.String("account", identifier))
		return nil
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize cookies for %q: %w", identifier, err)
	}

	path := s.pathFor(identifier)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookie file %q: %w", path, err)
	}

	s.logger.Info("Cookie set persisted",
		zap.String("account", identifier),
		zap.Int("cookies", len(cookies)))
	return nil
}

// Load returns the stored cookie set for the identifier. The second return is
// false when no usable set exists: missing file, unreadable JSON, an empty
// set, or any entry missing name/value/domain. None of these are errors; the
// caller falls back to a full login.
func (s *Store) Load(identifier string) ([]Cookie, bool) {
	path := s.pathFor(identifier)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		s.logger.Warn("Dropping malformed cookie file",
			zap.String("account", identifier), zap.Error(err))
		return nil, false
	}
	if len(cookies) == 0 {
		return nil, false
	}
	for _, c := range cookies {
		if !c.valid() {
			s.logger.Warn("Dropping cookie set with incomplete entry",
				zap.String("account", identifier), zap.String("cookie", c.Name))
			return nil, false
		}
	}

	return cookies, true
}

func (s *Store) pathFor(identifier string) string {
	return filepath.Join(s.dir, sanitizeKey(identifier)+".json")
}

// sanitizeKey maps an account identifier to a filesystem-safe key.
func sanitizeKey(identifier string) string {
	replacer := strings.NewReplacer(
		"@", "_at_",
		".", "_",
		string(os.PathSeparator), "_",
	)
	return replacer.Replace(identifier)
}
