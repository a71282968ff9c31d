// Package tokenstore persists the bot's OAuth token pair as a single JSON file.
//
// The file holds {"accessToken", "refreshToken", "expires_in"} or {} before the
// first authorization. Reads fail softly: anything that does not yield a
// non-empty access token is reported as absent so the caller falls back to a
// fresh authorization.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/onnwee/ezclip/crypto"
)

// TokenPair is the persisted access/refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
}

// Store reads and writes a TokenPair at Path. When Encryptor is set, token
// strings are sealed on Save; plaintext values still load.
type Store struct {
	Path      string
	Encryptor crypto.Encryptor
}

// New returns a Store for path.
func New(path string, enc crypto.Encryptor) *Store {
	return &Store{Path: path, Encryptor: enc}
}

// Exists reports whether the token file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Ensure creates the file containing {} when it does not exist yet.
// existed reports whether the file was already there.
func (s *Store) Ensure() (existed bool, err error) {
	if s.Exists() {
		return true, nil
	}
	if err := s.write([]byte("{}")); err != nil {
		return false, fmt.Errorf("create token file: %w", err)
	}
	return false, nil
}

// Load returns the stored pair. ok is false when the file is missing,
// unreadable, malformed, or lacks an access token.
func (s *Store) Load() (TokenPair, bool) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("token file unreadable", slog.String("path", s.Path), slog.Any("err", err))
		}
		return TokenPair{}, false
	}
	var p TokenPair
	if err := json.Unmarshal(b, &p); err != nil {
		slog.Warn("token file malformed", slog.String("path", s.Path), slog.Any("err", err))
		return TokenPair{}, false
	}
	if s.Encryptor != nil {
		if p.AccessToken, err = crypto.OpenString(s.Encryptor, p.AccessToken); err != nil {
			slog.Warn("token file decrypt failed", slog.String("path", s.Path), slog.Any("err", err))
			return TokenPair{}, false
		}
		if p.RefreshToken, err = crypto.OpenString(s.Encryptor, p.RefreshToken); err != nil {
			slog.Warn("token file decrypt failed", slog.String("path", s.Path), slog.Any("err", err))
			return TokenPair{}, false
		}
	} else if crypto.IsSealed(p.AccessToken) {
		slog.Warn("token file is encrypted but TOKEN_ENCRYPTION_KEY is not set", slog.String("path", s.Path))
		return TokenPair{}, false
	}
	if p.AccessToken == "" {
		return TokenPair{}, false
	}
	return p, true
}

// Sealed reports whether the stored access token is encrypted.
func (s *Store) Sealed() (bool, error) {
	b, err := os.ReadFile(s.Path)
	if err != nil {
		return false, err
	}
	var p TokenPair
	if err := json.Unmarshal(b, &p); err != nil {
		return false, fmt.Errorf("token file malformed: %w", err)
	}
	return crypto.IsSealed(p.AccessToken), nil
}

// Save overwrites the file with p.
func (s *Store) Save(p TokenPair) error {
	if s.Encryptor != nil {
		var err error
		if p.AccessToken, err = crypto.SealString(s.Encryptor, p.AccessToken); err != nil {
			return fmt.Errorf("seal access token: %w", err)
		}
		if p.RefreshToken, err = crypto.SealString(s.Encryptor, p.RefreshToken); err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.write(b); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}

// write replaces the file via a sibling temp file and rename.
func (s *Store) write(b []byte) error {
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".tokens-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, s.Path)
}
