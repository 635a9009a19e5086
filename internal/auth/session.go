package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// loadSession reads a stored identity. A missing file is not an error and
// yields the zero Identity.
func loadSession(path string) (Identity, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Identity{}, nil
	}
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("invalid %s: %w", filepath.Base(path), err)
	}
	if id.UserID == "" || id.RefreshToken == "" {
		return Identity{}, fmt.Errorf("invalid %s: missing user or refresh token", filepath.Base(path))
	}
	return id, nil
}

// saveSession writes the identity with mode 0600, creating the directory
// with mode 0700 when needed.
func saveSession(path string, id Identity) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func removeSession(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
