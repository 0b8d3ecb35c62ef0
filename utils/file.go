package utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalArchiver writes archived pages below a root directory.
type LocalArchiver struct {
	Root string
}

// NewLocalArchiver creates the archive directory if it doesn't exist
func NewLocalArchiver(root string) (*LocalArchiver, error) {
	if root == "" {
		root = "archive"
	}
	if err := os.MkdirAll(root, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create archive dir: %w", err)
	}
	return &LocalArchiver{Root: root}, nil
}

// Archive saves body to Root/key, creating parent directories as needed.
func (a *LocalArchiver) Archive(_ context.Context, key string, body []byte, _ string) error {
	destPath, err := a.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(destPath, body, 0o644)
}

// Path returns the on-disk location for key, rejecting keys that escape Root.
func (a *LocalArchiver) Path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid archive key %q", key)
	}
	return filepath.Join(a.Root, clean), nil
}
