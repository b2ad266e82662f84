package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidFolder = errors.New("invalid folder name")

// FolderPath resolves a user supplied folder name inside root. Names that
// would escape root are rejected.
func FolderPath(root, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidFolder, name)
	}
	return filepath.Join(root, name), nil
}

// CreateFolder makes the named destination folder under the downloads root
// and returns its path. An existing folder is reused.
func (s *BatchService) CreateFolder(name string) (string, error) {
	path, err := FolderPath(s.cfg.Storage.DownloadsRoot, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}
	return path, nil
}
