// Package storage holds the filesystem helpers behind the image cache.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adamjohnlea/my-music-collection-sub000/internal/constants"
)

func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	return nil
}

// WriteFile writes data to path, creating parent directories and replacing
// any existing file. The data lands in a uniquely named sibling temp file
// first, so readers never see a partial image and concurrent writers to the
// same path do not share a temp file.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, constants.FilePermissions); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := MoveFile(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

// HashURL is the hex sha256 of a source URL.
func HashURL(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}

// ImagePath returns the deterministic relative path for a cached image:
// <first two hash chars>/<hash>.jpg.
func ImagePath(sourceURL string) string {
	hash := HashURL(sourceURL)
	return filepath.Join(hash[:2], hash+constants.ImageExt)
}
