// Package security guards reads of operator-supplied files.
package security

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// MaxConfigFileSize caps operator-supplied config files.
const MaxConfigFileSize = 1 << 20

var (
	ErrEmptyPath        = errors.New("file path cannot be empty")
	ErrForbiddenChar    = errors.New("file path contains a forbidden character")
	ErrUnsupportedExt   = errors.New("file extension not allowed")
	ErrNotRegularFile   = errors.New("path is not a regular file")
	ErrConfigFileTooBig = errors.New("file exceeds size limit")
)

// Shell metacharacters never appear in a legitimate config path.
const forbiddenChars = ";&|$`(){}<>!\n\r"

// ResolvePath cleans path, makes it absolute and follows symlinks.
func ResolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrEmptyPath
	}
	if i := strings.IndexAny(path, forbiddenChars); i >= 0 {
		return "", fmt.Errorf("%w %q: %s", ErrForbiddenChar, path[i], path)
	}

	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}
	return resolved, nil
}

// ReadConfigFile reads a config file after validating its path. The file
// must be a regular file no larger than MaxConfigFileSize, and when exts is
// non-empty its extension must be one of them.
func ReadConfigFile(path string, exts ...string) ([]byte, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return nil, err
	}
	if len(exts) > 0 && !slices.Contains(exts, strings.ToLower(filepath.Ext(resolved))) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExt, filepath.Ext(resolved))
	}

	// #nosec G304 - path is validated above
	f, err := os.Open(resolved)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, path)
	}
	if info.Size() > MaxConfigFileSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrConfigFileTooBig, info.Size())
	}
	return io.ReadAll(io.LimitReader(f, MaxConfigFileSize))
}
