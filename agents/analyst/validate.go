package analyst

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotSelect   = errors.New("Only SELECT queries are permitted")
	ErrSemicolon   = errors.New("Semicolons are not permitted in queries")
	ErrInvalidPath = errors.New("Invalid file path. Only relative paths within the data directory are allowed.")
	ErrNotCSV      = errors.New("Only .csv files are supported.")
	ErrOutsideData = errors.New("Access outside of the data directory is not allowed.")
)

// ValidateSQL accepts only statements that start with SELECT or WITH and
// contain no semicolon.
func ValidateSQL(query string) error {
	normalized := strings.ToUpper(strings.TrimSpace(query))
	if !strings.HasPrefix(normalized, "SELECT") && !strings.HasPrefix(normalized, "WITH") {
		return ErrNotSelect
	}
	if strings.Contains(query, ";") {
		return ErrSemicolon
	}
	return nil
}

// ResolveCSVPath resolves a relative .csv path inside dataDir, following
// symlinks, and rejects anything that escapes it.
func ResolveCSVPath(dataDir, path string) (string, error) {
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") || strings.Contains(path, "..") {
		return "", ErrInvalidPath
	}
	if !strings.HasSuffix(strings.ToLower(path), ".csv") {
		return "", ErrNotCSV
	}

	root, err := realpath(dataDir)
	if err != nil {
		return "", err
	}
	resolved, err := realpath(filepath.Join(root, path))
	if err != nil {
		return "", err
	}
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return "", ErrOutsideData
	}
	return resolved, nil
}

// realpath evaluates symlinks on the longest existing prefix of p, so that
// a file that does not exist yet still resolves.
func realpath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	parent := filepath.Dir(abs)
	if parent == abs {
		return abs, nil
	}
	base, err := realpath(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(base, filepath.Base(abs)), nil
}
