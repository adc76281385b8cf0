// Package home manages the typen home directory.
package home

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultDirName is the default name for the typen home directory.
	DefaultDirName = ".typen"

	// DataDirName is the subdirectory for the book database.
	DataDirName = "data"

	// DBFileName is the SQLite book store.
	DBFileName = "typen.db"

	// ExportsDirName holds exported PDFs.
	ExportsDirName = "exports"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the typen home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.typen).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// DBPath returns the default SQLite database path.
func (d *Dir) DBPath() string {
	return filepath.Join(d.DataPath(), DBFileName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// ExportsDir returns the directory for exported PDFs.
func (d *Dir) ExportsDir() string {
	return filepath.Join(d.path, ExportsDirName)
}

// ExportPath returns where a book's PDF export is written.
func (d *Dir) ExportPath(bookID string) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, bookID)
	return filepath.Join(d.ExportsDir(), name+".pdf")
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	// Create data directory (this also creates the parent)
	if err := os.MkdirAll(d.DataPath(), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.MkdirAll(d.ExportsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create exports directory: %w", err)
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}
