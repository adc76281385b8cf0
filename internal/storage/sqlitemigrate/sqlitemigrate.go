// Package sqlitemigrate applies embedded SQL migrations to a SQLite database.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// Apply runs every *.sql file under root in name order, each at most once.
// Applied files are recorded in schema_migrations.
func Apply(ctx context.Context, db *sql.DB, migrations fs.FS, root string) ([]string, error) {
	if db == nil {
		return nil, errors.New("sql db is required")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}

	entries, err := fs.ReadDir(migrations, root)
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return nil, fmt.Errorf("ensure migration table: %w", err)
	}

	var applied []string
	for _, file := range files {
		done, err := isApplied(ctx, db, file)
		if err != nil {
			return applied, fmt.Errorf("check migration %s: %w", file, err)
		}
		if done {
			continue
		}
		content, err := fs.ReadFile(migrations, path.Join(root, file))
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", file, err)
		}
		if err := applyOne(ctx, db, file, UpSection(string(content))); err != nil {
			return applied, err
		}
		applied = append(applied, file)
	}
	return applied, nil
}

func applyOne(ctx context.Context, db *sql.DB, name, up string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer tx.Rollback()

	if strings.TrimSpace(up) != "" {
		if _, err := tx.ExecContext(ctx, up); err != nil && !IsAlreadyExists(err) {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
		name, time.Now().UTC().UnixMilli(),
	); err != nil {
		return fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", name, err)
	}
	return nil
}

// UpSection returns the SQL between the Up and Down markers. Files without
// markers are returned whole.
func UpSection(content string) string {
	up := strings.Index(content, upMarker)
	if up == -1 {
		return content
	}
	rest := content[up+len(upMarker):]
	if down := strings.Index(rest, downMarker); down != -1 {
		return rest[:down]
	}
	return rest
}

// IsAlreadyExists reports whether err is DDL that already took effect.
func IsAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var found int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
