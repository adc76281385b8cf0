package migrations

import "embed"

// FS contains embedded SQLite migrations for book storage.
//
//go:embed *.sql
var FS embed.FS
