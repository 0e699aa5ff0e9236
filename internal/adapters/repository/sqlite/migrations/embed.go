package migrations

import "embed"

// FS contains embedded SQLite migrations for the team workflow store.
//
//go:embed *.sql
var FS embed.FS
