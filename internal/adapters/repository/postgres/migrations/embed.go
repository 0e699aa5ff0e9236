package migrations

import "embed"

// FS contains embedded PostgreSQL migrations for the team workflow store.
//
//go:embed *.sql
var FS embed.FS
