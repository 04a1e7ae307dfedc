// Package migrations embeds the history database schema.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// FS holds the SQL migrations at its root, ready for database.Migrate.
var FS fs.FS = files
