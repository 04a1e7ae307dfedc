// Package database opens the SQLite file behind the transition history and
// applies its schema migrations.
//
// Migrations are plain SQL files named
//
//	YYYYMMDD_HHMMSS_description.up.sql
//	YYYYMMDD_HHMMSS_description.down.sql
//
// read from an fs.FS (normally the embedded migrations package) and
// recorded in a schema_migrations table. Each migration runs in its own
// transaction.
//
// The special path ":memory:" opens a private in-memory database, used by
// tests.
package database
