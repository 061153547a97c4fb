// Package db ships the SQL migrations inside the binary.
package db

import "embed"

// Migrations holds the goose migrations under "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations, and of the migrations on disk
// relative to the repository root.
const MigrationsDir = "migrations"
