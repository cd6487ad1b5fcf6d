package database

import "embed"

// MigrationsFS holds the Postgres schema migrations applied by pkg/migration.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS

// MigrationsPath is the directory inside MigrationsFS.
const MigrationsPath = "migrations"
