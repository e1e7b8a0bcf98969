package db

import (
	"embed"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Schema is the full schema of the latest migration, it is meant for tests which
// set up a throwaway database without going through Migrate.
//
//go:embed migrations/1_init.up.sql
var Schema string
