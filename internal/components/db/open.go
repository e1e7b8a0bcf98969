package db

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	devenv "bankstatements/dev/env"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type Config struct {
	// File is a local sqlite database, it may be prefixed with <dev_state>.
	File string `json:"file"`
	// Url is a remote libsql database (ex. libsql://statements.turso.io), it takes
	// precedence over File.
	Url       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

func wrapOpen(err error) error {
	return fmt.Errorf("open db: %w", err)
}

// Open opens the database described by config.
func Open(config Config) (*sql.DB, error) {
	if config.Url != "" {
		return openRemote(config)
	}
	if config.File == "" {
		return nil, wrapOpen(fmt.Errorf("neither a file nor a url was specified"))
	}

	path, err := devenv.ResolvePath(config.File)
	if err != nil {
		return nil, wrapOpen(err)
	}
	if path != ":memory:" {
		err = os.MkdirAll(filepath.Dir(path), 0777)
		if err != nil {
			return nil, wrapOpen(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, wrapOpen(err)
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, wrapOpen(err)
	}
	_, err = db.Exec("PRAGMA foreign_keys=ON")
	if err != nil {
		return nil, wrapOpen(err)
	}

	return db, nil
}

func openRemote(config Config) (*sql.DB, error) {
	dsn, err := url.Parse(config.Url)
	if err != nil {
		return nil, wrapOpen(err)
	}
	if config.AuthToken != "" {
		query := dsn.Query()
		query.Set("authToken", config.AuthToken)
		dsn.RawQuery = query.Encode()
	}
	db, err := sql.Open("libsql", dsn.String())
	if err != nil {
		return nil, wrapOpen(err)
	}
	return db, nil
}

func wrapMigrate(err error) error {
	return fmt.Errorf("migrate db: %w", err)
}

// Migrate brings the schema of db up to the latest embedded migration.
//
// The migrate instance is not closed, closing it would also close db.
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return wrapMigrate(err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return wrapMigrate(err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return wrapMigrate(err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return wrapMigrate(err)
	}
	return nil
}

// OpenForTesting opens a fresh in-memory database with the latest schema.
func OpenForTesting() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(Schema)
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
