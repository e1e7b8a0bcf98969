package main

import (
	"fmt"
	"log/slog"
	"os"

	devenv "bankstatements/dev/env"
	"bankstatements/internal/components/db"

	"github.com/mazen160/go-random"
)

const localConfig = "statements.local.json5"

func CreateStatementsDB() error {
	path, err := devenv.ResolvePath("<dev_state>/statements.db")
	if err != nil {
		return err
	}

	fmt.Println("migrating database at", path)
	sqldb, err := db.Open(db.Config{File: path})
	if err != nil {
		return err
	}
	defer sqldb.Close()
	return db.Migrate(sqldb)
}

func CreateCollectorStorage() error {
	path, err := devenv.ResolvePath("<dev_state>/collector")
	if err != nil {
		return err
	}
	fmt.Println("creating collector storage at", path)
	return os.MkdirAll(path, 0700)
}

// CreateLocalConfig writes a local config with a fresh keychain secret, an existing
// one is left alone since its secret encrypts the stored passwords.
func CreateLocalConfig() error {
	_, err := os.Stat(localConfig)
	if err == nil {
		fmt.Println("local config already created at", localConfig)
		return nil
	}

	secret, err := random.String(48)
	if err != nil {
		return err
	}
	fmt.Println("creating local config at", localConfig)
	contents := fmt.Sprintf("{\n  keychain: {\n    secret: %q,\n  },\n}\n", secret)
	return os.WriteFile(localConfig, []byte(contents), 0600)
}

func PrintConfigLocations() {
	slog.Info("bank accounts can now be registered with `go run ./cmd/statements accounts add`, smtp and telemetry settings go into " + localConfig + ".")
}
