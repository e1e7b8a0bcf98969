package commands

import (
	"context"
	"database/sql"
	"log/slog"

	devenv "bankstatements/dev/env"
	"bankstatements/internal/collector"
	"bankstatements/internal/collector/bca"
	"bankstatements/internal/collector/mandiri"
	"bankstatements/internal/components/chrono"
	"bankstatements/internal/components/db"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/keychain"
	"bankstatements/internal/notify"
	"bankstatements/internal/serviceutil"
	"bankstatements/internal/statement"
	"bankstatements/internal/statestore"
)

const serviceName = "statements"

type app struct {
	cfg       Config
	db        *sql.DB
	time      chrono.StandardTime
	tel       telemetry.API
	otel      telemetry.Telemetry
	keychain  keychain.Keychain
	statement *statement.Statement
}

// missingKeychain stands in for the keychain of commands that never read a password.
type missingKeychain struct {
	err error
}

func (k missingKeychain) Decrypt(string) (string, error) {
	return "", k.err
}

func newRegistry(cfg Config, deps collector.Deps) collector.Registry {
	opts := cfg.Client.Options()
	return collector.Registry{
		bca.Name: bca.Factory(opts, deps),
		mandiri.Name: mandiri.Factory(
			opts, deps,
			cfg.Collector.Mandiri.AccountIndex,
			cfg.Collector.Mandiri.AccountHint,
		),
	}
}

func setupTelemetry(ctx context.Context, cfg Config) (telemetry.API, telemetry.Telemetry, error) {
	if !cfg.Telemetry.Enabled() {
		return telemetry.SlogAPI{}, telemetry.Telemetry{}, nil
	}
	otel, err := telemetry.Setup(ctx, serviceName, cfg.Telemetry)
	if err != nil {
		return nil, telemetry.Telemetry{}, err
	}
	statement.SetTracerProvider(otel.TracerProvider)
	api, err := telemetry.NewOtelAPI(telemetry.SlogAPI{})
	if err != nil {
		return nil, telemetry.Telemetry{}, err
	}
	return api, otel, nil
}

// openApp wires the database, collectors and orchestrator from cfg. Commands that
// collect or register accounts need the keychain, the rest can run without a secret.
func openApp(ctx context.Context, cfg Config, needsKeychain bool) (*app, error) {
	tel, otel, err := setupTelemetry(ctx, cfg)
	if err != nil {
		return nil, err
	}

	timeAPI, err := chrono.NewStandardTime(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	var decrypter statement.Decrypter
	kc, err := keychain.New(cfg.Keychain.Secret)
	if err != nil {
		if needsKeychain {
			return nil, err
		}
		decrypter = missingKeychain{err: err}
	} else {
		decrypter = kc
	}

	tempStoragePath, err := devenv.ResolvePath(cfg.Collector.TempStoragePath)
	if err != nil {
		return nil, err
	}
	if cfg.Client.DebugOutput != "" {
		cfg.Client.DebugOutput, err = devenv.ResolvePath(cfg.Client.DebugOutput)
		if err != nil {
			return nil, err
		}
	}

	sqldb, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	err = db.Migrate(sqldb)
	if err != nil {
		sqldb.Close()
		return nil, err
	}
	queries := db.New(sqldb)

	registry := newRegistry(cfg, collector.Deps{
		Sleep: chrono.StandardSleep{},
		Tel:   tel,
	})
	stmt := statement.NewStatement(
		queries,
		db.NewMakeTx(sqldb),
		queries,
		registry,
		decrypter,
		statestore.NewFileStore(tempStoragePath),
		tempStoragePath,
		timeAPI,
		tel,
	)

	if cfg.Smtp.Enabled() {
		mailer, err := notify.NewMailer(cfg.Smtp, tel)
		if err != nil {
			sqldb.Close()
			return nil, err
		}
		stmt.SetNotifier(mailer)
	}

	return &app{
		cfg:       cfg,
		db:        sqldb,
		time:      timeAPI,
		tel:       tel,
		otel:      otel,
		keychain:  kc,
		statement: stmt,
	}, nil
}

func (a *app) Close() {
	err := a.db.Close()
	if err != nil {
		slog.Warn("failed to close db", "err", err)
	}
	err = a.otel.Shutdown(context.Background())
	if err != nil {
		slog.Warn("failed to shutdown telemetry", "err", err)
	}
}

// mustOpenApp loads the config named by --config and opens the app, exiting on failure.
func mustOpenApp(ctx context.Context, needsKeychain bool) *app {
	cfg, err := loadConfig(configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	a, err := openApp(ctx, cfg, needsKeychain)
	if err != nil {
		serviceutil.Fatal("failed to initialize", err)
	}
	return a
}
