package commands

import (
	"log/slog"
	"os"

	devenv "bankstatements/dev/env"
	"bankstatements/internal/components/db"
	"bankstatements/internal/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates or upgrades the database tables and the collector storage directory.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}

		sqldb, err := db.Open(cfg.Database)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer sqldb.Close()

		err = db.Migrate(sqldb)
		if err != nil {
			serviceutil.Fatal("failed to migrate db", err)
		}

		tempStoragePath, err := devenv.ResolvePath(cfg.Collector.TempStoragePath)
		if err != nil {
			serviceutil.Fatal("failed to resolve collector storage", err)
		}
		err = os.MkdirAll(tempStoragePath, 0700)
		if err != nil {
			serviceutil.Fatal("failed to create collector storage", err)
		}

		slog.Info("database is up to date", "collector_storage", tempStoragePath)
	},
}
