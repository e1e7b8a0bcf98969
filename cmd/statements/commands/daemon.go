package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bankstatements/internal/components/chrono"
	"bankstatements/internal/components/telemetry"
	"bankstatements/internal/serviceutil"
	"bankstatements/internal/statement"

	"github.com/spf13/cobra"
)

const report_daemon_collect = "daemon.collect"

func init() {
	rootCmd.AddCommand(daemonCmd)
}

// scheduledCollect collects the current month, suspended runs are left to the notifier.
func scheduledCollect(ctx context.Context, a *app) {
	start, end, err := collectionPeriod(a.time.Now(), "", "")
	if err != nil {
		a.tel.ReportBroken(report_daemon_collect, err)
		return
	}

	summary, err := a.statement.Collect(ctx, start, end)
	var suspended *statement.ExtendedProcessError
	switch {
	case errors.As(err, &suspended):
		a.tel.ReportWarning(report_daemon_collect, err)
	case err != nil:
		a.tel.ReportBroken(report_daemon_collect, err)
	}
	slog.Info(
		"scheduled collection finished",
		"accounts", summary.Accounts,
		"skipped", summary.Skipped,
		"created", summary.Created,
		"updated", summary.Updated,
	)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Collects the statements of the current month on the configured cron schedule.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := mustOpenApp(ctx, true)
		defer a.Close()

		telemetry.InstrumentPerfStats(ctx, a.tel, time.Minute)

		cron := chrono.NewStandardCron(a.time.Location(), a.tel)
		err := cron.Cron(a.cfg.Daemon.Cron, func() {
			scheduledCollect(ctx, a)
		})
		if err != nil {
			serviceutil.Fatal("invalid cron schedule", err)
		}
		cron.Start()
		slog.Info("daemon started", "cron", a.cfg.Daemon.Cron, "timezone", a.time.Location().String())

		<-ctx.Done()
		slog.Info("stopping daemon")
		<-cron.Stop()
	},
}
