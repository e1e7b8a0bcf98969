package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"bankstatements/internal/components/chrono"
	"bankstatements/internal/serviceutil"
	"bankstatements/internal/statement"

	"github.com/spf13/cobra"
)

var (
	collectStart string
	collectEnd   string

	continuePasswords map[string]string
)

func init() {
	for _, cmd := range []*cobra.Command{collectCmd, continueCmd} {
		cmd.Flags().StringVar(&collectStart, "start", "", "First day to collect (YYYY-MM-DD), defaults to the start of this month.")
		cmd.Flags().StringVar(&collectEnd, "end", "", "Last day to collect (YYYY-MM-DD), defaults to today.")
	}
	continueCmd.Flags().StringToStringVar(
		&continuePasswords, "password", nil,
		"Fresh password of the suspended collector, as <collector>=<password>.",
	)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(continueCmd)
}

// collectionPeriod parses the --start and --end flags, dates are in the timezone of now.
func collectionPeriod(now time.Time, start, end string) (time.Time, time.Time, error) {
	from := chrono.StartOfMonth(now)
	to := now
	if start != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, start, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date '%s'", start)
		}
		from = parsed
	}
	if end != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, end, now.Location())
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date '%s'", end)
		}
		to = parsed
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s is before start date %s", to.Format(time.DateOnly), from.Format(time.DateOnly))
	}
	return from, to, nil
}

func printSummary(summary statement.Summary) {
	t := newTable()
	t.AppendHeader([]any{"Accounts", "Skipped", "Created", "Updated"})
	t.AppendRow([]any{summary.Accounts, summary.Skipped, summary.Created, summary.Updated})
	t.Render()
}

// exitSuspended explains how to pick up a suspended run and exits with status 2.
func exitSuspended(suspended *statement.ExtendedProcessError) {
	slog.Warn("collection suspended", "collector", suspended.Collector, "account", suspended.AccountID, "err", suspended.Err)
	fmt.Fprintf(
		os.Stderr,
		"finish the verification of bank account %d then run:\n  statements continue --password %s=<password>\n",
		suspended.AccountID, suspended.Collector,
	)
	os.Exit(2)
}

func handleCollectResult(summary statement.Summary, err error) {
	var suspended *statement.ExtendedProcessError
	if errors.As(err, &suspended) {
		printSummary(summary)
		exitSuspended(suspended)
	}
	if err != nil {
		serviceutil.Fatal("collection failed", err)
	}
	printSummary(summary)
}

var collectCmd = &cobra.Command{
	Use:   "collect [--start <YYYY-MM-DD>] [--end <YYYY-MM-DD>]",
	Short: "Collects the statements of every registered bank account.",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd.Context(), true)
		defer a.Close()

		start, end, err := collectionPeriod(a.time.Now(), collectStart, collectEnd)
		if err != nil {
			serviceutil.Fatal("invalid period", err)
		}
		slog.Info("collecting", "start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))

		summary, err := a.statement.Collect(cmd.Context(), start, end)
		handleCollectResult(summary, err)
	},
}

var continueCmd = &cobra.Command{
	Use:   "continue --password <collector>=<password> [--start <YYYY-MM-DD>] [--end <YYYY-MM-DD>]",
	Short: "Continues a collection that was suspended by a bank.",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd.Context(), true)
		defer a.Close()

		start, end, err := collectionPeriod(a.time.Now(), collectStart, collectEnd)
		if err != nil {
			serviceutil.Fatal("invalid period", err)
		}

		summary, err := a.statement.ContinueCollect(cmd.Context(), start, end, continuePasswords)
		handleCollectResult(summary, err)
	},
}
