package commands

import (
	"io"
	"os"

	"bankstatements/internal/serviceutil"
	"bankstatements/internal/statement"

	"github.com/spf13/cobra"
)

var (
	searchParams statement.SearchParams
	searchPage   int
	searchLimit  int
	exportOutput string
)

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&searchParams.BankAccountID, "account", 0, "Only statements of this bank account id.")
	cmd.Flags().StringVar(&searchParams.FromDate, "from", "", "Only statements on or after this date (YYYY-MM-DD).")
	cmd.Flags().StringVar(&searchParams.EndDate, "to", "", "Only statements on or before this date (YYYY-MM-DD).")
	cmd.Flags().StringVar(&searchParams.Type, "type", "", "Only credit (CR) or debit (DB) statements.")
	cmd.Flags().StringVar(&searchParams.Amount, "amount", "", "Only statements of exactly this amount.")
	cmd.Flags().StringVar(&searchParams.OrderBy, "order-by", "created_at", "The column to order by.")
	cmd.Flags().StringVar(&searchParams.Order, "order", "DESC", "ASC or DESC.")
}

func init() {
	addFilterFlags(searchCmd)
	searchCmd.Flags().IntVar(&searchPage, "page", 1, "The page to show, starting at 1.")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "The number of statements per page.")

	addFilterFlags(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "The csv file to write, defaults to stdout.")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(exportCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search [filters...]",
	Short: "Searches the collected statements.",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd.Context(), false)
		defer a.Close()

		statements, total, err := a.statement.Search(cmd.Context(), searchParams, searchPage, searchLimit)
		if err != nil {
			serviceutil.Fatal("failed to search statements", err)
		}

		t := newTable()
		t.AppendHeader([]any{"ID", "Account", "Date", "Description", "Type", "Amount"})
		for _, s := range statements {
			t.AppendRow([]any{s.ID, s.BankAccountID, s.TransactionDate, s.Description, s.Type, s.Amount})
		}
		t.AppendFooter([]any{"", "", "", "", "Total", total})
		t.Render()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [filters...] [-o <path/to/output.csv>]",
	Short: "Exports the collected statements as csv.",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd.Context(), false)
		defer a.Close()

		statements, _, err := a.statement.Search(cmd.Context(), searchParams, 1, 0)
		if err != nil {
			serviceutil.Fatal("failed to search statements", err)
		}

		var out io.Writer = os.Stdout
		if exportOutput != "" {
			f, err := os.Create(exportOutput)
			if err != nil {
				serviceutil.Fatal("failed to create output", err)
			}
			defer f.Close()
			out = f
		}

		err = statement.ExportCSV(out, statements)
		if err != nil {
			serviceutil.Fatal("failed to write csv", err)
		}
	},
}
