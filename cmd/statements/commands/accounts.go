package commands

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"bankstatements/internal/serviceutil"
	"bankstatements/internal/statement"

	"github.com/spf13/cobra"
)

var newAccount statement.Account

func init() {
	accountsAddCmd.Flags().StringVar(&newAccount.Collector, "collector", "", "The collector of the bank (bca or mandiri).")
	accountsAddCmd.Flags().StringVar(&newAccount.Url, "url", "", "The base url of the internet banking site.")
	accountsAddCmd.Flags().StringVar(&newAccount.UserID, "user", "", "The user id to login with.")
	accountsAddCmd.Flags().StringVar(&newAccount.Password, "password", "", "The password to login with, it is stored encrypted.")

	accountsCmd.AddCommand(accountsAddCmd)
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsRemoveCmd)
	rootCmd.AddCommand(accountsCmd)
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manages the bank accounts statements are collected from.",
}

var accountsAddCmd = &cobra.Command{
	Use:   "add --collector <name> --url <url> --user <user id> --password <password>",
	Short: "Registers a bank account.",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd.Context(), true)
		defer a.Close()

		id, err := a.statement.RegisterAccount(cmd.Context(), a.keychain, newAccount)
		if err != nil {
			serviceutil.Fatal("failed to register account", err)
		}
		slog.Info("registered bank account", "id", id, "collector", newAccount.Collector)
	},
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the registered bank accounts in collection order.",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp(cmd.Context(), false)
		defer a.Close()

		accounts, err := a.statement.Accounts(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list accounts", err)
		}

		t := newTable()
		t.AppendHeader([]any{"ID", "Collector", "Url", "User", "Created"})
		for _, account := range accounts {
			t.AppendRow([]any{
				account.ID,
				account.Collector,
				account.Url,
				account.UserID,
				time.Unix(account.CreatedAt, 0).In(a.time.Location()).Format(time.DateTime),
			})
		}
		t.Render()
	},
}

var accountsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Removes a bank account and its statements.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			serviceutil.Fatal("invalid account id", fmt.Errorf("'%s' is not a number", args[0]))
		}

		a := mustOpenApp(cmd.Context(), false)
		defer a.Close()

		err = a.statement.RemoveAccount(cmd.Context(), id)
		if err != nil {
			serviceutil.Fatal("failed to remove account", err)
		}
		slog.Info("removed bank account", "id", id)
	},
}
