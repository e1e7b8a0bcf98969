package commands

import (
	"fmt"

	"bankstatements/internal/serviceutil"

	"github.com/mazen160/go-random"
	"github.com/spf13/cobra"
)

var genkeyLength int

func init() {
	genkeyCmd.Flags().IntVar(&genkeyLength, "length", 48, "The length of the generated secret.")
	keychainCmd.AddCommand(genkeyCmd)
	rootCmd.AddCommand(keychainCmd)
}

var keychainCmd = &cobra.Command{
	Use:   "keychain",
	Short: "Manages the secret stored passwords are encrypted with.",
}

var genkeyCmd = &cobra.Command{
	Use:   "genkey [--length <n>]",
	Short: "Prints a new random secret for keychain.secret or BANK_KEYCHAIN_SECRET.",
	Run: func(cmd *cobra.Command, args []string) {
		secret, err := random.String(genkeyLength)
		if err != nil {
			serviceutil.Fatal("failed to generate secret", err)
		}
		fmt.Println(secret)
	},
}
