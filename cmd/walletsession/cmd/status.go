package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeStore, err := newManager()
		if err != nil {
			return err
		}
		defer closeStore()

		if !m.CheckAuth(cmd.Context()) {
			fmt.Println("Not logged in")
			return nil
		}
		snap := m.Snapshot()
		fmt.Printf("Logged in as %s", snap.User.Username)
		if snap.Admin {
			fmt.Print(" (admin)")
		}
		fmt.Println()
		fmt.Printf("Password login: %v\n", m.PasswordLoginAvailable())
		fmt.Printf("Mnemonic retention: %ds, wallet retention: %ds\n",
			m.MnemonicExpirationSeconds(), m.WalletExpirationSeconds())
		fmt.Printf("Display currency: %s\n", m.CurrencyCode())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
