package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Digital-Defiance/walletsession/session"
)

var registerTimezone string

var registerCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Create an account and print its recovery phrase",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeStore, err := newManager()
		if err != nil {
			return err
		}
		defer closeStore()

		res := m.Register(cmd.Context(), session.RegisterParams{
			Username: args[0],
			Email:    args[1],
			Timezone: registerTimezone,
		})
		if res.Err != nil {
			return res.Err
		}
		fmt.Println(res.Message)
		if res.Mnemonic != "" {
			fmt.Println("\nYour recovery phrase (write it down, it is shown only once):")
			fmt.Printf("\n  %s\n", res.Mnemonic)
		}
		return nil
	},
}

func init() {
	registerCmd.Flags().StringVar(&registerTimezone, "timezone", "", "IANA timezone for the account")
	rootCmd.AddCommand(registerCmd)
}
