package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Digital-Defiance/walletsession/session"
)

var (
	loginPhrase   string
	loginPassword string
	loginUsername string
	loginEmail    string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in with a recovery phrase or the local password",
	Long: `Logs in by signing a server challenge with the wallet derived from the
recovery phrase. With --password, the phrase is recovered from the encrypted
local bundle created by setup-password instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginPhrase == "" && loginPassword == "" {
			return fmt.Errorf("either --phrase or --password is required")
		}

		m, closeStore, err := newManager()
		if err != nil {
			return err
		}
		defer closeStore()

		var res session.LoginResult
		if loginPassword != "" {
			res = m.PasswordLogin(cmd.Context(), loginPassword, loginUsername, loginEmail)
		} else {
			res = m.DirectLogin(cmd.Context(), session.DirectLoginParams{
				Phrase:   loginPhrase,
				Username: loginUsername,
				Email:    loginEmail,
			})
		}
		if !res.OK() {
			return res.Err
		}
		fmt.Printf("Logged in as %s\n", res.User.Username)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPhrase, "phrase", "", "recovery phrase")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "local bundle password")
	loginCmd.Flags().StringVar(&loginUsername, "username", "", "account username")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	rootCmd.AddCommand(loginCmd)
}
