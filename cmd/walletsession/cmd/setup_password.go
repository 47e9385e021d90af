package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	setupPhrase   string
	setupPassword string
	setupUsername string
	setupEmail    string
)

var setupPasswordCmd = &cobra.Command{
	Use:   "setup-password",
	Short: "Enable password login by encrypting the phrase locally",
	Long: `Encrypts the recovery phrase with a password-derived key and stores the
bundle in the session database. Afterwards, login --password unlocks the
phrase without typing it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeStore, err := newManager()
		if err != nil {
			return err
		}
		defer closeStore()

		res := m.SetUpPasswordLogin(setupPhrase, setupPassword, setupUsername, setupEmail)
		if !res.Success {
			return fmt.Errorf("%s", res.Message)
		}
		fmt.Println(res.Message)
		return nil
	},
}

func init() {
	setupPasswordCmd.Flags().StringVar(&setupPhrase, "phrase", "", "recovery phrase to protect")
	setupPasswordCmd.Flags().StringVar(&setupPassword, "password", "", "password protecting the bundle")
	setupPasswordCmd.Flags().StringVar(&setupUsername, "username", "", "account username stored with the bundle")
	setupPasswordCmd.Flags().StringVar(&setupEmail, "email", "", "account email stored with the bundle")
	setupPasswordCmd.MarkFlagRequired("phrase")
	setupPasswordCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(setupPasswordCmd)
}
