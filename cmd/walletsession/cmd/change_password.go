package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	currentPassword string
	newPassword     string
)

var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Re-key the local bundle and update the account password",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, closeStore, err := newManager()
		if err != nil {
			return err
		}
		defer closeStore()

		res := m.ChangePassword(cmd.Context(), currentPassword, newPassword)
		if res.Err != nil {
			return res.Err
		}
		fmt.Println(res.Message)
		return nil
	},
}

func init() {
	changePasswordCmd.Flags().StringVar(&currentPassword, "current", "", "current password")
	changePasswordCmd.Flags().StringVar(&newPassword, "new", "", "new password")
	changePasswordCmd.MarkFlagRequired("current")
	changePasswordCmd.MarkFlagRequired("new")
	rootCmd.AddCommand(changePasswordCmd)
}
