package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/antichaos/antichaos/internal/database"
	"github.com/spf13/cobra"
)

var deleteUserCmd = &cobra.Command{
	Use:     "delete-user <telegram-id>",
	Short:   "Delete a user and all of their data",
	Long:    `Delete the user with the given telegram id together with ratings, answers, focus spheres, settings and subscription.`,
	Example: `antichaos delete-user 123456789`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		telegramID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid telegram id %q: %w", args[0], err)
		}

		_, db := loadDatabase()
		defer db.Close() //nolint: errcheck

		user, err := db.GetUserByTelegramID(cmd.Context(), telegramID)
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("no user with telegram id %d", telegramID)
		} else if err != nil {
			return err
		}

		if err := db.DeleteUser(cmd.Context(), user.ID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		fmt.Printf("Deleted user %d (telegram id %d)\n", user.ID, telegramID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteUserCmd)
}
