package cmd

import (
	"fmt"

	"github.com/antichaos/antichaos/internal/engine"
	"github.com/spf13/cobra"
)

var dueCmdFlags struct {
	At string
}

var dueCmd = &cobra.Command{
	Use:   "due",
	Short: "Preview the users due for a reminder",
	Long:  `List the users that would receive a reminder at the given time of today, without sending anything.`,
	Example: `antichaos due
antichaos due --at 09:00`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, db := loadDatabase()
		defer db.Close() //nolint: errcheck

		// the preview never starts the scheduler
		cfg.Reminder.Enabled = false
		e, err := engine.New(cfg, db)
		if err != nil {
			return fmt.Errorf("failed to create engine: %w", err)
		}

		due, err := e.DueUsersAt(cmd.Context(), dueCmdFlags.At)
		if err != nil {
			return err
		}
		if len(due) == 0 {
			fmt.Println("No users due.")
			return nil
		}

		for _, d := range due {
			question := "daily"
			if d.QuestionID != nil {
				question = fmt.Sprintf("question %d", *d.QuestionID)
			}
			marker := ""
			if d.IsTest {
				marker = " [test]"
			}
			fmt.Printf("  %d (telegram id %d) %s -> %s%s\n", d.User.ID, d.User.TelegramID, d.User.DisplayName(), question, marker)
		}
		fmt.Printf("%d user(s) due.\n", len(due))
		return nil
	},
}

func init() {
	dueCmd.Flags().StringVar(&dueCmdFlags.At, "at", "", "Time of today as HH:MM in the configured timezone (default: now)")
	rootCmd.AddCommand(dueCmd)
}
