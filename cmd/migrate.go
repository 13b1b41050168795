package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Run database migrations to set up or update the database schema and seed the default spheres and questions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db := loadDatabase()
		defer db.Close() //nolint: errcheck

		if err := db.SeedCatalog(cmd.Context()); err != nil {
			return fmt.Errorf("failed to seed catalog: %w", err)
		}

		fmt.Println("Database migrations completed successfully!")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
