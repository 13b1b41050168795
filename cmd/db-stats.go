package cmd

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var dbStatsCmd = &cobra.Command{
	Use:   "db-stats",
	Short: "Show database statistics",
	Long:  `Display statistics about users, the question catalog and collected answers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db := loadDatabase()
		defer db.Close() //nolint: errcheck

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get database stats: %w", err)
		}

		fmt.Println("Database Statistics:")
		fmt.Printf("Registered Users: %s\n", humanize.Comma(stats.Users))
		fmt.Printf("Guests: %s\n", humanize.Comma(stats.Guests))
		fmt.Printf("Paused Users: %s\n", humanize.Comma(stats.PausedUsers))
		fmt.Printf("Spheres: %s\n", humanize.Comma(stats.Spheres))
		fmt.Printf("Questions: %s\n", humanize.Comma(stats.Questions))
		fmt.Printf("Answers: %s\n", humanize.Comma(stats.Answers))
		fmt.Printf("Sphere Ratings: %s\n", humanize.Comma(stats.SphereRatings))
		fmt.Printf("Focus Spheres: %s\n", humanize.Comma(stats.FocusSpheres))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbStatsCmd)
}
