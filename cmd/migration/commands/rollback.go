package commands

import (
	"fmt"

	"localfarmer/marketplace/migrations"

	"github.com/spf13/cobra"
)

var steps int

var rollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Roll back applied migrations",
	Long: `Roll back the most recently applied migrations.

Examples:
  migration rollback              # Roll back the last migration
  migration rollback --steps 2    # Roll back the last two migrations`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if steps < 1 {
			return fmt.Errorf("--steps must be at least 1")
		}

		db, err := openDb()
		if err != nil {
			return err
		}

		for i := 0; i < steps; i++ {
			if err := migrations.RollbackLast(db); err != nil {
				return err
			}
		}

		fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)

	rollbackCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
}
