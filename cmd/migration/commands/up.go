package commands

import (
	"fmt"

	"localfarmer/marketplace/migrations"

	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Long: `Apply every pending migration. A clean database is initialized from the
current models and all known migrations are recorded as applied.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDb()
		if err != nil {
			return err
		}

		if err := migrations.Migrate(db); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(upCmd)
}
