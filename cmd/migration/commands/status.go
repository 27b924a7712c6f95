package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"localfarmer/marketplace/migrations"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	Long: `List every known migration in order and whether it has been applied.

Examples:
  migration status                # Table output
  migration status --json         # Output in JSON format`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDb()
		if err != nil {
			return err
		}

		statuses, err := migrations.Status(db)
		if err != nil {
			return err
		}

		return printStatus(cmd.OutOrStdout(), statuses, jsonOutput)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func printStatus(out io.Writer, statuses []migrations.MigrationStatus, asJson bool) error {
	if asJson {
		type entry struct {
			Id      string `json:"id"`
			Applied bool   `json:"applied"`
		}
		entries := make([]entry, 0, len(statuses))
		for _, s := range statuses {
			entries = append(entries, entry{Id: s.Id, Applied: s.Applied})
		}
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "MIGRATION\tSTATUS")
	_, _ = fmt.Fprintln(w, "---------\t------")
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", s.Id, state)
	}
	return w.Flush()
}
