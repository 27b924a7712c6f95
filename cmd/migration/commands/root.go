package commands

import (
	"fmt"
	"os"

	"localfarmer/marketplace/database"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var (
	// Global flags
	envFile    string
	dbUri      string
	sqlitePath string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "migration",
	Short: "Manage the localfarmer database schema",
	Long: `Apply, inspect and roll back the versioned localfarmer schema migrations.

The database is taken from --db or --sqlite, falling back to the DATABASE_URI
and SQLITE_PATH environment variables (optionally loaded from --env).`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "File to load env variables from")
	rootCmd.PersistentFlags().StringVar(&dbUri, "db", "", "Postgres connection uri, overrides DATABASE_URI")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "Sqlite database file, overrides SQLITE_PATH")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

func databaseConfig() (database.Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return database.Config{}, fmt.Errorf("error loading .env file '%v': %w", envFile, err)
		}
	}

	var config database.Config
	if err := env.Parse(&config); err != nil {
		return database.Config{}, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if dbUri != "" {
		config = database.Config{DatabaseUri: dbUri}
	} else if sqlitePath != "" {
		config = database.Config{SqlitePath: sqlitePath}
	}
	return config, nil
}

func openDb() (*gorm.DB, error) {
	config, err := databaseConfig()
	if err != nil {
		return nil, err
	}
	return database.Open(config)
}
