package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/cmd/xproxy/commands"
	"github.com/xproxy/xproxy/internal/database"
)

var (
	dbURL      string
	outputJSON bool
	migrate    bool
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xproxy",
		Short: "xproxy management CLI",
		Long: `Manage xproxy users, projects, pipes, proxy tokens, spending limits
and registered API keys through direct database access.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database URL (defaults to DATABASE_URL)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&migrate, "migrate", false, "run schema migrations before the command")

	rootCmd.AddCommand(commands.NewUserCommand())
	rootCmd.AddCommand(commands.NewProjectCommand())
	rootCmd.AddCommand(commands.NewPipeCommand())
	rootCmd.AddCommand(commands.NewTokenCommand())
	rootCmd.AddCommand(commands.NewLimitCommand())
	rootCmd.AddCommand(commands.NewAPIKeyCommand())

	return rootCmd
}

func initConfig() error {
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return fmt.Errorf("database URL required: set --db-url or DATABASE_URL")
	}

	db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if migrate {
		if err := database.MigrateWith(db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	commands.SetDB(db)
	commands.SetOutputJSON(outputJSON)
	return nil
}
