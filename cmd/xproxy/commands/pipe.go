package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xproxy/xproxy/internal/models"
)

func NewPipeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipe",
		Short: "Manage provider pipes",
	}

	cmd.AddCommand(newPipeCreateCommand())
	cmd.AddCommand(newPipeListCommand())

	return cmd
}

func newPipeCreateCommand() *cobra.Command {
	var project, name, provider, apiKey, modelFilter string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a pipe binding a provider credential to a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}
			if project == "" || name == "" || provider == "" || apiKey == "" {
				return fmt.Errorf("project, name, provider and api-key are required")
			}

			owner, err := findProject(project)
			if err != nil {
				return err
			}

			pipe := models.Pipe{
				ProjectID:       owner.ID,
				Name:            name,
				Provider:        provider,
				APIKeyEncrypted: apiKey,
				ModelFilter:     modelFilter,
				IsActive:        true,
			}
			if err := db.Create(&pipe).Error; err != nil {
				return fmt.Errorf("failed to create pipe: %w", err)
			}

			fmt.Printf("Created pipe %s (%s) provider=%s\n", pipe.Name, pipe.ID, pipe.Provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project id or name (required)")
	cmd.Flags().StringVar(&name, "name", "", "pipe name (required)")
	cmd.Flags().StringVar(&provider, "provider", "", "upstream provider (required)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "provider API key (required)")
	cmd.Flags().StringVar(&modelFilter, "model-filter", "", "comma-separated model allow-list, or *")

	return cmd
}

func newPipeListCommand() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pipes of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}
			if project == "" {
				return fmt.Errorf("project is required")
			}

			owner, err := findProject(project)
			if err != nil {
				return err
			}

			var pipes []models.Pipe
			if err := db.Where("project_id = ?", owner.ID).
				Order("created_at ASC").Find(&pipes).Error; err != nil {
				return fmt.Errorf("failed to list pipes: %w", err)
			}

			if outputJSON {
				return printResult(pipes)
			}
			for _, p := range pipes {
				filter := p.ModelFilter
				if filter == "" {
					filter = "*"
				}
				fmt.Printf("%s  %-20s  %-12s  %s\n", p.ID, p.Name, p.Provider, filter)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project id or name (required)")

	return cmd
}
