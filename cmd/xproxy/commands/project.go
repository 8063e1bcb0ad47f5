package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xproxy/xproxy/internal/models"
)

func NewProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(newProjectCreateCommand())
	cmd.AddCommand(newProjectListCommand())

	return cmd
}

func newProjectCreateCommand() *cobra.Command {
	var name, description, userEmail string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}
			if name == "" || userEmail == "" {
				return fmt.Errorf("name and user email are required")
			}

			var owner models.User
			if err := db.First(&owner, "email = ?", userEmail).Error; err != nil {
				return fmt.Errorf("user not found: %w", err)
			}

			project := models.Project{
				UserID:      owner.ID,
				Name:        name,
				Description: description,
				IsActive:    true,
			}
			if err := db.Create(&project).Error; err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}

			fmt.Printf("Created project %s (%s) for %s\n", project.Name, project.ID, owner.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "project name (required)")
	cmd.Flags().StringVar(&description, "description", "", "project description")
	cmd.Flags().StringVar(&userEmail, "user", "", "owner email (required)")

	return cmd
}

func newProjectListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}

			var projects []models.Project
			if err := db.Order("created_at ASC").Find(&projects).Error; err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}

			if outputJSON {
				return printResult(projects)
			}
			for _, p := range projects {
				status := "active"
				if !p.IsActive {
					status = "inactive"
				}
				fmt.Printf("%s  %-30s  %s\n", p.ID, p.Name, status)
			}
			return nil
		},
	}
}
