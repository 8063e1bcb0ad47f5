package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xproxy/xproxy/internal/models"
)

func NewUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	cmd.AddCommand(newUserCreateCommand())
	cmd.AddCommand(newUserListCommand())
	cmd.AddCommand(newUserDeactivateCommand())

	return cmd
}

func newUserCreateCommand() *cobra.Command {
	var email, password, displayName string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}
			if email == "" || password == "" {
				return fmt.Errorf("email and password are required")
			}

			user := models.User{
				Email:       email,
				DisplayName: displayName,
				IsActive:    true,
			}
			if err := user.SetPassword(password); err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			if err := db.Create(&user).Error; err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			fmt.Printf("Created user %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "user email (required)")
	cmd.Flags().StringVar(&password, "password", "", "user password (required)")
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")

	return cmd
}

func newUserListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}

			var users []models.User
			if err := db.Order("created_at ASC").Find(&users).Error; err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}

			if outputJSON {
				return printResult(users)
			}
			for _, u := range users {
				status := "active"
				if !u.IsActive {
					status = "inactive"
				}
				fmt.Printf("%s  %-30s  %s\n", u.ID, u.Email, status)
			}
			return nil
		},
	}
}

func newUserDeactivateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <user-id>",
		Short: "Deactivate a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			result := db.Model(&models.User{}).Where("id = ?", id).Update("is_active", false)
			if result.Error != nil {
				return fmt.Errorf("failed to deactivate user: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("user not found")
			}

			fmt.Printf("Deactivated user %s\n", id)
			return nil
		},
	}
}
