package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xproxy/xproxy/internal/auth"
	"github.com/xproxy/xproxy/internal/models"
)

func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage proxy tokens",
	}

	cmd.AddCommand(newTokenCreateCommand())
	cmd.AddCommand(newTokenListCommand())
	cmd.AddCommand(newTokenRevokeCommand())

	return cmd
}

func newTokenCreateCommand() *cobra.Command {
	var project, name string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Issue a proxy token for a project",
		Long: `Issue a new bearer token. The raw token is printed once and never
stored; only its hash is persisted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}
			if project == "" || name == "" {
				return fmt.Errorf("project and name are required")
			}

			owner, err := findProject(project)
			if err != nil {
				return err
			}

			raw, err := auth.GenerateProxyToken()
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}

			token := models.ProxyToken{
				ProjectID: owner.ID,
				TokenHash: auth.HashToken(raw),
				Name:      name,
				IsActive:  true,
			}
			if ttl > 0 {
				expires := time.Now().Add(ttl)
				token.ExpiresAt = &expires
			}
			if err := db.Create(&token).Error; err != nil {
				return fmt.Errorf("failed to create token: %w", err)
			}

			fmt.Printf("Created token %s (%s)\n", token.Name, token.ID)
			fmt.Printf("Token (shown once): %s\n", raw)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project id or name (required)")
	cmd.Flags().StringVar(&name, "name", "", "token name (required)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime, 0 for no expiry (e.g. 720h)")

	return cmd
}

func newTokenListCommand() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proxy tokens of a project",
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

			var tokens []models.ProxyToken
			if err := db.Where("project_id = ?", owner.ID).
				Order("created_at ASC").Find(&tokens).Error; err != nil {
				return fmt.Errorf("failed to list tokens: %w", err)
			}

			if outputJSON {
				return printResult(tokens)
			}
			for _, t := range tokens {
				status := "active"
				if !t.IsActive {
					status = "revoked"
				} else if t.IsExpired() {
					status = "expired"
				}
				fmt.Printf("%s  %-20s  %s\n", t.ID, t.Name, status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project id or name (required)")

	return cmd
}

func newTokenRevokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <token-id>",
		Short: "Revoke a proxy token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			result := db.Model(&models.ProxyToken{}).Where("id = ?", id).Update("is_active", false)
			if result.Error != nil {
				return fmt.Errorf("failed to revoke token: %w", result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("token not found")
			}

			fmt.Printf("Revoked token %s\n", id)
			return nil
		},
	}
}
