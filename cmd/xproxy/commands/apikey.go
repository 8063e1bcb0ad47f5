package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xproxy/xproxy/internal/auth"
	"github.com/xproxy/xproxy/internal/models"
)

func NewAPIKeyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage registered upstream API keys",
	}

	cmd.AddCommand(newAPIKeyRegisterCommand())
	cmd.AddCommand(newAPIKeyListCommand())

	return cmd
}

func newAPIKeyRegisterCommand() *cobra.Command {
	var project, key, provider, upstreamURL, displayName, egressIP string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an upstream API key for firewall-mode admission",
		Long: `Register a real provider API key with the gateway. Only the SHA-256
hash of the key is stored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}
			if project == "" || key == "" || provider == "" || upstreamURL == "" {
				return fmt.Errorf("project, key, provider and upstream-url are required")
			}

			owner, err := findProject(project)
			if err != nil {
				return err
			}

			registered := models.RegisteredAPIKey{
				ProjectID:   owner.ID,
				KeyHash:     auth.HashToken(key),
				Provider:    provider,
				UpstreamURL: upstreamURL,
				DisplayName: displayName,
				IsActive:    true,
			}
			if egressIP != "" {
				registered.EgressIP = egressIP
			}
			if err := db.Create(&registered).Error; err != nil {
				return fmt.Errorf("failed to register API key: %w", err)
			}

			fmt.Printf("Registered key %s for provider %s\n", registered.ID, registered.Provider)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project id or name (required)")
	cmd.Flags().StringVar(&key, "key", "", "raw upstream API key (required, hashed before storage)")
	cmd.Flags().StringVar(&provider, "provider", "", "upstream provider (required)")
	cmd.Flags().StringVar(&upstreamURL, "upstream-url", "", "upstream base URL (required)")
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name")
	cmd.Flags().StringVar(&egressIP, "egress-ip", "", "egress IP label for cluster naming")

	return cmd
}

func newAPIKeyListCommand() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered API keys of a project",
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

			var keys []models.RegisteredAPIKey
			if err := db.Where("project_id = ?", owner.ID).
				Order("created_at ASC").Find(&keys).Error; err != nil {
				return fmt.Errorf("failed to list keys: %w", err)
			}

			if outputJSON {
				return printResult(keys)
			}
			for _, k := range keys {
				fmt.Printf("%s  %-12s  %-40s  active=%t\n", k.ID, k.Provider, k.UpstreamURL, k.IsActive)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project id or name (required)")

	return cmd
}
