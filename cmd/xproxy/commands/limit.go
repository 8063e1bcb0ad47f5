package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm/clause"

	"github.com/xproxy/xproxy/internal/models"
)

func NewLimitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limit",
		Short: "Manage spending limits",
	}

	cmd.AddCommand(newLimitSetCommand())
	cmd.AddCommand(newLimitListCommand())

	return cmd
}

func newLimitSetCommand() *cobra.Command {
	var project, entityType, periodType string
	var limitCents int64

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a spending limit for a project or its owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireDB(); err != nil {
				return err
			}
			if project == "" {
				return fmt.Errorf("project is required")
			}
			if entityType != models.EntityTypeUser && entityType != models.EntityTypeProject {
				return fmt.Errorf("entity-type must be user or project")
			}
			if periodType != models.PeriodTypeDaily && periodType != models.PeriodTypeMonthly {
				return fmt.Errorf("period must be daily or monthly")
			}
			if limitCents <= 0 {
				return fmt.Errorf("cents must be positive")
			}

			owner, err := findProject(project)
			if err != nil {
				return err
			}
			entityID := owner.ID
			if entityType == models.EntityTypeUser {
				entityID = owner.UserID
			}

			limit := models.SpendingLimit{
				EntityType: entityType,
				EntityID:   entityID,
				PeriodType: periodType,
				LimitCents: limitCents,
				IsActive:   true,
			}
			err = db.Clauses(clause.OnConflict{
				Columns: []clause.Column{
					{Name: "entity_type"},
					{Name: "entity_id"},
					{Name: "period_type"},
				},
				DoUpdates: clause.AssignmentColumns([]string{"limit_cents", "is_active", "updated_at"}),
			}).Create(&limit).Error
			if err != nil {
				return fmt.Errorf("failed to set limit: %w", err)
			}

			fmt.Printf("Set %s %s limit to %d cents for %s\n", entityType, periodType, limitCents, entityID)
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project id or name (required)")
	cmd.Flags().StringVar(&entityType, "entity-type", models.EntityTypeProject, "user or project")
	cmd.Flags().StringVar(&periodType, "period", models.PeriodTypeMonthly, "daily or monthly")
	cmd.Flags().Int64Var(&limitCents, "cents", 0, "limit in cents (required)")

	return cmd
}

func newLimitListCommand() *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List spending limits of a project and its owner",
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

			var limits []models.SpendingLimit
			if err := db.Where(
				"(entity_type = ? AND entity_id = ?) OR (entity_type = ? AND entity_id = ?)",
				models.EntityTypeProject, owner.ID, models.EntityTypeUser, owner.UserID,
			).Find(&limits).Error; err != nil {
				return fmt.Errorf("failed to list limits: %w", err)
			}

			if outputJSON {
				return printResult(limits)
			}
			for _, l := range limits {
				fmt.Printf("%-8s %-8s %10d cents  active=%t\n",
					l.EntityType, l.PeriodType, l.LimitCents, l.IsActive)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "project id or name (required)")

	return cmd
}
