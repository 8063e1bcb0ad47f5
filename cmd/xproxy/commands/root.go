package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/models"
)

var (
	db         *gorm.DB
	outputJSON bool
)

// SetDB stores the shared database connection for all subcommands.
func SetDB(conn *gorm.DB) {
	db = conn
}

func SetOutputJSON(enabled bool) {
	outputJSON = enabled
}

func requireDB() error {
	if db == nil {
		return fmt.Errorf("no database connection")
	}
	return nil
}

func printResult(v interface{}) error {
	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Printf("%+v\n", v)
	return nil
}

func parseID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	return id, nil
}

func findProject(idOrName string) (*models.Project, error) {
	var project models.Project
	if id, err := uuid.Parse(idOrName); err == nil {
		if err := db.First(&project, "id = ?", id).Error; err != nil {
			return nil, fmt.Errorf("project not found: %w", err)
		}
		return &project, nil
	}
	if err := db.First(&project, "name = ?", idOrName).Error; err != nil {
		return nil, fmt.Errorf("project not found: %w", err)
	}
	return &project, nil
}
