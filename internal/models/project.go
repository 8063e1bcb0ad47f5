package models

import (
	"strings"

	"github.com/google/uuid"
)

type Project struct {
	BaseModel
	UserID      uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`

	User  *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Pipes []Pipe `gorm:"foreignKey:ProjectID" json:"pipes,omitempty"`
}

func (Project) TableName() string {
	return "projects"
}

// Pipe binds a provider credential to a project. ModelFilter is a
// comma-separated allow-list of literal model names, or "*" for all.
type Pipe struct {
	BaseModel
	ProjectID       uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Name            string    `gorm:"not null" json:"name"`
	Provider        string    `gorm:"not null" json:"provider"`
	APIKeyEncrypted string    `gorm:"column:api_key_encrypted;not null" json:"-"`
	ModelFilter     string    `json:"model_filter,omitempty"`
	IsActive        bool      `gorm:"default:true" json:"is_active"`
}

func (Pipe) TableName() string {
	return "pipes"
}

// AllowsModel reports whether the filter admits the requested model.
// modelID is the post-slash part of model when the client sent a
// provider-prefixed name.
func (p *Pipe) AllowsModel(model, modelID string) bool {
	if p.ModelFilter == "" {
		return true
	}
	for _, entry := range strings.Split(p.ModelFilter, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "*" || entry == model || entry == modelID {
			return true
		}
	}
	return false
}
