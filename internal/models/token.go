package models

import (
	"time"

	"github.com/google/uuid"
)

// ProxyToken is a gateway bearer token. Only the SHA-256 hex hash of the
// raw token is stored; the raw value is returned once at issuance.
type ProxyToken struct {
	BaseModel
	ProjectID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"project_id"`
	TokenHash  string     `gorm:"uniqueIndex;not null" json:"-"`
	Name       string     `gorm:"not null" json:"name"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`

	Project *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

func (ProxyToken) TableName() string {
	return "proxy_tokens"
}

func (t *ProxyToken) IsExpired() bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(time.Now())
}

// RegisteredAPIKey maps the hash of a real upstream API key to its
// project and upstream, for firewall-mode admission.
type RegisteredAPIKey struct {
	BaseModel
	ProjectID   uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	KeyHash     string    `gorm:"uniqueIndex;not null" json:"key_hash"`
	Provider    string    `gorm:"not null" json:"provider"`
	UpstreamURL string    `gorm:"not null" json:"upstream_url"`
	DisplayName string    `json:"display_name,omitempty"`
	EgressIP    string    `gorm:"default:default" json:"egress_ip"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
}

func (RegisteredAPIKey) TableName() string {
	return "registered_api_keys"
}
