package auth

import (
	"errors"

	"github.com/google/uuid"

	"github.com/xproxy/xproxy/internal/models"
)

var (
	// ErrInvalidToken covers unknown, expired and inactive tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrInternal covers store failures during resolution.
	ErrInternal = errors.New("internal auth error")
)

// AuthContext is the resolved identity for one proxy token: the owning
// user and project plus the project's active pipes in list order.
type AuthContext struct {
	UserID      uuid.UUID
	ProjectID   uuid.UUID
	TokenID     uuid.UUID
	UserEmail   string
	ProjectName string
	Pipes       []models.Pipe
}
