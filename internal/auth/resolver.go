package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/models"
)

// TokenResolver maps a token hash to its auth context.
type TokenResolver interface {
	ResolveTokenByHash(ctx context.Context, tokenHash string) (*AuthContext, error)
}

// StoreResolver resolves tokens against the database: proxy_tokens joined
// to projects and users, all three active, token unexpired.
type StoreResolver struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewStoreResolver(db *gorm.DB, logger *zap.Logger) *StoreResolver {
	return &StoreResolver{db: db, logger: logger}
}

func (r *StoreResolver) ResolveTokenByHash(ctx context.Context, tokenHash string) (*AuthContext, error) {
	var row struct {
		TokenID     string
		ProjectID   string
		UserID      string
		UserEmail   string
		ProjectName string
	}

	err := r.db.WithContext(ctx).
		Table("proxy_tokens pt").
		Select("pt.id AS token_id, p.id AS project_id, u.id AS user_id, u.email AS user_email, p.name AS project_name").
		Joins("JOIN projects p ON p.id = pt.project_id").
		Joins("JOIN users u ON u.id = p.user_id").
		Where("pt.token_hash = ? AND pt.is_active = ? AND p.is_active = ? AND u.is_active = ?", tokenHash, true, true, true).
		Where("pt.expires_at IS NULL OR pt.expires_at > NOW()").
		Take(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	authCtx := &AuthContext{
		UserEmail:   row.UserEmail,
		ProjectName: row.ProjectName,
	}
	if err := parseUUIDs(row.TokenID, row.ProjectID, row.UserID, authCtx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	// Touch last_used_at. Failure here must not fail the request.
	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).
		Model(&models.ProxyToken{}).
		Where("id = ?", authCtx.TokenID).
		Update("last_used_at", now).Error; err != nil {
		r.logger.Warn("failed to update token last_used_at",
			zap.String("token_id", authCtx.TokenID.String()),
			zap.Error(err))
	}

	var pipes []models.Pipe
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND is_active = ?", authCtx.ProjectID, true).
		Order("created_at ASC").
		Find(&pipes).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	authCtx.Pipes = pipes

	return authCtx, nil
}
