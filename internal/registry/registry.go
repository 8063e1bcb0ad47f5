package registry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xproxy/xproxy/internal/models"
)

// KeyInfo describes one registered upstream API key, recognized by hash
// in firewall mode.
type KeyInfo struct {
	ProjectID   uuid.UUID
	Provider    string
	UpstreamURL string
	DisplayName string
	EgressIP    string
}

// ClusterName is the provider hint emitted to the data plane: the bare
// provider for the default egress, otherwise provider-<egress_ip> so the
// proxy can pick a named egress pool.
func (k KeyInfo) ClusterName() string {
	if k.EgressIP == "" || k.EgressIP == "default" {
		return k.Provider
	}
	return k.Provider + "-" + k.EgressIP
}

// APIKeyRegistry is a snapshot map from key hash to KeyInfo, rebuilt
// periodically from the store. Readers are lock-free against the current
// snapshot.
type APIKeyRegistry struct {
	db     *gorm.DB
	logger *zap.Logger

	entries atomic.Pointer[map[string]KeyInfo]

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewAPIKeyRegistry(db *gorm.DB, logger *zap.Logger) *APIKeyRegistry {
	r := &APIKeyRegistry{
		db:     db,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	empty := make(map[string]KeyInfo)
	r.entries.Store(&empty)
	return r
}

// Lookup returns the registered key info for a hash.
func (r *APIKeyRegistry) Lookup(keyHash string) (KeyInfo, bool) {
	info, ok := (*r.entries.Load())[keyHash]
	return info, ok
}

// Reload replaces the snapshot with the active rows from the store.
func (r *APIKeyRegistry) Reload(ctx context.Context) (int, error) {
	var rows []models.RegisteredAPIKey
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&rows).Error; err != nil {
		return 0, err
	}

	entries := make(map[string]KeyInfo, len(rows))
	for _, row := range rows {
		entries[row.KeyHash] = KeyInfo{
			ProjectID:   row.ProjectID,
			Provider:    row.Provider,
			UpstreamURL: row.UpstreamURL,
			DisplayName: row.DisplayName,
			EgressIP:    row.EgressIP,
		}
	}

	r.entries.Store(&entries)
	return len(entries), nil
}

// Start launches the refresh loop.
func (r *APIKeyRegistry) Start(interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	go r.run(interval)
}

func (r *APIKeyRegistry) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *APIKeyRegistry) run(interval time.Duration) {
	defer close(r.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			count, err := r.Reload(context.Background())
			if err != nil {
				r.logger.Error("failed to refresh API key registry", zap.Error(err))
				continue
			}
			r.logger.Debug("refreshed API key registry", zap.Int("keys", count))
		case <-r.stopCh:
			return
		}
	}
}
