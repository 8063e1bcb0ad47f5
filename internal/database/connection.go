package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xproxy/xproxy/internal/models"
)

var DB *gorm.DB

type Config struct {
	DSN             string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

func Initialize(cfg *Config) error {
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}

	if cfg.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}

	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 100
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = time.Hour
	}
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Warn
	}

	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  cfg.LogLevel,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger:      newLogger,
		PrepareStmt: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db

	if err := Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	return MigrateWith(DB)
}

// MigrateWith runs the schema migrations against an externally managed
// connection, for the management CLI.
func MigrateWith(db *gorm.DB) error {
	db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"")

	if err := db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Pipe{},
		&models.ProxyToken{},
		&models.RegisteredAPIKey{},
		&models.UsageRecord{},
		&models.SpendingLimit{},
		&models.SpendingCounter{},
		&models.CustomModelPricing{},
		&models.StoredResponse{},
	); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}

func createIndexes(db *gorm.DB) error {
	// Token resolution path
	db.Exec("CREATE INDEX IF NOT EXISTS idx_proxy_tokens_token_hash ON proxy_tokens(token_hash)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_pipes_project_active ON pipes(project_id, is_active)")

	// Registered key refresh
	db.Exec("CREATE INDEX IF NOT EXISTS idx_registered_api_keys_active ON registered_api_keys(is_active)")

	// Usage pricing and analytics
	db.Exec("CREATE INDEX IF NOT EXISTS idx_usage_log_unpriced ON usage_log(is_priced, created_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_usage_log_project_created ON usage_log(project_id, created_at)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_usage_log_request_id ON usage_log(request_id)")

	// Limits and counters
	db.Exec("CREATE INDEX IF NOT EXISTS idx_spending_limits_active ON spending_limits(is_active)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_custom_pricing_lookup ON custom_model_pricing(provider, model, is_active)")

	return nil
}

func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func GetDB() *gorm.DB {
	return DB
}

func IsHealthy() bool {
	if DB == nil {
		return false
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return false
	}

	return sqlDB.Ping() == nil
}
