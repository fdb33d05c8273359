package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"OTelDemo/internal/model"
	"OTelDemo/pkg/logger"
)

// Migrate 运行数据库迁移
func Migrate(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}

	logger.Logger.Info("Starting database migration...")

	if err := db.AutoMigrate(&model.User{}); err != nil {
		logger.Logger.Error("Database migration failed", zap.Error(err))
		return err
	}

	logger.Logger.Info("Database migration completed successfully")
	return nil
}
