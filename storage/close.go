package storage

import (
	"context"
	"time"

	"go.uber.org/zap"

	"OTelDemo/pkg/logger"
	"OTelDemo/storage/database"
	"OTelDemo/storage/redis"
)

// Close 优雅关闭所有存储连接
// 关闭顺序：Redis -> Database
func Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	logger.Logger.Info("Closing storage connections...")

	if err := redis.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close Redis connection", zap.Error(err))
	}

	if err := database.Close(ctx); err != nil {
		logger.Logger.Error("Failed to close database connection", zap.Error(err))
	}

	logger.Logger.Info("All storage connections closed")
}
