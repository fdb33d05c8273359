package storage

import (
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"OTelDemo/config"
	"OTelDemo/pkg/logger"
	"OTelDemo/storage/database"
	"OTelDemo/storage/redis"
)

// Init 统一初始化存储层，只在 DATA_SOURCE=postgres 时调用
// Redis 不可用时降级为直连数据库
func Init(cfg config.Config, tp trace.TracerProvider, mp metric.MeterProvider) error {
	if err := database.Init(cfg, tp, mp); err != nil {
		return err
	}

	if !cfg.RedisEnabled {
		return nil
	}

	if err := redis.Init(cfg, tp, mp); err != nil {
		logger.Logger.Warn("Redis unavailable, user cache disabled", zap.Error(err))
	}

	return nil
}
