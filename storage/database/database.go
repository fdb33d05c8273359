package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"OTelDemo/config"
	dbotel "OTelDemo/pkg/database"
	"OTelDemo/pkg/logger"
)

var (
	db     *gorm.DB
	dbOnce sync.Once
	dbErr  error
)

// Init 连接 PostgreSQL，迁移 users 表
func Init(cfg config.Config, tp trace.TracerProvider, mp metric.MeterProvider) error {
	dbOnce.Do(func() {
		var gormDB *gorm.DB
		gormDB, dbErr = Open(postgres.Open(cfg.GetDSN()), cfg.PostgreSQLDatabase, tp, mp)
		if dbErr != nil {
			logger.Logger.Error("Failed to open database", zap.String("dsn", "please check database connection"), zap.Error(dbErr))
			return
		}

		sqlDB, err := gormDB.DB()
		if err != nil {
			dbErr = err
			logger.Logger.Error("Failed to get sql.DB from gorm", zap.Error(err))
			return
		}

		configureConnectionPool(sqlDB, cfg)

		if err := sqlDB.Ping(); err != nil {
			dbErr = err
			logger.Logger.Error("Failed to ping database", zap.Error(err))
			return
		}

		if err := Migrate(gormDB); err != nil {
			dbErr = err
			return
		}

		db = gormDB
		logger.Logger.Info("Database initialized successfully")
	})

	return dbErr
}

// Open 打开连接并挂载 OpenTelemetry 插件，测试里可以传入 sqlmock 的 dialector
func Open(dialector gorm.Dialector, dbName string, tp trace.TracerProvider, mp metric.MeterProvider) (*gorm.DB, error) {
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormlogger.Discard,
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
	})
	if err != nil {
		return nil, err
	}

	pluginCfg := dbotel.DefaultPluginConfig()
	if dbName != "" {
		pluginCfg.DBName = dbName
	}
	if err := dbotel.WithOTELPlugin(gormDB, pluginCfg, tp, mp); err != nil {
		return nil, err
	}

	return gormDB, nil
}

func DB() *gorm.DB {
	return db
}

func Close(ctx context.Context) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- sqlDB.Close()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func configureConnectionPool(sqlDB *sql.DB, cfg config.Config) {
	sqlDB.SetMaxIdleConns(cfg.PostgreSQLMaxIdle)
	sqlDB.SetMaxOpenConns(cfg.PostgreSQLMaxOpen)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	sqlDB.SetConnMaxLifetime(2 * time.Hour)
}
