package main

import (
	"context"
	"log"
	"net"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"go.uber.org/zap"

	"OTelDemo/config"
	"OTelDemo/internal/cache"
	"OTelDemo/internal/client"
	"OTelDemo/internal/downstream"
	"OTelDemo/internal/handler"
	"OTelDemo/internal/router"
	"OTelDemo/pkg/logger"
	"OTelDemo/pkg/metrics"
	pkgotel "OTelDemo/pkg/otel"
	"OTelDemo/pkg/snowflake"
	"OTelDemo/storage"
	"OTelDemo/storage/database"
	"OTelDemo/storage/redis"
)

func main() {
	cfg := config.Cfg

	ctx := context.Background()

	// 可观测性在日志之前初始化，日志要写入 OTel 日志管道
	tel, err := pkgotel.Init(ctx, pkgotel.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRatio:    cfg.TraceSampleRatio,
		MetricInterval: cfg.MetricExportInterval,
		ExportEnabled:  cfg.OTelEnabled,
	})
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	// 日志部分
	logger.Init(cfg, tel.LoggerProvider)
	defer logger.Sync()
	pkgotel.RouteErrors(logger.Logger)

	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Logger.Error("Failed to shutdown OpenTelemetry", zap.Error(err))
		}
	}()

	if err := snowflake.Init(cfg.SnowflakeMachineID, cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	meter := tel.Meter()

	if _, err := metrics.RegisterResourceInstruments(meter, metrics.HostSampler{}); err != nil {
		logger.Logger.Warn("Failed to register resource instruments", zap.Error(err))
	}

	instruments, err := metrics.NewRequestInstruments(meter)
	if err != nil {
		logger.Logger.Fatal("Failed to create request instruments", zap.Error(err))
	}

	users, closeUsers := newUserClient(cfg, tel)
	defer closeUsers()

	ds, err := downstream.New(downstream.Config{
		URL:     cfg.DownstreamURL,
		Delay:   cfg.DownstreamDelay,
		Timeout: cfg.DownstreamTimeout,
	}, tel.Tracer(), tel.Propagator, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to create downstream client", zap.Error(err))
	}

	logger.Logger.Info("Server starting",
		zap.String("service", cfg.ServiceName),
		zap.String("version", cfg.ServiceVersion),
		zap.String("port", cfg.ServerPort),
		zap.String("environment", cfg.Environment),
		zap.String("data_source", cfg.DataSource),
	)

	addr := net.JoinHostPort(cfg.ServerHost, cfg.ServerPort)
	h := server.Default(
		server.WithHostPorts(addr),
		server.WithExitWaitTime(5*time.Second),
	)
	h.OnShutdown = append(h.OnShutdown, func(ctx context.Context) {
		logger.Logger.Info("Initiating graceful shutdown...")
	})

	router.Register(h, router.Deps{
		Handler:      handler.New(tel.Tracer(), users, ds, logger.Logger, cfg.DemoUserID),
		Instruments:  instruments,
		Propagator:   tel.Propagator,
		RequestIDs:   snowflake.Default(),
		Logger:       logger.Logger,
		IsProduction: cfg.IsProduction(),
	})

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	// Spin 自己监听 SIGINT/SIGTERM 并关闭服务，返回后再按 defer 逆序关闭存储和遥测
	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}

// newUserClient 按 DATA_SOURCE 选择数据来源，外层统一包一层混沌注入
func newUserClient(cfg config.Config, tel *pkgotel.Telemetry) (client.UserClient, func()) {
	var (
		users   client.UserClient = client.NewFakerClient()
		closeFn                   = func() {}
	)

	if cfg.UsePostgres() {
		if err := storage.Init(cfg, tel.TracerProvider, tel.MeterProvider); err != nil {
			logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
		closeFn = storage.Close

		var userCache client.UserCache
		if rdb := redis.Client(); rdb != nil {
			userCache = cache.NewUserCache(rdb, cfg.RedisCacheTTL)
		}
		users = client.NewStoreClient(database.DB(), userCache, logger.Logger)
	}

	chaos := client.ChaosConfig{
		NotFoundRate: cfg.ChaosNotFoundRate,
		ErrorRate:    cfg.ChaosErrorRate,
		MaxLatency:   cfg.ChaosMaxLatency,
	}
	if chaos.Enabled() {
		users = client.NewChaosClient(users, chaos, nil)
	}

	return users, closeFn
}
