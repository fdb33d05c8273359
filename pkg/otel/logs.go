package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

// NewLoggerProvider 创建日志管道，zap 通过 otelzap 桥接写入
func NewLoggerProvider(ctx context.Context, res *resource.Resource, cfg Config, opts ...sdklog.LoggerProviderOption) (*sdklog.LoggerProvider, error) {
	options := []sdklog.LoggerProviderOption{
		sdklog.WithResource(res),
	}

	if cfg.ExportEnabled {
		logExporter, err := otlploggrpc.New(ctx,
			otlploggrpc.WithEndpoint(normalizeEndpoint(cfg.OTLPEndpoint)),
			otlploggrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create log exporter: %w", err)
		}

		options = append(options, sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)))
	}

	return sdklog.NewLoggerProvider(append(options, opts...)...), nil
}
