package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// NewTracerProvider 每次调用创建一个新的 TracerProvider，挂载一条批处理导出管道
func NewTracerProvider(ctx context.Context, res *resource.Resource, cfg Config, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	options := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(cfg.SampleRatio),
		)),
	}

	if cfg.ExportEnabled {
		traceExporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(normalizeEndpoint(cfg.OTLPEndpoint)),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}

		options = append(options, sdktrace.WithBatcher(
			traceExporter,
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithExportTimeout(10*time.Second),
			sdktrace.WithMaxExportBatchSize(512),
		))
	}

	return sdktrace.NewTracerProvider(append(options, opts...)...), nil
}

// CreateTracer 从 provider 获取带版本号的 tracer
func CreateTracer(tp trace.TracerProvider, name, version string) trace.Tracer {
	return tp.Tracer(name, trace.WithInstrumentationVersion(version))
}
