package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config OpenTelemetry 配置
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	// SampleRatio 0 表示不采样，1 表示全量
	SampleRatio    float64
	MetricInterval time.Duration
	// ExportEnabled 为 false 时 provider 不挂载任何 exporter
	ExportEnabled bool
}

// Telemetry 进程内唯一的一组 provider，由 main 构造后显式注入，不注册到全局
type Telemetry struct {
	Resource       *resource.Resource
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Propagator     propagation.TextMapPropagator

	cfg Config
}

// NewPropagator W3C TraceContext + Baggage
func NewPropagator() propagation.TextMapPropagator {
	return propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)
}

// Init 初始化 traces、metrics、logs 三条管道
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.MetricInterval <= 0 {
		cfg.MetricInterval = DefaultMetricInterval
	}

	// 1. 创建 Resource
	res := BuildResource(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)

	// 2. 初始化 TracerProvider
	tp, err := NewTracerProvider(ctx, res, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	// 3. 初始化 MeterProvider
	mp, err := NewMeterProvider(ctx, res, cfg, DefaultViewRules())
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
	}

	// 4. 初始化 LoggerProvider
	lp, err := NewLoggerProvider(ctx, res, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize logger provider: %w", err)
	}

	return &Telemetry{
		Resource:       res,
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
		Propagator:     NewPropagator(),
		cfg:            cfg,
	}, nil
}

// Tracer 返回绑定服务名和版本的 tracer
func (t *Telemetry) Tracer() trace.Tracer {
	return CreateTracer(t.TracerProvider, t.cfg.ServiceName, t.cfg.ServiceVersion)
}

// Meter 返回绑定服务名和版本的 meter
func (t *Telemetry) Meter() metric.Meter {
	return CreateMeter(t.MeterProvider, t.cfg.ServiceName, t.cfg.ServiceVersion)
}

// Shutdown 刷新并关闭全部 provider
func (t *Telemetry) Shutdown(c context.Context) error {
	ctx, cancel := context.WithTimeout(c, 5*time.Second)
	defer cancel()

	var errs []error
	if err := t.TracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracer shutdown error: %w", err))
	}
	if err := t.MeterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter shutdown error: %w", err))
	}
	if err := t.LoggerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("logger shutdown error: %w", err))
	}

	return errors.Join(errs...)
}

// normalizeEndpoint gRPC exporter 只接受 host:port，移除 http(s):// 前缀
func normalizeEndpoint(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") {
		return strings.TrimPrefix(endpoint, "http://")
	}
	return strings.TrimPrefix(endpoint, "https://")
}
