package otel

// Resource 是 OpenTelemetry 的核心概念之一
// 它描述了产生 telemetry 数据的实体（服务、容器、主机等）
// 这些信息会被附加到所有的 spans、metrics 和 logs 上，用于标识数据的来源
//
//	Resource (服务名 / 版本 / 主机名)
//	    ↓
//	TracerProvider ── BatchSpanProcessor ── OTLP trace exporter
//	MeterProvider  ── Views ── PeriodicReader ── OTLP metric exporter
//	LoggerProvider ── BatchProcessor ── OTLP log exporter
//	    ↓
//	OpenTelemetry Collector

import (
	"context"
	"os"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// UnknownHost 主机名探测失败时使用的占位值
const UnknownHost = "unknown"

// hostDetector 探测主机名，探测失败不返回错误，使用 UnknownHost 兜底
type hostDetector struct {
	lookup func() (string, error)
}

// Detect 实现 resource.Detector 接口
func (d hostDetector) Detect(context.Context) (*resource.Resource, error) {
	lookup := d.lookup
	if lookup == nil {
		lookup = os.Hostname
	}

	name, err := lookup()
	if err != nil || name == "" {
		name = UnknownHost
	}

	return resource.NewSchemaless(semconv.HostName(name)), nil
}

// HostName 返回当前主机名，失败时返回 UnknownHost
func HostName() string {
	res, _ := hostDetector{}.Detect(context.Background())
	if v, ok := res.Set().Value(semconv.HostNameKey); ok {
		return v.AsString()
	}
	return UnknownHost
}

// BuildResource 合并静态的服务名/版本与动态探测的主机名
func BuildResource(ctx context.Context, name, version, environment string) *resource.Resource {
	return buildResource(ctx, name, version, environment, hostDetector{})
}

func buildResource(ctx context.Context, name, version, environment string, host resource.Detector) *resource.Resource {
	hostRes, err := host.Detect(ctx)
	if err != nil || hostRes == nil {
		hostRes = resource.NewSchemaless(semconv.HostName(UnknownHost))
	}

	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
			semconv.TelemetrySDKLanguageGo,
		),
	}
	if environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(environment)))
	}

	svcRes, err := resource.New(ctx, attrs...)
	if err != nil {
		svcRes = resource.NewSchemaless(
			semconv.ServiceName(name),
			semconv.ServiceVersion(version),
		)
	}

	// 后合并的服务属性优先
	merged, err := resource.Merge(hostRes, svcRes)
	if err != nil {
		return svcRes
	}
	return merged
}
