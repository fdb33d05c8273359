package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// DefaultMetricInterval 周期导出间隔
const DefaultMetricInterval = 5000 * time.Millisecond

// 视图规则涉及的指标名
const (
	TrafficVolumeName       = "traffic_volume"
	TrafficVolumeExportName = "http.server.traffic_volume"
	CPUUtilizationName      = "process.cpu.utilization"
)

// LatencyBuckets 所有直方图统一使用的桶边界
var LatencyBuckets = []float64{1, 21, 50, 100, 1000}

// ViewRule 按 (指标类型, 指标名模式) 匹配，命中后重命名 / 丢弃 / 改写直方图桶
type ViewRule struct {
	Kind       sdkmetric.InstrumentKind
	Name       string // 支持 * 和 ? 通配
	Rename     string
	Drop       bool
	Boundaries []float64
}

// DefaultViewRules 按顺序返回默认视图规则
func DefaultViewRules() []ViewRule {
	return []ViewRule{
		// 仅改变导出名，不改变语义
		{Kind: sdkmetric.InstrumentKindCounter, Name: TrafficVolumeName, Rename: TrafficVolumeExportName},
		// 计算但不导出
		{Kind: sdkmetric.InstrumentKindObservableGauge, Name: CPUUtilizationName, Drop: true},
		{Kind: sdkmetric.InstrumentKindHistogram, Name: "*", Boundaries: LatencyBuckets},
	}
}

func (r ViewRule) view() sdkmetric.View {
	mask := sdkmetric.Stream{Name: r.Rename}

	switch {
	case r.Drop:
		mask.Aggregation = sdkmetric.AggregationDrop{}
	case len(r.Boundaries) > 0:
		bounds := make([]float64, len(r.Boundaries))
		copy(bounds, r.Boundaries)
		mask.Aggregation = sdkmetric.AggregationExplicitBucketHistogram{Boundaries: bounds}
	}

	return sdkmetric.NewView(sdkmetric.Instrument{Name: r.Name, Kind: r.Kind}, mask)
}

// CompileViews 在构造 meter 时把规则一次性编译成单个 View，按规则顺序首个命中生效
func CompileViews(rules []ViewRule) sdkmetric.View {
	views := make([]sdkmetric.View, 0, len(rules))
	for _, r := range rules {
		views = append(views, r.view())
	}

	return func(inst sdkmetric.Instrument) (sdkmetric.Stream, bool) {
		for _, v := range views {
			if s, ok := v(inst); ok {
				return s, true
			}
		}
		return sdkmetric.Stream{}, false
	}
}

// NewMeterProvider 创建带视图规则和周期导出管道的 MeterProvider
func NewMeterProvider(ctx context.Context, res *resource.Resource, cfg Config, rules []ViewRule, opts ...sdkmetric.Option) (*sdkmetric.MeterProvider, error) {
	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = DefaultMetricInterval
	}

	options := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}
	if len(rules) > 0 {
		options = append(options, sdkmetric.WithView(CompileViews(rules)))
	}

	if cfg.ExportEnabled {
		metricExporter, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(normalizeEndpoint(cfg.OTLPEndpoint)),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create metric exporter: %w", err)
		}

		options = append(options, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(
				metricExporter,
				sdkmetric.WithInterval(interval),
				sdkmetric.WithTimeout(interval),
			),
		))
	}

	return sdkmetric.NewMeterProvider(append(options, opts...)...), nil
}

// CreateMeter 从 provider 获取带版本号的 meter
func CreateMeter(mp metric.MeterProvider, name, version string) metric.Meter {
	return mp.Meter(name, metric.WithInstrumentationVersion(version))
}
