package metrics

import (
	"context"
	"errors"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"go.opentelemetry.io/otel/metric"

	pkgotel "OTelDemo/pkg/otel"
)

// 饱和度指标（第四个黄金信号的近似）
const (
	CPUUtilizationName = pkgotel.CPUUtilizationName // 视图规则按此名丢弃
	MemoryUsageName    = "process.memory.usage"
)

var errNoCPUSample = errors.New("no cpu sample available")

// Sampler 读取主机资源使用情况
type Sampler interface {
	// CPUUtilization 返回 0~1
	CPUUtilization(ctx context.Context) (float64, error)
	// MemoryUsed 返回已用内存字节数
	MemoryUsed(ctx context.Context) (int64, error)
}

// HostSampler 基于 gopsutil 的实现
type HostSampler struct{}

func (HostSampler) CPUUtilization(ctx context.Context) (float64, error) {
	// interval 为 0 时返回距上次调用的平均值，不阻塞采集周期
	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, err
	}
	if len(percents) == 0 {
		return 0, errNoCPUSample
	}
	return percents[0] / 100, nil
}

func (HostSampler) MemoryUsed(ctx context.Context) (int64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return int64(vm.Used), nil
}

// ResourceInstruments 异步指标句柄
type ResourceInstruments struct {
	CPUUtilization metric.Float64ObservableGauge
	MemoryUsage    metric.Int64ObservableUpDownCounter
}

// RegisterResourceInstruments 注册饱和度指标，由周期 reader 在采集时回调
func RegisterResourceInstruments(meter metric.Meter, sampler Sampler) (*ResourceInstruments, error) {
	if sampler == nil {
		sampler = HostSampler{}
	}

	cpuGauge, err := meter.Float64ObservableGauge(
		CPUUtilizationName,
		metric.WithDescription("CPU utilization"),
		metric.WithUnit("1"),
		metric.WithFloat64Callback(func(ctx context.Context, o metric.Float64Observer) error {
			v, err := sampler.CPUUtilization(ctx)
			if err != nil {
				return err
			}
			o.Observe(v)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	memCounter, err := meter.Int64ObservableUpDownCounter(
		MemoryUsageName,
		metric.WithDescription("Total amount of memory used"),
		metric.WithUnit("By"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			v, err := sampler.MemoryUsed(ctx)
			if err != nil {
				return err
			}
			o.Observe(v)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return &ResourceInstruments{
		CPUUtilization: cpuGauge,
		MemoryUsage:    memCounter,
	}, nil
}
