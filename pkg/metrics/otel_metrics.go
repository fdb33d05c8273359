package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	pkgotel "OTelDemo/pkg/otel"
)

// 四个黄金信号中的请求类指标
const (
	TrafficVolumeName  = pkgotel.TrafficVolumeName // 视图规则按此名重命名
	ErrorRateName      = "error_rate"
	RequestLatencyName = "http.server.request.duration"
)

const (
	StateSuccess = "success"
	StateFail    = "fail"
)

// StateKey error_rate 的结果标签
var StateKey = attribute.Key("state")

// RequestInstruments 启动时创建一次，之后只读，可并发记录
type RequestInstruments struct {
	// 1. Traffic
	TrafficVolume metric.Int64Counter
	// 2. Error
	ErrorRate metric.Int64Counter
	// 3. Latency
	RequestLatency metric.Float64Histogram
}

// NewRequestInstruments 创建请求指标
func NewRequestInstruments(meter metric.Meter) (*RequestInstruments, error) {
	var (
		inst RequestInstruments
		err  error
	)

	inst.TrafficVolume, err = meter.Int64Counter(
		TrafficVolumeName,
		metric.WithDescription("Total volume of requests to an endpoint"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	inst.ErrorRate, err = meter.Int64Counter(
		ErrorRateName,
		metric.WithDescription("Rate of failed requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	inst.RequestLatency, err = meter.Float64Histogram(
		RequestLatencyName,
		metric.WithDescription("Latency for a request to be served"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &inst, nil
}

// RecordTraffic handler 执行前调用
func (m *RequestInstruments) RecordTraffic(ctx context.Context, route string) {
	m.TrafficVolume.Add(ctx, 1, metric.WithAttributes(semconv.HTTPRoute(route)))
}

// RecordOutcome handler 结束后调用，status 必须是最终响应码
func (m *RequestInstruments) RecordOutcome(ctx context.Context, method, route string, status int, duration time.Duration) {
	state := StateSuccess
	if status >= 400 {
		state = StateFail
	}

	m.ErrorRate.Add(ctx, 1, metric.WithAttributes(
		semconv.HTTPRoute(route),
		StateKey.String(state),
	))

	m.RequestLatency.Record(ctx, Seconds(duration), metric.WithAttributes(
		semconv.HTTPRequestMethodKey.String(method),
		semconv.HTTPRoute(route),
		semconv.HTTPResponseStatusCode(status),
	))
}

// Seconds 整数纳秒转秒，负值按 0 处理
func Seconds(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	sec := d / time.Second
	nsec := d % time.Second
	return float64(sec) + float64(nsec)/1e9
}
