package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"OTelDemo/pkg/otel"
)

func newTestMeter(t *testing.T, opts ...sdkmetric.Option) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(append([]sdkmetric.Option{sdkmetric.WithReader(reader)}, opts...)...)
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	return mp, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}

	return nil
}

func attrString(set attribute.Set, key attribute.Key) string {
	v, _ := set.Value(key)
	return v.Emit()
}

func TestRecordOutcome_State(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantState string
	}{
		{name: "ok", status: 200, wantState: StateSuccess},
		{name: "redirect", status: 302, wantState: StateSuccess},
		{name: "not found", status: 404, wantState: StateFail},
		{name: "server error", status: 500, wantState: StateFail},
		{name: "boundary", status: 400, wantState: StateFail},
		{name: "just below", status: 399, wantState: StateSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mp, reader := newTestMeter(t)
			inst, err := NewRequestInstruments(mp.Meter("metrics-test"))
			require.NoError(t, err)

			inst.RecordOutcome(context.Background(), "GET", "/users", tt.status, 20*time.Millisecond)

			rm := collect(t, reader)

			errRate := findMetric(rm, ErrorRateName)
			require.NotNil(t, errRate)
			sum, ok := errRate.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			require.Len(t, sum.DataPoints, 1)
			assert.Equal(t, int64(1), sum.DataPoints[0].Value)
			assert.Equal(t, tt.wantState, attrString(sum.DataPoints[0].Attributes, StateKey))
			assert.Equal(t, "/users", attrString(sum.DataPoints[0].Attributes, semconv.HTTPRouteKey))

			latency := findMetric(rm, RequestLatencyName)
			require.NotNil(t, latency)
			hist, ok := latency.Data.(metricdata.Histogram[float64])
			require.True(t, ok)
			require.Len(t, hist.DataPoints, 1)

			dp := hist.DataPoints[0]
			assert.Equal(t, uint64(1), dp.Count)
			assert.InDelta(t, 0.02, dp.Sum, 1e-9)
			assert.Equal(t, "GET", attrString(dp.Attributes, semconv.HTTPRequestMethodKey))
			code, _ := dp.Attributes.Value(semconv.HTTPResponseStatusCodeKey)
			assert.Equal(t, int64(tt.status), code.AsInt64())
		})
	}
}

func TestRecordTraffic(t *testing.T) {
	mp, reader := newTestMeter(t)
	inst, err := NewRequestInstruments(mp.Meter("metrics-test"))
	require.NoError(t, err)

	inst.RecordTraffic(context.Background(), "/")
	inst.RecordTraffic(context.Background(), "/")
	inst.RecordTraffic(context.Background(), "/users")

	rm := collect(t, reader)
	m := findMetric(rm, TrafficVolumeName)
	require.NotNil(t, m)

	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.True(t, sum.IsMonotonic)

	byRoute := map[string]int64{}
	for _, dp := range sum.DataPoints {
		byRoute[attrString(dp.Attributes, semconv.HTTPRouteKey)] = dp.Value
	}
	assert.Equal(t, map[string]int64{"/": 2, "/users": 1}, byRoute)
}

func TestRecordTraffic_RenamedByView(t *testing.T) {
	mp, reader := newTestMeter(t, sdkmetric.WithView(otel.CompileViews(otel.DefaultViewRules())))
	inst, err := NewRequestInstruments(mp.Meter("metrics-test"))
	require.NoError(t, err)

	inst.RecordTraffic(context.Background(), "/")

	rm := collect(t, reader)
	assert.Nil(t, findMetric(rm, TrafficVolumeName))
	assert.NotNil(t, findMetric(rm, otel.TrafficVolumeExportName))
}

func TestSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want float64
	}{
		{0, 0},
		{50 * time.Millisecond, 0.05},
		{1500 * time.Millisecond, 1.5},
		{time.Nanosecond, 1e-9},
		{-time.Second, 0},
		{90 * time.Minute, 5400},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Seconds(tt.in), 1e-12, "input %s", tt.in)
	}
}

type fakeSampler struct {
	cpu    float64
	mem    int64
	cpuErr error
}

func (f fakeSampler) CPUUtilization(context.Context) (float64, error) { return f.cpu, f.cpuErr }
func (f fakeSampler) MemoryUsed(context.Context) (int64, error)       { return f.mem, nil }

func TestRegisterResourceInstruments(t *testing.T) {
	mp, reader := newTestMeter(t)
	inst, err := RegisterResourceInstruments(mp.Meter("metrics-test"), fakeSampler{cpu: 0.25, mem: 4096})
	require.NoError(t, err)
	require.NotNil(t, inst)

	rm := collect(t, reader)

	cpuMetric := findMetric(rm, CPUUtilizationName)
	require.NotNil(t, cpuMetric)
	gauge, ok := cpuMetric.Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	assert.InDelta(t, 0.25, gauge.DataPoints[0].Value, 1e-9)

	memMetric := findMetric(rm, MemoryUsageName)
	require.NotNil(t, memMetric)
	sum, ok := memMetric.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.False(t, sum.IsMonotonic)
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(4096), sum.DataPoints[0].Value)
}

func TestRegisterResourceInstruments_CPUGaugeDroppedByView(t *testing.T) {
	mp, reader := newTestMeter(t, sdkmetric.WithView(otel.CompileViews(otel.DefaultViewRules())))
	_, err := RegisterResourceInstruments(mp.Meter("metrics-test"), fakeSampler{cpu: 0.5, mem: 1})
	require.NoError(t, err)

	rm := collect(t, reader)
	assert.Nil(t, findMetric(rm, CPUUtilizationName))
	assert.NotNil(t, findMetric(rm, MemoryUsageName))
}

func TestRegisterResourceInstruments_SamplerError(t *testing.T) {
	mp, reader := newTestMeter(t)
	_, err := RegisterResourceInstruments(mp.Meter("metrics-test"), fakeSampler{cpuErr: errors.New("boom"), mem: 1})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	_ = reader.Collect(context.Background(), &rm)

	assert.NotNil(t, findMetric(rm, MemoryUsageName))
}
