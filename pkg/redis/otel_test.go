package redis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestHook(t *testing.T) (*TracingHook, *tracetest.SpanRecorder, *sdkmetric.ManualReader) {
	t.Helper()

	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	hook, err := NewTracingHook(0, tp, mp)
	require.NoError(t, err)

	return hook, rec, reader
}

// counterValue 汇总指定计数器中匹配 attrs 的数据点
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
		points:
			for _, dp := range sum.DataPoints {
				for _, kv := range attrs {
					v, ok := dp.Attributes.Value(kv.Key)
					if !ok || v.Emit() != kv.Value.Emit() {
						continue points
					}
				}
				total += dp.Value
			}
		}
	}
	return total
}

func TestTracingHook_ProcessHook(t *testing.T) {
	boom := errors.New("connection refused")

	tests := []struct {
		name       string
		cmd        func(ctx context.Context) redis.Cmder
		nextErr    error
		wantCode   codes.Code
		wantStatus string
		wantHits   int64
		wantMisses int64
	}{
		{
			name:       "get hit",
			cmd:        func(ctx context.Context) redis.Cmder { return redis.NewStringCmd(ctx, "get", "oteldemo:user:1") },
			wantCode:   codes.Ok,
			wantStatus: "success",
			wantHits:   1,
		},
		{
			name:       "get miss",
			cmd:        func(ctx context.Context) redis.Cmder { return redis.NewStringCmd(ctx, "get", "oteldemo:user:2") },
			nextErr:    redis.Nil,
			wantCode:   codes.Ok,
			wantStatus: "not_found",
			wantMisses: 1,
		},
		{
			name:       "get error is neither hit nor miss",
			cmd:        func(ctx context.Context) redis.Cmder { return redis.NewStringCmd(ctx, "get", "oteldemo:user:3") },
			nextErr:    boom,
			wantCode:   codes.Error,
			wantStatus: "error",
		},
		{
			name:       "set does not touch cache counters",
			cmd:        func(ctx context.Context) redis.Cmder { return redis.NewStatusCmd(ctx, "set", "oteldemo:user:4", "v") },
			wantCode:   codes.Ok,
			wantStatus: "success",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook, rec, reader := newTestHook(t)
			ctx := context.Background()
			cmd := tt.cmd(ctx)

			process := hook.ProcessHook(func(ctx context.Context, cmd redis.Cmder) error {
				return tt.nextErr
			})
			err := process(ctx, cmd)
			assert.Equal(t, tt.nextErr, err)

			spans := rec.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, cmd.Name(), spans[0].Name())
			assert.Equal(t, tt.wantCode, spans[0].Status().Code)

			attrs := attribute.NewSet(spans[0].Attributes()...)
			keys, ok := attrs.Value("redis.keys")
			require.True(t, ok)
			assert.Equal(t, cmd.Args()[1], keys.AsStringSlice()[0])

			assert.Equal(t, int64(1), counterValue(t, reader, "redis.commands.total",
				attribute.String("redis.command", cmd.Name()),
				attribute.String("redis.status", tt.wantStatus),
			))
			assert.Equal(t, tt.wantHits, counterValue(t, reader, "redis.cache.hits"))
			assert.Equal(t, tt.wantMisses, counterValue(t, reader, "redis.cache.misses"))
		})
	}
}

func TestTracingHook_ProcessPipelineHook(t *testing.T) {
	hook, rec, reader := newTestHook(t)
	ctx := context.Background()

	cmds := []redis.Cmder{
		redis.NewStringCmd(ctx, "get", "a"),
		redis.NewStringCmd(ctx, "get", "b"),
		redis.NewStatusCmd(ctx, "set", "c", "v"),
	}

	process := hook.ProcessPipelineHook(func(ctx context.Context, cmds []redis.Cmder) error {
		cmds[1].SetErr(redis.Nil)
		return nil
	})
	require.NoError(t, process(ctx, cmds))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "redis.pipeline", spans[0].Name())

	attrs := attribute.NewSet(spans[0].Attributes()...)
	count, _ := attrs.Value("redis.pipeline.count")
	assert.Equal(t, int64(3), count.AsInt64())
	names, _ := attrs.Value("redis.pipeline.commands")
	assert.Equal(t, "get;get;set", names.AsString())
	success, _ := attrs.Value("redis.pipeline.success_count")
	assert.Equal(t, int64(2), success.AsInt64())
	failed, _ := attrs.Value("redis.pipeline.error_count")
	assert.Equal(t, int64(1), failed.AsInt64())

	assert.Equal(t, int64(1), counterValue(t, reader, "redis.commands.total",
		attribute.String("redis.command", "pipeline"),
	))
}

func TestExtractKeys(t *testing.T) {
	tests := []struct {
		name string
		args []interface{}
		want []string
	}{
		{name: "command only", args: []interface{}{"ping"}, want: nil},
		{name: "get", args: []interface{}{"get", "oteldemo:user:1"}, want: []string{"oteldemo:user:1"}},
		{name: "non string args skipped", args: []interface{}{"set", "k", 1, "v"}, want: []string{"k", "v"}},
		{name: "capped at five", args: []interface{}{"mget", "a", "b", "c", "d", "e", "f"}, want: []string{"a", "b", "c", "d", "e"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractKeys(tt.args))
		})
	}
}

func TestSanitizeKey(t *testing.T) {
	assert.Equal(t, "oteldemo:***", sanitizeKey("oteldemo:session:42"))
	assert.Equal(t, "***", sanitizeKey("token"))
	assert.Equal(t, "user:1", sanitizeKey("user:1"))

	long := strings.Repeat("k", 120)
	assert.Equal(t, long[:100]+"...", sanitizeKey(long))
}
