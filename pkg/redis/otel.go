package redis

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "OTelDemo/pkg/redis"

// hookInstruments Redis 相关指标
type hookInstruments struct {
	commandsTotal   metric.Int64Counter
	commandDuration metric.Float64Histogram
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

func newHookInstruments(meter metric.Meter) (*hookInstruments, error) {
	var (
		inst hookInstruments
		err  error
	)

	inst.commandsTotal, err = meter.Int64Counter(
		"redis.commands.total",
		metric.WithDescription("Total number of Redis commands"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, err
	}

	inst.commandDuration, err = meter.Float64Histogram(
		"redis.command.duration",
		metric.WithDescription("Redis command duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	inst.cacheHits, err = meter.Int64Counter(
		"redis.cache.hits",
		metric.WithDescription("Number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	inst.cacheMisses, err = meter.Int64Counter(
		"redis.cache.misses",
		metric.WithDescription("Number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	return &inst, nil
}

// TracingHook Redis 追踪 Hook
type TracingHook struct {
	tracer trace.Tracer
	inst   *hookInstruments
	attrs  []attribute.KeyValue
}

var _ redis.Hook = (*TracingHook)(nil)

// NewTracingHook 创建追踪 Hook
func NewTracingHook(db int, tp trace.TracerProvider, mp metric.MeterProvider) (*TracingHook, error) {
	inst, err := newHookInstruments(mp.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}

	return &TracingHook{
		tracer: tp.Tracer(instrumentationName),
		inst:   inst,
		attrs: []attribute.KeyValue{
			semconv.DBSystemRedis,
			attribute.String("db.namespace", strconv.Itoa(db)),
		},
	}, nil
}

// DialHook 实现 redis.Hook 接口
func (th *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

// ProcessHook 实现 redis.Hook 接口
func (th *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		name := cmd.Name()

		ctx, span := th.tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		span.SetAttributes(attribute.String("db.operation.name", name))

		// 只记录键名，不记录值
		if keys := extractKeys(cmd.Args()); len(keys) > 0 {
			span.SetAttributes(attribute.StringSlice("redis.keys", keys))
		}

		start := time.Now()
		err := next(ctx, cmd)
		duration := time.Since(start).Seconds()

		status := "success"
		switch {
		case err == nil:
			span.SetStatus(codes.Ok, "")
		case errors.Is(err, redis.Nil):
			status = "not_found"
			span.SetStatus(codes.Ok, "key not found")
		default:
			status = "error"
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		}

		attrs := metric.WithAttributes(
			attribute.String("redis.command", name),
			attribute.String("redis.status", status),
		)
		th.inst.commandsTotal.Add(ctx, 1, attrs)
		th.inst.commandDuration.Record(ctx, duration, attrs)

		if name == "get" || name == "mget" {
			if errors.Is(err, redis.Nil) {
				th.inst.cacheMisses.Add(ctx, 1)
			} else if err == nil {
				th.inst.cacheHits.Add(ctx, 1)
			}
		}

		return err
	}
}

// ProcessPipelineHook 实现 redis.Hook 接口
func (th *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := th.tracer.Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		names := make([]string, 0, len(cmds))
		for _, cmd := range cmds {
			names = append(names, cmd.Name())
		}

		span.SetAttributes(
			attribute.Int("redis.pipeline.count", len(cmds)),
			attribute.String("redis.pipeline.commands", strings.Join(names, ";")),
		)

		err := next(ctx, cmds)

		successCount := 0
		for _, cmd := range cmds {
			if cmd.Err() == nil {
				successCount++
			}
		}

		span.SetAttributes(
			attribute.Int("redis.pipeline.success_count", successCount),
			attribute.Int("redis.pipeline.error_count", len(cmds)-successCount),
		)

		th.inst.commandsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("redis.command", "pipeline"),
		))

		return err
	}
}

// extractKeys 第一个参数是命令名，跳过；最多取 5 个
func extractKeys(args []interface{}) []string {
	if len(args) < 2 {
		return nil
	}

	keys := make([]string, 0, len(args)-1)
	for i := 1; i < len(args) && len(keys) < 5; i++ {
		if key, ok := args[i].(string); ok {
			keys = append(keys, sanitizeKey(key))
		}
	}

	return keys
}

// sanitizeKey 清理键名，移除敏感信息
func sanitizeKey(key string) string {
	if strings.Contains(key, "token") ||
		strings.Contains(key, "password") ||
		strings.Contains(key, "secret") ||
		strings.Contains(key, "session") {
		parts := strings.Split(key, ":")
		if len(parts) > 1 {
			return parts[0] + ":***"
		}
		return "***"
	}

	if len(key) > 100 {
		return key[:100] + "..."
	}

	return key
}

// InstrumentClient 为 Redis 客户端添加 OpenTelemetry 支持
func InstrumentClient(client *redis.Client, tp trace.TracerProvider, mp metric.MeterProvider) error {
	hook, err := NewTracingHook(client.Options().DB, tp, mp)
	if err != nil {
		return err
	}

	client.AddHook(hook)
	return nil
}
