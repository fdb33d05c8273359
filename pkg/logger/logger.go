package logger

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzap "github.com/hertz-contrib/logger/zap"
	"go.opentelemetry.io/contrib/bridges/otelzap"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"OTelDemo/config"
)

var (
	Logger   *zap.Logger = zap.NewNop()
	logClose io.Closer
)

type requestIDKey struct{}

// Init 初始化 zap，并把每条日志同时写入 OTel 日志管道（lp 为 nil 时只写本地）
func Init(cfg config.Config, lp otellog.LoggerProvider) {
	coreLevel := zap.NewAtomicLevel()
	coreLevel.SetLevel(parseZapLevel(cfg.LoggerLevel))

	zapOpts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
	if lp != nil {
		var bridge zapcore.Core = otelzap.NewCore(cfg.ServiceName,
			otelzap.WithLoggerProvider(lp),
			otelzap.WithVersion(cfg.ServiceVersion),
		)
		// 桥接 core 自身不过滤级别，与本地输出保持同一级别
		if leveled, err := zapcore.NewIncreaseLevelCore(bridge, coreLevel); err == nil {
			bridge = leveled
		}
		zapOpts = append(zapOpts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, bridge)
		}))
	}

	opts := []hertzzap.Option{
		hertzzap.WithCoreEnc(buildEncoder(cfg)),
		hertzzap.WithCoreWs(buildWriteSyncer(cfg)),
		hertzzap.WithCoreLevel(coreLevel),
		hertzzap.WithZapOptions(zapOpts...),
	}

	hzLogger := hertzzap.NewLogger(opts...)
	hlog.SetLogger(hzLogger)
	hlog.SetLevel(toHlogLevel(coreLevel.Level()))

	Logger = hzLogger.Logger()
	Logger.Info("Logger initialized successfully",
		zap.String("level", strings.ToUpper(cfg.LoggerLevel)),
		zap.String("format", cfg.LoggerFormat),
		zap.String("environment", cfg.Environment),
		zap.Bool("otel_bridge", lp != nil),
	)
}

func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}

	if logClose != nil {
		_ = logClose.Close()
	}
}

// ContextWithRequestID 把请求 ID 存入上下文
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext 取出请求 ID，不存在时返回空串
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithContext 附加 trace_id / span_id / request_id，用于日志与链路关联
func WithContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	fields := make([]zap.Field, 0, 3)

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}

	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

func buildEncoder(cfg config.Config) zapcore.Encoder {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	isText := cfg.IsDevelopment() || strings.EqualFold(cfg.LoggerFormat, "text")
	if isText {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(encoderConfig)
	}

	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(encoderConfig)
}

func buildWriteSyncer(cfg config.Config) zapcore.WriteSyncer {
	if strings.EqualFold(cfg.LoggerOutputPath, "stdout") {
		return zapcore.AddSync(os.Stdout)
	}

	file, err := os.OpenFile(cfg.LoggerOutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		panic("failed to open log file: " + err.Error())
	}
	logClose = file

	return zapcore.AddSync(file)
}

func parseZapLevel(level string) zapcore.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "INFO":
		return zapcore.InfoLevel
	case "WARN":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func toHlogLevel(level zapcore.Level) hlog.Level {
	switch level {
	case zapcore.DebugLevel:
		return hlog.LevelDebug
	case zapcore.InfoLevel:
		return hlog.LevelInfo
	case zapcore.WarnLevel:
		return hlog.LevelWarn
	case zapcore.ErrorLevel:
		return hlog.LevelError
	default:
		return hlog.LevelInfo
	}
}
