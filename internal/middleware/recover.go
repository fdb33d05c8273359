package middleware

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"OTelDemo/pkg/errors"
	"OTelDemo/pkg/logger"
	"OTelDemo/pkg/response"
)

// RecoverConfig recover 中间件配置
type RecoverConfig struct {
	// 日志输出，nil 时使用 logger.Logger
	Logger *zap.Logger
	// 严重错误回调（可用于发送告警）
	OnSevereError func(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte)
	// 堆栈追踪级别（full, simple, none）
	StackTraceLevel string
	// 是否启用堆栈追踪
	EnableStackTrace bool
	// 生产环境是否返回详细错误
	ExposeDetailsInProduction bool
	// 是否记录请求头
	LogRequestDetails bool
	// 是否在当前 span 中记录异常
	RecordInSpan bool
	IsProduction bool
}

// NewRecoverConfig 创建 recover 配置
func NewRecoverConfig(l *zap.Logger, isProduction bool) RecoverConfig {
	return RecoverConfig{
		Logger:            l,
		StackTraceLevel:   "simple",
		EnableStackTrace:  true,
		LogRequestDetails: true,
		RecordInSpan:      true,
		IsProduction:      isProduction,
	}
}

// Recover 创建 recover 中间件
func Recover(l *zap.Logger, isProduction bool) app.HandlerFunc {
	return RecoverWithConfig(NewRecoverConfig(l, isProduction))
}

// RecoverWithConfig 带配置的 recover 中间件
func RecoverWithConfig(config RecoverConfig) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		defer func() {
			if err := recover(); err != nil {
				handlePanic(ctx, c, err, config)
			}
		}()

		c.Next(ctx)
	}
}

func handlePanic(ctx context.Context, c *app.RequestContext, err interface{}, config RecoverConfig) {
	var stack []byte
	if config.EnableStackTrace {
		stack = getStackTrace(config.StackTraceLevel)
	}

	if config.RecordInSpan {
		recordInSpan(ctx, err)
	}

	logPanicWithRequest(ctx, c, err, stack, config)

	if config.OnSevereError != nil && isSeverePanic(err) {
		config.OnSevereError(ctx, c, err, stack)
	}

	// handler 可能已经写了一部分响应
	c.Abort()
	c.Response.Reset()
	writeErrorResponse(ctx, c, err, stack, config)
}

// recordInSpan ctx 中没有可记录的 span 时什么都不做
func recordInSpan(ctx context.Context, err interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(fmt.Errorf("panic: %v", err))
	span.SetStatus(codes.Error, "panic recovered")
}

func writeErrorResponse(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte, config RecoverConfig) {
	errDef := errors.InternalError
	if !config.IsProduction || config.ExposeDetailsInProduction {
		errDef.Message = fmt.Sprintf("Internal error: %v", err)

		details := map[string]interface{}{
			"panic":     fmt.Sprintf("%v", err),
			"timestamp": time.Now().Format(time.RFC3339),
		}
		if config.EnableStackTrace {
			details["stack"] = string(stack)
		}

		response.ErrorWithDetails(ctx, c, errDef, details)
		return
	}

	response.Error(ctx, c, errDef)
}

// getStackTrace 获取堆栈追踪
func getStackTrace(level string) []byte {
	var buf bytes.Buffer

	switch level {
	case "full":
		buf.Write(debug.Stack())
	case "simple":
		buf.WriteString("goroutine panic:\n")
		skip := 3 // 跳过 runtime 和 recover 相关的函数
		for i := skip; ; i++ {
			pc, file, line, ok := runtime.Caller(i)
			if !ok {
				break
			}
			fn := runtime.FuncForPC(pc)
			if fn == nil {
				continue
			}
			buf.WriteString(fmt.Sprintf("  %s:%d\n    %s\n", file, line, fn.Name()))
		}
	}

	return buf.Bytes()
}

// getFormattedStack 移除 runtime 相关的冗余堆栈
func getFormattedStack(stack []byte) []byte {
	if len(stack) == 0 {
		return nil
	}

	lines := strings.Split(string(stack), "\n")
	filtered := make([]string, 0, len(lines))

	for _, line := range lines {
		if strings.Contains(line, "runtime/panic.go") ||
			strings.Contains(line, "runtime/debug") ||
			strings.Contains(line, "src/runtime/") {
			continue
		}
		filtered = append(filtered, line)
	}

	return []byte(strings.Join(filtered, "\n"))
}

func logPanicWithRequest(ctx context.Context, c *app.RequestContext, err interface{}, stack []byte, config RecoverConfig) {
	l := config.Logger
	if l == nil {
		l = logger.Logger
	}

	fields := []zap.Field{
		zap.String("panic", fmt.Sprintf("%v", err)),
		zap.String("path", string(c.Path())),
		zap.String("method", string(c.Method())),
		zap.String("client_ip", c.ClientIP()),
		zap.String("user_agent", string(c.UserAgent())),
	}

	if config.LogRequestDetails {
		headers := make(map[string]string)
		c.Request.Header.VisitAll(func(key, value []byte) {
			headers[string(key)] = string(value)
		})
		fields = append(fields, zap.Any("headers", headers))
	}

	if config.EnableStackTrace {
		fields = append(fields, zap.ByteString("stack", getFormattedStack(stack)))
	}

	logger.WithContext(ctx, l).Error("[PANIC RECOVERED]", fields...)

	if isSeverePanic(err) {
		logger.WithContext(ctx, l).Error("[SEVERE PANIC DETECTED]", fields...)
	}
}

// isSeverePanic 判断是否为严重错误
func isSeverePanic(err interface{}) bool {
	if err == nil {
		return false
	}

	errStr := fmt.Sprintf("%v", err)

	severePatterns := []string{
		"runtime: out of memory",
		"fatal error:",
		"concurrent map writes",
		"concurrent map read and map write",
		"runtime error: makeslice:", // OOM
		"all goroutines are asleep - deadlock!",
		"index out of range",
		"slice bounds out of range",
		"unexpected signal",
	}

	for _, pattern := range severePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
