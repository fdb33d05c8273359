package otel

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// RouteErrors 把 SDK 内部错误（导出失败、连接失败等）转给 zap，不影响请求路径
func RouteErrors(l *zap.Logger) {
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		l.Warn("OpenTelemetry pipeline error", zap.Error(err))
	}))
}
