package router

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"OTelDemo/internal/handler"
	"OTelDemo/internal/middleware"
	"OTelDemo/pkg/metrics"
	"OTelDemo/pkg/snowflake"
)

// Deps 路由和中间件依赖
type Deps struct {
	Handler      *handler.Handler
	Instruments  *metrics.RequestInstruments
	Propagator   propagation.TextMapPropagator
	RequestIDs   *snowflake.Generator
	Logger       *zap.Logger
	IsProduction bool
}

func Register(h *server.Hertz, d Deps) {
	// 全局中间件对未命中路由（404）同样生效
	h.Use(middleware.Recover(d.Logger, d.IsProduction))
	h.Use(middleware.RequestID(d.RequestIDs))
	h.Use(middleware.Instrumentation(d.Instruments, d.Propagator))

	d.Handler.Register(h)
}
