package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/propagation"

	"OTelDemo/pkg/metrics"
	pkgotel "OTelDemo/pkg/otel"
)

// UnmatchedRoute 未命中任何路由时使用的 http.route，避免把原始路径写进指标标签
const UnmatchedRoute = "unmatched"

// toValidUTF8 统一清洗用户可控字符串，防止非法 UTF-8 触发指标/trace 序列化失败
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// routeOf 返回路由模板（如 /users/:id），不是原始路径
func routeOf(c *app.RequestContext) string {
	if route := c.FullPath(); route != "" {
		return toValidUTF8(route)
	}
	return UnmatchedRoute
}

// Instrumentation 请求级可观测性中间件
//
// 每个请求严格按顺序经过四个阶段：
//  1. 从请求头提取链路上下文，作为本请求的 ctx 传给后续 handler（格式错误或缺失时得到新的根上下文）
//  2. traffic_volume +1，记录开始时间
//  3. 调用后续 handler
//  4. 记录 error_rate 和延迟直方图（defer 执行，handler panic 时同样执行）
//
// 上下文只沿调用链显式传递，调用方的 ctx 不会被修改，函数返回即恢复，不存在跨请求共享的槽位。
func Instrumentation(instruments *metrics.RequestInstruments, propagator propagation.TextMapPropagator) app.HandlerFunc {
	if propagator == nil {
		propagator = pkgotel.NewPropagator()
	}

	return func(ctx context.Context, c *app.RequestContext) {
		reqCtx := propagator.Extract(ctx, pkgotel.NewHeaderCarrier(&c.Request.Header))

		method := toValidUTF8(string(c.Method()))
		route := routeOf(c)

		instruments.RecordTraffic(reqCtx, route)
		start := time.Now()

		defer func() {
			status := c.Response.StatusCode()
			r := recover()
			if r != nil {
				status = http.StatusInternalServerError
			}

			instruments.RecordOutcome(reqCtx, method, route, status, time.Since(start))

			if r != nil {
				panic(r)
			}
		}()

		c.Next(reqCtx)
	}
}
