package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"OTelDemo/pkg/logger"
	"OTelDemo/pkg/response"
)

// GreetingTimeFormat 问候语中的时间格式，统一使用 UTC
const GreetingTimeFormat = "Mon, 02 Jan 2006 15:04:05"

// Index 问候并调用一次下游依赖
// GET /
func (h *Handler) Index(ctx context.Context, c *app.RequestContext) {
	ctx, span := h.tracer.Start(ctx, "index", trace.WithAttributes(
		semconv.HTTPRequestMethodKey.String(string(c.Method())),
		semconv.URLPath(string(c.Path())),
	))
	defer span.End()

	log := logger.WithContext(ctx, h.log)
	log.Info("index called")

	if _, err := h.downstream.Call(ctx); err != nil {
		status := response.StatusOf(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))

		log.Error("downstream call failed", zap.Error(err))
		response.Error(ctx, c, err)
		return
	}

	span.SetAttributes(semconv.HTTPResponseStatusCode(http.StatusOK))
	c.String(http.StatusOK, "Hello, World! It's currently %s", time.Now().UTC().Format(GreetingTimeFormat))
}
