package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap"

	"OTelDemo/pkg/logger"
)

// GetUser 查询固定的演示用户
// GET /users
func (h *Handler) GetUser(ctx context.Context, c *app.RequestContext) {
	ctx, span := h.tracer.Start(ctx, "users")
	defer span.End()

	user, status := h.users.GetUser(ctx, h.userID)
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))

	if user == nil {
		logger.WithContext(ctx, h.log).Warn("user not found",
			zap.Int64("user_id", h.userID),
			zap.Int("status", status),
		)
		c.SetStatusCode(status)
		return
	}

	c.JSON(status, user)
}
