package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/route"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"OTelDemo/internal/client"
	"OTelDemo/internal/downstream"
)

// Downstream / 路由的外呼依赖
type Downstream interface {
	Call(ctx context.Context) (*downstream.Echo, error)
}

// Handler 业务路由，依赖全部通过构造函数注入
type Handler struct {
	tracer     trace.Tracer
	users      client.UserClient
	downstream Downstream
	log        *zap.Logger
	userID     int64
}

func New(tracer trace.Tracer, users client.UserClient, ds Downstream, log *zap.Logger, userID int64) *Handler {
	if log == nil {
		log = zap.NewNop()
	}

	return &Handler{
		tracer:     tracer,
		users:      users,
		downstream: ds,
		log:        log,
		userID:     userID,
	}
}

// Register 注册路由
func (h *Handler) Register(r route.IRoutes) {
	r.GET("/", h.Index)
	r.GET("/users", h.GetUser)
}
