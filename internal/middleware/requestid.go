package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"OTelDemo/pkg/logger"
	"OTelDemo/pkg/snowflake"
)

const (
	HeaderRequestID = "X-Request-Id"
	// ContextKeyRequestID RequestContext 中的键
	ContextKeyRequestID = "request_id"

	maxRequestIDLength = 128
)

// RequestID 透传或生成请求 ID，写回响应头并放入上下文
func RequestID(gen *snowflake.Generator) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := toValidUTF8(string(c.GetHeader(HeaderRequestID)))
		if len(id) > maxRequestIDLength {
			id = id[:maxRequestIDLength]
		}
		if id == "" && gen != nil {
			id = gen.NextString()
		}

		if id == "" {
			c.Next(ctx)
			return
		}

		c.Response.Header.Set(HeaderRequestID, id)
		c.Set(ContextKeyRequestID, id)

		c.Next(logger.ContextWithRequestID(ctx, id))
	}
}
