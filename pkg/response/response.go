package response

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"OTelDemo/pkg/errors"
)

// ErrorResponse 统一的错误响应格式
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Details map[string]interface{} `json:"details,omitempty"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
}

func asDefinition(err error) (errors.Definition, bool) {
	var def errors.Definition
	ok := stderrors.As(err, &def)
	return def, ok
}

// StatusOf 把错误映射为 HTTP 状态码
func StatusOf(err error) int {
	def, ok := asDefinition(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch def.Code {
	case errors.DownstreamUnavailable.Code, errors.DownstreamBadResponse.Code:
		return http.StatusBadGateway // 502
	case errors.DownstreamTimeout.Code:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}

// Error 返回错误响应
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithDetails(ctx, c, err, nil)
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	var code, message string
	if def, ok := asDefinition(err); ok {
		code = def.Code
		message = def.Message
	} else {
		code = errors.InternalError.Code
		message = err.Error()
	}

	c.JSON(StatusOf(err), ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}
