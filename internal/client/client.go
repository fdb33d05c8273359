package client

import (
	"context"

	"OTelDemo/internal/model"
)

// UserClient 用户数据来源
//
// 返回值中的 int 是 HTTP 状态码，handler 直接原样返回给调用方；
// user 为 nil 时表示没有可返回的数据（404 或其他失败）。
type UserClient interface {
	GetUser(ctx context.Context, id int64) (*model.User, int)
}
