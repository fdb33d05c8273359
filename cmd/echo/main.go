package main

import (
	"context"
	"flag"
	"net/http"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"go.uber.org/zap"

	"OTelDemo/config"
	"OTelDemo/pkg/logger"
)

// echo 本地下游依赖：把收到的请求原样回显，/ 路由的外呼依赖它
func main() {
	addr := flag.String("addr", ":6000", "listen address")
	flag.Parse()

	logger.Init(config.Cfg, nil)
	defer logger.Sync()

	h := server.Default(server.WithHostPorts(*addr))
	h.Any("/*path", echo)

	logger.Logger.Info("Echo server listening", zap.String("addr", *addr))
	h.Spin()
}

func echo(_ context.Context, c *app.RequestContext) {
	headers := utils.H{}
	c.Request.Header.VisitAll(func(key, value []byte) {
		headers[strings.ToLower(string(key))] = string(value)
	})

	c.JSON(http.StatusOK, utils.H{
		"request": utils.H{
			"method":  string(c.Method()),
			"path":    string(c.Path()),
			"headers": headers,
		},
	})
}
