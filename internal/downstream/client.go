package downstream

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/cloudwego/hertz/pkg/app/client"
	errs "github.com/cloudwego/hertz/pkg/common/errors"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"OTelDemo/pkg/errors"
	"OTelDemo/pkg/logger"
	pkgotel "OTelDemo/pkg/otel"
)

// SpanName 外呼 span 的名称
const SpanName = "do_stuff"

// Config 下游依赖配置
type Config struct {
	URL   string
	Delay time.Duration
	// 0 表示不设超时
	Timeout time.Duration
}

// Echo 下游回显的请求信息
type Echo struct {
	Headers map[string]string
}

// Client 调用下游依赖，并把当前链路上下文注入请求头
type Client struct {
	http       *client.Client
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	log        *zap.Logger
	cfg        Config
}

func New(cfg Config, tracer trace.Tracer, propagator propagation.TextMapPropagator, log *zap.Logger) (*Client, error) {
	dialTimeout := time.Second
	if cfg.Timeout > 0 && cfg.Timeout < dialTimeout {
		dialTimeout = cfg.Timeout
	}

	c, err := client.NewClient(client.WithDialTimeout(dialTimeout))
	if err != nil {
		return nil, err
	}

	if propagator == nil {
		propagator = pkgotel.NewPropagator()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		http:       c,
		tracer:     tracer,
		propagator: propagator,
		log:        log,
		cfg:        cfg,
	}, nil
}

// Call 在 do_stuff span 中请求下游，返回的错误都可以用 response.StatusOf 映射
func (c *Client) Call(ctx context.Context) (echo *Echo, err error) {
	ctx, span := c.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			semconv.HTTPRequestMethodKey.String(http.MethodGet),
			semconv.URLFull(c.cfg.URL),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := sleep(ctx, c.cfg.Delay); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.DownstreamTimeout, err)
	}

	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetRequestURI(c.cfg.URL)
	req.Header.SetMethod(consts.MethodGet)
	c.propagator.Inject(ctx, pkgotel.NewHeaderCarrier(&req.Header))

	if c.cfg.Timeout > 0 {
		err = c.http.DoTimeout(ctx, req, resp, c.cfg.Timeout)
	} else {
		err = c.http.Do(ctx, req, resp)
	}
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", errors.DownstreamTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", errors.DownstreamUnavailable, err)
	}

	status := resp.StatusCode()
	span.SetAttributes(semconv.HTTPResponseStatusCode(status))
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errors.DownstreamUnavailable, status)
	}

	echo, err = parseEcho(resp.Body())
	if err != nil {
		return nil, err
	}

	logger.WithContext(ctx, c.log).Debug("downstream echoed headers", zap.Any("headers", echo.Headers))

	return echo, nil
}

// parseEcho 读取 request.headers
func parseEcho(body []byte) (*Echo, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: invalid json", errors.DownstreamBadResponse)
	}

	result := gjson.GetBytes(body, "request.headers")
	if !result.IsObject() {
		return nil, fmt.Errorf("%w: missing request.headers", errors.DownstreamBadResponse)
	}

	headers := make(map[string]string)
	result.ForEach(func(key, value gjson.Result) bool {
		headers[key.String()] = value.String()
		return true
	})

	return &Echo{Headers: headers}, nil
}

func isTimeout(err error) bool {
	if stderrors.Is(err, errs.ErrTimeout) || stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
