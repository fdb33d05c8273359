package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"OTelDemo/pkg/errors"
	"OTelDemo/pkg/response"
)

func TestRecover_Response(t *testing.T) {
	tests := []struct {
		name        string
		production  bool
		wantMessage string
		wantDetails bool
	}{
		{name: "development", production: false, wantMessage: "Internal error: kaboom", wantDetails: true},
		{name: "production", production: true, wantMessage: errors.InternalError.Message, wantDetails: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.InfoLevel)

			engine := route.NewEngine(config.NewOptions(nil))
			engine.Use(Recover(zap.New(core), tt.production))
			engine.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
				c.String(http.StatusOK, "partial")
				panic("kaboom")
			})

			resp := ut.PerformRequest(engine, http.MethodGet, "/boom", nil).Result()

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())

			var body response.ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body(), &body))
			assert.Equal(t, errors.InternalError.Code, body.Error.Code)
			assert.Equal(t, tt.wantMessage, body.Error.Message)
			assert.Equal(t, tt.wantDetails, body.Error.Details != nil)

			entries := logs.FilterMessage("[PANIC RECOVERED]").All()
			require.Len(t, entries, 1)
			assert.Equal(t, "kaboom", entries[0].ContextMap()["panic"])
		})
	}
}

func TestRecover_RecordsInSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	engine := route.NewEngine(config.NewOptions(nil))
	engine.Use(func(ctx context.Context, c *app.RequestContext) {
		ctx, span := tp.Tracer("test").Start(ctx, "server")
		defer span.End()
		c.Next(ctx)
	})
	engine.Use(Recover(zap.NewNop(), true))
	engine.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
		panic("kaboom")
	})

	ut.PerformRequest(engine, http.MethodGet, "/boom", nil)

	spans := rec.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestIsSeverePanic(t *testing.T) {
	assert.True(t, isSeverePanic("runtime error: index out of range [3] with length 1"))
	assert.True(t, isSeverePanic("concurrent map writes"))
	assert.False(t, isSeverePanic("kaboom"))
	assert.False(t, isSeverePanic(nil))
}

func performPanic(t *testing.T, cfg RecoverConfig, value interface{}) *protocol.Response {
	t.Helper()

	engine := route.NewEngine(config.NewOptions(nil))
	engine.Use(RecoverWithConfig(cfg))
	engine.GET("/boom", func(ctx context.Context, c *app.RequestContext) {
		panic(value)
	})

	return ut.PerformRequest(engine, http.MethodGet, "/boom", nil).Result()
}

func TestRecoverWithConfig_OnSevereError(t *testing.T) {
	tests := []struct {
		name      string
		value     interface{}
		wantCalls int
	}{
		{name: "severe panic", value: "runtime error: index out of range [5] with length 2", wantCalls: 1},
		{name: "ordinary panic", value: "kaboom", wantCalls: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				calls int
				got   interface{}
				stack []byte
			)
			cfg := NewRecoverConfig(zap.NewNop(), true)
			cfg.OnSevereError = func(ctx context.Context, c *app.RequestContext, err interface{}, s []byte) {
				calls++
				got = err
				stack = s
			}

			resp := performPanic(t, cfg, tt.value)

			assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantCalls > 0 {
				assert.Equal(t, tt.value, got)
				assert.NotEmpty(t, stack)
			}
		})
	}
}

func TestRecoverWithConfig_ExposeDetailsInProduction(t *testing.T) {
	cfg := NewRecoverConfig(zap.NewNop(), true)
	cfg.ExposeDetailsInProduction = true

	resp := performPanic(t, cfg, "kaboom")

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.Equal(t, "Internal error: kaboom", body.Error.Message)
	require.NotNil(t, body.Error.Details)
	assert.Equal(t, "kaboom", body.Error.Details["panic"])
	assert.Contains(t, body.Error.Details, "stack")
}

func TestRecoverWithConfig_StackTraceLevel(t *testing.T) {
	tests := []struct {
		level     string
		wantStack func(t *testing.T, stack string)
	}{
		{level: "full", wantStack: func(t *testing.T, stack string) {
			assert.Contains(t, stack, "goroutine ")
			assert.Contains(t, stack, "runtime/debug.Stack")
		}},
		{level: "simple", wantStack: func(t *testing.T, stack string) {
			assert.True(t, strings.HasPrefix(stack, "goroutine panic:\n"))
		}},
		{level: "none", wantStack: func(t *testing.T, stack string) {
			assert.Empty(t, stack)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			cfg := NewRecoverConfig(zap.NewNop(), false)
			cfg.StackTraceLevel = tt.level

			resp := performPanic(t, cfg, "kaboom")

			var body response.ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body(), &body))
			stack, _ := body.Error.Details["stack"].(string)
			tt.wantStack(t, stack)
		})
	}
}

func TestRecoverWithConfig_StackTraceDisabled(t *testing.T) {
	cfg := NewRecoverConfig(zap.NewNop(), false)
	cfg.EnableStackTrace = false

	resp := performPanic(t, cfg, "kaboom")

	var body response.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &body))
	assert.NotContains(t, body.Error.Details, "stack")
	assert.Equal(t, "kaboom", body.Error.Details["panic"])
}
