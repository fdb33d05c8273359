package client

import (
	"context"
	"math/rand/v2"
	"net/http"
	"time"

	"OTelDemo/internal/model"
)

// Random ChaosClient 使用的随机源，实现必须可并发调用
type Random interface {
	Float64() float64
	Int64N(n int64) int64
}

// globalRandom math/rand/v2 的顶层函数本身是并发安全的
type globalRandom struct{}

func (globalRandom) Float64() float64     { return rand.Float64() }
func (globalRandom) Int64N(n int64) int64 { return rand.Int64N(n) }

// ChaosConfig 故障注入概率
type ChaosConfig struct {
	NotFoundRate float64
	ErrorRate    float64
	MaxLatency   time.Duration
}

// Enabled 三项都为 0 时不需要包装
func (c ChaosConfig) Enabled() bool {
	return c.NotFoundRate > 0 || c.ErrorRate > 0 || c.MaxLatency > 0
}

// ChaosClient 包装另一个 UserClient，按概率返回 404/500 或增加延迟
type ChaosClient struct {
	next UserClient
	cfg  ChaosConfig
	rnd  Random
}

// NewChaosClient rnd 为 nil 时使用全局随机源
func NewChaosClient(next UserClient, cfg ChaosConfig, rnd Random) *ChaosClient {
	if rnd == nil {
		rnd = globalRandom{}
	}

	return &ChaosClient{next: next, cfg: cfg, rnd: rnd}
}

func (c *ChaosClient) GetUser(ctx context.Context, id int64) (*model.User, int) {
	if c.cfg.MaxLatency > 0 {
		delay := time.Duration(c.rnd.Int64N(int64(c.cfg.MaxLatency) + 1))
		if err := sleep(ctx, delay); err != nil {
			return nil, http.StatusServiceUnavailable
		}
	}

	roll := c.rnd.Float64()
	switch {
	case roll < c.cfg.NotFoundRate:
		return nil, http.StatusNotFound
	case roll < c.cfg.NotFoundRate+c.cfg.ErrorRate:
		return nil, http.StatusInternalServerError
	}

	return c.next.GetUser(ctx, id)
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
