package redis

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"OTelDemo/config"
	redisotel "OTelDemo/pkg/redis"
)

const defaultPrefix = "oteldemo"

var (
	client *redis.Client
	prefix = defaultPrefix
	once   sync.Once
	err    error
)

func Init(cfg config.Config, tp trace.TracerProvider, mp metric.MeterProvider) error {
	once.Do(func() {
		if cfg.RedisPrefix != "" {
			prefix = cfg.RedisPrefix
		}

		c := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			MinIdleConns: 5,
			MaxRetries:   3,
		})

		if err = redisotel.InstrumentClient(c, tp, mp); err != nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err = c.Ping(ctx).Err(); err != nil {
			_ = c.Close()
			return
		}

		client = c
	})

	return err
}

// Client 未初始化时返回 nil
func Client() *redis.Client {
	return client
}

func Close(ctx context.Context) error {
	if client == nil {
		return nil
	}

	return client.Close()
}

// Key 拼接带前缀的键，空片段会被跳过
func Key(parts ...string) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	for _, part := range parts {
		if part != "" {
			sb.WriteString(":")
			sb.WriteString(part)
		}
	}

	return sb.String()
}
