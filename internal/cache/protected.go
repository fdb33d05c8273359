package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	ri "github.com/redis/go-redis/v9"

	"OTelDemo/storage/redis"
)

const (
	// 空值缓存标识
	emptyValueFlag = "__EMPTY__"
	// 空值缓存TTL，较短时间避免长期占用
	emptyValueTTL = time.Minute
)

// ErrEmptyValue 命中了空值缓存（记录确认不存在）
var ErrEmptyValue = errors.New("cache: empty value")

// ProtectedCache 带空值保护的缓存包装器，防止不存在的键反复穿透到数据库
type ProtectedCache struct {
	client    ri.Cmdable
	keyPrefix string
	ttl       time.Duration
	emptyTTL  time.Duration
}

// NewProtectedCache 创建受保护的缓存实例
func NewProtectedCache(client ri.Cmdable, keyPrefix string, ttl time.Duration) *ProtectedCache {
	emptyTTL := emptyValueTTL
	if ttl > 0 && ttl < emptyTTL {
		emptyTTL = ttl
	}

	return &ProtectedCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		emptyTTL:  emptyTTL,
	}
}

// Set value 为 nil 时写入空值标识
func (pc *ProtectedCache) Set(ctx context.Context, key string, value interface{}) error {
	cacheKey := redis.Key(pc.keyPrefix, key)

	if value == nil {
		return pc.client.Set(ctx, cacheKey, emptyValueFlag, pc.emptyTTL).Err()
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}

	return pc.client.Set(ctx, cacheKey, data, pc.ttl).Err()
}

// Get 未命中返回 false；命中空值返回 true 和 ErrEmptyValue
func (pc *ProtectedCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	cacheKey := redis.Key(pc.keyPrefix, key)

	data, err := pc.client.Get(ctx, cacheKey).Result()
	if err != nil {
		if errors.Is(err, ri.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache: %w", err)
	}

	if data == emptyValueFlag {
		return true, ErrEmptyValue
	}

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}

	return true, nil
}

// Delete 删除缓存
func (pc *ProtectedCache) Delete(ctx context.Context, key string) error {
	return pc.client.Del(ctx, redis.Key(pc.keyPrefix, key)).Err()
}
