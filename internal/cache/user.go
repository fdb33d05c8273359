package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	ri "github.com/redis/go-redis/v9"

	"OTelDemo/internal/model"
)

const userPrefix = "user"

// UserCache 用户缓存，查不到的用户也会短暂缓存
type UserCache struct {
	cache *ProtectedCache
}

func NewUserCache(client ri.Cmdable, ttl time.Duration) *UserCache {
	return &UserCache{cache: NewProtectedCache(client, userPrefix, ttl)}
}

// GetUser hit 为 true 且 user 为 nil 表示用户确认不存在
func (c *UserCache) GetUser(ctx context.Context, id int64) (*model.User, bool, error) {
	var user model.User
	hit, err := c.cache.Get(ctx, strconv.FormatInt(id, 10), &user)
	if errors.Is(err, ErrEmptyValue) {
		return nil, true, nil
	}
	if err != nil || !hit {
		return nil, false, err
	}

	return &user, true, nil
}

// SetUser user 为 nil 时写入空值
func (c *UserCache) SetUser(ctx context.Context, id int64, user *model.User) error {
	if user == nil {
		return c.cache.Set(ctx, strconv.FormatInt(id, 10), nil)
	}
	return c.cache.Set(ctx, strconv.FormatInt(id, 10), user)
}
