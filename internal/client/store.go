package client

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"OTelDemo/internal/model"
	"OTelDemo/pkg/logger"
)

// UserCache StoreClient 的缓存层，hit 为 true 且 user 为 nil 表示用户确认不存在
type UserCache interface {
	GetUser(ctx context.Context, id int64) (*model.User, bool, error)
	SetUser(ctx context.Context, id int64, user *model.User) error
}

// StoreClient 从 PostgreSQL 读取用户，Redis 做旁路缓存
type StoreClient struct {
	db    *gorm.DB
	cache UserCache
	log   *zap.Logger
}

// NewStoreClient cache 可以为 nil
func NewStoreClient(db *gorm.DB, cache UserCache, log *zap.Logger) *StoreClient {
	if log == nil {
		log = zap.NewNop()
	}

	return &StoreClient{db: db, cache: cache, log: log}
}

func (s *StoreClient) GetUser(ctx context.Context, id int64) (*model.User, int) {
	if s.cache != nil {
		user, hit, err := s.cache.GetUser(ctx, id)
		switch {
		case err != nil:
			// 缓存故障不影响读库
			logger.WithContext(ctx, s.log).Warn("user cache get failed", zap.Int64("user_id", id), zap.Error(err))
		case hit && user == nil:
			return nil, http.StatusNotFound
		case hit:
			return user, http.StatusOK
		}
	}

	var user model.User
	err := s.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.fill(ctx, id, nil)
		return nil, http.StatusNotFound
	}
	if err != nil {
		logger.WithContext(ctx, s.log).Error("user query failed", zap.Int64("user_id", id), zap.Error(err))
		return nil, http.StatusInternalServerError
	}

	s.fill(ctx, id, &user)
	return &user, http.StatusOK
}

func (s *StoreClient) fill(ctx context.Context, id int64, user *model.User) {
	if s.cache == nil {
		return
	}

	if err := s.cache.SetUser(ctx, id, user); err != nil {
		logger.WithContext(ctx, s.log).Warn("user cache set failed", zap.Int64("user_id", id), zap.Error(err))
	}
}
