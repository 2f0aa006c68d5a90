package cache

import (
	"context"
	"time"

	"menu-recommender/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const (
	sharedKeyPrefix = "menu:extract:"
	sharedTimeout   = 500 * time.Millisecond
)

// SharedStore 以 Redis 保存擷取結果，多個實例共用
// Redis 出錯時視為未命中，不影響請求
type SharedStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewSharedStore 創建共用快取層；client 為 nil 時回傳 nil
func NewSharedStore(client redis.UniversalClient, ttl time.Duration) *SharedStore {
	if client == nil {
		return nil
	}
	return &SharedStore{client: client, ttl: ttl}
}

// Get 獲取緩存
func (s *SharedStore) Get(key string) ([]byte, bool) {
	if s == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), sharedTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, sharedKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			common.LogWarn("讀取共用快取失敗", zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

// Set 設置緩存
func (s *SharedStore) Set(key string, value []byte) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sharedTimeout)
	defer cancel()

	if err := s.client.Set(ctx, sharedKeyPrefix+key, value, s.ttl).Err(); err != nil {
		common.LogWarn("寫入共用快取失敗", zap.Error(err))
	}
}
