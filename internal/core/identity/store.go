package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"menu-recommender/internal/pkg/common"

	"github.com/go-redis/redis/v8"
)

// MetadataStore 每位使用者的飲食偏好存放
// Get 在沒有資料時回傳 (nil, nil)
type MetadataStore interface {
	Get(ctx context.Context, userID string) (*common.DietaryPreferences, error)
	Save(ctx context.Context, userID string, prefs common.DietaryPreferences) error
}

// MemoryStore 行程內存放，重啟即消失
type MemoryStore struct {
	mu    sync.RWMutex
	prefs map[string]common.DietaryPreferences
}

// NewMemoryStore 創建行程內存放
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[string]common.DietaryPreferences)}
}

// Get 讀取偏好
func (s *MemoryStore) Get(_ context.Context, userID string) (*common.DietaryPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prefs[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Save 寫入偏好
func (s *MemoryStore) Save(_ context.Context, userID string, prefs common.DietaryPreferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = prefs
	return nil
}

// RedisStore 以 Redis 存放使用者 metadata
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore 創建 Redis 存放
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "user:metadata:"}
}

// Get 讀取偏好
func (s *RedisStore) Get(ctx context.Context, userID string) (*common.DietaryPreferences, error) {
	data, err := s.client.HGet(ctx, s.prefix+userID, "dietaryPreferences").Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read user metadata: %w", err)
	}

	var prefs common.DietaryPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode user metadata: %w", err)
	}
	return &prefs, nil
}

// Save 寫入偏好
func (s *RedisStore) Save(ctx context.Context, userID string, prefs common.DietaryPreferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode user metadata: %w", err)
	}
	if err := s.client.HSet(ctx, s.prefix+userID, "dietaryPreferences", data).Err(); err != nil {
		return fmt.Errorf("failed to write user metadata: %w", err)
	}
	return nil
}

// NewStore 有 Redis 時使用 Redis，否則使用行程內存放
func NewStore(client redis.UniversalClient) MetadataStore {
	if client == nil {
		return NewMemoryStore()
	}
	return NewRedisStore(client)
}
